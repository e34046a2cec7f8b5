package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arena-leaderboard/internal/domain"
)

func TestMemoryGatewayCreateAndResolve(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	s, err := g.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Token == "" {
		t.Fatal("expected non-empty token")
	}

	userID, err := g.Resolve(ctx, s.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("expected u1, got %q", userID)
	}
}

func TestMemoryGatewayConcurrentSessionsCoexist(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	s1, _ := g.Create(ctx, "u1")
	s2, _ := g.Create(ctx, "u1")
	if s1.Token == s2.Token {
		t.Fatal("expected distinct tokens")
	}

	for _, tok := range []string{s1.Token, s2.Token} {
		if _, err := g.Resolve(ctx, tok); err != nil {
			t.Fatalf("resolve %q: %v", tok, err)
		}
	}
}

func TestMemoryGatewayLazyExpiry(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	g.SetClock(func() time.Time { return current })

	s, err := g.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	current = base.Add(2 * time.Hour)
	if _, err := g.Resolve(ctx, s.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestMemoryGatewayResolveUnknownToken(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	if _, err := g.Resolve(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryGatewayInvalidateIdempotent(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	s, _ := g.Create(ctx, "u1")
	if err := g.Invalidate(ctx, s.Token); err != nil {
		t.Fatalf("first invalidate: %v", err)
	}
	if err := g.Invalidate(ctx, s.Token); err != nil {
		t.Fatalf("second invalidate must succeed: %v", err)
	}
	if err := g.Invalidate(ctx, "never-existed"); err != nil {
		t.Fatalf("invalidating unknown token must succeed: %v", err)
	}
}

func TestMemoryGatewayReap(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	g.SetClock(func() time.Time { return current })

	g.Create(ctx, "u1")
	g.Create(ctx, "u2")
	current = base.Add(30 * time.Minute)
	fresh, _ := g.Create(ctx, "u3")

	// 89m: the first two sessions are past their 1h TTL, the fresh one is
	// still strictly inside its own.
	current = base.Add(89 * time.Minute)
	if reaped := g.Reap(ctx); reaped != 2 {
		t.Fatalf("expected 2 reaped sessions, got %d", reaped)
	}
	if _, err := g.Resolve(ctx, fresh.Token); err != nil {
		t.Fatalf("fresh session must survive the reap: %v", err)
	}
}

func TestMemoryGatewayExpiryBoundary(t *testing.T) {
	g := NewMemoryGateway(time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	g.SetClock(func() time.Time { return current })

	s, err := g.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A token at exactly its expiry instant is expired, and Reap agrees
	// with Resolve about it.
	current = s.ExpiresAt
	if reaped := g.Reap(ctx); reaped != 1 {
		t.Fatalf("expected 1 reaped session at the expiry instant, got %d", reaped)
	}

	s2, _ := g.Create(ctx, "u2")
	current = s2.ExpiresAt
	if _, err := g.Resolve(ctx, s2.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired at the expiry instant, got %v", err)
	}
}
