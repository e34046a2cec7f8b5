package session

import (
	"context"
	"sync"
	"time"

	"github.com/arena-leaderboard/internal/domain"
)

// MemoryGateway is an in-process session gateway. Expired sessions are left
// in place until resolved or reaped; resolution checks expiry lazily.
type MemoryGateway struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryGateway creates a memory gateway with the given session TTL.
func NewMemoryGateway(ttl time.Duration) *MemoryGateway {
	return &MemoryGateway{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (g *MemoryGateway) SetClock(now func() time.Time) {
	g.now = now
}

// Create opens a new session for the user.
func (g *MemoryGateway) Create(ctx context.Context, userID string) (domain.Session, error) {
	token, err := newToken()
	if err != nil {
		return domain.Session{}, err
	}

	now := g.now().UTC()
	s := domain.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.mu.Lock()
	g.sessions[token] = s
	g.mu.Unlock()
	return s, nil
}

// Resolve returns the user bound to the token.
func (g *MemoryGateway) Resolve(ctx context.Context, token string) (string, error) {
	g.mu.RLock()
	s, ok := g.sessions[token]
	g.mu.RUnlock()

	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if s.Expired(g.now()) {
		return "", domain.ErrSessionExpired
	}
	return s.UserID, nil
}

// Invalidate destroys the session. Idempotent.
func (g *MemoryGateway) Invalidate(ctx context.Context, token string) error {
	g.mu.Lock()
	delete(g.sessions, token)
	g.mu.Unlock()
	return nil
}

// Reap removes sessions that have expired. Correctness does not depend on
// it; Resolve already rejects expired tokens.
func (g *MemoryGateway) Reap(ctx context.Context) int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	reaped := 0
	for token, s := range g.sessions {
		if s.Expired(now) {
			delete(g.sessions, token)
			reaped++
		}
	}
	return reaped
}
