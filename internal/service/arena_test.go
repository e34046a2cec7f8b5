package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arena-leaderboard/internal/auth"
	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/domain"
	"github.com/arena-leaderboard/internal/leaderboard"
	"github.com/arena-leaderboard/internal/ledger"
	"github.com/arena-leaderboard/internal/session"
	"github.com/arena-leaderboard/internal/store"
	"github.com/arena-leaderboard/internal/team"
)

func newTestArena(t *testing.T) *Arena {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	cfg := &config.LeaderboardConfig{
		Strategy:      leaderboard.StrategyIndex,
		DefaultLimit:  100,
		MaxLimit:      1000,
		RetryAttempts: 5,
	}

	ranker, err := leaderboard.New(cfg.Strategy, mem, logger)
	if err != nil {
		t.Fatalf("new ranker: %v", err)
	}

	return NewArena(
		mem,
		session.NewMemoryGateway(time.Hour),
		team.NewRegistry(mem, logger),
		ledger.New(mem, cfg.RetryAttempts, 0, logger),
		ranker,
		auth.NewBcryptHasher(4),
		cfg,
		logger,
	)
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	u, err := a.Register(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	s, err := a.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	userID, err := a.Resolve(ctx, s.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if userID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, userID)
	}

	if err := a.Logout(ctx, s.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := a.Resolve(ctx, s.Token); !domain.IsAuthError(err) {
		t.Fatalf("expected auth error after logout, got %v", err)
	}

	// Logout of an already-invalidated token still succeeds.
	if err := a.Logout(ctx, s.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestRegisterHandleTaken(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	if _, err := a.Register(ctx, "alice", "secret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := a.Register(ctx, "alice", "other"); !errors.Is(err, domain.ErrHandleTaken) {
		t.Fatalf("expected ErrHandleTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	a.Register(ctx, "alice", "secret")

	if _, err := a.Login(ctx, "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := a.Login(ctx, "nobody", "secret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown handle, got %v", err)
	}
}

func TestSubmitScoreUpdatesLeaderboard(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	u, _ := a.Register(ctx, "alice", "secret")

	res, err := a.SubmitScore(ctx, u.ID, 50)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Accepted || res.Score != 50 {
		t.Fatalf("expected Accepted(50), got %+v", res)
	}

	rank, ok, err := a.RankOf(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("rank of: ok=%v err=%v", ok, err)
	}
	if rank != 1 {
		t.Fatalf("expected rank 1, got %d", rank)
	}

	// A lower score is ignored and leaves the leaderboard untouched.
	res, err = a.SubmitScore(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("submit lower: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected Ignored, got %+v", res)
	}

	entries, err := a.Top(ctx, 0, "")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 50 {
		t.Fatalf("expected single entry with score 50, got %+v", entries)
	}
	if entries[0].Handle != "alice" {
		t.Fatalf("expected handle alice on entry, got %q", entries[0].Handle)
	}
}

func TestSubmitScoreValidation(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	u, _ := a.Register(ctx, "alice", "secret")
	if _, err := a.SubmitScore(ctx, u.ID, -5); !errors.Is(err, domain.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if _, err := a.SubmitScore(ctx, "ghost", 5); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTeamAssignmentAndFilteredView(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	alice, _ := a.Register(ctx, "alice", "secret")
	bob, _ := a.Register(ctx, "bob", "secret")

	reds, err := a.CreateTeam(ctx, "reds")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := a.SetTeam(ctx, alice.ID, reds.ID); err != nil {
		t.Fatalf("set team: %v", err)
	}
	if err := a.SetTeam(ctx, bob.ID, "missing"); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}

	got, err := a.TeamOf(ctx, alice.ID)
	if err != nil {
		t.Fatalf("team of: %v", err)
	}
	if got == nil || got.ID != reds.ID {
		t.Fatalf("expected alice on reds, got %+v", got)
	}
	if got.MemberCount != 1 {
		t.Fatalf("expected member count 1, got %d", got.MemberCount)
	}

	none, err := a.TeamOf(ctx, bob.ID)
	if err != nil {
		t.Fatalf("team of bob: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no team for bob, got %+v", none)
	}

	a.SubmitScore(ctx, alice.ID, 10)
	a.SubmitScore(ctx, bob.ID, 20)

	entries, err := a.Top(ctx, 10, reds.ID)
	if err != nil {
		t.Fatalf("team top: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != alice.ID {
		t.Fatalf("expected only alice on team view, got %+v", entries)
	}

	global, err := a.Top(ctx, 10, "")
	if err != nil {
		t.Fatalf("global top: %v", err)
	}
	if len(global) != 2 {
		t.Fatalf("teamless user must appear in the global view, got %+v", global)
	}
}

// recordingHub captures broadcasts for assertions.
type recordingHub struct {
	leaderboards int
	players      []domain.LeaderboardEntry
}

func (h *recordingHub) BroadcastLeaderboard(teamID string, entries []domain.LeaderboardEntry) {
	h.leaderboards++
}

func (h *recordingHub) BroadcastPlayer(entry domain.LeaderboardEntry) {
	h.players = append(h.players, entry)
}

func TestAcceptedScoreBroadcasts(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	hub := &recordingHub{}
	a.SetHub(hub)

	u, _ := a.Register(ctx, "alice", "secret")
	a.SubmitScore(ctx, u.ID, 10)
	if hub.leaderboards == 0 || len(hub.players) != 1 {
		t.Fatalf("expected broadcasts for accepted score, got %d/%d", hub.leaderboards, len(hub.players))
	}

	// Ignored submissions stay silent.
	a.SubmitScore(ctx, u.ID, 5)
	if len(hub.players) != 1 {
		t.Fatalf("ignored submission must not broadcast, got %d", len(hub.players))
	}
}
