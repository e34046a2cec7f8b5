// Package service provides the business logic for the arena API: account
// registration and login, team membership, score submission and leaderboard
// queries. Every mutating operation takes an already-resolved user id; the
// session gateway is the only component that turns tokens into identities.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arena-leaderboard/internal/auth"
	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/domain"
	"github.com/arena-leaderboard/internal/leaderboard"
	"github.com/arena-leaderboard/internal/ledger"
	"github.com/arena-leaderboard/internal/session"
	"github.com/arena-leaderboard/internal/store"
	"github.com/arena-leaderboard/internal/team"
)

// broadcastTopN is how many entries ride along on a live update.
const broadcastTopN = 10

// Broadcaster pushes live leaderboard updates to connected clients.
type Broadcaster interface {
	BroadcastLeaderboard(teamID string, entries []domain.LeaderboardEntry)
	BroadcastPlayer(entry domain.LeaderboardEntry)
}

// Arena ties the session gateway, team registry, score ledger and
// leaderboard engine together behind the API operations.
type Arena struct {
	store    store.Store
	sessions session.Gateway
	teams    *team.Registry
	ledger   *ledger.Ledger
	ranker   leaderboard.Ranker
	hasher   auth.Hasher
	config   *config.LeaderboardConfig
	logger   *slog.Logger
	hub      Broadcaster
}

// NewArena creates the arena service.
func NewArena(
	st store.Store,
	sessions session.Gateway,
	teams *team.Registry,
	ld *ledger.Ledger,
	ranker leaderboard.Ranker,
	hasher auth.Hasher,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *Arena {
	return &Arena{
		store:    st,
		sessions: sessions,
		teams:    teams,
		ledger:   ld,
		ranker:   ranker,
		hasher:   hasher,
		config:   cfg,
		logger:   logger,
	}
}

// SetHub attaches a broadcaster for live updates.
func (a *Arena) SetHub(hub Broadcaster) {
	a.hub = hub
}

// Register creates a new account. The handle must be unique; a taken handle
// fails with domain.ErrHandleTaken and creates nothing.
func (a *Arena) Register(ctx context.Context, handle, credential string) (*domain.User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || credential == "" {
		return nil, domain.ErrInvalidRequest
	}

	hash, err := a.hasher.Hash(credential)
	if err != nil {
		return nil, fmt.Errorf("hashing credential: %w", err)
	}

	u := domain.User{
		ID:             uuid.NewString(),
		Handle:         handle,
		CredentialHash: hash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	a.logger.Info("user registered", "user_id", u.ID, "handle", u.Handle)
	return &u, nil
}

// Login verifies credentials and opens a new session. A second login does
// not invalidate earlier sessions (multi-device).
func (a *Arena) Login(ctx context.Context, handle, credential string) (domain.Session, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || credential == "" {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	u, err := a.store.GetUserByHandle(ctx, handle)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// Unknown handle and wrong credential are indistinguishable.
			return domain.Session{}, domain.ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if !a.hasher.Verify(u.CredentialHash, credential) {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	s, err := a.sessions.Create(ctx, u.ID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("creating session: %w", err)
	}

	a.logger.Info("user logged in", "user_id", u.ID)
	return s, nil
}

// Logout invalidates the session. Idempotent: an unknown or expired token
// still succeeds.
func (a *Arena) Logout(ctx context.Context, token string) error {
	return a.sessions.Invalidate(ctx, token)
}

// Resolve turns a bearer token into a user id.
func (a *Arena) Resolve(ctx context.Context, token string) (string, error) {
	return a.sessions.Resolve(ctx, token)
}

// CreateTeam registers a new team.
func (a *Arena) CreateTeam(ctx context.Context, name string) (*domain.Team, error) {
	return a.teams.Create(ctx, name)
}

// ListTeams returns all teams.
func (a *Arena) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return a.teams.List(ctx)
}

// TeamOf returns the user's team, or nil when the user has none.
func (a *Arena) TeamOf(ctx context.Context, userID string) (*domain.Team, error) {
	return a.teams.TeamOf(ctx, userID)
}

// SetTeam moves the user to the team.
func (a *Arena) SetTeam(ctx context.Context, userID, teamID string) error {
	return a.teams.SetTeam(ctx, userID, teamID)
}

// SubmitScore applies a candidate high score for the user. Accepted updates
// are folded into the leaderboard and broadcast to live subscribers.
func (a *Arena) SubmitScore(ctx context.Context, userID string, score int64) (domain.UpdateResult, error) {
	res, rec, err := a.ledger.Submit(ctx, userID, score)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if res.Accepted && rec != nil {
		a.ranker.Apply(*rec)
		a.broadcast(ctx, *rec)
	}
	return res, nil
}

// broadcast pushes the fresh top slice and the player's new position to the
// hub. Failures here never fail the submission.
func (a *Arena) broadcast(ctx context.Context, rec domain.ScoreRecord) {
	if a.hub == nil {
		return
	}

	entries, err := a.ranker.Top(ctx, broadcastTopN, "")
	if err != nil {
		a.logger.Warn("failed to build broadcast view", "error", err)
		return
	}
	a.hub.BroadcastLeaderboard("", entries)

	u, err := a.store.GetUser(ctx, rec.UserID)
	if err != nil {
		return
	}
	rank, ok, err := a.ranker.RankOf(ctx, rec.UserID)
	if err != nil || !ok {
		return
	}
	entry := domain.LeaderboardEntry{
		Rank:   rank,
		UserID: u.ID,
		Handle: u.Handle,
		TeamID: u.TeamID,
		Score:  rec.Score,
	}
	a.hub.BroadcastPlayer(entry)
	if u.TeamID != "" {
		if teamEntries, err := a.ranker.Top(ctx, broadcastTopN, u.TeamID); err == nil {
			a.hub.BroadcastLeaderboard(u.TeamID, teamEntries)
		}
	}
}

// ApplySubmission applies a score submission arriving from the ingestion
// pipeline.
func (a *Arena) ApplySubmission(ctx context.Context, sub domain.ScoreSubmission) error {
	_, err := a.SubmitScore(ctx, sub.UserID, sub.Score)
	return err
}

// ApplySubmissionBatch applies a batch of submissions, logging and skipping
// individual failures so one bad message cannot stall the pipeline.
func (a *Arena) ApplySubmissionBatch(ctx context.Context, subs []domain.ScoreSubmission) error {
	for _, sub := range subs {
		if err := a.ApplySubmission(ctx, sub); err != nil {
			a.logger.Error("failed to apply score submission",
				"user_id", sub.UserID,
				"score", sub.Score,
				"error", err,
			)
		}
	}
	return nil
}

// Score returns the user's score record, or nil when unranked.
func (a *Arena) Score(ctx context.Context, userID string) (*domain.ScoreRecord, error) {
	return a.ledger.Score(ctx, userID)
}

// Top returns up to n leaderboard entries, optionally restricted to one
// team. n is clamped to the configured limits.
func (a *Arena) Top(ctx context.Context, n int, teamID string) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = a.config.DefaultLimit
	}
	if n > a.config.MaxLimit {
		n = a.config.MaxLimit
	}
	return a.ranker.Top(ctx, n, teamID)
}

// RankOf returns the user's global rank, or false when unranked.
func (a *Arena) RankOf(ctx context.Context, userID string) (int64, bool, error) {
	return a.ranker.RankOf(ctx, userID)
}
