// Package leaderboard implements the leaderboard engine: a total order over
// all score records, ranked by score descending, ties broken by earliest
// update and then lowest user id. Two strategies conform to one contract:
// "snapshot" recomputes the order from storage on every query, "index"
// maintains an incrementally updated in-memory order. Strategy selection is
// a config choice; callers see no difference.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-leaderboard/internal/domain"
)

// Strategy names accepted by New.
const (
	StrategySnapshot = "snapshot"
	StrategyIndex    = "index"
)

// Source is the read-only slice of storage the engine queries. The engine
// never mutates storage.
type Source interface {
	AllScores(ctx context.Context) ([]domain.ScoreRecord, error)
	UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// Ranker serves ranked views over the score ledger.
type Ranker interface {
	// Top returns up to n entries in rank order. teamID restricts the view
	// to one team; "" means the global view. n beyond the population
	// returns everything; an empty population returns an empty slice.
	Top(ctx context.Context, n int, teamID string) ([]domain.LeaderboardEntry, error)

	// RankOf returns the user's 1-indexed global rank, or false when the
	// user has no score record.
	RankOf(ctx context.Context, userID string) (int64, bool, error)

	// Apply folds an accepted score record into the ranking. Snapshot
	// rankers treat it as a no-op.
	Apply(rec domain.ScoreRecord)

	// Reload rebuilds the ranking from storage.
	Reload(ctx context.Context) error
}

// New creates a ranker for the named strategy.
func New(strategy string, src Source, logger *slog.Logger) (Ranker, error) {
	switch strategy {
	case StrategySnapshot:
		return NewSnapshot(src, logger), nil
	case StrategyIndex:
		return NewIndex(src, logger), nil
	default:
		return nil, fmt.Errorf("unknown leaderboard strategy %q", strategy)
	}
}

// buildEntries joins an ordered run of score records with user data, applies
// the optional team filter and assigns 1-indexed ranks within the view.
func buildEntries(ctx context.Context, src Source, ordered []domain.ScoreRecord, n int, teamID string) ([]domain.LeaderboardEntry, error) {
	ids := make([]string, len(ordered))
	for i, rec := range ordered {
		ids[i] = rec.UserID
	}
	users, err := src.UsersByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, n)
	for _, rec := range ordered {
		u, ok := users[rec.UserID]
		if !ok {
			continue
		}
		if teamID != "" && u.TeamID != teamID {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   int64(len(entries) + 1),
			UserID: rec.UserID,
			Handle: u.Handle,
			TeamID: u.TeamID,
			Score:  rec.Score,
		})
		if len(entries) == n {
			break
		}
	}
	return entries, nil
}
