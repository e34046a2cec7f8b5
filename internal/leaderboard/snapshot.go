package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arena-leaderboard/internal/domain"
)

// Snapshot recomputes the full order from storage on every query. Simple and
// always consistent; O(users log users) per query is acceptable until read
// volume says otherwise.
type Snapshot struct {
	source Source
	logger *slog.Logger
}

// NewSnapshot creates a snapshot-strategy ranker.
func NewSnapshot(src Source, logger *slog.Logger) *Snapshot {
	return &Snapshot{source: src, logger: logger}
}

func (s *Snapshot) ordered(ctx context.Context) ([]domain.ScoreRecord, error) {
	records, err := s.source.AllScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return domain.Less(records[i], records[j])
	})
	return records, nil
}

// Top returns up to n entries in rank order.
func (s *Snapshot) Top(ctx context.Context, n int, teamID string) ([]domain.LeaderboardEntry, error) {
	ordered, err := s.ordered(ctx)
	if err != nil {
		return nil, err
	}
	return buildEntries(ctx, s.source, ordered, n, teamID)
}

// RankOf returns the user's 1-indexed global rank.
func (s *Snapshot) RankOf(ctx context.Context, userID string) (int64, bool, error) {
	ordered, err := s.ordered(ctx)
	if err != nil {
		return 0, false, err
	}
	for i, rec := range ordered {
		if rec.UserID == userID {
			return int64(i + 1), true, nil
		}
	}
	return 0, false, nil
}

// Apply is a no-op; every query recomputes from storage.
func (s *Snapshot) Apply(rec domain.ScoreRecord) {}

// Reload is a no-op; every query recomputes from storage.
func (s *Snapshot) Reload(ctx context.Context) error {
	return nil
}
