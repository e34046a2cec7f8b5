package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/arena-leaderboard/internal/domain"
)

// Index maintains the total order incrementally: accepted score updates are
// folded in as they happen, so queries never touch the score table. Team and
// handle data are still joined at query time, which keeps the index immune
// to team reassignment races.
type Index struct {
	source Source
	logger *slog.Logger

	mu      sync.RWMutex
	ordered []domain.ScoreRecord          // best rank first
	byUser  map[string]domain.ScoreRecord // current record per user
}

// NewIndex creates an index-strategy ranker. Call Reload before serving to
// hydrate from storage.
func NewIndex(src Source, logger *slog.Logger) *Index {
	return &Index{
		source: src,
		logger: logger,
		byUser: make(map[string]domain.ScoreRecord),
	}
}

// position returns the index at which rec sits (or would sit) in the order.
func (x *Index) position(rec domain.ScoreRecord) int {
	return sort.Search(len(x.ordered), func(i int) bool {
		return !domain.Less(x.ordered[i], rec)
	})
}

// insert places rec at its rank position. Caller holds the write lock.
func (x *Index) insert(rec domain.ScoreRecord) {
	pos := sort.Search(len(x.ordered), func(i int) bool {
		return domain.Less(rec, x.ordered[i])
	})
	x.ordered = append(x.ordered, domain.ScoreRecord{})
	copy(x.ordered[pos+1:], x.ordered[pos:])
	x.ordered[pos] = rec
}

// remove deletes the user's current record from the order. Caller holds the
// write lock.
func (x *Index) remove(rec domain.ScoreRecord) {
	pos := x.position(rec)
	if pos < len(x.ordered) && x.ordered[pos].UserID == rec.UserID {
		x.ordered = append(x.ordered[:pos], x.ordered[pos+1:]...)
	}
}

// Apply folds an accepted score record into the order. Stale applies (an
// older version than the one indexed) are dropped, so replayed updates
// cannot move a user backwards.
func (x *Index) Apply(rec domain.ScoreRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.byUser[rec.UserID]; ok {
		if rec.Version <= old.Version {
			return
		}
		x.remove(old)
	}
	x.byUser[rec.UserID] = rec
	x.insert(rec)
}

// Reload rebuilds the order from storage. The storage read happens outside
// the lock, so the snapshot can predate updates already folded in by Apply;
// those go through the same stale-version guard Apply uses, keeping an
// already-ranked user ranked even when the snapshot misses their record.
func (x *Index) Reload(ctx context.Context) error {
	records, err := x.source.AllScores(ctx)
	if err != nil {
		return fmt.Errorf("reading scores: %w", err)
	}

	byUser := make(map[string]domain.ScoreRecord, len(records))
	for _, rec := range records {
		byUser[rec.UserID] = rec
	}

	x.mu.Lock()
	for id, old := range x.byUser {
		if cur, ok := byUser[id]; !ok || cur.Version < old.Version {
			byUser[id] = old
		}
	}
	ordered := make([]domain.ScoreRecord, 0, len(byUser))
	for _, rec := range byUser {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return domain.Less(ordered[i], ordered[j])
	})
	x.ordered = ordered
	x.byUser = byUser
	x.mu.Unlock()

	x.logger.Debug("leaderboard index reloaded", "entries", len(ordered))
	return nil
}

// Top returns up to n entries in rank order.
func (x *Index) Top(ctx context.Context, n int, teamID string) ([]domain.LeaderboardEntry, error) {
	x.mu.RLock()
	ordered := make([]domain.ScoreRecord, len(x.ordered))
	copy(ordered, x.ordered)
	x.mu.RUnlock()

	return buildEntries(ctx, x.source, ordered, n, teamID)
}

// RankOf returns the user's 1-indexed global rank.
func (x *Index) RankOf(ctx context.Context, userID string) (int64, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rec, ok := x.byUser[userID]
	if !ok {
		return 0, false, nil
	}
	pos := x.position(rec)
	if pos >= len(x.ordered) || x.ordered[pos].UserID != userID {
		return 0, false, fmt.Errorf("index out of sync for user %s", userID)
	}
	return int64(pos + 1), true, nil
}

// Len returns the number of indexed users.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ordered)
}
