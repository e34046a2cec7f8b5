// Package ledger implements the score ledger, the single owner of score
// record mutation. Concurrent submissions for one user serialize through a
// versioned compare-and-swap against the storage layer: the loop re-reads,
// gives up as Ignored when the stored score already dominates, and retries
// a bounded number of times when it loses the race.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arena-leaderboard/internal/domain"
)

// Store is the slice of the storage layer the ledger needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetScore(ctx context.Context, userID string) (*domain.ScoreRecord, error)
	SwapScore(ctx context.Context, rec domain.ScoreRecord) error
}

// Ledger applies score submissions with monotonic-maximum semantics.
type Ledger struct {
	store       Store
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// New creates a ledger. maxAttempts bounds the CAS retry loop before the
// submission surfaces as domain.ErrServiceBusy.
func New(st Store, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) *Ledger {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Ledger{
		store:       st,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		now:         time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Submit applies a candidate score for the user. A candidate at or below the
// stored high score is Ignored; it never touches the record. On acceptance
// the stored record is returned so callers can update derived views.
func (l *Ledger) Submit(ctx context.Context, userID string, candidate int64) (domain.UpdateResult, *domain.ScoreRecord, error) {
	if candidate < 0 {
		return domain.UpdateResult{}, nil, domain.ErrInvalidScore
	}
	if _, err := l.store.GetUser(ctx, userID); err != nil {
		return domain.UpdateResult{}, nil, err
	}

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		current, err := l.store.GetScore(ctx, userID)
		if err != nil {
			return domain.UpdateResult{}, nil, fmt.Errorf("reading score: %w", err)
		}

		rec := domain.ScoreRecord{
			UserID:    userID,
			Score:     candidate,
			Version:   1,
			UpdatedAt: l.now().UTC(),
		}
		if current != nil {
			if candidate <= current.Score {
				return domain.UpdateResult{Accepted: false, Score: current.Score}, nil, nil
			}
			rec.Version = current.Version + 1
		}

		err = l.store.SwapScore(ctx, rec)
		if err == nil {
			return domain.UpdateResult{Accepted: true, Score: candidate}, &rec, nil
		}
		if !errors.Is(err, domain.ErrScoreConflict) {
			return domain.UpdateResult{}, nil, fmt.Errorf("swapping score: %w", err)
		}

		// Lost the race; another submission landed first. Re-read and retry.
		if l.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return domain.UpdateResult{}, nil, ctx.Err()
			case <-time.After(l.retryDelay):
			}
		}
	}

	l.logger.Warn("score submission exhausted retries",
		"user_id", userID,
		"candidate", candidate,
		"attempts", l.maxAttempts,
	)
	return domain.UpdateResult{}, nil, domain.ErrServiceBusy
}

// Score returns the user's current score record, or nil when the user has
// never had a score accepted. Non-blocking read.
func (l *Ledger) Score(ctx context.Context, userID string) (*domain.ScoreRecord, error) {
	return l.store.GetScore(ctx, userID)
}
