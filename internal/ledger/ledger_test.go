package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/arena-leaderboard/internal/domain"
	"github.com/arena-leaderboard/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.CreateUser(context.Background(), domain.User{ID: "u1", Handle: "alice"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return New(mem, 5, 0, testLogger()), mem
}

func TestSubmitFirstScoreAccepted(t *testing.T) {
	l, _ := newTestLedger(t)

	res, rec, err := l.Submit(context.Background(), "u1", 42)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Accepted || res.Score != 42 {
		t.Fatalf("expected Accepted(42), got %+v", res)
	}
	if rec == nil || rec.Score != 42 || rec.Version != 1 {
		t.Fatalf("expected stored record v1 score 42, got %+v", rec)
	}
}

func TestSubmitLowerScoreIgnoredWithoutTouchingRecord(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l.SetClock(func() time.Time { return current })

	if _, _, err := l.Submit(ctx, "u1", 100); err != nil {
		t.Fatalf("submit: %v", err)
	}

	current = base.Add(time.Minute)
	res, rec, err := l.Submit(ctx, "u1", 50)
	if err != nil {
		t.Fatalf("submit lower: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected Ignored, got %+v", res)
	}
	if res.Score != 100 {
		t.Fatalf("expected existing score 100, got %d", res.Score)
	}
	if rec != nil {
		t.Fatalf("ignored submission must not return a record, got %+v", rec)
	}

	stored, err := l.Score(ctx, "u1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if !stored.UpdatedAt.Equal(base) {
		t.Fatalf("ignored submission must not touch last_updated_at: got %v, want %v", stored.UpdatedAt, base)
	}
	if stored.Version != 1 {
		t.Fatalf("ignored submission must not bump version: got %d", stored.Version)
	}
}

func TestSubmitEqualScoreIgnored(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	l.Submit(ctx, "u1", 100)
	res, _, err := l.Submit(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("submit equal: %v", err)
	}
	if res.Accepted {
		t.Fatalf("equal score must be Ignored, got %+v", res)
	}
}

func TestSubmitUnknownUser(t *testing.T) {
	l, _ := newTestLedger(t)
	if _, _, err := l.Submit(context.Background(), "ghost", 10); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSubmitNegativeScore(t *testing.T) {
	l, _ := newTestLedger(t)
	if _, _, err := l.Submit(context.Background(), "u1", -1); !errors.Is(err, domain.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
}

func TestConcurrentSubmissionsStoreMaximum(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	scores := []int64{10, 90, 30, 70, 50, 100, 20, 80, 60, 40}
	var wg sync.WaitGroup
	for _, s := range scores {
		wg.Add(1)
		go func(candidate int64) {
			defer wg.Done()
			// ErrServiceBusy is a legal outcome for an individual loser, but
			// the winning maximum must always land.
			l.Submit(ctx, "u1", candidate)
		}(s)
	}
	wg.Wait()

	// Retry the maximum once more: if it already won, this is a no-op.
	if _, _, err := l.Submit(ctx, "u1", 100); err != nil {
		t.Fatalf("final submit: %v", err)
	}

	stored, err := l.Score(ctx, "u1")
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if stored.Score != 100 {
		t.Fatalf("expected final score 100, got %d", stored.Score)
	}
}

// conflictStore always loses the swap, to exercise the retry bound.
type conflictStore struct {
	swaps int
}

func (c *conflictStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id}, nil
}

func (c *conflictStore) GetScore(ctx context.Context, userID string) (*domain.ScoreRecord, error) {
	return nil, nil
}

func (c *conflictStore) SwapScore(ctx context.Context, rec domain.ScoreRecord) error {
	c.swaps++
	return domain.ErrScoreConflict
}

func TestSubmitBoundedRetriesSurfaceServiceBusy(t *testing.T) {
	st := &conflictStore{}
	l := New(st, 3, 0, testLogger())

	_, _, err := l.Submit(context.Background(), "u1", 10)
	if !errors.Is(err, domain.ErrServiceBusy) {
		t.Fatalf("expected ErrServiceBusy, got %v", err)
	}
	if st.swaps != 3 {
		t.Fatalf("expected exactly 3 swap attempts, got %d", st.swaps)
	}
}
