package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/domain"
)

type countingRanker struct {
	reloads atomic.Int64
}

func (r *countingRanker) Top(context.Context, int, string) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

func (r *countingRanker) RankOf(context.Context, string) (int64, bool, error) {
	return 0, false, nil
}

func (r *countingRanker) Apply(domain.ScoreRecord) {}

func (r *countingRanker) Reload(context.Context) error {
	r.reloads.Add(1)
	return nil
}

type countingReaper struct {
	calls atomic.Int64
}

func (r *countingReaper) Reap(context.Context) int {
	r.calls.Add(1)
	return 0
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	ranker := &countingRanker{}
	reaper := &countingReaper{}
	w := NewReconcileWorker(ranker, reaper, &config.SyncConfig{Interval: time.Hour}, testLogger())

	w.RunOnce(context.Background())

	if got := ranker.reloads.Load(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
	if got := reaper.calls.Load(); got != 1 {
		t.Fatalf("reaper calls = %d, want 1", got)
	}
}

func TestRunOnceNilReaper(t *testing.T) {
	ranker := &countingRanker{}
	w := NewReconcileWorker(ranker, nil, &config.SyncConfig{Interval: time.Hour}, testLogger())

	// Must not panic without a reaper.
	w.RunOnce(context.Background())

	if got := ranker.reloads.Load(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	ranker := &countingRanker{}
	w := NewReconcileWorker(ranker, nil, &config.SyncConfig{Interval: 5 * time.Millisecond}, testLogger())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("IsRunning = false after Start")
	}

	// Starting twice is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("IsRunning = true after Stop")
	}

	if got := ranker.reloads.Load(); got == 0 {
		t.Fatal("ticker never fired")
	}
}
