// Package worker runs the background reconcile loop: it periodically rebuilds
// the leaderboard ranking from storage and sweeps expired sessions. The
// rebuild is a safety net for the incrementally maintained ranking; with the
// snapshot strategy it is a no-op.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arena-leaderboard/internal/config"
	"github.com/arena-leaderboard/internal/leaderboard"
)

// Reaper sweeps expired sessions. The Redis gateway expires keys on its own
// and does not need one.
type Reaper interface {
	Reap(ctx context.Context) int
}

// ReconcileWorker handles periodic leaderboard rebuilds and session sweeps
type ReconcileWorker struct {
	ranker  leaderboard.Ranker
	reaper  Reaper
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReconcileWorker creates a new reconcile worker. reaper may be nil.
func NewReconcileWorker(
	ranker leaderboard.Ranker,
	reaper Reaper,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		ranker: ranker,
		reaper: reaper,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reconcile process
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconcile process
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

// run is the main worker loop
func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile runs one rebuild-and-sweep cycle
func (w *ReconcileWorker) reconcile(ctx context.Context) {
	w.logger.Debug("starting reconcile cycle")
	startTime := time.Now()

	if err := w.ranker.Reload(ctx); err != nil {
		w.logger.Error("failed to rebuild ranking", "error", err)
	}

	reaped := 0
	if w.reaper != nil {
		reaped = w.reaper.Reap(ctx)
	}

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"sessions_reaped", reaped,
	)
}

// IsRunning returns whether the worker is currently running
func (w *ReconcileWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single reconcile cycle (useful for manual triggers)
func (w *ReconcileWorker) RunOnce(ctx context.Context) {
	w.reconcile(ctx)
}
