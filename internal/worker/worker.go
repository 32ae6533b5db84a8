// Package worker runs the periodic booking sweeps: hold expiry and class
// completion.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/clock"
	"github.com/iliyamo/class-booking/internal/logger"
)

// SweepFunc processes everything due at now and reports how many rows it
// changed.
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// Config controls one periodic worker.
type Config struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single sweep. Defaults to Interval.
	Timeout time.Duration
}

// Stats is a snapshot of a worker's progress.
type Stats struct {
	IsRunning    bool
	Runs         int64
	Skipped      int64
	TotalChanged int64
	LastRunAt    time.Time
	LastChanged  int
	LastError    string
}

// Worker runs a SweepFunc on a ticker. Sweeps are idempotent, so a missed
// or doubled tick is harmless; the lease only saves duplicate work.
type Worker struct {
	cfg   Config
	sweep SweepFunc
	lease *Lease
	clock clock.Clock
	log   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stats   Stats
}

// New returns a stopped worker. lease may be nil.
func New(cfg Config, sweep SweepFunc, lease *Lease, clk clock.Clock) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Worker{
		cfg:    cfg,
		sweep:  sweep,
		lease:  lease,
		clock:  clk,
		log:    logger.Get().With(zap.String("worker", cfg.Name)),
		stopCh: make(chan struct{}),
	}
}

// Start launches the ticker loop. The first sweep runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("%s worker already running", w.cfg.Name)
	}
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	w.log.Info("starting worker", zap.Duration("interval", w.cfg.Interval))
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends the loop and waits for an in-flight sweep.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.stats.IsRunning = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep if the lease is free.
func (w *Worker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	release, ok, err := w.lease.Acquire(ctx)
	if err != nil {
		// Redis trouble must not stop sweeping; they are idempotent.
		w.log.Warn("lease unavailable, sweeping anyway", zap.Error(err))
		release, ok = func() {}, true
	}
	if !ok {
		w.mu.Lock()
		w.stats.Skipped++
		w.mu.Unlock()
		w.log.Debug("lease held elsewhere, skipping sweep")
		return
	}
	defer release()

	now := w.clock.Now()
	n, err := w.sweep(ctx, now)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRunAt = now
	w.stats.LastChanged = n
	w.stats.TotalChanged += int64(n)
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	switch {
	case err != nil:
		w.log.Error("sweep failed", zap.Int("changed", n), zap.Error(err))
	case n > 0:
		w.log.Info("sweep finished", zap.Int("changed", n))
	}
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
