// internal/app/system/workers/cleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Cleaner deletes expired rows from one collection.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Target names a Cleaner for logs and metrics.
type Target struct {
	Name    string
	Cleaner Cleaner
}

// Cleanup is a background worker that removes expired registration tokens
// and impersonation grants. MongoDB TTL indexes do the same eventually; the
// worker keeps the lag bounded by its interval.
type Cleanup struct {
	targets  []Target
	metrics  *metrics.Metrics
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCleanup creates a cleanup worker that runs every interval.
func NewCleanup(logger *zap.Logger, m *metrics.Metrics, interval time.Duration, targets ...Target) *Cleanup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleanup{
		targets:  targets,
		metrics:  m,
		log:      logger,
		interval: interval,
		timeout:  30 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Cleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Int("targets", len(w.targets)))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Cleanup) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("cleanup worker stopped")
}

func (w *Cleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce sweeps every target. A failing target does not stop the others.
func (w *Cleanup) RunOnce() {
	for _, t := range w.targets {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		count, err := t.Cleaner.CleanupExpired(ctx)
		cancel()
		if err != nil {
			w.log.Error("cleanup failed", zap.String("target", t.Name), zap.Error(err))
			continue
		}
		w.metrics.AddCleanupDeleted(t.Name, count)
		if count > 0 {
			w.log.Info("removed expired rows", zap.String("target", t.Name), zap.Int64("count", count))
		}
	}
}
