package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Reapable is the slice of the lease manager the background worker drives.
type Reapable interface {
	Reap(ctx context.Context) (int, error)
}

// Worker runs periodic reap passes so abandoned checkouts free their
// territories without waiting for a reader to stumble over them. Reap is
// idempotent, so overlapping with request-path reaping is harmless.
type Worker struct {
	leases   Reapable
	interval time.Duration
	logger   *slog.Logger
}

// New constructs a reaper worker.
func New(leases Reapable, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{leases: leases, interval: interval, logger: logger}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.leases.Reap(ctx)
			if err != nil {
				w.logger.Error("lease reap pass failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Info("reaped expired leases", "count", n)
			}
		}
	}
}
