package workers

import (
	"context"
	"courier/contract"
	"log/slog"
	"time"
)

var _ contract.Worker = (*SweeperWorker)(nil)

// Sweeper deletes read notifications older than the retention window.
type Sweeper interface {
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}

// SweeperWorker runs the retention sweep on a ticker, never on a request.
type SweeperWorker struct {
	log       *slog.Logger
	sweeper   Sweeper
	interval  time.Duration
	retention time.Duration
}

func NewSweeperWorker(log *slog.Logger, sweeper Sweeper, interval, retention time.Duration) *SweeperWorker {
	return &SweeperWorker{log: log, sweeper: sweeper, interval: interval, retention: retention}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := w.sweeper.Sweep(ctx, w.retention)
			if err != nil {
				w.log.Warn("Notification sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				w.log.Info("Notifications swept", "deleted", deleted)
			}
		}
	}
}
