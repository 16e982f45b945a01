package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/tartampluch/go-lifegrid/internal/config"
)

// Run pushes locally changed records every interval until ctx is done.
// A non-positive interval uses config.DefaultFlushEvery.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	if interval <= 0 {
		interval = config.DefaultFlushEvery
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info(config.MsgWorkerStart, config.LogKeyInterval, interval)

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return

		case <-ticker.C:
			// Failures are already reported; the records stay dirty for the next tick.
			_ = c.Flush(ctx)
		}
	}
}
