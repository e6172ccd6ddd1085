package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartRetentionWorker starts a background goroutine that periodically
// removes audit events older than the retention period.
func StartRetentionWorker(ctx context.Context, store Store, interval, retention time.Duration, logger *zap.Logger) {
	if store == nil {
		logger.Error("Cannot start audit retention worker: store is nil")
		return
	}

	go func() {
		logger.Info("Starting audit retention worker",
			zap.Duration("interval", interval),
			zap.Duration("retention", retention))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cleanup(store, retention, logger)
			case <-ctx.Done():
				logger.Info("Audit retention worker shutting down")
				return
			}
		}
	}()
}

// cleanup removes events past the retention period.
func cleanup(store Store, retention time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	olderThan := time.Now().Add(-retention)
	count, err := store.Cleanup(ctx, olderThan)
	if err != nil {
		logger.Error("Failed to cleanup audit events", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Info("Cleaned up audit events",
			zap.Int("count", count),
			zap.Time("older_than", olderThan))
	}
}
