package sessions

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartExpiryWorker starts a background goroutine that periodically closes
// sessions that have been idle longer than ttl, force-releasing any datastore
// locks they still hold.
func StartExpiryWorker(ctx context.Context, registry *Registry, interval, ttl time.Duration, logger *zap.Logger) {
	if registry == nil {
		logger.Error("Cannot start session expiry worker: registry is nil")
		return
	}

	go func() {
		logger.Info("Starting session expiry worker",
			zap.Duration("interval", interval),
			zap.Duration("ttl", ttl))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				closed := registry.CloseIdle(sweepCtx, ttl)
				cancel()
				if closed > 0 {
					logger.Info("Closed idle sessions", zap.Int("count", closed))
				}
			case <-ctx.Done():
				logger.Info("Session expiry worker shutting down")
				return
			}
		}
	}()
}
