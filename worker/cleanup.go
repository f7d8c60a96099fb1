package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/easylock/metrics"
)

// Pruner is implemented by stores whose expired records linger until deleted
type Pruner interface {
	PruneExpired(ctx context.Context) (int, error)
}

// StartCleanupWorker starts a background goroutine that periodically removes
// expired lock records from the store.
func StartCleanupWorker(ctx context.Context, pruner Pruner, interval time.Duration, logger *zap.Logger) {
	if pruner == nil {
		logger.Error("Cannot start cleanup worker: store does not support pruning")
		return
	}

	go func() {
		logger.Info("Starting expired lock cleanup worker",
			zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cleanupLocks(ctx, pruner, logger)
			case <-ctx.Done():
				logger.Info("Cleanup worker shutting down")
				return
			}
		}
	}()
}

// cleanupLocks removes expired lock records from the store.
func cleanupLocks(ctx context.Context, pruner Pruner, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := pruneExpired(ctx, pruner)
	if err != nil {
		logger.Error("Failed to cleanup expired locks", zap.Error(err))
	} else if count > 0 {
		logger.Info("Cleaned up expired lock records",
			zap.Int("count", count))
	}
}

func pruneExpired(ctx context.Context, pruner Pruner) (int, error) {
	count, err := pruner.PruneExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired locks: %w", err)
	}
	metrics.PrunedLocksTotal.Add(float64(count))
	return count, nil
}
