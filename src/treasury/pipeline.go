package treasury

import (
	"context"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"go.uber.org/zap"
)

const SyncTaskName = "treasury-sync"

func StartPipeline(ctx context.Context, interval time.Duration, locks exclusion.Registry, syncer *Synchronizer, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	DoPipelineOnce(ctx, locks, syncer, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			DoPipelineOnce(ctx, locks, syncer, logger)
		}
	}
}

// DoPipelineOnce runs one sync unless another is still in flight. It reports
// whether the sync ran.
func DoPipelineOnce(ctx context.Context, locks exclusion.Registry, syncer *Synchronizer, logger *zap.Logger) bool {
	ran, err := locks.RunExclusive(ctx, SyncTaskName, func(ctx context.Context) error {
		syncer.SyncAll(ctx)
		return nil
	})
	switch {
	case err != nil && !ran:
		logger.Error("failed acquiring treasury sync lock", zap.Error(err))
	case err != nil:
		logger.Error("treasury sync failed", zap.Error(err))
	case !ran:
		logger.Info("previous treasury sync still running, skipping")
	}
	return ran
}
