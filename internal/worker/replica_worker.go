package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/events"
	"github.com/taller-labs/fieldservice/internal/replica"
)

// StartReplicaWorker feeds pushed ticket changes into the replica cache that
// backs the live operator view.
func StartReplicaWorker(ctx context.Context, changes events.ChangeStream, cache *replica.Cache, logger *zap.Logger) {
	if changes == nil || cache == nil {
		return
	}
	go func() {
		logger.Info("replica worker started")
		err := changes.Subscribe(ctx, cache.ApplyRemote)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("replica subscription ended", zap.Error(err))
		}
	}()
}
