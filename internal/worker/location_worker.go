package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taller-labs/fieldservice/internal/service"
)

// StartLocationWorker runs the periodic operating-window re-evaluation for
// active position broadcasters. Broadcasters that fail a check are stopped
// and must restart through a fresh policy pass.
func StartLocationWorker(ctx context.Context, locations *service.LocationService, interval time.Duration, logger *zap.Logger) {
	if locations == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("location policy worker started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				logger.Info("location policy worker stopped")
				return
			case <-ticker.C:
				locations.Recheck(ctx)
			}
		}
	}()
}
