package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// StartHealthMonitor runs a first health check and then starts a generic
// health monitoring goroutine for any storage backend
func StartHealthMonitor(ctx context.Context, hm *HealthManager, storageType string, checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	updateHealth := func() {
		health := checker.CheckHealth(ctx)
		hm.UpdateHealth(storageType, health)
		logger.Debugf("updated %s health status: %s", storageType, health.Status)
	}

	updateHealth()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				updateHealth()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", storageType)
				return
			}
		}
	}()
}

// ProcessRecords provides a standard pattern for processing records from a
// channel. It returns when the channel is closed or ctx is cancelled.
func ProcessRecords(ctx context.Context, wg *sync.WaitGroup, recordChan <-chan Record, processor func(context.Context, Record) error, name string, logger *zap.SugaredLogger) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-recordChan:
			if !ok {
				logger.Infof("%s record channel closed", name)
				return
			}
			if err := processor(ctx, r); err != nil {
				logger.Errorw("could not store record", "engine", name, "aoi", r.AOI, "time", r.Time, "error", err)
			}
		case <-ctx.Done():
			logger.Infof("cancellation request received. Cancelling %s record processor", name)
			return
		}
	}
}

// CreateHealthData creates a basic health data structure
func CreateHealthData(status, message string, err error) Health {
	health := Health{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}
