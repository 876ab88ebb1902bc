// Package app wires configuration, the snowline pipeline, result storage and
// the REST server into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/cache"
	"github.com/chrissnell/snowline/internal/controllers/management"
	"github.com/chrissnell/snowline/internal/controllers/restserver"
	"github.com/chrissnell/snowline/internal/interval"
	"github.com/chrissnell/snowline/internal/managers"
	"github.com/chrissnell/snowline/internal/metrics"
	"github.com/chrissnell/snowline/internal/pipeline"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/internal/telemetry"
	"github.com/chrissnell/snowline/pkg/config"
)

// Version is the application version reported by the CLI and in traces.
const Version = "1.0"

// ErrUnitsFailed is returned by Run when the batch finished but at least one
// unit failed.
var ErrUnitsFailed = errors.New("one or more units failed")

// Options selects what Run does.
type Options struct {
	// Batch processes every configured AOI and interval.
	Batch bool
	// Serve starts the REST server and keeps it running until shutdown.
	Serve bool
}

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run loads the configuration and runs the batch and/or the REST server.
// It returns after the batch when not serving, or on SIGINT/SIGTERM or
// cancellation of ctx.
func (a *App) Run(ctx context.Context, opts Options) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if opts.Batch {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			a.logger.Info("shutdown signal received, initiating graceful shutdown...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, &cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		cancel()
		wg.Wait()
		storageManager.Release()
		return err
	}
	defer storageManager.Release()

	mc := metrics.NewCollector("snowline")

	var store *cache.Store
	if dir := cfg.Pipeline.CacheDir; dir != "" {
		if store, err = cache.Open(dir); err != nil {
			cancel()
			storageManager.Close()
			wg.Wait()
			return fmt.Errorf("error opening composite cache: %w", err)
		}
	}

	if opts.Serve {
		sc := config.ServerData{}
		if cfg.Server != nil {
			sc = *cfg.Server
		}
		rs, err := restserver.NewController(ctx, &wg, sc, storageManager.Reader(), storageManager.Health, mc, a.logger.Named("restserver"))
		if err != nil {
			cancel()
			storageManager.Close()
			wg.Wait()
			return fmt.Errorf("error creating REST server: %w", err)
		}
		if err := rs.StartController(); err != nil {
			cancel()
			storageManager.Close()
			wg.Wait()
			return fmt.Errorf("error starting REST server: %w", err)
		}

		if cfg.Management != nil {
			mgmt, err := management.NewController(ctx, &wg, a.configProvider, *cfg.Management, store, a.logger.Named("management"))
			if err != nil {
				cancel()
				storageManager.Close()
				wg.Wait()
				return fmt.Errorf("error creating management API: %w", err)
			}
			mgmt.StartController()
		}
	}

	var batchErr error
	if opts.Batch {
		batchErr = a.batch(ctx, cfg, store, storageManager.RecordDistributor, mc)
	}

	// No more records after the batch; let the engines drain.
	storageManager.Close()

	if opts.Serve && ctx.Err() == nil {
		a.logger.Info("application started successfully")
		<-ctx.Done()
	}
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return batchErr
}

// batch runs the pipeline over every configured AOI and interval, sending
// one record per unit to sink.
func (a *App) batch(ctx context.Context, cfg *config.ConfigData, store *cache.Store, sink chan<- storage.Record, mc *metrics.Collector) error {
	intervals, err := Intervals(cfg.Analysis)
	if err != nil {
		return err
	}
	aois, err := pipeline.AOIsFromConfig(cfg.AOIs)
	if err != nil {
		return err
	}
	inputs, err := pipeline.LoadInputs(cfg, a.logger.Named("inputs"))
	if err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(ctx, cfg.Pipeline.Tracing, Version, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			a.logger.Warnw("error flushing traces", "error", err)
		}
	}()

	runner := pipeline.NewRunner(pipeline.Config{
		Compute: raster.NewLocal(cfg.Pipeline.TileRows),
		Options: pipeline.OptionsFromConfig(cfg),
		Inputs:  inputs,
		Cache:   store,
		Metrics: mc,
		Sink:    sink,

		TracerProvider: tp,
	}, a.logger.Named("pipeline"))

	results, err := runner.Run(ctx, aois, intervals)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == pipeline.StatusFailed {
			return ErrUnitsFailed
		}
	}
	return nil
}

// Intervals returns the aggregation intervals configured by a.
func Intervals(a config.AnalysisData) ([]interval.TimeInterval, error) {
	opts := interval.Options{
		StartYear: a.StartYear,
		EndYear:   a.EndYear,
		AggDays:   a.AggDays,
	}
	if a.Until != "" {
		until, err := time.Parse(time.DateOnly, a.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid until date: %w", err)
		}
		opts.Until = until
	}
	return interval.Generate(opts)
}
