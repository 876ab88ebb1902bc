// Package managers starts and fans records out to the configured storage
// engines.
package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/internal/storage/influxdb"
	"github.com/chrissnell/snowline/internal/storage/sqlite"
	"github.com/chrissnell/snowline/internal/storage/timescaledb"
	"github.com/chrissnell/snowline/pkg/config"
)

const healthInterval = time.Minute

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines            []StorageEngine
	RecordDistributor  chan storage.Record
	Health             *storage.HealthManager
	reader             storage.Reader
	closers            []func()
	logger             *zap.SugaredLogger
	distributorStopped chan struct{}
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing records to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- storage.Record
}

// NewStorageManager creates a StorageManager object, populated with all
// configured StorageEngines. Records sent on RecordDistributor are copied to
// every engine until Close is called.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		RecordDistributor:  make(chan storage.Record, 20),
		Health:             storage.NewHealthManager(),
		logger:             logger,
		distributorStopped: make(chan struct{}),
	}

	if c.SQLite != nil && c.SQLite.Path != "" {
		if err := s.AddEngine(ctx, wg, "sqlite", c); err != nil {
			return s, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
	}
	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		if err := s.AddEngine(ctx, wg, "timescaledb", c); err != nil {
			return s, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}
	if c.InfluxDB != nil && c.InfluxDB.URL != "" {
		if err := s.AddEngine(ctx, wg, "influxdb", c); err != nil {
			return s, fmt.Errorf("could not add InfluxDB storage backend: %w", err)
		}
	}

	// Start our record distributor to distribute results to storage backends
	wg.Add(1)
	go s.startRecordDistributor(ctx, wg)

	return s, nil
}

// AddEngine adds a new StorageEngine of name engineName to our Storage object
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c *config.StorageData) error {
	var engine storage.StorageEngineInterface
	var checker storage.HealthChecker
	log := s.logger.Named(engineName)

	switch engineName {
	case "sqlite":
		e, err := sqlite.New(ctx, c.SQLite.Path, log)
		if err != nil {
			return err
		}
		engine, checker = e, e
		s.reader = e
		s.closers = append(s.closers, func() { e.Close() })
	case "timescaledb":
		e, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, log)
		if err != nil {
			return err
		}
		engine, checker = e, e
		if s.reader == nil {
			s.reader = e
		}
		s.closers = append(s.closers, func() {
			if err := e.Close(); err != nil {
				log.Warnw("closing TimescaleDB", "error", err)
			}
		})
	case "influxdb":
		e, err := influxdb.New(influxdb.Config{
			URL:    c.InfluxDB.URL,
			Token:  c.InfluxDB.Token,
			Org:    c.InfluxDB.Org,
			Bucket: c.InfluxDB.Bucket,
		}, log)
		if err != nil {
			return err
		}
		engine, checker = e, e
		s.closers = append(s.closers, e.Close)
	default:
		return fmt.Errorf("unknown storage engine %q", engineName)
	}

	s.Engines = append(s.Engines, StorageEngine{
		Name:   engineName,
		Engine: engine,
		C:      engine.StartStorageEngine(ctx, wg),
	})
	storage.StartHealthMonitor(ctx, s.Health, engineName, checker, healthInterval, log)
	return nil
}

// Reader returns the engine used to serve stored results, or nil when no
// queryable engine is configured.
func (s *StorageManager) Reader() storage.Reader {
	return s.reader
}

// Close stops accepting records, waits for the distributor to hand off what
// it holds and closes every engine's channel. Callers wait on the shared
// WaitGroup for the engines to drain.
func (s *StorageManager) Close() {
	close(s.RecordDistributor)
	<-s.distributorStopped
}

// Release closes engine connections. Call it after the WaitGroup is done.
func (s *StorageManager) Release() {
	for _, c := range s.closers {
		c()
	}
}

// startRecordDistributor receives records from the pipeline and fans them
// out to the various storage backends
func (s *StorageManager) startRecordDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(s.distributorStopped)
	defer func() {
		for _, e := range s.Engines {
			close(e.C)
		}
	}()

	recordCount := 0
	for {
		select {
		case r, ok := <-s.RecordDistributor:
			if !ok {
				s.logger.Debugw("record distributor stopped", "records", recordCount)
				return
			}
			recordCount++
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
