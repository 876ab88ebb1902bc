// Package timescaledb stores snowline results in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrissnell/snowline/internal/database"
	"github.com/chrissnell/snowline/internal/storage"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS snowlines (
	time TIMESTAMPTZ NOT NULL,
	interval_end TIMESTAMPTZ,
	aoi TEXT NOT NULL,
	run_id TEXT,
	status TEXT NOT NULL,
	error TEXT,
	decision TEXT,
	fsc DOUBLE PRECISION,
	snowline_east DOUBLE PRECISION,
	snowline_north DOUBLE PRECISION,
	snowline_south DOUBLE PRECISION,
	snowline_west DOUBLE PRECISION,
	snowline_mixed DOUBLE PRECISION,
	p10_east DOUBLE PRECISION,
	p10_north DOUBLE PRECISION,
	p10_south DOUBLE PRECISION,
	p10_west DOUBLE PRECISION,
	p10_mixed DOUBLE PRECISION,
	samples_east INTEGER,
	samples_north INTEGER,
	samples_south INTEGER,
	samples_west INTEGER,
	samples_mixed INTEGER,
	glacier_snow_fraction DOUBLE PRECISION,
	glacier_below_fraction DOUBLE PRECISION,
	glacier_area_below_km2 DOUBLE PRECISION,
	glacier_snow_area_below_km2 DOUBLE PRECISION,
	glacier_snow_area_above_km2 DOUBLE PRECISION,
	glacier_area_km2 DOUBLE PRECISION,
	PRIMARY KEY (aoi, time)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('snowlines', 'time', chunk_time_interval => INTERVAL '1 year', if_not_exists => TRUE);`

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New sets up a new TimescaleDB storage backend
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Storage, error) {
	logger.Info("connecting to TimescaleDB...")
	conn, err := database.CreateConnection(connectionString, logger.Desugar())
	if err != nil {
		return nil, err
	}
	t := &Storage{TimescaleDBConn: conn, logger: logger}

	steps := []struct {
		name string
		sql  string
	}{
		{"TimescaleDB extension", createExtensionSQL},
		{"snowlines table", createTableSQL},
		{"snowlines hypertable", createHypertableSQL},
	}
	for _, s := range steps {
		logger.Infof("creating %s...", s.name)
		if err := conn.WithContext(ctx).Exec(s.sql).Error; err != nil {
			return nil, fmt.Errorf("could not create %s: %w", s.name, err)
		}
	}
	return t, nil
}

// StartStorageEngine creates a goroutine loop to receive records and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- storage.Record {
	t.logger.Info("starting TimescaleDB storage engine...")
	recordChan := make(chan storage.Record, 10)
	wg.Add(1)
	go storage.ProcessRecords(ctx, wg, recordChan, t.StoreRecord, "timescaledb", t.logger)
	return recordChan
}

// StoreRecord upserts a record keyed on (aoi, time).
func (t *Storage) StoreRecord(ctx context.Context, r storage.Record) error {
	err := t.TimescaleDBConn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "aoi"}, {Name: "time"}},
			UpdateAll: true,
		}).
		Create(&r).Error
	if err != nil {
		return fmt.Errorf("could not store snowline: %w", err)
	}
	return nil
}

// AOIs lists the AOIs with stored results.
func (t *Storage) AOIs(ctx context.Context) ([]string, error) {
	var out []string
	err := t.TimescaleDBConn.WithContext(ctx).
		Model(&storage.Record{}).
		Distinct("aoi").
		Order("aoi").
		Pluck("aoi", &out).Error
	if err != nil {
		return nil, fmt.Errorf("error querying database for AOIs: %w", err)
	}
	return out, nil
}

// Snowlines returns the results for aoi with from <= time < to, oldest first.
func (t *Storage) Snowlines(ctx context.Context, aoi string, from, to time.Time) ([]storage.Record, error) {
	q := t.TimescaleDBConn.WithContext(ctx).Where("aoi = ?", aoi)
	if !from.IsZero() {
		q = q.Where("time >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("time < ?", to)
	}
	var out []storage.Record
	if err := q.Order("time").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("error querying database for snowlines: %w", err)
	}
	return out, nil
}

// CheckHealth pings the database and runs a trivial query.
func (t *Storage) CheckHealth(ctx context.Context) storage.Health {
	if t.TimescaleDBConn == nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "No database connection", nil)
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Failed to get underlying database connection", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database ping failed", err)
	}
	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database query test failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "TimescaleDB operational - ping: OK, query test: OK", nil)
}

// Close releases the connection pool.
func (t *Storage) Close() error {
	if t.TimescaleDBConn == nil {
		return nil
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	return sqlDB.Close()
}
