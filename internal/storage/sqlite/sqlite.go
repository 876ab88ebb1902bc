// Package sqlite stores snowline results in a local SQLite database and
// serves them back to the REST API.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/snowline/internal/storage"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS snowlines (
	time DATETIME NOT NULL,
	interval_end DATETIME,
	aoi TEXT NOT NULL,
	run_id TEXT,
	status TEXT NOT NULL,
	error TEXT,
	decision TEXT,
	fsc REAL,
	snowline_east REAL, snowline_north REAL, snowline_south REAL, snowline_west REAL, snowline_mixed REAL,
	p10_east REAL, p10_north REAL, p10_south REAL, p10_west REAL, p10_mixed REAL,
	samples_east INTEGER, samples_north INTEGER, samples_south INTEGER, samples_west INTEGER, samples_mixed INTEGER,
	glacier_snow_fraction REAL,
	glacier_below_fraction REAL,
	glacier_area_below_km2 REAL,
	glacier_snow_area_below_km2 REAL,
	glacier_snow_area_above_km2 REAL,
	glacier_area_km2 REAL,
	PRIMARY KEY (aoi, time)
)`

// Storage holds the SQLite results database.
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens (and if needed creates) the results database at path.
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Storage, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snowlines table: %w", err)
	}
	return &Storage{db: db, logger: logger}, nil
}

// StartStorageEngine starts the goroutine that stores records sent on the
// returned channel.
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- storage.Record {
	s.logger.Info("starting SQLite storage engine...")
	recordChan := make(chan storage.Record, 10)
	wg.Add(1)
	go storage.ProcessRecords(ctx, wg, recordChan, s.StoreRecord, "sqlite", s.logger)
	return recordChan
}

// StoreRecord inserts a record, replacing an earlier result for the same
// AOI and interval.
func (s *Storage) StoreRecord(ctx context.Context, r storage.Record) error {
	r.Time, r.IntervalEnd = r.Time.UTC(), r.IntervalEnd.UTC()
	q := fmt.Sprintf("INSERT OR REPLACE INTO snowlines (%s) VALUES (%s)",
		strings.Join(storage.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(storage.Columns)), ", "),
	)
	if _, err := s.db.ExecContext(ctx, q, r.Fields()...); err != nil {
		return fmt.Errorf("failed to insert snowline for %s at %s: %w", r.AOI, r.Time.Format(time.DateOnly), err)
	}
	return nil
}

// AOIs lists the AOIs with stored results.
func (s *Storage) AOIs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT aoi FROM snowlines ORDER BY aoi")
	if err != nil {
		return nil, fmt.Errorf("failed to query AOIs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var aoi string
		if err := rows.Scan(&aoi); err != nil {
			return nil, fmt.Errorf("failed to scan AOI row: %w", err)
		}
		out = append(out, aoi)
	}
	return out, rows.Err()
}

// Snowlines returns the results for aoi with from <= time < to, oldest
// first. A zero from or to leaves that end open.
func (s *Storage) Snowlines(ctx context.Context, aoi string, from, to time.Time) ([]storage.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM snowlines WHERE aoi = ?", strings.Join(storage.Columns, ", "))
	args := []any{aoi}
	if !from.IsZero() {
		q += " AND time >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		q += " AND time < ?"
		args = append(args, to.UTC())
	}
	q += " ORDER BY time"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snowlines: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var r storage.Record
		var errText sql.NullString
		dest := r.Fields()
		dest[5] = &errText
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan snowline row: %w", err)
		}
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckHealth pings the database.
func (s *Storage) CheckHealth(ctx context.Context) storage.Health {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "SQLite ping failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "SQLite operational", nil)
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}
