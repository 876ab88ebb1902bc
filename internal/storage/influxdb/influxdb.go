// Package influxdb writes snowline results to InfluxDB 2.x as points.
package influxdb

import (
	"context"
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/storage"
)

const measurement = "snowline"

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Storage holds an InfluxDB client and its blocking write API.
type Storage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *zap.SugaredLogger
}

// New creates an InfluxDB storage backend.
func New(c Config, logger *zap.SugaredLogger) (*Storage, error) {
	if c.URL == "" || c.Bucket == "" {
		return nil, fmt.Errorf("influxdb: url and bucket are required")
	}
	client := influxdb2.NewClient(c.URL, c.Token)
	return &Storage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(c.Org, c.Bucket),
		logger:   logger,
	}, nil
}

// StartStorageEngine starts the goroutine that writes records sent on the
// returned channel.
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- storage.Record {
	s.logger.Info("starting InfluxDB storage engine...")
	recordChan := make(chan storage.Record, 10)
	wg.Add(1)
	go storage.ProcessRecords(ctx, wg, recordChan, s.StoreRecord, "influxdb", s.logger)
	return recordChan
}

// StoreRecord writes one point. Failed units are written with only their
// status so gaps stay visible.
func (s *Storage) StoreRecord(ctx context.Context, r storage.Record) error {
	if err := s.writeAPI.WritePoint(ctx, Point(r)); err != nil {
		return fmt.Errorf("influxdb: write %s: %w", r.AOI, err)
	}
	return nil
}

// Point converts a record to a line protocol point. NULL values are
// omitted.
func Point(r storage.Record) *write.Point {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("aoi", r.AOI).
		AddTag("status", r.Status).
		AddField("run_id", r.RunID).
		SetTime(r.Time)
	if r.Decision != "" {
		p.AddTag("decision", r.Decision)
	}
	if r.Error != "" {
		p.AddField("error", r.Error)
	}
	opt := map[string]*float64{
		"fsc":                         r.FSC,
		"snowline_east":               r.SnowlineEast,
		"snowline_north":              r.SnowlineNorth,
		"snowline_south":              r.SnowlineSouth,
		"snowline_west":               r.SnowlineWest,
		"snowline_mixed":              r.SnowlineMixed,
		"p10_east":                    r.P10East,
		"p10_north":                   r.P10North,
		"p10_south":                   r.P10South,
		"p10_west":                    r.P10West,
		"p10_mixed":                   r.P10Mixed,
		"glacier_snow_fraction":       r.GlacierSnowFraction,
		"glacier_below_fraction":      r.GlacierBelowFraction,
		"glacier_area_below_km2":      r.GlacierAreaBelowKm2,
		"glacier_snow_area_below_km2": r.GlacierSnowAreaBelowKm2,
		"glacier_snow_area_above_km2": r.GlacierSnowAreaAboveKm2,
		"glacier_area_km2":            r.GlacierAreaKm2,
	}
	for k, v := range opt {
		if v != nil {
			p.AddField(k, *v)
		}
	}
	if r.Status == "ok" {
		p.AddField("samples_east", r.SamplesEast).
			AddField("samples_north", r.SamplesNorth).
			AddField("samples_south", r.SamplesSouth).
			AddField("samples_west", r.SamplesWest).
			AddField("samples_mixed", r.SamplesMixed)
	}
	return p
}

// CheckHealth asks the server for its health.
func (s *Storage) CheckHealth(ctx context.Context) storage.Health {
	ok, err := s.client.Ping(ctx)
	if err != nil || !ok {
		return storage.CreateHealthData(storage.StatusUnhealthy, "InfluxDB ping failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "InfluxDB operational", nil)
}

// Close closes the client.
func (s *Storage) Close() {
	s.client.Close()
}
