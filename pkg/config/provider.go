// Package config loads snowline run configuration from YAML files or a
// SQLite configuration database.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetAOIs() ([]AOIData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Analysis AnalysisData `json:"analysis" yaml:"analysis"`
	Sources  SourcesData  `json:"sources" yaml:"sources"`
	AOIs     []AOIData    `json:"aois" yaml:"aois"`
	Glaciers *GlacierData `json:"glaciers,omitempty" yaml:"glaciers,omitempty"`
	Pipeline PipelineData `json:"pipeline" yaml:"pipeline"`
	Storage  StorageData  `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server   *ServerData  `json:"server,omitempty" yaml:"server,omitempty"`

	Management *ManagementData `json:"management,omitempty" yaml:"management,omitempty"`
}

// AnalysisData holds the algorithm parameters.
type AnalysisData struct {
	CRS       string  `json:"crs" yaml:"crs"`
	Scale     float64 `json:"scale" yaml:"scale"`
	StartYear int     `json:"start_year" yaml:"start-year"`
	EndYear   int     `json:"end_year" yaml:"end-year"`
	AggDays   int     `json:"agg_days" yaml:"agg-days"`
	// Until drops intervals starting after it, e.g. the current date.
	Until string `json:"until,omitempty" yaml:"until,omitempty"`

	QualityThreshold float64 `json:"quality_threshold" yaml:"quality-threshold"`
	SmoothRadius     float64 `json:"smooth_radius" yaml:"smooth-radius"`
	SnowThreshold    float64 `json:"snow_threshold" yaml:"snow-threshold"`
	MinPatchHa       float64 `json:"min_patch_ha" yaml:"min-patch-ha"`
	Connectivity     int     `json:"connectivity" yaml:"connectivity"`
	CannyThreshold   float64 `json:"canny_threshold" yaml:"canny-threshold"`
	CannySigma       float64 `json:"canny_sigma" yaml:"canny-sigma"`
	ErodePixels      int     `json:"erode_pixels" yaml:"erode-pixels"`

	NumPoints         int     `json:"num_points" yaml:"num-points"`
	Seed              uint64  `json:"seed" yaml:"seed"`
	MinSamples        int     `json:"min_samples" yaml:"min-samples"`
	MinSampleFraction float64 `json:"min_sample_fraction" yaml:"min-sample-fraction"`
	HighSnow          float64 `json:"high_snow" yaml:"high-snow"`
	LowSnow           float64 `json:"low_snow" yaml:"low-snow"`
}

// SourcesData locates the input rasters.
type SourcesData struct {
	Primary   SnowSourceData  `json:"primary" yaml:"primary"`
	Secondary *SnowSourceData `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	DEM       []DEMTileData   `json:"dem" yaml:"dem"`
}

// SnowSourceData describes a set of NetCDF daily snow cover files.
type SnowSourceData struct {
	Paths       []string `json:"paths" yaml:"paths"`
	SnowBand    string   `json:"snow_band" yaml:"snow-band"`
	QualityBand string   `json:"quality_band,omitempty" yaml:"quality-band,omitempty"`
	TimeVar     string   `json:"time_var" yaml:"time-var"`
	XVar        string   `json:"x_var" yaml:"x-var"`
	YVar        string   `json:"y_var" yaml:"y-var"`
	// Epoch is the RFC 3339 date time values count from.
	Epoch string `json:"epoch" yaml:"epoch"`
	// Step is the duration of one time unit, e.g. "24h".
	Step string `json:"step" yaml:"step"`
}

// DEMTileData locates one DEM tile. Georeferencing is only used for TIFF
// tiles; ASCII grids carry their own.
type DEMTileData struct {
	Path    string   `json:"path" yaml:"path"`
	OriginX float64  `json:"origin_x,omitempty" yaml:"origin-x,omitempty"`
	OriginY float64  `json:"origin_y,omitempty" yaml:"origin-y,omitempty"`
	Scale   float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Gain    float64  `json:"gain,omitempty" yaml:"gain,omitempty"`
	Offset  float64  `json:"offset,omitempty" yaml:"offset,omitempty"`
	NoData  *float64 `json:"nodata,omitempty" yaml:"nodata,omitempty"`
}

// AOIData is a named area of interest. Either BBox ([minX, minY, maxX,
// maxY]) or Rings must be set; coordinates are in the analysis CRS.
type AOIData struct {
	Name  string         `json:"name" yaml:"name"`
	BBox  []float64      `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Rings [][][2]float64 `json:"rings,omitempty" yaml:"rings,omitempty"`
}

// GlacierData locates the glacier outline shapefile.
type GlacierData struct {
	Shapefile string `json:"shapefile" yaml:"shapefile"`
	IDField   string `json:"id_field,omitempty" yaml:"id-field,omitempty"`
	NameField string `json:"name_field,omitempty" yaml:"name-field,omitempty"`
	AreaField string `json:"area_field,omitempty" yaml:"area-field,omitempty"`
	// GateAspect names the aspect whose snowline must be defined before
	// below-snowline glacier metrics are reported. Defaults to north.
	GateAspect string `json:"gate_aspect,omitempty" yaml:"gate-aspect,omitempty"`
}

// PipelineData tunes batch execution.
type PipelineData struct {
	Workers   int    `json:"workers" yaml:"workers"`
	TileRows  int    `json:"tile_rows" yaml:"tile-rows"`
	TileScale int    `json:"tile_scale" yaml:"tile-scale"`
	CacheDir  string `json:"cache_dir,omitempty" yaml:"cache-dir,omitempty"`

	Tracing *TracingData `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// TracingData selects where pipeline spans are exported.
type TracingData struct {
	// Exporter is "stdout", "otlp" or "none".
	Exporter string `json:"exporter" yaml:"exporter"`
	// Endpoint is the OTLP gRPC receiver, host:port.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRatio is the fraction of runs traced. Zero traces every run.
	SampleRatio float64 `json:"sample_ratio,omitempty" yaml:"sample-ratio,omitempty"`
}

// StorageData holds the configuration for various storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
	InfluxDB    *InfluxDBData    `json:"influxdb,omitempty" yaml:"influxdb,omitempty"`
}

// Storage backend configuration structs
type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection-string"`
}

type InfluxDBData struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token,omitempty" yaml:"token,omitempty"`
	Org    string `json:"org,omitempty" yaml:"org,omitempty"`
	Bucket string `json:"bucket" yaml:"bucket"`
}

// ServerData configures the REST server.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
}

// ManagementData configures the authenticated management API. An empty
// AuthToken makes the server generate one at startup.
type ManagementData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	AuthToken  string `json:"auth_token,omitempty" yaml:"auth-token,omitempty"`
}

// Defaults returns a configuration holding the standard algorithm
// parameters and no AOIs or sources.
func Defaults() *ConfigData {
	return &ConfigData{
		Analysis: AnalysisData{
			Scale:             500,
			AggDays:           10,
			QualityThreshold:  200,
			SmoothRadius:      2,
			SnowThreshold:     50,
			MinPatchHa:        250,
			Connectivity:      8,
			CannyThreshold:    0.7,
			CannySigma:        0.7,
			ErodePixels:       2,
			NumPoints:         1000,
			Seed:              123,
			MinSamples:        10,
			MinSampleFraction: 0.01,
			HighSnow:          0.9,
			LowSnow:           0.1,
		},
		Sources: SourcesData{
			Primary: defaultSnowSource(),
		},
		Pipeline: PipelineData{
			Workers:   4,
			TileRows:  256,
			TileScale: 1,
		},
	}
}

func defaultSnowSource() SnowSourceData {
	return SnowSourceData{
		SnowBand:    "NDSI_Snow_Cover",
		QualityBand: "NDSI_Snow_Cover_Class",
		TimeVar:     "time",
		XVar:        "x",
		YVar:        "y",
		Epoch:       "1970-01-01T00:00:00Z",
		Step:        "24h",
	}
}

// ApplyDefaults fills zero-valued settings from Defaults.
func (c *ConfigData) ApplyDefaults() {
	d := Defaults()
	a, da := &c.Analysis, d.Analysis
	setF := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setI := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setF(&a.Scale, da.Scale)
	setI(&a.AggDays, da.AggDays)
	setF(&a.QualityThreshold, da.QualityThreshold)
	setF(&a.SmoothRadius, da.SmoothRadius)
	setF(&a.SnowThreshold, da.SnowThreshold)
	setF(&a.MinPatchHa, da.MinPatchHa)
	setI(&a.Connectivity, da.Connectivity)
	setF(&a.CannyThreshold, da.CannyThreshold)
	setF(&a.CannySigma, da.CannySigma)
	setI(&a.ErodePixels, da.ErodePixels)
	setI(&a.NumPoints, da.NumPoints)
	if a.Seed == 0 {
		a.Seed = da.Seed
	}
	setI(&a.MinSamples, da.MinSamples)
	setF(&a.MinSampleFraction, da.MinSampleFraction)
	setF(&a.HighSnow, da.HighSnow)
	setF(&a.LowSnow, da.LowSnow)

	fillSnowSource(&c.Sources.Primary)
	if c.Sources.Primary.QualityBand == "" {
		c.Sources.Primary.QualityBand = d.Sources.Primary.QualityBand
	}
	if c.Sources.Secondary != nil {
		fillSnowSource(c.Sources.Secondary)
	}

	setI(&c.Pipeline.Workers, d.Pipeline.Workers)
	setI(&c.Pipeline.TileRows, d.Pipeline.TileRows)
	setI(&c.Pipeline.TileScale, d.Pipeline.TileScale)
}

func fillSnowSource(s *SnowSourceData) {
	d := defaultSnowSource()
	for _, f := range [][2]*string{
		{&s.SnowBand, &d.SnowBand},
		{&s.TimeVar, &d.TimeVar},
		{&s.XVar, &d.XVar},
		{&s.YVar, &d.YVar},
		{&s.Epoch, &d.Epoch},
		{&s.Step, &d.Step},
	} {
		if *f[0] == "" {
			*f[0] = *f[1]
		}
	}
}

// Validate checks the settings a run cannot proceed without.
func (c *ConfigData) Validate() error {
	a := c.Analysis
	switch {
	case a.StartYear == 0 || a.EndYear < a.StartYear:
		return fmt.Errorf("%w: year range %d-%d", ErrInvalidConfig, a.StartYear, a.EndYear)
	case a.Connectivity != 4 && a.Connectivity != 8:
		return fmt.Errorf("%w: connectivity must be 4 or 8, got %d", ErrInvalidConfig, a.Connectivity)
	case a.LowSnow >= a.HighSnow:
		return fmt.Errorf("%w: low-snow %g must be below high-snow %g", ErrInvalidConfig, a.LowSnow, a.HighSnow)
	case a.Until != "":
		if _, err := time.Parse(time.DateOnly, a.Until); err != nil {
			return fmt.Errorf("%w: until: %v", ErrInvalidConfig, err)
		}
	}
	if len(c.AOIs) == 0 {
		return fmt.Errorf("%w: no AOIs", ErrInvalidConfig)
	}
	seen := map[string]bool{}
	for _, aoi := range c.AOIs {
		if aoi.Name == "" || seen[aoi.Name] {
			return fmt.Errorf("%w: AOI names must be unique and non-empty (%q)", ErrInvalidConfig, aoi.Name)
		}
		seen[aoi.Name] = true
		if len(aoi.BBox) != 4 && len(aoi.Rings) == 0 {
			return fmt.Errorf("%w: AOI %s needs a bbox or rings", ErrInvalidConfig, aoi.Name)
		}
	}
	if len(c.Sources.Primary.Paths) == 0 {
		return fmt.Errorf("%w: no primary snow cover files", ErrInvalidConfig)
	}
	if len(c.Sources.DEM) == 0 {
		return fmt.Errorf("%w: no DEM tiles", ErrInvalidConfig)
	}
	for _, s := range []*SnowSourceData{&c.Sources.Primary, c.Sources.Secondary} {
		if s == nil {
			continue
		}
		if _, err := time.Parse(time.RFC3339, s.Epoch); err != nil {
			return fmt.Errorf("%w: epoch: %v", ErrInvalidConfig, err)
		}
		if _, err := time.ParseDuration(s.Step); err != nil {
			return fmt.Errorf("%w: step: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}
