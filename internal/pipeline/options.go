package pipeline

import (
	"github.com/chrissnell/snowline/internal/composite"
	"github.com/chrissnell/snowline/internal/edge"
	"github.com/chrissnell/snowline/internal/elevation"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/snowmask"
	"github.com/chrissnell/snowline/pkg/config"
)

// Options holds the settings of every stage of a run.
type Options struct {
	CRS string
	// Scale is the analysis grid resolution in metres.
	Scale float64
	// Workers bounds the number of units processed at once.
	Workers int
	// MinPatchHa is converted to a sieve size once the composite resolution
	// is known.
	MinPatchHa float64

	Composite composite.Options
	SnowMask  snowmask.Options
	Edge      edge.Options
	Elevation elevation.Options
}

// DefaultOptions mirrors config.Defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Defaults())
}

// OptionsFromConfig maps the analysis and pipeline sections onto stage
// options. Secondary bands are renamed to the primary names on load, so
// the compositor only knows the primary ones.
func OptionsFromConfig(c *config.ConfigData) Options {
	a, p := &c.Analysis, &c.Pipeline
	return Options{
		CRS:        a.CRS,
		Scale:      a.Scale,
		Workers:    max(p.Workers, 1),
		MinPatchHa: a.MinPatchHa,
		Composite: composite.Options{
			SnowBand:         c.Sources.Primary.SnowBand,
			QualityBand:      c.Sources.Primary.QualityBand,
			QualityThreshold: a.QualityThreshold,
			SmoothRadius:     a.SmoothRadius,
		},
		SnowMask: snowmask.Options{
			Threshold:    a.SnowThreshold,
			Connectivity: raster.Connectivity(a.Connectivity),
		},
		Edge: edge.Options{
			Threshold:   a.CannyThreshold,
			Sigma:       a.CannySigma,
			ErodePixels: float64(a.ErodePixels),
		},
		Elevation: elevation.Options{
			NumPoints: a.NumPoints,
			Seed:      a.Seed,
			TileScale: p.TileScale,
			Policy: elevation.Policy{
				MinSamples:        a.MinSamples,
				MinSampleFraction: a.MinSampleFraction,
				HighSnow:          a.HighSnow,
				LowSnow:           a.LowSnow,
			},
		},
	}
}
