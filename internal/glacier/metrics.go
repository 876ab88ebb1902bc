package glacier

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/elevation"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/terrain"
)

const m2PerKm2 = 1e6

// Input is one interval's snow state on a glacier grid. All layers must
// share one grid.
type Input struct {
	// Glacier is 1 on glacierised pixels and masked elsewhere.
	Glacier raster.Layer
	// Snow is the binary snow mask.
	Snow      raster.Layer
	Elevation raster.Layer
	Aspect    *terrain.Classification
	AOI       []bool
	// Gate is the aspect whose threshold must be defined for the
	// below-snowline fraction and area to be reported. The zero value is
	// terrain.North.
	Gate       terrain.Aspect
	Thresholds elevation.ThresholdMap
}

// Metrics summarises snow on glacierised pixels.
type Metrics struct {
	// SnowFraction is the mean of the glacier snow raster.
	SnowFraction sql.NullFloat64
	// BelowFraction is the snow fraction of glacier pixels at or below the
	// snowline of their aspect.
	BelowFraction sql.NullFloat64
	// AreaBelowKm2 is the area of glacier pixels at or below the snowline.
	AreaBelowKm2 sql.NullFloat64

	SnowAreaBelowKm2   float64
	SnowAreaAboveKm2   float64
	GlacierSnowAreaKm2 float64
	GlacierAreaKm2     float64
	// ExcludedPixels counts glacier pixels whose aspect threshold is undefined.
	ExcludedPixels int
	// TerrainGapPixels counts glacier pixels without elevation or aspect.
	// They are left out of every snow output.
	TerrainGapPixels int
}

// Calculator computes glacier Metrics.
type Calculator struct {
	compute raster.Compute
	logger  *zap.SugaredLogger
}

// NewCalculator returns a Calculator.
func NewCalculator(compute raster.Compute, logger *zap.SugaredLogger) *Calculator {
	return &Calculator{compute: compute, logger: logger}
}

// Compute derives glacier metrics. Pixels whose aspect has an undefined
// threshold are left out of the below-snowline outputs. When the gate
// aspect's threshold is undefined the below-snowline fraction and area are
// invalid.
func (c *Calculator) Compute(ctx context.Context, in Input) (Metrics, error) {
	g := in.Glacier.Grid
	if in.Aspect == nil {
		return Metrics{}, fmt.Errorf("glacier: missing aspect classification")
	}
	for name, l := range map[string]raster.Layer{"snow": in.Snow, "elevation": in.Elevation, "aspect": in.Aspect.Coded} {
		if !l.Grid.Equal(g) {
			return Metrics{}, fmt.Errorf("glacier: %s layer: %w", name, raster.ErrGridMismatch)
		}
	}

	glacierSnow, err := raster.Map2(in.Glacier, in.Snow, func(gl, s float64) float64 { return gl * s })
	if err != nil {
		return Metrics{}, err
	}
	gaps := 0
	for i, v := range glacierSnow.Data {
		if !math.IsNaN(v) && (math.IsNaN(in.Elevation.Data[i]) || math.IsNaN(in.Aspect.Coded.Data[i])) {
			glacierSnow.Data[i] = math.NaN()
			gaps++
		}
	}

	below := raster.NewLayer(g)
	above := raster.NewLayer(g)
	excluded := 0
	for _, a := range terrain.Aspects {
		th, ok := in.Thresholds.Get(a).Value()
		indicator := in.Aspect.Indicator(a)
		for i, v := range glacierSnow.Data {
			if math.IsNaN(v) || indicator.Data[i] != 1 {
				continue
			}
			switch {
			case !ok:
				excluded++
			case in.Elevation.Data[i] > th:
				above.Data[i] = v
			default:
				below.Data[i] = v
			}
		}
	}

	opts := raster.ReduceOptions{}
	snowStats, err := c.compute.ReduceRegion(ctx, glacierSnow, in.AOI, opts)
	if err != nil {
		return Metrics{}, fmt.Errorf("glacier: snow: %w", err)
	}
	belowStats, err := c.compute.ReduceRegion(ctx, below, in.AOI, opts)
	if err != nil {
		return Metrics{}, fmt.Errorf("glacier: below snowline: %w", err)
	}
	aboveStats, err := c.compute.ReduceRegion(ctx, above, in.AOI, opts)
	if err != nil {
		return Metrics{}, fmt.Errorf("glacier: above snowline: %w", err)
	}
	glacierStats, err := c.compute.ReduceRegion(ctx, in.Glacier, in.AOI, opts)
	if err != nil {
		return Metrics{}, fmt.Errorf("glacier: area: %w", err)
	}

	km2 := g.PixelArea() / m2PerKm2
	m := Metrics{
		SnowFraction:       nullMean(&snowStats),
		SnowAreaBelowKm2:   belowStats.Sum * km2,
		SnowAreaAboveKm2:   aboveStats.Sum * km2,
		GlacierSnowAreaKm2: snowStats.Sum * km2,
		GlacierAreaKm2:     float64(glacierStats.Count) * km2,
		ExcludedPixels:     excluded,
		TerrainGapPixels:   gaps,
	}
	gate := in.Gate
	if gate == 0 {
		gate = terrain.North
	}
	if in.Thresholds.Get(gate).IsDefined() {
		m.BelowFraction = nullMean(&belowStats)
		m.AreaBelowKm2 = sql.NullFloat64{Float64: float64(belowStats.Count) * km2, Valid: true}
	}
	c.logger.Debugw("glacier metrics",
		"glacier_km2", m.GlacierAreaKm2,
		"snow_fraction", m.SnowFraction.Float64,
		"excluded_pixels", excluded,
		"terrain_gap_pixels", gaps,
	)
	return m, nil
}

func nullMean(s *raster.Stats) sql.NullFloat64 {
	if s.Count == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: s.Mean(), Valid: true}
}
