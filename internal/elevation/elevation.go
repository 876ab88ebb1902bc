// Package elevation estimates the snowline elevation of an AOI per aspect
// from the snowline edge, with a deterministic fallback when an aspect is
// poorly sampled.
package elevation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/edge"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/terrain"
)

// ErrDegenerateAOI is returned when the AOI holds no valid snow pixel.
var ErrDegenerateAOI = errors.New("elevation: AOI has no valid pixels")

const bandElevation = "elevation"

// Options configures an Estimator.
type Options struct {
	// NumPoints caps the snowline samples per aspect class.
	NumPoints int
	Seed      uint64
	// TileScale is passed to region reductions.
	TileScale int
	Policy    Policy
}

// DefaultOptions returns the standard estimator settings.
func DefaultOptions() Options {
	return Options{NumPoints: 1000, Seed: 123, TileScale: 1, Policy: DefaultPolicy()}
}

// Input is one interval's snow state together with the AOI terrain.
type Input struct {
	// Snow is the binary snow mask on the analysis grid.
	Snow    raster.Layer
	Edges   edge.Result
	Terrain *terrain.Terrain
}

// Estimate is the snowline estimate of one interval.
type Estimate struct {
	Thresholds ThresholdMap
	Stats      [terrain.NumAspects]AspectStats
	// FSC is the fractional snow cover of the AOI.
	FSC      float64
	Decision Decision
	// Snowline holds the elevation of snowline pixels, masked elsewhere.
	Snowline raster.Layer
}

// Estimator computes Estimates.
type Estimator struct {
	compute raster.Compute
	opts    Options
	logger  *zap.SugaredLogger
}

// New returns an Estimator.
func New(compute raster.Compute, opts Options, logger *zap.SugaredLogger) *Estimator {
	return &Estimator{compute: compute, opts: opts, logger: logger}
}

// Estimate samples snowline elevations per aspect and applies the fallback
// policy.
func (e *Estimator) Estimate(ctx context.Context, in Input) (*Estimate, error) {
	tr := in.Terrain
	g := tr.Elevation.Grid
	if !in.Snow.Grid.Equal(g) || !in.Edges.Edges.Grid.Equal(g) {
		return nil, fmt.Errorf("elevation: inputs not on the analysis grid %s: %w", g, raster.ErrGridMismatch)
	}
	if tr.CellCount == 0 || math.IsNaN(tr.MinElevation) || math.IsNaN(tr.MaxElevation) {
		return nil, fmt.Errorf("elevation: no valid DEM cell in AOI: %w", ErrDegenerateAOI)
	}

	cover, err := e.compute.ReduceRegion(ctx, in.Snow, tr.AOI, raster.ReduceOptions{TileScale: e.opts.TileScale})
	if err != nil {
		return nil, fmt.Errorf("elevation: snow cover: %w", err)
	}
	if cover.Count == 0 {
		return nil, ErrDegenerateAOI
	}

	stats, err := e.aspectStats(in)
	if err != nil {
		return nil, err
	}

	inputs := Inputs{
		Stats:        stats,
		FSC:          cover.Mean(),
		MinElevation: tr.MinElevation,
		MaxElevation: tr.MaxElevation,
		CellCount:    tr.CellCount,
	}
	inputs.ClassesSampled, inputs.SnowClassMin, inputs.SnowClassMax, err = e.snowClasses(in)
	if err != nil {
		return nil, err
	}

	thresholds, decision := Decide(inputs, e.opts.Policy)
	est := &Estimate{
		Thresholds: thresholds,
		Stats:      stats,
		FSC:        inputs.FSC,
		Decision:   decision,
		Snowline:   snowline(tr.Elevation, in.Edges.Edges),
	}
	e.logger.Debugw("estimated snowline",
		"fsc", est.FSC,
		"decision", decision.String(),
		"north", thresholds.Get(terrain.North).String(),
	)
	return est, nil
}

// aspectStats samples elevations on snowline pixels, stratified by aspect.
func (e *Estimator) aspectStats(in Input) ([terrain.NumAspects]AspectStats, error) {
	var out [terrain.NumAspects]AspectStats
	tr := in.Terrain

	region := make([]bool, len(tr.AOI))
	for i := range region {
		region[i] = tr.AOI[i] && in.Edges.Edges.Data[i] == 1
	}
	samples, err := e.compute.StratifiedSample(tr.Aspect.Coded,
		map[string]raster.Layer{bandElevation: tr.Elevation},
		raster.SampleOptions{NumPoints: e.opts.NumPoints, Seed: e.opts.Seed, Region: region, DropNulls: true},
	)
	if err != nil {
		return out, fmt.Errorf("elevation: sample snowline: %w", err)
	}

	var byClass [terrain.NumAspects][]float64
	for _, s := range samples {
		a := terrain.Aspect(s.Class)
		if !a.Valid() {
			continue
		}
		byClass[a.Index()] = append(byClass[a.Index()], s.Values[bandElevation])
	}
	for i, vals := range byClass {
		st := raster.StatsOf(vals)
		out[i] = AspectStats{Count: st.Count, Median: st.Median(), P10: st.Percentile(10)}
	}
	return out, nil
}

// snowClasses samples one pixel per snow class over the eroded AOI.
func (e *Estimator) snowClasses(in Input) (sampled bool, lo, hi int, err error) {
	region := make([]bool, len(in.Terrain.AOI))
	for i := range region {
		region[i] = in.Terrain.AOI[i] && in.Edges.Valid[i]
	}
	samples, err := e.compute.StratifiedSample(in.Snow, nil,
		raster.SampleOptions{NumPoints: 1, Seed: e.opts.Seed, Region: region},
	)
	if err != nil {
		return false, 0, 0, fmt.Errorf("elevation: sample snow classes: %w", err)
	}
	if len(samples) == 0 {
		return false, 0, 0, nil
	}
	lo, hi = math.MaxInt, math.MinInt
	for _, s := range samples {
		lo = min(lo, s.Class)
		hi = max(hi, s.Class)
	}
	return true, lo, hi, nil
}

func snowline(elev, edges raster.Layer) raster.Layer {
	out := raster.NewLayer(elev.Grid)
	for i, v := range edges.Data {
		if v == 1 {
			out.Data[i] = elev.Data[i]
		}
	}
	return out
}
