// Package pipeline drives snowline estimation over every (AOI, interval)
// unit of a run on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/snowline/internal/cache"
	"github.com/chrissnell/snowline/internal/composite"
	"github.com/chrissnell/snowline/internal/edge"
	"github.com/chrissnell/snowline/internal/elevation"
	"github.com/chrissnell/snowline/internal/geo"
	"github.com/chrissnell/snowline/internal/glacier"
	"github.com/chrissnell/snowline/internal/interval"
	"github.com/chrissnell/snowline/internal/metrics"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/snowmask"
	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/internal/terrain"
)

// Status is the outcome of one unit.
type Status string

const (
	StatusOK Status = "ok"
	// StatusEmpty marks an interval without usable observations.
	StatusEmpty Status = "empty"
	// StatusDegenerate marks an AOI without valid snow pixels.
	StatusDegenerate Status = "degenerate"
	StatusFailed     Status = "failed"
)

// UnitResult is the outcome of one (AOI, interval) unit.
type UnitResult struct {
	RunID    string
	AOI      string
	Interval interval.TimeInterval
	Status   Status
	Err      error
	Estimate *elevation.Estimate
	// Glacier is nil when no glacier overlaps the AOI.
	Glacier *glacier.Metrics
}

// Prepared holds the per-AOI inputs shared read-only by its units.
type Prepared struct {
	AOI     *geo.AOI
	Terrain *terrain.Terrain
	// Glacier is 1 on glacierised analysis cells and masked elsewhere. It is
	// nil when no outline overlaps the AOI.
	Glacier   *raster.Layer
	Primary   raster.Series
	Secondary raster.Series
}

// Config wires a Runner. Cache, Metrics, Sink and TracerProvider are
// optional; spans go to the global provider when TracerProvider is nil.
type Config struct {
	Compute raster.Compute
	Options Options
	Inputs  *Inputs
	Cache   *cache.Store
	Metrics *metrics.Collector
	// Sink receives one record per unit.
	Sink           chan<- storage.Record
	TracerProvider trace.TracerProvider
}

// Runner processes units.
type Runner struct {
	compute raster.Compute
	opts    Options
	inputs  *Inputs
	cache   *cache.Store
	metrics *metrics.Collector
	sink    chan<- storage.Record
	tracer  trace.Tracer
	logger  *zap.SugaredLogger

	compositor *composite.Compositor
	extractor  *edge.Extractor
	estimator  *elevation.Estimator
	calculator *glacier.Calculator
}

// NewRunner returns a Runner.
func NewRunner(c Config, logger *zap.SugaredLogger) *Runner {
	if c.Inputs == nil {
		c.Inputs = &Inputs{}
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	return &Runner{
		compute:    c.Compute,
		opts:       c.Options,
		inputs:     c.Inputs,
		cache:      c.Cache,
		metrics:    c.Metrics,
		sink:       c.Sink,
		tracer:     c.TracerProvider.Tracer("github.com/chrissnell/snowline/internal/pipeline"),
		logger:     logger,
		compositor: composite.New(c.Compute, c.Options.Composite, logger),
		extractor:  edge.New(c.Compute, c.Options.Edge, logger),
		estimator:  elevation.New(c.Compute, c.Options.Elevation, logger),
		calculator: glacier.NewCalculator(c.Compute, logger),
	}
}

// Run processes every interval of every AOI and returns one result per
// unit, ordered by AOI and then by interval. A failing unit never stops
// its siblings; only cancellation of ctx aborts the run.
func (r *Runner) Run(ctx context.Context, aois []*geo.AOI, intervals []interval.TimeInterval) ([]UnitResult, error) {
	runID := uuid.NewString()
	r.logger.Infow("starting run", "run_id", runID, "aois", len(aois), "intervals", len(intervals))

	prepared := make([]*Prepared, len(aois))
	prepErrs := make([]error, len(aois))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, aoi := range aois {
		g.Go(func() error {
			prepared[i], prepErrs[i] = r.Prepare(gctx, aoi)
			return nil
		})
	}
	g.Wait()

	results := make([]UnitResult, len(aois)*len(intervals))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, aoi := range aois {
		for k, iv := range intervals {
			idx := i*len(intervals) + k
			if prepErrs[i] != nil {
				results[idx] = r.finish(gctx, UnitResult{
					RunID:    runID,
					AOI:      aoi.Name,
					Interval: iv,
					Status:   StatusFailed,
					Err:      prepErrs[i],
				})
				continue
			}
			g.Go(func() error {
				res := r.Unit(gctx, prepared[i], iv)
				res.RunID = runID
				results[idx] = r.finish(gctx, res)
				return nil
			})
		}
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	counts := map[Status]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	r.logger.Infow("run complete",
		"run_id", runID,
		"ok", counts[StatusOK],
		"empty", counts[StatusEmpty],
		"degenerate", counts[StatusDegenerate],
		"failed", counts[StatusFailed],
	)
	return results, nil
}

// Prepare builds the analysis grid, terrain and glacier raster of an AOI.
func (r *Runner) Prepare(ctx context.Context, aoi *geo.AOI) (*Prepared, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.Prepare", trace.WithAttributes(attribute.String("aoi", aoi.Name)))
	defer span.End()

	grid := aoi.Grid(r.opts.CRS, r.opts.Scale)
	mask := aoi.Mask(grid)
	tr, err := terrain.Prepare(ctx, r.compute, r.inputs.DEM, grid, mask)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("prepare %s: %w", aoi.Name, err)
	}

	p := &Prepared{
		AOI:       aoi,
		Terrain:   tr,
		Primary:   r.inputs.Primary.FilterBounds(aoi.Bounds()),
		Secondary: r.inputs.Secondary.FilterBounds(aoi.Bounds()),
	}
	if r.inputs.Glaciers != nil {
		if gl := r.inputs.Glaciers.Rasterize(grid); gl.CountValid() > 0 {
			p.Glacier = &gl
		}
	}
	r.logger.Infow("prepared AOI",
		"aoi", aoi.Name,
		"grid", grid.String(),
		"cells", tr.CellCount,
		"min_elevation", tr.MinElevation,
		"max_elevation", tr.MaxElevation,
		"aspect_cells", tr.AspectCells,
		"glacier", p.Glacier != nil,
	)
	return p, nil
}

// Unit processes one interval of a prepared AOI.
func (r *Runner) Unit(ctx context.Context, p *Prepared, iv interval.TimeInterval) UnitResult {
	ctx, span := r.tracer.Start(ctx, "pipeline.Unit", trace.WithAttributes(
		attribute.String("aoi", p.AOI.Name),
		attribute.String("interval", iv.Label()),
	))
	defer span.End()

	start := time.Now()
	res := UnitResult{AOI: p.AOI.Name, Interval: iv}
	res.Estimate, res.Glacier, res.Err = r.process(ctx, p, iv)

	switch {
	case res.Err == nil:
		res.Status = StatusOK
	case errors.Is(res.Err, composite.ErrEmptyInterval):
		res.Status = StatusEmpty
	case errors.Is(res.Err, elevation.ErrDegenerateAOI):
		res.Status = StatusDegenerate
	default:
		res.Status = StatusFailed
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(attribute.String("status", string(res.Status)))
	if r.metrics != nil {
		r.metrics.UnitDuration.Observe(time.Since(start).Seconds())
	}
	return res
}

func (r *Runner) process(ctx context.Context, p *Prepared, iv interval.TimeInterval) (*elevation.Estimate, *glacier.Metrics, error) {
	img, err := r.composite(ctx, p, iv)
	if err != nil {
		return nil, nil, err
	}
	fraction, err := img.Layer(composite.BandValue)
	if err != nil {
		return nil, nil, err
	}

	grid := p.Terrain.Elevation.Grid
	smOpts := r.opts.SnowMask
	smOpts.MinPixels = snowmask.PixelsForArea(r.opts.MinPatchHa, fraction.Grid.Scale)
	snow, err := snowmask.New(r.compute, smOpts, r.logger).Refine(fraction, grid)
	if err != nil {
		return nil, nil, err
	}

	edges, err := r.extractor.Extract(snow, fraction, p.AOI.Mask(fraction.Grid))
	if err != nil {
		return nil, nil, err
	}

	est, err := r.estimator.Estimate(ctx, elevation.Input{Snow: snow, Edges: edges, Terrain: p.Terrain})
	if err != nil {
		return nil, nil, err
	}

	if p.Glacier == nil {
		return est, nil, nil
	}
	m, err := r.calculator.Compute(ctx, glacier.Input{
		Glacier:    *p.Glacier,
		Snow:       snow,
		Elevation:  p.Terrain.Elevation,
		Aspect:     p.Terrain.Aspect,
		AOI:        p.Terrain.AOI,
		Gate:       r.inputs.GlacierGate,
		Thresholds: est.Thresholds,
	})
	if err != nil {
		return est, nil, err
	}
	return est, &m, nil
}

// composite returns the interval composite, from the cache when possible.
// Empty intervals are cached too.
func (r *Runner) composite(ctx context.Context, p *Prepared, iv interval.TimeInterval) (*raster.Image, error) {
	var key string
	if r.cache != nil {
		key = cache.Key(p.AOI.Name, iv.String(), fmt.Sprintf("%+v", r.opts.Composite), r.inputs.Fingerprint)
		img, err := r.cache.Get(key)
		switch {
		case err == nil:
			r.countCache("hit")
			return img, nil
		case errors.Is(err, cache.ErrEmpty):
			r.countCache("empty")
			return nil, fmt.Errorf("%s: cached: %w", iv.Label(), composite.ErrEmptyInterval)
		case errors.Is(err, cache.ErrMiss):
			r.countCache("miss")
		default:
			r.countCache("error")
			r.logger.Warnw("composite cache read failed", "aoi", p.AOI.Name, "interval", iv.Label(), "error", err)
		}
	}

	img, err := r.compositor.Composite(ctx, iv, p.Primary, p.Secondary)
	empty := errors.Is(err, composite.ErrEmptyInterval)
	if err != nil && !empty {
		return nil, err
	}
	if r.metrics != nil {
		if empty {
			r.metrics.CompositesDropped.Inc()
		} else {
			r.metrics.CompositesBuilt.Inc()
		}
	}
	if r.cache != nil {
		if perr := r.cache.Put(key, img); perr != nil {
			r.logger.Warnw("composite cache write failed", "aoi", p.AOI.Name, "interval", iv.Label(), "error", perr)
		}
	}
	return img, err
}

func (r *Runner) countCache(result string) {
	if r.metrics != nil {
		r.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// finish logs and counts a unit and hands its record to the sink.
func (r *Runner) finish(ctx context.Context, res UnitResult) UnitResult {
	switch res.Status {
	case StatusFailed:
		r.logger.Errorw("unit failed", "aoi", res.AOI, "interval", res.Interval.Label(), "error", res.Err)
	case StatusOK:
		r.logger.Debugw("unit done", "aoi", res.AOI, "interval", res.Interval.Label(), "decision", res.Estimate.Decision.String())
	default:
		r.logger.Infow("unit skipped", "aoi", res.AOI, "interval", res.Interval.Label(), "status", string(res.Status), "reason", res.Err)
	}

	if r.metrics != nil {
		r.metrics.UnitsTotal.WithLabelValues(string(res.Status)).Inc()
		if res.Estimate != nil {
			for _, a := range terrain.Aspects {
				th := res.Estimate.Thresholds.Get(a)
				src := "undefined"
				if th.IsDefined() {
					src = th.Source().String()
				}
				r.metrics.ThresholdSources.WithLabelValues(a.String(), src).Inc()
			}
		}
	}

	if r.sink != nil {
		select {
		case r.sink <- res.Record():
		case <-ctx.Done():
		}
	}
	return res
}
