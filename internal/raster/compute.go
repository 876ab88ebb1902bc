package raster

import "context"

// Compute is the raster capability set the pipeline is written against.
// Implementations may run in process or delegate to a remote engine.
type Compute interface {
	Resample(src Layer, target Grid, r Reducer) (Layer, error)
	ConnectedPixelCount(src Layer, conn Connectivity, maxSize int) Layer
	Components(src Layer, conn Connectivity) *Components
	CannyEdges(src Layer, threshold, sigma float64) Layer
	FocalMean(src Layer, radiusPx float64) Layer
	FocalMin(src Layer, radiusMeters float64) Layer
	ReduceRegion(ctx context.Context, src Layer, region []bool, opts ReduceOptions) (Stats, error)
	StratifiedSample(class Layer, values map[string]Layer, opts SampleOptions) ([]Sample, error)
}

// Local computes everything in process.
type Local struct {
	TileRows int
}

// NewLocal returns an in-process Compute with the given reduction tile height.
func NewLocal(tileRows int) *Local {
	if tileRows <= 0 {
		tileRows = DefaultTileRows
	}
	return &Local{TileRows: tileRows}
}

var _ Compute = (*Local)(nil)

func (l *Local) Resample(src Layer, target Grid, r Reducer) (Layer, error) {
	return Resample(src, target, r)
}

func (l *Local) ConnectedPixelCount(src Layer, conn Connectivity, maxSize int) Layer {
	return ConnectedPixelCount(src, conn, maxSize)
}

func (l *Local) Components(src Layer, conn Connectivity) *Components {
	return Label(src, conn)
}

func (l *Local) CannyEdges(src Layer, threshold, sigma float64) Layer {
	return CannyEdges(src, threshold, sigma)
}

func (l *Local) FocalMean(src Layer, radiusPx float64) Layer {
	return FocalMean(src, radiusPx)
}

func (l *Local) FocalMin(src Layer, radiusMeters float64) Layer {
	return FocalMin(src, radiusMeters)
}

func (l *Local) ReduceRegion(ctx context.Context, src Layer, region []bool, opts ReduceOptions) (Stats, error) {
	return ReduceRegion(ctx, src, region, l.TileRows, opts)
}

func (l *Local) StratifiedSample(class Layer, values map[string]Layer, opts SampleOptions) ([]Sample, error) {
	return StratifiedSample(class, values, opts)
}
