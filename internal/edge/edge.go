// Package edge extracts the snowline as the edge of a binary snow mask.
package edge

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/raster"
)

// Options configures the Canny detector.
type Options struct {
	Threshold float64
	Sigma     float64
	// ErodePixels is the erosion radius of the validity mask in composite
	// pixels.
	ErodePixels float64
}

// DefaultOptions returns the standard detector settings.
func DefaultOptions() Options {
	return Options{Threshold: 0.7, Sigma: 0.7, ErodePixels: 2}
}

// Result is the extracted snowline on the analysis grid.
type Result struct {
	// Edges is 1 on the snowline, 0 elsewhere and masked where invalid.
	Edges raster.Layer
	// Valid marks analysis pixels far enough from missing data and the AOI
	// boundary for edges to be trusted.
	Valid []bool
}

// Extractor finds snowline pixels.
type Extractor struct {
	compute raster.Compute
	opts    Options
	logger  *zap.SugaredLogger
}

// New returns an Extractor.
func New(compute raster.Compute, opts Options, logger *zap.SugaredLogger) *Extractor {
	return &Extractor{compute: compute, opts: opts, logger: logger}
}

// Validity returns the eroded coverage of composite inside aoi, projected
// onto target. An analysis pixel is valid only if every composite pixel in
// it is.
func (e *Extractor) Validity(composite raster.Layer, aoi []bool, target raster.Grid) ([]bool, error) {
	cover, err := raster.UpdateMask(raster.Map(composite, func(float64) float64 { return 1 }), aoi)
	if err != nil {
		return nil, fmt.Errorf("validity: %w", err)
	}
	eroded := e.compute.FocalMin(cover, e.opts.ErodePixels*composite.Grid.Scale)
	projected, err := e.compute.Resample(raster.Unmask(eroded, 0), target, raster.Min)
	if err != nil {
		return nil, fmt.Errorf("validity: %w", err)
	}
	return raster.Equals(projected, 1), nil
}

// Extract runs edge detection on binary, which must already be on the
// analysis grid, and masks the result with the validity of composite.
func (e *Extractor) Extract(binary, composite raster.Layer, aoi []bool) (Result, error) {
	valid, err := e.Validity(composite, aoi, binary.Grid)
	if err != nil {
		return Result{}, err
	}
	edges := e.compute.CannyEdges(binary, e.opts.Threshold, e.opts.Sigma)
	for i := range edges.Data {
		if !valid[i] || math.IsNaN(binary.Data[i]) {
			edges.Data[i] = math.NaN()
		}
	}
	e.logger.Debugw("extracted snowline",
		"edge_pixels", countOnes(edges),
		"valid_pixels", edges.CountValid(),
	)
	return Result{Edges: edges, Valid: valid}, nil
}

func countOnes(l raster.Layer) int {
	n := 0
	for _, v := range l.Data {
		if v == 1 {
			n++
		}
	}
	return n
}
