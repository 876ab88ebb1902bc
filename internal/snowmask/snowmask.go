// Package snowmask turns a fractional snow cover composite into a clean
// binary snow mask on the analysis grid.
package snowmask

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/raster"
)

// Options configures a Refiner.
type Options struct {
	// Threshold is the snow cover fraction (0-100) above which a pixel is snow.
	Threshold float64
	// MinPixels is the smallest cluster size kept. Smaller snow clusters are
	// removed and smaller enclosed holes are filled.
	MinPixels    int
	Connectivity raster.Connectivity
}

// DefaultOptions returns the standard refinement settings.
func DefaultOptions() Options {
	return Options{Threshold: 50, MinPixels: 10, Connectivity: raster.EightConnected}
}

// PixelsForArea converts a minimum patch area in hectares to a pixel count.
func PixelsForArea(areaHa, scaleMeters float64) int {
	if scaleMeters <= 0 {
		return 0
	}
	return int(math.Round(areaHa * 10000 / (scaleMeters * scaleMeters)))
}

// Refiner thresholds, cleans and resamples snow masks.
type Refiner struct {
	compute raster.Compute
	opts    Options
	logger  *zap.SugaredLogger
}

// New returns a Refiner.
func New(compute raster.Compute, opts Options, logger *zap.SugaredLogger) *Refiner {
	if opts.Connectivity == 0 {
		opts.Connectivity = raster.EightConnected
	}
	return &Refiner{compute: compute, opts: opts, logger: logger}
}

// Binarize marks pixels whose fraction exceeds the threshold as 1 and the
// rest as 0. Masked pixels stay masked.
func (r *Refiner) Binarize(fraction raster.Layer) raster.Layer {
	return raster.Map(fraction, func(v float64) float64 {
		if v > r.opts.Threshold {
			return 1
		}
		return 0
	})
}

// Clean removes snow clusters smaller than MinPixels, then fills no-snow
// clusters smaller than MinPixels that are enclosed by snow. Clean is
// idempotent.
func (r *Refiner) Clean(binary raster.Layer) raster.Layer {
	return Sieve(r.compute, binary, r.opts.Connectivity, r.opts.MinPixels)
}

// Sieve is Clean for an explicit compute backend and parameters.
func Sieve(compute raster.Compute, binary raster.Layer, conn raster.Connectivity, minPixels int) raster.Layer {
	if minPixels <= 1 {
		return binary.Clone()
	}

	counts := compute.ConnectedPixelCount(binary, conn, minPixels+1)
	out := binary.Clone()
	for i, v := range out.Data {
		if v == 1 && counts.Data[i] < float64(minPixels) {
			out.Data[i] = 0
		}
	}

	comps := compute.Components(out, conn)
	for i, id := range comps.Labels {
		if id < 0 {
			continue
		}
		c := comps.List[id]
		if c.Value == 0 && !c.Open && c.Size < minPixels {
			out.Data[i] = 1
		}
	}
	return out
}

// Refine runs threshold, cleaning and resampling onto target. Coarser
// targets take the majority class, finer ones the nearest pixel.
func (r *Refiner) Refine(fraction raster.Layer, target raster.Grid) (raster.Layer, error) {
	cleaned := r.Clean(r.Binarize(fraction))

	reducer := raster.Nearest
	if target.Scale > fraction.Grid.Scale {
		reducer = raster.Mode
	}
	out, err := r.compute.Resample(cleaned, target, reducer)
	if err != nil {
		return raster.Layer{}, fmt.Errorf("resample snow mask: %w", err)
	}
	r.logger.Debugw("refined snow mask",
		"valid", out.CountValid(),
		"reducer", reducer.String(),
	)
	return out, nil
}
