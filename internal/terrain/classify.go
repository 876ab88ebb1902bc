package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/snowline/internal/raster"
)

// Classification holds aspect classes on the analysis grid.
type Classification struct {
	Grid raster.Grid
	// Coded holds the Aspect code of every cell, NaN where the DEM is masked.
	Coded raster.Layer
}

// Indicator returns a 0/1 layer of cells coded a.
func (c *Classification) Indicator(a Aspect) raster.Layer {
	return raster.Map(c.Coded, func(v float64) float64 {
		if Aspect(v) == a {
			return 1
		}
		return 0
	})
}

// Counts returns the number of cells per class inside region.
func (c *Classification) Counts(region []bool) [NumAspects]int {
	var out [NumAspects]int
	for i, v := range c.Coded.Data {
		if math.IsNaN(v) || (region != nil && !region[i]) {
			continue
		}
		if a := Aspect(v); a.Valid() {
			out[a.Index()]++
		}
	}
	return out
}

// Classify derives aspect classes from a native-resolution DEM and assigns
// each cell of target the compass class held by strictly more than half of
// its valid native pixels, Mixed otherwise.
func Classify(compute raster.Compute, dem raster.Layer, target raster.Grid) (*Classification, error) {
	return classifyDegrees(compute, AspectDegrees(dem), dem.Mask(), target)
}

// classifyDegrees votes aspects given in degrees. Pixels marked valid but
// holding NaN degrees are flat: they count towards the cell but never
// towards a compass class.
func classifyDegrees(compute raster.Compute, deg raster.Layer, valid []bool, target raster.Grid) (*Classification, error) {
	var fractions [len(Named)]raster.Layer
	for k, a := range Named {
		indicator := raster.NewLayer(deg.Grid)
		for i, ok := range valid {
			if !ok {
				continue
			}
			indicator.Data[i] = 0
			if q, ok := Quadrant(deg.Data[i]); ok && q == a {
				indicator.Data[i] = 1
			}
		}
		f, err := compute.Resample(indicator, target, raster.Mean)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", a, err)
		}
		fractions[k] = f
	}

	coded := raster.NewLayer(target)
	for i := range coded.Data {
		if math.IsNaN(fractions[0].Data[i]) {
			continue
		}
		coded.Data[i] = float64(Mixed)
		for k, a := range Named {
			if fractions[k].Data[i] > 0.5 {
				coded.Data[i] = float64(a)
				break
			}
		}
	}
	return &Classification{Grid: target, Coded: coded}, nil
}

// Terrain is everything derived from the DEM once per AOI.
type Terrain struct {
	// Elevation is the DEM averaged onto the analysis grid.
	Elevation raster.Layer
	Aspect    *Classification
	// AOI marks analysis cells inside the area of interest.
	AOI []bool
	// MinElevation and MaxElevation bound the elevation inside the AOI.
	MinElevation float64
	MaxElevation float64
	// CellCount is the number of valid analysis cells inside the AOI.
	CellCount int
	// AspectCells counts the AOI cells of each aspect class.
	AspectCells [NumAspects]int
}

// Prepare builds the analysis elevation, aspect classes and elevation range
// of an AOI. aoi marks cells of target.
func Prepare(ctx context.Context, compute raster.Compute, dem raster.Layer, target raster.Grid, aoi []bool) (*Terrain, error) {
	if len(aoi) != target.Len() {
		return nil, fmt.Errorf("terrain: AOI mask has %d cells, grid has %d: %w", len(aoi), target.Len(), raster.ErrGridMismatch)
	}
	elev, err := compute.Resample(dem, target, raster.Mean)
	if err != nil {
		return nil, fmt.Errorf("terrain: resample DEM: %w", err)
	}
	aspect, err := Classify(compute, dem, target)
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	stats, err := compute.ReduceRegion(ctx, elev, aoi, raster.ReduceOptions{})
	if err != nil {
		return nil, fmt.Errorf("terrain: elevation range: %w", err)
	}
	return &Terrain{
		Elevation:    elev,
		Aspect:       aspect,
		AOI:          aoi,
		MinElevation: stats.Minimum(),
		MaxElevation: stats.Maximum(),
		CellCount:    stats.Count,
		AspectCells:  aspect.Counts(aoi),
	}, nil
}
