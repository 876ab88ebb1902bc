// Package geo holds areas of interest and their rasterisation onto grids.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"

	"github.com/chrissnell/snowline/internal/raster"
)

// ErrEmptyAOI is returned for an AOI without a usable outline.
var ErrEmptyAOI = errors.New("geo: empty AOI")

// AOI is a named polygonal area of interest in map coordinates.
type AOI struct {
	Name    string
	Outline geom.Polygonal
}

// NewAOI builds an AOI from polygon rings given as [x, y] pairs. The first
// ring is the shell and the rest are holes.
func NewAOI(name string, rings [][][2]float64) (*AOI, error) {
	if len(rings) == 0 || len(rings[0]) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyAOI, name)
	}
	poly := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		path := make(geom.Path, len(ring))
		for j, p := range ring {
			path[j] = geom.Point{X: p[0], Y: p[1]}
		}
		poly[i] = path
	}
	return &AOI{Name: name, Outline: poly}, nil
}

// BoxAOI builds a rectangular AOI.
func BoxAOI(name string, b *geom.Bounds) *AOI {
	return &AOI{Name: name, Outline: b.Polygons()[0]}
}

// Bounds returns the AOI extent.
func (a *AOI) Bounds() *geom.Bounds {
	return a.Outline.Bounds()
}

// Contains reports whether a map coordinate lies inside or on the outline.
func (a *AOI) Contains(x, y float64) bool {
	return geom.Point{X: x, Y: y}.Within(a.Outline) != geom.Outside
}

// Mask marks the pixels of g whose centres fall inside the AOI.
func (a *AOI) Mask(g raster.Grid) []bool {
	return Rasterize(a.Outline, g)
}

// Grid returns a grid at scale aligned to multiples of scale that covers
// the AOI.
func (a *AOI) Grid(crs string, scale float64) raster.Grid {
	b := a.Bounds()
	x0 := math.Floor(b.Min.X/scale) * scale
	y1 := math.Ceil(b.Max.Y/scale) * scale
	x1 := math.Ceil(b.Max.X/scale) * scale
	y0 := math.Floor(b.Min.Y/scale) * scale
	return raster.Grid{
		CRS:     crs,
		OriginX: x0,
		OriginY: y1,
		Scale:   scale,
		Width:   max(int(math.Round((x1-x0)/scale)), 1),
		Height:  max(int(math.Round((y1-y0)/scale)), 1),
	}
}

// Rasterize marks the pixels of g whose centres fall inside p.
func Rasterize(p geom.Polygonal, g raster.Grid) []bool {
	mask := make([]bool, g.Len())
	b := p.Bounds()
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			x, y := g.Center(col, row)
			if x < b.Min.X || x > b.Max.X || y < b.Min.Y || y > b.Max.Y {
				continue
			}
			if (geom.Point{X: x, Y: y}).Within(p) != geom.Outside {
				mask[g.Index(col, row)] = true
			}
		}
	}
	return mask
}
