// Package raster provides the gridded image model used by the snowline
// pipeline together with an in-process implementation of the raster compute
// capabilities the pipeline depends on (resampling, connected components,
// edge detection, focal filters, region reductions and stratified sampling).
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

var (
	// ErrGridMismatch is returned when two rasters that must share a grid do not.
	ErrGridMismatch = errors.New("raster: grids do not match")
	// ErrNoSuchBand is returned when a named band is not present on an image.
	ErrNoSuchBand = errors.New("raster: no such band")
	// ErrEmptySeries is returned when reducing a series without images.
	ErrEmptySeries = errors.New("raster: empty series")
)

// Grid describes a north-up pixel grid. The origin is the upper-left corner
// of pixel (0, 0) and rows grow southward.
type Grid struct {
	CRS     string  `msgpack:"crs" yaml:"crs"`
	OriginX float64 `msgpack:"ox" yaml:"origin_x"`
	OriginY float64 `msgpack:"oy" yaml:"origin_y"`
	Scale   float64 `msgpack:"scale" yaml:"scale"`
	Width   int     `msgpack:"w" yaml:"width"`
	Height  int     `msgpack:"h" yaml:"height"`
}

// Validate checks that the grid can hold pixels.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("raster: invalid grid dimensions %dx%d", g.Width, g.Height)
	}
	if g.Scale <= 0 || math.IsNaN(g.Scale) {
		return fmt.Errorf("raster: invalid grid scale %v", g.Scale)
	}
	return nil
}

// Len returns the number of pixels in the grid.
func (g Grid) Len() int {
	return g.Width * g.Height
}

// Index returns the flat index of the pixel at (col, row).
func (g Grid) Index(col, row int) int {
	return row*g.Width + col
}

// Contains reports whether (col, row) lies inside the grid.
func (g Grid) Contains(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Width && row < g.Height
}

// Center returns the map coordinates of the centre of pixel (col, row).
func (g Grid) Center(col, row int) (x, y float64) {
	return g.OriginX + (float64(col)+0.5)*g.Scale, g.OriginY - (float64(row)+0.5)*g.Scale
}

// Cell returns the pixel containing map coordinate (x, y).
func (g Grid) Cell(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor((x - g.OriginX) / g.Scale))
	row = int(math.Floor((g.OriginY - y) / g.Scale))
	return col, row, g.Contains(col, row)
}

// Bounds returns the map extent of the grid.
func (g Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.OriginX, Y: g.OriginY - float64(g.Height)*g.Scale},
		Max: geom.Point{X: g.OriginX + float64(g.Width)*g.Scale, Y: g.OriginY},
	}
}

// PixelBounds returns the map extent of a single pixel.
func (g Grid) PixelBounds(col, row int) *geom.Bounds {
	x0 := g.OriginX + float64(col)*g.Scale
	y1 := g.OriginY - float64(row)*g.Scale
	return &geom.Bounds{
		Min: geom.Point{X: x0, Y: y1 - g.Scale},
		Max: geom.Point{X: x0 + g.Scale, Y: y1},
	}
}

// PixelArea returns the area of one pixel in square CRS units.
func (g Grid) PixelArea() float64 {
	return g.Scale * g.Scale
}

// AtScale returns a grid covering the same extent at a different pixel size.
// Partial pixels at the right and bottom edges are kept.
func (g Grid) AtScale(scale float64) Grid {
	if scale == g.Scale {
		return g
	}
	w := int(math.Ceil(float64(g.Width)*g.Scale/scale - 1e-9))
	h := int(math.Ceil(float64(g.Height)*g.Scale/scale - 1e-9))
	return Grid{
		CRS:     g.CRS,
		OriginX: g.OriginX,
		OriginY: g.OriginY,
		Scale:   scale,
		Width:   max(w, 1),
		Height:  max(h, 1),
	}
}

// Equal reports whether both grids describe the same pixels.
func (g Grid) Equal(o Grid) bool {
	return g.CRS == o.CRS &&
		g.Width == o.Width && g.Height == o.Height &&
		nearlyEqual(g.OriginX, o.OriginX) && nearlyEqual(g.OriginY, o.OriginY) &&
		nearlyEqual(g.Scale, o.Scale)
}

func (g Grid) String() string {
	return fmt.Sprintf("%s %dx%d@%gm (%g,%g)", g.CRS, g.Width, g.Height, g.Scale, g.OriginX, g.OriginY)
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
