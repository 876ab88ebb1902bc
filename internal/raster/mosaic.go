package raster

import (
	"errors"
	"math"
)

// Mosaic samples tiles onto target. For each target pixel the first tile
// with an unmasked value under the pixel centre wins.
func Mosaic(tiles []Layer, target Grid) (Layer, error) {
	if len(tiles) == 0 {
		return Layer{}, errors.New("raster: mosaic needs at least one tile")
	}
	if err := target.Validate(); err != nil {
		return Layer{}, err
	}
	out := NewLayer(target)
	for row := 0; row < target.Height; row++ {
		for col := 0; col < target.Width; col++ {
			x, y := target.Center(col, row)
			for _, t := range tiles {
				c, r, ok := t.Grid.Cell(x, y)
				if !ok {
					continue
				}
				if v := t.Data[t.Grid.Index(c, r)]; !math.IsNaN(v) {
					out.Data[target.Index(col, row)] = v
					break
				}
			}
		}
	}
	return out, nil
}

// Extent returns the smallest grid at the given scale covering all tiles.
func Extent(tiles []Layer, scale float64) Grid {
	b := tiles[0].Grid.Bounds()
	for _, t := range tiles[1:] {
		b.Extend(t.Grid.Bounds())
	}
	return Grid{
		CRS:     tiles[0].Grid.CRS,
		OriginX: b.Min.X,
		OriginY: b.Max.Y,
		Scale:   scale,
		Width:   max(int(math.Ceil((b.Max.X-b.Min.X)/scale-1e-9)), 1),
		Height:  max(int(math.Ceil((b.Max.Y-b.Min.Y)/scale-1e-9)), 1),
	}
}
