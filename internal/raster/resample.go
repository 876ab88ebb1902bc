package raster

import (
	"fmt"
	"math"
)

// Resample projects src onto target. Each target pixel reduces the source
// pixels whose centres fall inside it; when none do (target finer than
// source) the source pixel under the target centre is taken. Nearest always
// samples under the target centre.
func Resample(src Layer, target Grid, r Reducer) (Layer, error) {
	if err := target.Validate(); err != nil {
		return Layer{}, err
	}
	if src.Grid.CRS != target.CRS {
		return Layer{}, fmt.Errorf("resample %s to %s: %w", src.Grid.CRS, target.CRS, ErrGridMismatch)
	}
	if src.Grid.Equal(target) {
		return src.Clone(), nil
	}

	sg := src.Grid
	out := NewLayer(target)
	vals := make([]float64, 0, 64)
	for row := 0; row < target.Height; row++ {
		// target row span measured downward from the source top edge
		a := (sg.OriginY - target.OriginY) + float64(row)*target.Scale
		rMin, rMax := span(a, target.Scale, sg.Scale)
		for col := 0; col < target.Width; col++ {
			i := target.Index(col, row)
			if r != Nearest {
				b := (target.OriginX - sg.OriginX) + float64(col)*target.Scale
				cMin, cMax := span(b, target.Scale, sg.Scale)
				vals = vals[:0]
				for sr := max(rMin, 0); sr <= min(rMax, sg.Height-1); sr++ {
					for sc := max(cMin, 0); sc <= min(cMax, sg.Width-1); sc++ {
						vals = append(vals, src.Data[sg.Index(sc, sr)])
					}
				}
				if rMin <= rMax && cMin <= cMax {
					if len(vals) > 0 {
						out.Data[i] = r.reduce(vals)
					}
					continue
				}
			}
			x, y := target.Center(col, row)
			if sc, sr, ok := sg.Cell(x, y); ok {
				out.Data[i] = src.Data[sg.Index(sc, sr)]
			}
		}
	}
	return out, nil
}

// span returns the source pixel indices whose centres fall in the half-open
// offset range [from, from+size).
func span(from, size, scale float64) (lo, hi int) {
	lo = int(math.Ceil(from/scale - 0.5 - 1e-9))
	hi = int(math.Ceil((from+size)/scale-0.5-1e-9)) - 1
	return lo, hi
}
