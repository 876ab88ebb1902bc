package raster

import "math"

// circle returns the pixel offsets inside a disc of radius r pixels.
func circle(r float64) [][2]int {
	n := int(math.Floor(r))
	var offs [][2]int
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if float64(dx*dx+dy*dy) <= r*r+1e-9 {
				offs = append(offs, [2]int{dx, dy})
			}
		}
	}
	return offs
}

// FocalMean averages the unmasked pixels within a circle of radiusPx pixels.
// Masked pixels with unmasked neighbours receive a value.
func FocalMean(src Layer, radiusPx float64) Layer {
	g := src.Grid
	offs := circle(radiusPx)
	out := NewLayer(g)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			sum, n := 0.0, 0
			for _, o := range offs {
				v := src.At(col+o[0], row+o[1])
				if math.IsNaN(v) {
					continue
				}
				sum += v
				n++
			}
			if n > 0 {
				out.Data[g.Index(col, row)] = sum / float64(n)
			}
		}
	}
	return out
}

// FocalMin takes the minimum within a circle of radiusMeters. A masked or
// out-of-grid pixel inside the kernel masks the output pixel.
func FocalMin(src Layer, radiusMeters float64) Layer {
	g := src.Grid
	offs := circle(radiusMeters / g.Scale)
	out := NewLayer(g)
	for row := 0; row < g.Height; row++ {
	pixel:
		for col := 0; col < g.Width; col++ {
			m := math.Inf(1)
			for _, o := range offs {
				v := src.At(col+o[0], row+o[1])
				if math.IsNaN(v) {
					continue pixel
				}
				m = math.Min(m, v)
			}
			out.Data[g.Index(col, row)] = m
		}
	}
	return out
}
