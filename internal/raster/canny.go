package raster

import "math"

// nmsEpsilon absorbs rounding noise when comparing gradient magnitudes of
// symmetric step edges.
const nmsEpsilon = 1e-9

// CannyEdges runs Canny edge detection and returns a 0/1 layer. Masked input
// pixels are treated as zero. The gradient is scaled so that a unit step seen
// across two pixels has magnitude close to 1; threshold is the hysteresis
// high threshold and half of it the low threshold. Suppression keeps the
// pixel on the low-value side of a step.
func CannyEdges(src Layer, threshold, sigma float64) Layer {
	g := src.Grid
	w, h := g.Width, g.Height

	img := Unmask(src, 0).Data
	if sigma > 0 {
		img = gaussian(img, w, h, sigma)
	}

	at := func(col, row int) float64 {
		col = min(max(col, 0), w-1)
		row = min(max(row, 0), h-1)
		return img[row*w+col]
	}

	gx := make([]float64, len(img))
	gy := make([]float64, len(img))
	mag := make([]float64, len(img))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			// Sobel, x grows east and y grows south
			dx := (at(col+1, row-1) + 2*at(col+1, row) + at(col+1, row+1) -
				at(col-1, row-1) - 2*at(col-1, row) - at(col-1, row+1)) / 4
			dy := (at(col-1, row+1) + 2*at(col, row+1) + at(col+1, row+1) -
				at(col-1, row-1) - 2*at(col, row-1) - at(col+1, row-1)) / 4
			i := row*w + col
			gx[i], gy[i] = dx, dy
			mag[i] = math.Hypot(dx, dy)
		}
	}

	magAt := func(col, row int) float64 {
		if col < 0 || row < 0 || col >= w || row >= h {
			return 0
		}
		return mag[row*w+col]
	}

	low := threshold / 2
	strong := make([]bool, len(img))
	weak := make([]bool, len(img))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			i := row*w + col
			m := mag[i]
			if m < low || m == 0 {
				continue
			}
			sx, sy := direction(gx[i], gy[i])
			// the gradient points uphill: prev is the low side, next the high side
			prev := magAt(col-sx, row-sy)
			next := magAt(col+sx, row+sy)
			if m > prev+nmsEpsilon && m >= next-nmsEpsilon {
				if m >= threshold {
					strong[i] = true
				} else {
					weak[i] = true
				}
			}
		}
	}

	out := Fill(g, 0)
	stack := make([]int, 0, 64)
	for i, s := range strong {
		if !s || out.Data[i] == 1 {
			continue
		}
		out.Data[i] = 1
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			col, row := p%w, p/w
			for _, o := range offsets8 {
				nc, nr := col+o[0], row+o[1]
				if nc < 0 || nr < 0 || nc >= w || nr >= h {
					continue
				}
				n := nr*w + nc
				if out.Data[n] == 1 || !(weak[n] || strong[n]) {
					continue
				}
				out.Data[n] = 1
				stack = append(stack, n)
			}
		}
	}
	return out
}

// direction rounds a gradient vector to one of the eight neighbour steps.
func direction(dx, dy float64) (sx, sy int) {
	angle := math.Atan2(dy, dx)
	oct := int(math.Round(angle/(math.Pi/4))) & 7
	steps := [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	return steps[oct][0], steps[oct][1]
}

// gaussian blurs img with a separable kernel of radius ceil(3 sigma),
// clamping at the borders.
func gaussian(img []float64, w, h int, sigma float64) []float64 {
	radius := max(int(math.Ceil(3*sigma)), 1)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	tmp := make([]float64, len(img))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			acc := 0.0
			for k, kv := range kernel {
				c := min(max(col+k-radius, 0), w-1)
				acc += kv * img[row*w+c]
			}
			tmp[row*w+col] = acc
		}
	}
	out := make([]float64, len(img))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			acc := 0.0
			for k, kv := range kernel {
				r := min(max(row+k-radius, 0), h-1)
				acc += kv * tmp[r*w+col]
			}
			out[row*w+col] = acc
		}
	}
	return out
}
