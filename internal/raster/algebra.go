package raster

import (
	"fmt"
	"math"
)

// Map applies f to every unmasked pixel. Masked pixels stay masked.
func Map(l Layer, f func(v float64) float64) Layer {
	out := Layer{Grid: l.Grid, Data: make([]float64, len(l.Data))}
	for i, v := range l.Data {
		if math.IsNaN(v) {
			out.Data[i] = v
			continue
		}
		out.Data[i] = f(v)
	}
	return out
}

// Map2 combines two layers on the same grid. A pixel masked in either input
// is masked in the output.
func Map2(a, b Layer, f func(a, b float64) float64) (Layer, error) {
	if !a.Grid.Equal(b.Grid) {
		return Layer{}, fmt.Errorf("map2 %s vs %s: %w", a.Grid, b.Grid, ErrGridMismatch)
	}
	out := Layer{Grid: a.Grid, Data: make([]float64, len(a.Data))}
	for i := range a.Data {
		if math.IsNaN(a.Data[i]) || math.IsNaN(b.Data[i]) {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = f(a.Data[i], b.Data[i])
	}
	return out, nil
}

// Where returns a copy of l with v written wherever cond is true.
func Where(l Layer, cond []bool, v float64) (Layer, error) {
	if len(cond) != len(l.Data) {
		return Layer{}, fmt.Errorf("where: condition has %d pixels, layer has %d: %w", len(cond), len(l.Data), ErrGridMismatch)
	}
	out := l.Clone()
	for i, c := range cond {
		if c {
			out.Data[i] = v
		}
	}
	return out, nil
}

// UpdateMask masks every pixel where keep is false.
func UpdateMask(l Layer, keep []bool) (Layer, error) {
	if len(keep) != len(l.Data) {
		return Layer{}, fmt.Errorf("update mask: mask has %d pixels, layer has %d: %w", len(keep), len(l.Data), ErrGridMismatch)
	}
	out := l.Clone()
	for i, k := range keep {
		if !k {
			out.Data[i] = math.NaN()
		}
	}
	return out, nil
}

// Unmask replaces masked pixels with v.
func Unmask(l Layer, v float64) Layer {
	out := l.Clone()
	for i, x := range out.Data {
		if math.IsNaN(x) {
			out.Data[i] = v
		}
	}
	return out
}

// And intersects masks of equal length.
func And(masks ...[]bool) []bool {
	if len(masks) == 0 {
		return nil
	}
	out := make([]bool, len(masks[0]))
	for i := range out {
		out[i] = true
		for _, m := range masks {
			if !m[i] {
				out[i] = false
				break
			}
		}
	}
	return out
}

// Equals returns a mask of pixels holding exactly v.
func Equals(l Layer, v float64) []bool {
	m := make([]bool, len(l.Data))
	for i, x := range l.Data {
		m[i] = x == v
	}
	return m
}
