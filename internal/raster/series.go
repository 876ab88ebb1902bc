package raster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom"
)

// Reducer selects how several values collapse into one.
type Reducer int

const (
	// Mean averages the unmasked values.
	Mean Reducer = iota
	// Mode picks the most frequent unmasked value, the smallest on ties.
	Mode
	// Min picks the smallest unmasked value.
	Min
	// Max picks the largest unmasked value.
	Max
	// Sum adds the unmasked values.
	Sum
	// Count counts the unmasked values.
	Count
	// FirstNonNull picks the first unmasked value.
	FirstNonNull
	// Nearest samples the source pixel under the target pixel centre.
	Nearest
)

func (r Reducer) String() string {
	switch r {
	case Mean:
		return "mean"
	case Mode:
		return "mode"
	case Min:
		return "min"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Count:
		return "count"
	case FirstNonNull:
		return "first_non_null"
	case Nearest:
		return "nearest"
	}
	return fmt.Sprintf("reducer(%d)", int(r))
}

// reduce collapses vals with r. vals may contain NaN.
func (r Reducer) reduce(vals []float64) float64 {
	switch r {
	case Count:
		n := 0
		for _, v := range vals {
			if !math.IsNaN(v) {
				n++
			}
		}
		return float64(n)
	case FirstNonNull, Nearest:
		for _, v := range vals {
			if !math.IsNaN(v) {
				return v
			}
		}
		return math.NaN()
	case Mode:
		counts := make(map[float64]int)
		best, bestN := math.NaN(), 0
		for _, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			counts[v]++
			n := counts[v]
			if n > bestN || (n == bestN && v < best) {
				best, bestN = v, n
			}
		}
		return best
	}

	n := 0
	acc := 0.0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case n == 0:
			acc = v
		case r == Min:
			acc = math.Min(acc, v)
		case r == Max:
			acc = math.Max(acc, v)
		default:
			acc += v
		}
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	if r == Mean {
		return acc / float64(n)
	}
	return acc
}

// Series is an ordered collection of images.
type Series []*Image

// Sorted returns the series ordered by acquisition time.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// FilterDate keeps images acquired in [start, end).
func (s Series) FilterDate(start, end time.Time) Series {
	var out Series
	for _, im := range s {
		if !im.Time.Before(start) && im.Time.Before(end) {
			out = append(out, im)
		}
	}
	return out
}

// FilterBounds keeps images whose footprint overlaps b.
func (s Series) FilterBounds(b *geom.Bounds) Series {
	var out Series
	for _, im := range s {
		if im.Grid.Bounds().Overlaps(b) {
			out = append(out, im)
		}
	}
	return out
}

// Reduce collapses one band across the series pixel by pixel. Every image
// must share a grid.
func (s Series) Reduce(band string, r Reducer) (Layer, error) {
	if len(s) == 0 {
		return Layer{}, ErrEmptySeries
	}
	g := s[0].Grid
	layers := make([]Layer, len(s))
	for i, im := range s {
		if !im.Grid.Equal(g) {
			return Layer{}, fmt.Errorf("image %d (%s): %w", i, im.Time.Format(time.DateOnly), ErrGridMismatch)
		}
		l, err := im.Layer(band)
		if err != nil {
			return Layer{}, err
		}
		layers[i] = l
	}
	out := NewLayer(g)
	vals := make([]float64, len(layers))
	for p := range out.Data {
		for i, l := range layers {
			vals[i] = l.Data[p]
		}
		out.Data[p] = r.reduce(vals)
	}
	return out, nil
}
