package raster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Sample is one stratified sample point.
type Sample struct {
	Col    int
	Row    int
	Class  int
	Values map[string]float64
}

// SampleOptions configures StratifiedSample.
type SampleOptions struct {
	// NumPoints is the maximum number of points per class.
	NumPoints int
	Seed      uint64
	// Region limits sampling; nil samples the whole grid.
	Region []bool
	// DropNulls skips pixels where any value layer is masked.
	DropNulls bool
}

// StratifiedSample draws up to NumPoints pixels per distinct value of class.
// The draw is deterministic for a fixed seed. Samples are returned ordered by
// class and then by raster position.
func StratifiedSample(class Layer, values map[string]Layer, opts SampleOptions) ([]Sample, error) {
	n := len(class.Data)
	if opts.Region != nil && len(opts.Region) != n {
		return nil, fmt.Errorf("stratified sample: region has %d pixels, layer has %d: %w", len(opts.Region), n, ErrGridMismatch)
	}
	for name, l := range values {
		if !l.Grid.Equal(class.Grid) {
			return nil, fmt.Errorf("stratified sample: value layer %q: %w", name, ErrGridMismatch)
		}
	}
	if opts.NumPoints <= 0 {
		return nil, nil
	}

	candidates := make(map[int][]int)
	for i, c := range class.Data {
		if math.IsNaN(c) || (opts.Region != nil && !opts.Region[i]) {
			continue
		}
		if opts.DropNulls && anyMasked(values, i) {
			continue
		}
		k := int(c)
		candidates[k] = append(candidates[k], i)
	}

	classes := make([]int, 0, len(candidates))
	for k := range candidates {
		classes = append(classes, k)
	}
	sort.Ints(classes)

	var out []Sample
	for _, k := range classes {
		idx := candidates[k]
		if len(idx) > opts.NumPoints {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(int64(k))))
			// partial Fisher-Yates
			for j := 0; j < opts.NumPoints; j++ {
				r := j + rng.IntN(len(idx)-j)
				idx[j], idx[r] = idx[r], idx[j]
			}
			idx = idx[:opts.NumPoints]
			sort.Ints(idx)
		}
		for _, i := range idx {
			s := Sample{
				Col:    i % class.Grid.Width,
				Row:    i / class.Grid.Width,
				Class:  k,
				Values: make(map[string]float64, len(values)),
			}
			for name, l := range values {
				s.Values[name] = l.Data[i]
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func anyMasked(values map[string]Layer, i int) bool {
	for _, l := range values {
		if math.IsNaN(l.Data[i]) {
			return true
		}
	}
	return false
}
