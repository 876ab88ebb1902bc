package raster

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// DefaultTileRows is the row-tile height used by region reductions.
const DefaultTileRows = 256

// ReduceOptions tunes a region reduction.
type ReduceOptions struct {
	// TileScale divides the tile height; larger values use more, smaller tiles.
	TileScale int
	// KeepValues retains every value so Median and Percentile can be answered.
	KeepValues bool
}

// Stats is the associative summary of a region reduction.
type Stats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64

	values []float64
	sorted bool
}

func newStats() Stats {
	return Stats{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (s *Stats) add(v float64, keep bool) {
	s.Count++
	s.Sum += v
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
	if keep {
		s.values = append(s.values, v)
	}
}

// Merge folds o into s.
func (s *Stats) Merge(o Stats) {
	s.Count += o.Count
	s.Sum += o.Sum
	s.Min = math.Min(s.Min, o.Min)
	s.Max = math.Max(s.Max, o.Max)
	s.values = append(s.values, o.values...)
	s.sorted = false
}

// StatsOf summarises a set of values, keeping them for order statistics.
func StatsOf(vals []float64) Stats {
	s := newStats()
	for _, v := range vals {
		if !math.IsNaN(v) {
			s.add(v, true)
		}
	}
	return s
}

// Mean returns the average, NaN when empty.
func (s *Stats) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

// Minimum returns the smallest value, NaN when empty.
func (s *Stats) Minimum() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Min
}

// Maximum returns the largest value, NaN when empty.
func (s *Stats) Maximum() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Max
}

func (s *Stats) sortValues() {
	if !s.sorted {
		sort.Float64s(s.values)
		s.sorted = true
	}
}

// Median returns the median of the retained values, NaN when none were kept.
// Even counts average the two middle values.
func (s *Stats) Median() float64 {
	n := len(s.values)
	if n == 0 {
		return math.NaN()
	}
	s.sortValues()
	if n%2 == 1 {
		return s.values[n/2]
	}
	return (s.values[n/2-1] + s.values[n/2]) / 2
}

// Percentile returns the empirical p-th percentile (0-100) of the retained
// values, NaN when none were kept.
func (s *Stats) Percentile(p float64) float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	s.sortValues()
	return stat.Quantile(p/100, stat.Empirical, s.values, nil)
}

// ReduceRegion summarises the unmasked pixels of src inside region. A nil
// region covers the whole grid. Row tiles are reduced in parallel and
// merged in tile order, so the result does not depend on scheduling.
func ReduceRegion(ctx context.Context, src Layer, region []bool, tileRows int, opts ReduceOptions) (Stats, error) {
	g := src.Grid
	if region != nil && len(region) != len(src.Data) {
		return Stats{}, fmt.Errorf("reduce region: region has %d pixels, layer has %d: %w", len(region), len(src.Data), ErrGridMismatch)
	}
	if tileRows <= 0 {
		tileRows = DefaultTileRows
	}
	if opts.TileScale > 1 {
		tileRows = max(tileRows/opts.TileScale, 1)
	}

	tiles := (g.Height + tileRows - 1) / tileRows
	parts := make([]Stats, tiles)
	eg, ctx := errgroup.WithContext(ctx)
	for t := 0; t < tiles; t++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := newStats()
			lo := t * tileRows * g.Width
			hi := min((t+1)*tileRows, g.Height) * g.Width
			for i := lo; i < hi; i++ {
				v := src.Data[i]
				if math.IsNaN(v) || (region != nil && !region[i]) {
					continue
				}
				s.add(v, opts.KeepValues)
			}
			parts[t] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Stats{}, err
	}

	total := newStats()
	for _, p := range parts {
		total.Merge(p)
	}
	return total, nil
}
