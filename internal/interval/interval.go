// Package interval partitions calendar years into near-equal analysis
// intervals whose boundaries follow month-based stepping.
package interval

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRange is returned for an empty year range or a non-positive
// interval length.
var ErrInvalidRange = errors.New("interval: invalid range")

// DateLayout is the tag format used for an interval's representative date.
const DateLayout = "2006-01-02"

// TimeInterval is a half-open [Start, End) window.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the interval.
func (ti TimeInterval) Contains(t time.Time) bool {
	return !t.Before(ti.Start) && t.Before(ti.End)
}

// Duration returns the interval length.
func (ti TimeInterval) Duration() time.Duration {
	return ti.End.Sub(ti.Start)
}

// Label returns the representative date of the interval.
func (ti TimeInterval) Label() string {
	return ti.Start.Format(DateLayout)
}

func (ti TimeInterval) String() string {
	return fmt.Sprintf("[%s, %s)", ti.Start.Format(time.RFC3339), ti.End.Format(time.RFC3339))
}

// Options controls interval generation.
type Options struct {
	StartYear int
	EndYear   int
	// AggDays is the target interval length in days.
	AggDays int
	// Until drops intervals starting after this instant when non-zero.
	Until time.Time
}

// Generate returns the intervals of every year in [StartYear, EndYear],
// ordered and contiguous.
func Generate(opts Options) ([]TimeInterval, error) {
	if opts.EndYear < opts.StartYear {
		return nil, fmt.Errorf("%w: years %d..%d", ErrInvalidRange, opts.StartYear, opts.EndYear)
	}
	var out []TimeInterval
	for y := opts.StartYear; y <= opts.EndYear; y++ {
		year, err := ForYear(y, opts.AggDays)
		if err != nil {
			return nil, err
		}
		for _, ti := range year {
			if !opts.Until.IsZero() && ti.Start.After(opts.Until) {
				return out, nil
			}
			out = append(out, ti)
		}
	}
	return out, nil
}

// ForYear splits one calendar year into about round(365/aggDays) intervals.
//
// Each boundary advances the previous one by a fraction of a month:
// (advance(prev, relDelta months) - prev) / ceil(30/aggDays). When the month
// steps overrun the year, intervals starting on or after January 1 of the
// following year are dropped and the last one is clamped to end there, as
// long as the count stays within one of round(365/aggDays). Otherwise the
// round(days/aggDays) boundaries are stretched linearly to end on that instant.
func ForYear(year, aggDays int) ([]TimeInterval, error) {
	if aggDays <= 0 {
		return nil, fmt.Errorf("%w: agg days %d", ErrInvalidRange, aggDays)
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	days := last.Sub(start).Hours() / 24
	n := max(int(math.Round(days/float64(aggDays))), 1)
	monthCheck := int(math.Ceil(30 / float64(aggDays)))
	relDelta := int(math.Ceil(days / (30.5 * float64(n))))

	bounds := make([]time.Time, n+1)
	bounds[0] = start
	for i := 1; i <= n; i++ {
		prev := bounds[i-1]
		step := prev.AddDate(0, relDelta, 0).Sub(prev) / time.Duration(monthCheck)
		bounds[i] = prev.Add(step)
	}

	if !bounds[n].Before(yearEnd) {
		m := 0
		for m < n && bounds[m].Before(yearEnd) {
			m++
		}
		if d := m - int(math.Round(365/float64(aggDays))); d >= -1 && d <= 1 {
			out := make([]TimeInterval, m)
			for i := 0; i < m; i++ {
				out[i] = TimeInterval{Start: bounds[i], End: bounds[i+1]}
			}
			out[m-1].End = yearEnd
			return out, nil
		}
	}

	factor := float64(yearEnd.Sub(start)) / float64(bounds[n].Sub(start))
	out := make([]TimeInterval, n)
	for i := 0; i < n; i++ {
		out[i].Start = stretch(start, bounds[i], factor)
		out[i].End = stretch(start, bounds[i+1], factor)
	}
	out[n-1].End = yearEnd
	return out, nil
}

func stretch(origin, t time.Time, factor float64) time.Time {
	return origin.Add(time.Duration(math.Round(float64(t.Sub(origin)) * factor)))
}
