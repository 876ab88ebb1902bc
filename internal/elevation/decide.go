package elevation

import (
	"math"

	"github.com/chrissnell/snowline/internal/terrain"
)

// Decision names the branch of the fallback policy that produced a map.
type Decision int

const (
	// AllSnow means no no-snow pixel was sampled: every aspect takes the AOI minimum.
	AllSnow Decision = iota + 1
	// NoSnow means no snow pixel was sampled: every aspect takes the AOI maximum.
	NoSnow
	// PerAspect means each aspect was judged on its own samples.
	PerAspect
)

func (d Decision) String() string {
	switch d {
	case AllSnow:
		return "all_snow"
	case NoSnow:
		return "no_snow"
	case PerAspect:
		return "per_aspect"
	}
	return "unknown"
}

// AspectStats summarises the elevation samples of one aspect class.
type AspectStats struct {
	Count  int
	Median float64
	P10    float64
}

// Policy holds the fallback thresholds.
type Policy struct {
	// MinSamples and MinSampleFraction together define an insufficient
	// aspect: fewer than MinSamples points and fewer than MinSampleFraction
	// of the AOI cells.
	MinSamples        int
	MinSampleFraction float64
	// HighSnow and LowSnow are inclusive fractional snow cover bounds.
	HighSnow float64
	LowSnow  float64
}

// DefaultPolicy returns the standard fallback thresholds.
func DefaultPolicy() Policy {
	return Policy{MinSamples: 10, MinSampleFraction: 0.01, HighSnow: 0.9, LowSnow: 0.1}
}

// Inputs is everything the fallback policy looks at.
type Inputs struct {
	Stats [terrain.NumAspects]AspectStats
	// ClassesSampled is false when the eroded AOI held no pixel to sample
	// snow classes from; the whole-AOI shortcuts are then skipped.
	ClassesSampled bool
	SnowClassMin   int
	SnowClassMax   int
	FSC            float64
	MinElevation   float64
	MaxElevation   float64
	CellCount      int
}

// Insufficient reports whether an aspect's sample is too small to trust.
func (p Policy) Insufficient(count, cellCount int) bool {
	if count == 0 {
		return true
	}
	frac := 0.0
	if cellCount > 0 {
		frac = float64(count) / float64(cellCount)
	}
	return count < p.MinSamples && frac < p.MinSampleFraction
}

// Decide applies the fallback policy.
func Decide(in Inputs, p Policy) (ThresholdMap, Decision) {
	var m ThresholdMap
	if in.ClassesSampled {
		switch {
		case in.SnowClassMin == 1:
			m.Fill(finite(in.MinElevation, FromAOIMinimum))
			return m, AllSnow
		case in.SnowClassMax == 0:
			m.Fill(finite(in.MaxElevation, FromAOIMaximum))
			return m, NoSnow
		}
	}

	sum, n := 0.0, 0
	for _, a := range terrain.Aspects {
		s := in.Stats[a.Index()]
		if p.Insufficient(s.Count, in.CellCount) {
			continue
		}
		th := finite(s.Median, FromMedian)
		if !th.IsDefined() {
			continue
		}
		m.Set(a, th)
		sum += s.Median
		n++
	}

	replacement := replacementFor(in, p, sum, n)
	for _, a := range terrain.Aspects {
		if !m.Get(a).IsDefined() {
			m.Set(a, replacement)
		}
	}
	return m, PerAspect
}

func replacementFor(in Inputs, p Policy, sum float64, n int) Threshold {
	switch {
	case math.IsNaN(in.FSC):
		return Undefined(NoSnowCover)
	case in.FSC >= p.HighSnow:
		return finite(in.MinElevation, FromAOIMinimum)
	case in.FSC <= p.LowSnow:
		return finite(in.MaxElevation, FromAOIMaximum)
	case n > 0:
		return finite(sum/float64(n), FromAspectMean)
	}
	return Undefined(NoSufficientAspect)
}
