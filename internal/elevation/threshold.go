package elevation

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"github.com/chrissnell/snowline/internal/terrain"
)

// Source records where a defined threshold came from.
type Source int

const (
	// FromMedian is the median elevation of the aspect's snowline samples.
	FromMedian Source = iota + 1
	// FromAOIMinimum is the lowest elevation in the AOI.
	FromAOIMinimum
	// FromAOIMaximum is the highest elevation in the AOI.
	FromAOIMaximum
	// FromAspectMean is the mean median of the well-sampled aspects.
	FromAspectMean
)

func (s Source) String() string {
	switch s {
	case FromMedian:
		return "median"
	case FromAOIMinimum:
		return "aoi_min"
	case FromAOIMaximum:
		return "aoi_max"
	case FromAspectMean:
		return "aspect_mean"
	}
	return "source(" + strconv.Itoa(int(s)) + ")"
}

// UndefinedReason explains a missing threshold.
type UndefinedReason int

const (
	// Unset is the zero value of a threshold that was never decided.
	Unset UndefinedReason = iota
	// NoSufficientAspect means no aspect had enough samples to average.
	NoSufficientAspect
	// NoSnowCover means the fractional snow cover could not be computed.
	NoSnowCover
	// NoElevation means the elevation the threshold would take is not finite.
	NoElevation
)

func (r UndefinedReason) String() string {
	switch r {
	case Unset:
		return "unset"
	case NoSufficientAspect:
		return "no_sufficient_aspect"
	case NoSnowCover:
		return "no_snow_cover"
	case NoElevation:
		return "no_elevation"
	}
	return "reason(" + strconv.Itoa(int(r)) + ")"
}

// Threshold is either a defined elevation or explicitly undefined. The zero
// value is undefined.
type Threshold struct {
	value   float64
	source  Source
	reason  UndefinedReason
	defined bool
}

// Defined returns a threshold at elevation v.
func Defined(v float64, src Source) Threshold {
	return Threshold{value: v, source: src, defined: true}
}

// finite returns Defined(v, src), or Undefined(NoElevation) when v is NaN or
// infinite.
func finite(v float64, src Source) Threshold {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined(NoElevation)
	}
	return Defined(v, src)
}

// Undefined returns a threshold without a value.
func Undefined(reason UndefinedReason) Threshold {
	return Threshold{reason: reason}
}

// Value returns the elevation and whether it is defined.
func (t Threshold) Value() (float64, bool) {
	return t.value, t.defined
}

// IsDefined reports whether the threshold has a value.
func (t Threshold) IsDefined() bool {
	return t.defined
}

// Source returns the origin of a defined threshold.
func (t Threshold) Source() Source {
	return t.source
}

// Reason returns why an undefined threshold has no value.
func (t Threshold) Reason() UndefinedReason {
	return t.reason
}

// NullFloat64 converts the threshold for storage.
func (t Threshold) NullFloat64() sql.NullFloat64 {
	return sql.NullFloat64{Float64: t.value, Valid: t.defined}
}

func (t Threshold) String() string {
	if !t.defined {
		return "undefined(" + t.reason.String() + ")"
	}
	return fmt.Sprintf("%.1f(%s)", t.value, t.source)
}

// ThresholdMap holds one threshold per aspect class.
type ThresholdMap [terrain.NumAspects]Threshold

// Get returns the threshold of aspect a.
func (m *ThresholdMap) Get(a terrain.Aspect) Threshold {
	return m[a.Index()]
}

// Set stores the threshold of aspect a.
func (m *ThresholdMap) Set(a terrain.Aspect, t Threshold) {
	m[a.Index()] = t
}

// Fill sets every aspect to t.
func (m *ThresholdMap) Fill(t Threshold) {
	for i := range m {
		m[i] = t
	}
}
