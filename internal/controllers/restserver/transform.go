package restserver

import (
	"strings"
	"time"

	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/internal/terrain"
)

// transformRecord converts a stored record to its API form. Aspects are keyed
// by lower-case class name; glacier metrics are omitted when none were
// computed.
func transformRecord(r storage.Record) Snowline {
	s := Snowline{
		AOI:         r.AOI,
		Date:        r.Time.UTC().Format(time.DateOnly),
		IntervalEnd: r.IntervalEnd.UTC().Format(time.DateOnly),
		RunID:       r.RunID,
		Status:      r.Status,
		Error:       r.Error,
		Decision:    r.Decision,
		FSC:         r.FSC,
	}

	if r.Decision != "" {
		elevation := [terrain.NumAspects]*float64{r.SnowlineEast, r.SnowlineNorth, r.SnowlineSouth, r.SnowlineWest, r.SnowlineMixed}
		p10 := [terrain.NumAspects]*float64{r.P10East, r.P10North, r.P10South, r.P10West, r.P10Mixed}
		samples := [terrain.NumAspects]int{r.SamplesEast, r.SamplesNorth, r.SamplesSouth, r.SamplesWest, r.SamplesMixed}

		s.Aspects = make(map[string]AspectSnowline, terrain.NumAspects)
		for _, a := range terrain.Aspects {
			i := a.Index()
			s.Aspects[strings.ToLower(a.String())] = AspectSnowline{
				Elevation: elevation[i],
				P10:       p10[i],
				Samples:   samples[i],
			}
		}
	}

	if r.GlacierAreaKm2 != nil {
		s.Glacier = &GlacierMetrics{
			SnowFraction:     r.GlacierSnowFraction,
			BelowFraction:    r.GlacierBelowFraction,
			AreaBelowKm2:     r.GlacierAreaBelowKm2,
			SnowAreaBelowKm2: r.GlacierSnowAreaBelowKm2,
			SnowAreaAboveKm2: r.GlacierSnowAreaAboveKm2,
			AreaKm2:          r.GlacierAreaKm2,
		}
	}
	return s
}
