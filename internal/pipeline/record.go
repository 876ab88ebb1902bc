package pipeline

import (
	"database/sql"

	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/internal/terrain"
)

// Record converts a result into a storage record. Undefined thresholds and
// statistics of unsampled aspects are stored as NULL.
func (u UnitResult) Record() storage.Record {
	r := storage.Record{
		Time:        u.Interval.Start,
		IntervalEnd: u.Interval.End,
		AOI:         u.AOI,
		RunID:       u.RunID,
		Status:      string(u.Status),
	}
	if u.Err != nil {
		r.Error = u.Err.Error()
	}

	if est := u.Estimate; est != nil {
		r.Decision = est.Decision.String()
		r.FSC = ptr(est.FSC)

		snowline := [terrain.NumAspects]**float64{&r.SnowlineEast, &r.SnowlineNorth, &r.SnowlineSouth, &r.SnowlineWest, &r.SnowlineMixed}
		p10 := [terrain.NumAspects]**float64{&r.P10East, &r.P10North, &r.P10South, &r.P10West, &r.P10Mixed}
		samples := [terrain.NumAspects]*int{&r.SamplesEast, &r.SamplesNorth, &r.SamplesSouth, &r.SamplesWest, &r.SamplesMixed}
		for _, a := range terrain.Aspects {
			i := a.Index()
			if v, ok := est.Thresholds.Get(a).Value(); ok {
				*snowline[i] = ptr(v)
			}
			st := est.Stats[i]
			if st.Count > 0 {
				*p10[i] = ptr(st.P10)
			}
			*samples[i] = st.Count
		}
	}

	if g := u.Glacier; g != nil {
		r.GlacierSnowFraction = nullable(g.SnowFraction)
		r.GlacierBelowFraction = nullable(g.BelowFraction)
		r.GlacierAreaBelowKm2 = nullable(g.AreaBelowKm2)
		r.GlacierSnowAreaBelowKm2 = ptr(g.SnowAreaBelowKm2)
		r.GlacierSnowAreaAboveKm2 = ptr(g.SnowAreaAboveKm2)
		r.GlacierAreaKm2 = ptr(g.GlacierAreaKm2)
	}
	return r
}

func ptr(v float64) *float64 {
	return &v
}

func nullable(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return ptr(n.Float64)
}
