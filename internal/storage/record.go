package storage

import "time"

// Record is one stored (AOI, interval) result. Nil pointers are stored as
// NULL: an undefined snowline, or glacier metrics that were not computed.
type Record struct {
	Time        time.Time `gorm:"column:time;not null" json:"time"`
	IntervalEnd time.Time `gorm:"column:interval_end" json:"interval_end"`
	AOI         string    `gorm:"column:aoi;not null" json:"aoi"`
	RunID       string    `gorm:"column:run_id" json:"run_id"`
	Status      string    `gorm:"column:status" json:"status"`
	Error       string    `gorm:"column:error" json:"error,omitempty"`
	Decision    string    `gorm:"column:decision" json:"decision,omitempty"`
	FSC         *float64  `gorm:"column:fsc" json:"fsc"`

	SnowlineEast  *float64 `gorm:"column:snowline_east" json:"snowline_east"`
	SnowlineNorth *float64 `gorm:"column:snowline_north" json:"snowline_north"`
	SnowlineSouth *float64 `gorm:"column:snowline_south" json:"snowline_south"`
	SnowlineWest  *float64 `gorm:"column:snowline_west" json:"snowline_west"`
	SnowlineMixed *float64 `gorm:"column:snowline_mixed" json:"snowline_mixed"`

	P10East  *float64 `gorm:"column:p10_east" json:"p10_east"`
	P10North *float64 `gorm:"column:p10_north" json:"p10_north"`
	P10South *float64 `gorm:"column:p10_south" json:"p10_south"`
	P10West  *float64 `gorm:"column:p10_west" json:"p10_west"`
	P10Mixed *float64 `gorm:"column:p10_mixed" json:"p10_mixed"`

	SamplesEast  int `gorm:"column:samples_east" json:"samples_east"`
	SamplesNorth int `gorm:"column:samples_north" json:"samples_north"`
	SamplesSouth int `gorm:"column:samples_south" json:"samples_south"`
	SamplesWest  int `gorm:"column:samples_west" json:"samples_west"`
	SamplesMixed int `gorm:"column:samples_mixed" json:"samples_mixed"`

	GlacierSnowFraction     *float64 `gorm:"column:glacier_snow_fraction" json:"glacier_snow_fraction"`
	GlacierBelowFraction    *float64 `gorm:"column:glacier_below_fraction" json:"glacier_below_fraction"`
	GlacierAreaBelowKm2     *float64 `gorm:"column:glacier_area_below_km2" json:"glacier_area_below_km2"`
	GlacierSnowAreaBelowKm2 *float64 `gorm:"column:glacier_snow_area_below_km2" json:"glacier_snow_area_below_km2"`
	GlacierSnowAreaAboveKm2 *float64 `gorm:"column:glacier_snow_area_above_km2" json:"glacier_snow_area_above_km2"`
	GlacierAreaKm2          *float64 `gorm:"column:glacier_area_km2" json:"glacier_area_km2"`
}

// TableName names the results table.
func (Record) TableName() string {
	return "snowlines"
}

// Columns lists the results table columns in Fields order.
var Columns = []string{
	"time", "interval_end", "aoi", "run_id", "status", "error", "decision", "fsc",
	"snowline_east", "snowline_north", "snowline_south", "snowline_west", "snowline_mixed",
	"p10_east", "p10_north", "p10_south", "p10_west", "p10_mixed",
	"samples_east", "samples_north", "samples_south", "samples_west", "samples_mixed",
	"glacier_snow_fraction", "glacier_below_fraction", "glacier_area_below_km2",
	"glacier_snow_area_below_km2", "glacier_snow_area_above_km2", "glacier_area_km2",
}

// Fields returns pointers to the record fields in Columns order, usable both
// as query arguments and as Scan destinations.
func (r *Record) Fields() []any {
	return []any{
		&r.Time, &r.IntervalEnd, &r.AOI, &r.RunID, &r.Status, &r.Error, &r.Decision, &r.FSC,
		&r.SnowlineEast, &r.SnowlineNorth, &r.SnowlineSouth, &r.SnowlineWest, &r.SnowlineMixed,
		&r.P10East, &r.P10North, &r.P10South, &r.P10West, &r.P10Mixed,
		&r.SamplesEast, &r.SamplesNorth, &r.SamplesSouth, &r.SamplesWest, &r.SamplesMixed,
		&r.GlacierSnowFraction, &r.GlacierBelowFraction, &r.GlacierAreaBelowKm2,
		&r.GlacierSnowAreaBelowKm2, &r.GlacierSnowAreaAboveKm2, &r.GlacierAreaKm2,
	}
}
