package restserver

// AOIList is the reply of the AOI listing.
type AOIList struct {
	AOIs []string `json:"aois"`
}

// AspectSnowline is the snowline of one aspect class. Elevation is null when
// the threshold is undefined; P10 is null when the aspect was not sampled.
type AspectSnowline struct {
	Elevation *float64 `json:"elevation"`
	P10       *float64 `json:"p10"`
	Samples   int      `json:"samples"`
}

// GlacierMetrics are the glacier snow metrics of one interval.
type GlacierMetrics struct {
	SnowFraction     *float64 `json:"snow_fraction"`
	BelowFraction    *float64 `json:"below_fraction"`
	AreaBelowKm2     *float64 `json:"area_below_km2"`
	SnowAreaBelowKm2 *float64 `json:"snow_area_below_km2"`
	SnowAreaAboveKm2 *float64 `json:"snow_area_above_km2"`
	AreaKm2          *float64 `json:"area_km2"`
}

// Snowline is one (AOI, interval) result for JSON and MessagePack output.
type Snowline struct {
	AOI         string `json:"aoi"`
	Date        string `json:"date"`
	IntervalEnd string `json:"interval_end"`
	RunID       string `json:"run_id,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Decision    string `json:"decision,omitempty"`
	// FSC is the fractional snow cover of the AOI.
	FSC     *float64                  `json:"fsc"`
	Aspects map[string]AspectSnowline `json:"aspects,omitempty"`
	Glacier *GlacierMetrics           `json:"glacier,omitempty"`
}

// SnowlineList is the reply of the snowline series endpoint.
type SnowlineList struct {
	AOI       string     `json:"aoi"`
	Snowlines []Snowline `json:"snowlines"`
}

// HealthReply is the reply of the health endpoint.
type HealthReply struct {
	Status  string                  `json:"status"`
	Engines map[string]EngineHealth `json:"engines"`
}

// EngineHealth is the last health check of one storage engine.
type EngineHealth struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	LastCheck string `json:"last_check"`
}
