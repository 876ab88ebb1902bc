// Package metrics exposes pipeline and API metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector provides application metrics collection. Each Collector owns its
// registry so several can coexist in one process.
type Collector struct {
	Registry *prometheus.Registry

	// Pipeline Metrics
	UnitsTotal        *prometheus.CounterVec
	UnitDuration      prometheus.Histogram
	CompositesBuilt   prometheus.Counter
	CompositesDropped prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	ThresholdSources  *prometheus.CounterVec

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		Registry: reg,

		UnitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Processed (AOI, interval) units by outcome",
			},
			[]string{"status"},
		),

		UnitDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Time to process one (AOI, interval) unit",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),

		CompositesBuilt: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composites_built_total",
				Help:      "Interval composites computed",
			},
		),

		CompositesDropped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composites_dropped_total",
				Help:      "Intervals dropped for lack of observations",
			},
		),

		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Composite cache lookups by result",
			},
			[]string{"result"},
		),

		ThresholdSources: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "thresholds_total",
				Help:      "Snowline thresholds by aspect and by how they were derived",
			},
			[]string{"aspect", "source"},
		),

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"route"},
		),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}
