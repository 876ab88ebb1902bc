package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("snowline")
	b := NewCollector("snowline")

	a.UnitsTotal.WithLabelValues("ok").Add(3)
	b.UnitsTotal.WithLabelValues("ok").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.UnitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.UnitsTotal.WithLabelValues("ok")))
}

func TestHandler(t *testing.T) {
	c := NewCollector("snowline")
	c.CompositesDropped.Inc()
	c.ThresholdSources.WithLabelValues("north", "median").Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "snowline_composites_dropped_total 1")
	assert.Contains(t, string(body), `snowline_thresholds_total{aspect="north",source="median"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
