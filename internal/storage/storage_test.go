package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager()
	assert.False(t, hm.IsHealthy("sqlite", time.Minute))

	hm.UpdateHealth("sqlite", CreateHealthData(StatusHealthy, "ok", nil))
	hm.UpdateHealth("influxdb", CreateHealthData(StatusUnhealthy, "down", errors.New("refused")))

	assert.True(t, hm.IsHealthy("sqlite", time.Minute))
	assert.False(t, hm.IsHealthy("influxdb", time.Minute))

	h, ok := hm.GetHealth("influxdb")
	assert.True(t, ok)
	assert.Equal(t, "refused", h.Error)

	stale := CreateHealthData(StatusHealthy, "ok", nil)
	stale.LastCheck = time.Now().Add(-time.Hour)
	hm.UpdateHealth("sqlite", stale)
	assert.False(t, hm.IsHealthy("sqlite", time.Minute))

	all := hm.GetAllHealth()
	assert.Len(t, all, 2)
}

func TestFieldsMatchColumns(t *testing.T) {
	var r Record
	assert.Len(t, r.Fields(), len(Columns))
}
