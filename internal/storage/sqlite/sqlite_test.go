package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func open(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "results.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndQuery(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	records := []storage.Record{
		{Time: day(2021, 1, 1), IntervalEnd: day(2021, 1, 11), AOI: "langtang", Status: "ok", Decision: "per_aspect",
			FSC: ptr(0.42), SnowlineNorth: ptr(4500), SamplesNorth: 120},
		{Time: day(2021, 1, 11), IntervalEnd: day(2021, 1, 21), AOI: "langtang", Status: "empty"},
		{Time: day(2021, 1, 21), IntervalEnd: day(2021, 2, 1), AOI: "langtang", Status: "failed", Error: "boom"},
		{Time: day(2021, 1, 1), IntervalEnd: day(2021, 1, 11), AOI: "khumbu", Status: "ok", FSC: ptr(0.9)},
	}
	for _, r := range records {
		require.NoError(t, s.StoreRecord(ctx, r))
	}

	aois, err := s.AOIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"khumbu", "langtang"}, aois)

	got, err := s.Snowlines(ctx, "langtang", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Time.Equal(day(2021, 1, 1)))
	require.NotNil(t, got[0].SnowlineNorth)
	assert.Equal(t, 4500.0, *got[0].SnowlineNorth)
	assert.Nil(t, got[0].SnowlineSouth)
	assert.Equal(t, 120, got[0].SamplesNorth)
	assert.Equal(t, "per_aspect", got[0].Decision)
	assert.Nil(t, got[1].FSC)
	assert.Equal(t, "boom", got[2].Error)

	got, err = s.Snowlines(ctx, "langtang", day(2021, 1, 11), day(2021, 1, 21))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "empty", got[0].Status)
}

func TestStoreReplacesSameInterval(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	require.NoError(t, s.StoreRecord(ctx, storage.Record{Time: day(2020, 6, 1), AOI: "a", Status: "failed", Error: "x"}))
	require.NoError(t, s.StoreRecord(ctx, storage.Record{Time: day(2020, 6, 1), AOI: "a", Status: "ok", FSC: ptr(0.5)}))

	got, err := s.Snowlines(ctx, "a", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Status)
	assert.Empty(t, got[0].Error)
}

func TestStorageEngineDrainsChannel(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	c := s.StartStorageEngine(ctx, &wg)
	for d := 1; d <= 5; d++ {
		c <- storage.Record{Time: day(2019, 3, d), AOI: "a", Status: "ok"}
	}
	close(c)
	wg.Wait()

	got, err := s.Snowlines(ctx, "a", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, storage.StatusHealthy, s.CheckHealth(ctx).Status)
}
