package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/pkg/config"
)

func TestIntervals(t *testing.T) {
	a := config.Defaults().Analysis
	a.StartYear, a.EndYear = 2020, 2021

	all, err := Intervals(a)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), all[0].Start)
	assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), all[len(all)-1].End)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].End, all[i].Start)
	}

	a.Until = "2020-03-01"
	cut, err := Intervals(a)
	require.NoError(t, err)
	require.NotEmpty(t, cut)
	assert.Less(t, len(cut), len(all))
	until := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	for _, iv := range cut {
		assert.False(t, iv.Start.After(until))
	}

	a.Until = "March"
	_, err = Intervals(a)
	assert.Error(t, err)
}

func writeConfig(t *testing.T, body string) config.ConfigProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snowline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return config.NewYAMLProvider(path)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	provider := writeConfig(t, `
analysis:
  start-year: 2021
  end-year: 2021
sources:
  primary:
    paths: [snow.nc]
  dem:
    - path: dem.asc
`)
	err := New(provider, zap.NewNop().Sugar()).Run(context.Background(), Options{Batch: true})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunFailsOnMissingInputs(t *testing.T) {
	dir := t.TempDir()
	provider := writeConfig(t, `
analysis:
  start-year: 2021
  end-year: 2021
sources:
  primary:
    paths: [`+filepath.Join(dir, "missing.nc")+`]
  dem:
    - path: `+filepath.Join(dir, "missing.asc")+`
aois:
  - name: rhone
    bbox: [0, 0, 5000, 5000]
storage:
  sqlite:
    path: `+filepath.Join(dir, "results.db")+`
`)
	err := New(provider, zap.NewNop().Sugar()).Run(context.Background(), Options{Batch: true})
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalidConfig)

	// The results database was created and released.
	_, statErr := os.Stat(filepath.Join(dir, "results.db"))
	assert.NoError(t, statErr)
}

func TestRunMissingConfig(t *testing.T) {
	provider := config.NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	err := New(provider, zap.NewNop().Sugar()).Run(context.Background(), Options{Batch: true})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
