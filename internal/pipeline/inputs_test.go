package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/geo"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/pkg/config"
)

func TestAOIsFromConfig(t *testing.T) {
	aois, err := AOIsFromConfig([]config.AOIData{
		{Name: "box", BBox: []float64{0, 0, 1000, 500}},
		{Name: "poly", Rings: [][][2]float64{{{0, 0}, {1000, 0}, {0, 1000}, {0, 0}}}},
	})
	require.NoError(t, err)
	require.Len(t, aois, 2)

	assert.Equal(t, "box", aois[0].Name)
	assert.True(t, aois[0].Contains(500, 250))
	assert.False(t, aois[0].Contains(500, 750))
	assert.True(t, aois[1].Contains(100, 100))
	assert.False(t, aois[1].Contains(900, 900))

	tests := []struct {
		name string
		aoi  config.AOIData
	}{
		{"no geometry", config.AOIData{Name: "x"}},
		{"short bbox", config.AOIData{Name: "x", BBox: []float64{0, 0, 1}}},
		{"inverted bbox", config.AOIData{Name: "x", BBox: []float64{10, 10, 0, 0}}},
		{"degenerate ring", config.AOIData{Name: "x", Rings: [][][2]float64{{{0, 0}, {1, 1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AOIsFromConfig([]config.AOIData{tt.aoi})
			assert.ErrorIs(t, err, geo.ErrEmptyAOI)
		})
	}
}

func TestFingerprintTracksFileChanges(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nc")
	b := filepath.Join(dir, "b.nc")
	require.NoError(t, os.WriteFile(a, []byte("one"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("two"), 0o600))

	before := fingerprint([]string{a, b})
	assert.Equal(t, before, fingerprint([]string{b, a}), "order does not matter")

	require.NoError(t, os.WriteFile(a, []byte("three"), 0o600))
	assert.NotEqual(t, before, fingerprint([]string{a, b}))
}

func TestRenameBands(t *testing.T) {
	g := raster.Grid{OriginY: 1000, Scale: 500, Width: 2, Height: 2}
	im, err := raster.NewImage(g, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		raster.Band{Name: "MYD_Snow", Data: []float64{1, 2, 3, 4}},
		raster.Band{Name: "MYD_Class", Data: []float64{0, 0, 0, 0}},
	)
	require.NoError(t, err)
	im = im.Set("sensor", "aqua")

	out, err := renameBands(im, []string{"NDSI_Snow_Cover", "NDSI_Snow_Cover_Class"})
	require.NoError(t, err)
	assert.Equal(t, []string{"NDSI_Snow_Cover", "NDSI_Snow_Cover_Class"}, out.BandNames())
	v, ok := out.Get("sensor")
	require.True(t, ok)
	assert.Equal(t, "aqua", v)
	assert.Equal(t, []string{"MYD_Snow", "MYD_Class"}, im.BandNames(), "input is unchanged")
}

func TestOptionsFromConfig(t *testing.T) {
	c := config.Defaults()
	c.Analysis.Connectivity = 4
	c.Analysis.ErodePixels = 3
	c.Pipeline.Workers = 0

	opts := OptionsFromConfig(c)
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, raster.Connectivity(4), opts.SnowMask.Connectivity)
	assert.Equal(t, 3.0, opts.Edge.ErodePixels)
	assert.Equal(t, "NDSI_Snow_Cover", opts.Composite.SnowBand)
	assert.Equal(t, 250.0, opts.MinPatchHa)
}

func TestLoadInputsMissingFiles(t *testing.T) {
	c := config.Defaults()
	c.Sources.Primary.Paths = []string{filepath.Join(t.TempDir(), "absent.nc")}
	_, err := LoadInputs(c, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "primary snow cover")
}

func TestLoadInputsRejectsUnknownGateAspect(t *testing.T) {
	c := config.Defaults()
	c.Glaciers = &config.GlacierData{GateAspect: "uphill"}
	_, err := LoadInputs(c, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "gate-aspect")
}
