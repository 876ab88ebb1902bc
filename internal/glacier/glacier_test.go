package glacier

import (
	"context"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/elevation"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/terrain"
)

var testGrid = raster.Grid{CRS: "EPSG:32645", OriginX: 0, OriginY: 4000, Scale: 1000, Width: 4, Height: 4}

func box(id string, x0, y0, x1, y1 float64) *Outline {
	return &Outline{
		ID: id,
		Polygonal: geom.Polygon{{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
		}},
	}
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex([]*Outline{
		box("west", 0, 0, 2000, 4000),
		box("far", 50000, 50000, 51000, 51000),
	})
	assert.Equal(t, 2, idx.Len())

	found := idx.Search(testGrid.Bounds())
	require.Len(t, found, 1)
	assert.Equal(t, "west", found[0].ID)

	assert.Empty(t, idx.Search(&geom.Bounds{Min: geom.Point{X: 10000, Y: 10000}, Max: geom.Point{X: 20000, Y: 20000}}))
}

func TestRasterize(t *testing.T) {
	idx := NewIndex([]*Outline{box("west", 0, 0, 2000, 4000)})
	l := idx.Rasterize(testGrid)
	assert.Equal(t, 8, l.CountValid())
	for row := 0; row < testGrid.Height; row++ {
		for col := 0; col < testGrid.Width; col++ {
			v := l.Data[testGrid.Index(col, row)]
			if col < 2 {
				assert.Equal(t, 1.0, v, "col %d row %d", col, row)
			} else {
				assert.True(t, math.IsNaN(v), "col %d row %d should be masked", col, row)
			}
		}
	}
}

// metricsInput puts a glacier on the western half of testGrid, North-facing
// in column 0 and South-facing in column 1, with snow on rows 0-2.
func metricsInput(t *testing.T) Input {
	t.Helper()
	g := testGrid
	elev := raster.NewLayer(g)
	snow := raster.NewLayer(g)
	aspect := raster.NewLayer(g)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			i := g.Index(col, row)
			elev.Data[i] = 5000 - 200*float64(row)
			snow.Data[i] = 0
			if row < 3 {
				snow.Data[i] = 1
			}
			aspect.Data[i] = float64(terrain.North)
			if col%2 == 1 {
				aspect.Data[i] = float64(terrain.South)
			}
		}
	}
	aoi := make([]bool, g.Len())
	for i := range aoi {
		aoi[i] = true
	}
	return Input{
		Glacier:   NewIndex([]*Outline{box("west", 0, 0, 2000, 4000)}).Rasterize(g),
		Snow:      snow,
		Elevation: elev,
		Aspect:    &terrain.Classification{Grid: g, Coded: aspect},
		AOI:       aoi,
	}
}

func TestComputeMetrics(t *testing.T) {
	in := metricsInput(t)
	in.Thresholds.Set(terrain.North, elevation.Defined(4700, elevation.FromMedian))
	in.Thresholds.Set(terrain.South, elevation.Defined(4500, elevation.FromMedian))

	m, err := NewCalculator(raster.NewLocal(0), zap.NewNop().Sugar()).Compute(context.Background(), in)
	require.NoError(t, err)

	assert.InDelta(t, 8, m.GlacierAreaKm2, 1e-9)
	assert.InDelta(t, 6, m.GlacierSnowAreaKm2, 1e-9)
	assert.InDelta(t, 5, m.SnowAreaAboveKm2, 1e-9)
	assert.InDelta(t, 1, m.SnowAreaBelowKm2, 1e-9)
	assert.InDelta(t, m.GlacierSnowAreaKm2, m.SnowAreaAboveKm2+m.SnowAreaBelowKm2, 1e-9)
	assert.Zero(t, m.ExcludedPixels)

	require.True(t, m.SnowFraction.Valid)
	assert.InDelta(t, 0.75, m.SnowFraction.Float64, 1e-12)
	require.True(t, m.BelowFraction.Valid)
	assert.InDelta(t, 1.0/3, m.BelowFraction.Float64, 1e-12)
	require.True(t, m.AreaBelowKm2.Valid)
	assert.InDelta(t, 3, m.AreaBelowKm2.Float64, 1e-9)
}

func TestComputeWithoutNorthThreshold(t *testing.T) {
	in := metricsInput(t)
	in.Thresholds.Set(terrain.South, elevation.Defined(4500, elevation.FromMedian))

	m, err := NewCalculator(raster.NewLocal(0), zap.NewNop().Sugar()).Compute(context.Background(), in)
	require.NoError(t, err)

	assert.False(t, m.BelowFraction.Valid)
	assert.False(t, m.AreaBelowKm2.Valid)
	assert.True(t, m.SnowFraction.Valid)
	assert.Equal(t, 4, m.ExcludedPixels)
	assert.InDelta(t, 3, m.SnowAreaAboveKm2, 1e-9)
	assert.Zero(t, m.SnowAreaBelowKm2)
}

func TestComputeRejectsMismatchedGrids(t *testing.T) {
	in := metricsInput(t)
	in.Snow = raster.NewLayer(testGrid.AtScale(500))
	_, err := NewCalculator(raster.NewLocal(0), zap.NewNop().Sugar()).Compute(context.Background(), in)
	assert.ErrorIs(t, err, raster.ErrGridMismatch)
}

func TestComputeSkipsTerrainGaps(t *testing.T) {
	in := metricsInput(t)
	in.Thresholds.Fill(elevation.Defined(4700, elevation.FromMedian))
	// Snow-covered glacier pixels without elevation or aspect.
	in.Elevation.Data[testGrid.Index(0, 0)] = math.NaN()
	in.Aspect.Coded.Data[testGrid.Index(1, 1)] = math.NaN()

	m, err := NewCalculator(raster.NewLocal(0), zap.NewNop().Sugar()).Compute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, m.TerrainGapPixels)
	assert.Zero(t, m.ExcludedPixels)
	assert.InDelta(t, 4, m.GlacierSnowAreaKm2, 1e-9)
	assert.InDelta(t, m.GlacierSnowAreaKm2, m.SnowAreaAboveKm2+m.SnowAreaBelowKm2, 1e-9)
	assert.InDelta(t, 8, m.GlacierAreaKm2, 1e-9)
}

func TestComputeGateAspect(t *testing.T) {
	in := metricsInput(t)
	in.Thresholds.Set(terrain.South, elevation.Defined(4500, elevation.FromMedian))
	in.Gate = terrain.South

	m, err := NewCalculator(raster.NewLocal(0), zap.NewNop().Sugar()).Compute(context.Background(), in)
	require.NoError(t, err)

	require.True(t, m.BelowFraction.Valid)
	require.True(t, m.AreaBelowKm2.Valid)
	assert.InDelta(t, 1, m.AreaBelowKm2.Float64, 1e-9)
	assert.Equal(t, 4, m.ExcludedPixels)
}
