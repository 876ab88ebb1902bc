package raster

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(w, h int, scale float64) Grid {
	return Grid{CRS: "EPSG:32645", OriginX: 0, OriginY: float64(h) * scale, Scale: scale, Width: w, Height: h}
}

func layerOf(g Grid, vals ...float64) Layer {
	if len(vals) != g.Len() {
		panic("layerOf: wrong pixel count")
	}
	return Layer{Grid: g, Data: vals}
}

var nan = math.NaN()

func TestGridAtScale(t *testing.T) {
	g := testGrid(5, 3, 100)
	c := g.AtScale(200)
	assert.Equal(t, 3, c.Width)
	assert.Equal(t, 2, c.Height)
	assert.Equal(t, g.OriginY, c.OriginY)

	col, row, ok := g.Cell(g.Center(4, 2))
	require.True(t, ok)
	assert.Equal(t, 4, col)
	assert.Equal(t, 2, row)

	_, _, ok = g.Cell(-1, 10)
	assert.False(t, ok)
}

func TestNewImageRejectsMismatchedBands(t *testing.T) {
	g := testGrid(2, 2, 1)
	_, err := NewImage(g, time.Time{}, Band{Name: "a", Data: make([]float64, 3)})
	assert.ErrorIs(t, err, ErrGridMismatch)

	im, err := NewImage(g, time.Time{}, Band{Name: "a", Data: []float64{1, nan, 3, 4}}, Band{Name: "b", Data: []float64{nan, nan, nan, nan}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, im.BandNames())
	assert.Equal(t, 1, im.ValidBandCount())

	tagged := im.Set("k", 1)
	_, ok := im.Get("k")
	assert.False(t, ok, "Set must not modify the receiver")
	v, ok := tagged.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, err = im.Layer("missing")
	assert.ErrorIs(t, err, ErrNoSuchBand)
}

func TestSeriesReduce(t *testing.T) {
	g := testGrid(2, 1, 1)
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := FromLayer("v", layerOf(g, 1, nan), day)
	b := FromLayer("v", layerOf(g, 3, nan), day.AddDate(0, 0, 1))
	c := FromLayer("v", layerOf(g, nan, 5), day.AddDate(0, 0, 2))
	s := Series{c, a, b}

	assert.Len(t, s.FilterDate(day, day.AddDate(0, 0, 2)), 2)

	mean, err := s.Reduce("v", Mean)
	require.NoError(t, err)
	assert.InDelta(t, 2, mean.Data[0], 1e-12)
	assert.InDelta(t, 5, mean.Data[1], 1e-12)

	first, err := s.Sorted().Reduce("v", FirstNonNull)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.Data[0])

	_, err = Series{}.Reduce("v", Mean)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestResample(t *testing.T) {
	fine := testGrid(4, 2, 1)
	src := layerOf(fine,
		1, 1, 2, nan,
		1, 3, 2, 2,
	)
	coarse := fine.AtScale(2)

	tests := []struct {
		name string
		r    Reducer
		want []float64
	}{
		{"mean", Mean, []float64{1.5, 2}},
		{"mode", Mode, []float64{1, 2}},
		{"max", Max, []float64{3, 2}},
		{"min", Min, []float64{1, 2}},
		{"count", Count, []float64{4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resample(src, coarse, tt.r)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, out.Data, 1e-12)
		})
	}

	back, err := Resample(layerOf(coarse, 7, 9), fine, Mean)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 9, 9, 7, 7, 9, 9}, back.Data)
}

func TestModeTieBreaksLow(t *testing.T) {
	assert.Equal(t, 0.0, Mode.reduce([]float64{1, 0, 1, 0, nan}))
	assert.True(t, math.IsNaN(Mode.reduce([]float64{nan})))
}

func TestLabelAndConnectedPixelCount(t *testing.T) {
	g := testGrid(5, 5, 1)
	src := layerOf(g,
		1, 1, 1, 1, 1,
		1, 0, 0, 1, 1,
		1, 1, 1, 1, 1,
		1, 1, 1, 0, 1,
		1, 1, 1, 1, nan,
	)
	comps := Label(src, FourConnected)
	hole := comps.List[comps.Labels[g.Index(1, 1)]]
	assert.Equal(t, 2, hole.Size)
	assert.False(t, hole.Open)

	touching := comps.List[comps.Labels[g.Index(3, 3)]]
	assert.Equal(t, 1, touching.Size)
	assert.False(t, touching.Open, "4-connected neighbours of (3,3) are all valid snow")

	snow := comps.List[comps.Labels[0]]
	assert.True(t, snow.Open)
	assert.Equal(t, 21, snow.Size)

	counts := ConnectedPixelCount(src, EightConnected, 10)
	assert.Equal(t, 10.0, counts.Data[0])
	assert.Equal(t, 2.0, counts.Data[g.Index(2, 1)])
	assert.True(t, math.IsNaN(counts.Data[g.Index(4, 4)]))
}

func TestFocalMinMasksBorder(t *testing.T) {
	g := testGrid(5, 5, 10)
	out := FocalMin(Fill(g, 1), 20)
	assert.Equal(t, 1, out.CountValid())
	assert.Equal(t, 1.0, out.Data[g.Index(2, 2)])

	mean := FocalMean(layerOf(testGrid(3, 1, 1), 1, nan, 3), 1)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, mean.Data, 1e-12)
}

func TestCannyStepEdgeOnLowSide(t *testing.T) {
	g := testGrid(10, 6, 1)
	src := NewLayer(g)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := 0.0
			if col >= 5 {
				v = 1
			}
			src.Data[g.Index(col, row)] = v
		}
	}
	edges := CannyEdges(src, 0.7, 0.7)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			want := 0.0
			if col == 4 {
				want = 1
			}
			assert.Equal(t, want, edges.Data[g.Index(col, row)], "col %d row %d", col, row)
		}
	}

	flat := CannyEdges(Fill(g, 1), 0.7, 0.7)
	assert.Zero(t, Sum.reduce(flat.Data))
}

func TestReduceRegionTilesAgree(t *testing.T) {
	g := testGrid(7, 9, 1)
	src := NewLayer(g)
	region := make([]bool, g.Len())
	for i := range src.Data {
		src.Data[i] = float64(i % 11)
		region[i] = i%3 != 0
	}
	src.Data[5] = nan

	whole, err := ReduceRegion(context.Background(), src, region, 1000, ReduceOptions{KeepValues: true})
	require.NoError(t, err)
	tiled, err := ReduceRegion(context.Background(), src, region, 4, ReduceOptions{TileScale: 2, KeepValues: true})
	require.NoError(t, err)

	assert.Equal(t, whole.Count, tiled.Count)
	assert.InDelta(t, whole.Sum, tiled.Sum, 1e-9)
	assert.Equal(t, whole.Min, tiled.Min)
	assert.Equal(t, whole.Max, tiled.Max)
	assert.Equal(t, whole.Median(), tiled.Median())
	assert.Equal(t, whole.Percentile(10), tiled.Percentile(10))
}

func TestStatsOrderStatistics(t *testing.T) {
	s := StatsOf([]float64{4, 1, 3, 2, nan})
	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Median(), 1e-12)
	assert.InDelta(t, 2.5, s.Mean(), 1e-12)
	assert.Equal(t, 1.0, s.Percentile(10))

	empty := StatsOf(nil)
	assert.True(t, math.IsNaN(empty.Median()))
	assert.True(t, math.IsNaN(empty.Minimum()))
}

func TestStratifiedSampleDeterministic(t *testing.T) {
	g := testGrid(20, 20, 1)
	class := NewLayer(g)
	elev := NewLayer(g)
	for i := range class.Data {
		class.Data[i] = float64(1 + i%3)
		elev.Data[i] = float64(i)
	}
	elev.Data[0] = nan

	opts := SampleOptions{NumPoints: 50, Seed: 123, DropNulls: true}
	a, err := StratifiedSample(class, map[string]Layer{"elevation": elev}, opts)
	require.NoError(t, err)
	b, err := StratifiedSample(class, map[string]Layer{"elevation": elev}, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 150)

	perClass := map[int]int{}
	for _, s := range a {
		perClass[s.Class]++
		assert.False(t, math.IsNaN(s.Values["elevation"]))
	}
	assert.Equal(t, map[int]int{1: 50, 2: 50, 3: 50}, perClass)

	small, err := StratifiedSample(class, nil, SampleOptions{NumPoints: 1000, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, small, g.Len())
}

func TestMosaicFirstTileWins(t *testing.T) {
	left := Layer{Grid: Grid{CRS: "x", OriginX: 0, OriginY: 2, Scale: 1, Width: 2, Height: 2}, Data: []float64{1, 1, 1, nan}}
	right := Layer{Grid: Grid{CRS: "x", OriginX: 1, OriginY: 2, Scale: 1, Width: 2, Height: 2}, Data: []float64{2, 2, 2, 2}}
	target := Extent([]Layer{left, right}, 1)
	assert.Equal(t, 3, target.Width)

	out, err := Mosaic([]Layer{left, right}, target)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 1, 2, 2}, out.Data)
}
