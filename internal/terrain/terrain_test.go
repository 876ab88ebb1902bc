package terrain

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/snowline/internal/raster"
)

func grid(w, h int, scale float64) raster.Grid {
	return raster.Grid{CRS: "EPSG:32645", OriginX: 0, OriginY: float64(h) * scale, Scale: scale, Width: w, Height: h}
}

func TestQuadrantPartition(t *testing.T) {
	tests := []struct {
		deg  float64
		want Aspect
	}{
		{0, North},
		{45, North},
		{45.0001, East},
		{90, East},
		{135, East},
		{135.0001, South},
		{225, South},
		{225.0001, West},
		{315, West},
		{315.0001, North},
		{359.9, North},
	}
	for _, tt := range tests {
		got, ok := Quadrant(tt.deg)
		if !ok || got != tt.want {
			t.Errorf("Quadrant(%v) = %v, %v; want %v", tt.deg, got, ok, tt.want)
		}
	}
	if _, ok := Quadrant(math.NaN()); ok {
		t.Error("NaN aspect must be unclassified")
	}
}

func TestAspectDegrees(t *testing.T) {
	g := grid(5, 5, 30)
	tests := []struct {
		name string
		z    func(col, row int) float64
		want float64
	}{
		{"east facing", func(col, row int) float64 { return 1000 - 10*float64(col) }, 90},
		{"north facing", func(col, row int) float64 { return 1000 + 10*float64(row) }, 0},
		{"south facing", func(col, row int) float64 { return 1000 - 10*float64(row) }, 180},
		{"west facing", func(col, row int) float64 { return 1000 + 10*float64(col) }, 270},
		{"north east facing", func(col, row int) float64 { return 1000 - 10*float64(col) + 10*float64(row) }, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dem := raster.NewLayer(g)
			for row := 0; row < g.Height; row++ {
				for col := 0; col < g.Width; col++ {
					dem.Data[g.Index(col, row)] = tt.z(col, row)
				}
			}
			deg := AspectDegrees(dem)
			for i, v := range deg.Data {
				if math.Abs(v-tt.want) > 1e-9 {
					t.Fatalf("pixel %d: aspect %v, want %v", i, v, tt.want)
				}
			}
		})
	}

	flat := AspectDegrees(raster.Fill(g, 1200))
	assert.Zero(t, flat.CountValid())
}

func TestClassifyMajority(t *testing.T) {
	fine := grid(6, 2, 30)
	nan := math.NaN()
	deg := raster.Layer{Grid: fine, Data: []float64{
		90, 90, 0, 0, 200, nan,
		90, 10, 100, 100, 200, 200,
	}}
	valid := []bool{
		true, true, true, true, true, false,
		true, true, true, true, true, true,
	}
	c, err := classifyDegrees(raster.NewLocal(0), deg, valid, fine.AtScale(60))
	require.NoError(t, err)

	// 3 of 4 east; 2 of 4 north is not a strict majority; 3 of 3 valid south
	assert.Equal(t, []float64{float64(East), float64(Mixed), float64(South)}, c.Coded.Data)
	assert.Equal(t, [NumAspects]int{1, 0, 1, 0, 1}, c.Counts(nil))

	mixed := c.Indicator(Mixed)
	assert.Equal(t, []float64{0, 1, 0}, mixed.Data)
}

func TestClassifyFlatCellsAreMixed(t *testing.T) {
	fine := grid(2, 2, 30)
	nan := math.NaN()
	deg := raster.Layer{Grid: fine, Data: []float64{90, nan, nan, nan}}
	c, err := classifyDegrees(raster.NewLocal(0), deg, []bool{true, true, true, true}, fine.AtScale(60))
	require.NoError(t, err)
	assert.Equal(t, []float64{float64(Mixed)}, c.Coded.Data)
}

func TestPrepare(t *testing.T) {
	fine := grid(4, 4, 250)
	dem := raster.NewLayer(fine)
	for row := 0; row < fine.Height; row++ {
		for col := 0; col < fine.Width; col++ {
			dem.Data[fine.Index(col, row)] = 3000 + 100*float64(row)
		}
	}
	target := fine.AtScale(500)
	aoi := []bool{true, true, true, false}

	tr, err := Prepare(context.Background(), raster.NewLocal(0), dem, target, aoi)
	require.NoError(t, err)
	assert.InDelta(t, 3050, tr.MinElevation, 1e-9)
	assert.InDelta(t, 3250, tr.MaxElevation, 1e-9)
	assert.Equal(t, 3, tr.CellCount)
	for _, v := range tr.Aspect.Coded.Data {
		assert.Equal(t, float64(North), v)
	}
	var cells [NumAspects]int
	cells[North.Index()] = 3
	assert.Equal(t, cells, tr.AspectCells)

	_, err = Prepare(context.Background(), raster.NewLocal(0), dem, target, []bool{true})
	assert.ErrorIs(t, err, raster.ErrGridMismatch)
}

func TestParseAspect(t *testing.T) {
	for _, a := range Aspects {
		got, err := ParseAspect(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := ParseAspect("up")
	assert.Error(t, err)
}
