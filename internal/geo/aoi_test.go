package geo

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/snowline/internal/raster"
)

func TestAOIMask(t *testing.T) {
	aoi, err := NewAOI("langtang", [][][2]float64{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {1, 2}, {2, 2}, {2, 1}, {1, 1}},
	})
	require.NoError(t, err)

	g := raster.Grid{CRS: "x", OriginX: 0, OriginY: 5, Scale: 1, Width: 5, Height: 5}
	mask := aoi.Mask(g)

	tests := []struct {
		col, row int
		want     bool
	}{
		{0, 1, true},
		{3, 4, true},
		{4, 4, false},
		{0, 0, false},
		{1, 3, false}, // centre (1.5, 1.5) sits in the hole
		{2, 3, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mask[g.Index(tt.col, tt.row)], "pixel (%d,%d)", tt.col, tt.row)
	}
}

func TestAOIGridSnapsToScale(t *testing.T) {
	aoi := BoxAOI("box", &geom.Bounds{Min: geom.Point{X: 120, Y: 980}, Max: geom.Point{X: 1480, Y: 2020}})
	g := aoi.Grid("EPSG:32645", 500)
	assert.Equal(t, 0.0, g.OriginX)
	assert.Equal(t, 2500.0, g.OriginY)
	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 4, g.Height)
	assert.True(t, aoi.Contains(500, 1500))
	assert.False(t, aoi.Contains(100, 1500))
}

func TestNewAOIRejectsEmpty(t *testing.T) {
	_, err := NewAOI("none", nil)
	assert.ErrorIs(t, err, ErrEmptyAOI)
}
