package source

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/snowline/internal/raster"
)

func attrs(t *testing.T, kv map[string]any) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	m, err := util.NewOrderedMap(keys, kv)
	require.NoError(t, err)
	return m
}

// writeSnowFile writes two daily 2x3 layers on a 500 m grid whose first
// pixel centre is (1250, 2750).
func writeSnowFile(t *testing.T, ys []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snow.nc")
	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	vars := []struct {
		name string
		v    api.Variable
	}{
		{"time", api.Variable{Values: []float64{18628, 18629}, Dimensions: []string{"time"}, Attributes: attrs(t, map[string]any{"units": "days since 1970-01-01"})}},
		{"y", api.Variable{Values: ys, Dimensions: []string{"y"}, Attributes: attrs(t, map[string]any{"units": "m"})}},
		{"x", api.Variable{Values: []float64{1250, 1750, 2250}, Dimensions: []string{"x"}, Attributes: attrs(t, map[string]any{"units": "m"})}},
		{"NDSI_Snow_Cover", api.Variable{
			Values: [][][]int16{
				{{100, 80, 255}, {0, 10, 20}},
				{{90, 70, 60}, {5, 255, 30}},
			},
			Dimensions: []string{"time", "y", "x"},
			Attributes: attrs(t, map[string]any{"_FillValue": int16(255)}),
		}},
		{"NDSI_Snow_Cover_Class", api.Variable{
			Values: [][][]int16{
				{{0, 0, 0}, {0, 0, 250}},
				{{0, 0, 0}, {0, 0, 0}},
			},
			Dimensions: []string{"time", "y", "x"},
			Attributes: attrs(t, map[string]any{"long_name": "quality"}),
		}},
	}
	for _, v := range vars {
		require.NoError(t, w.AddVar(v.name, v.v))
	}
	require.NoError(t, w.Close())
	return path
}

func TestReadNetCDF(t *testing.T) {
	path := writeSnowFile(t, []float64{2750, 2250})

	opts := DefaultNetCDFOptions()
	opts.CRS = "EPSG:32632"
	series, err := ReadNetCDF(path, opts)
	require.NoError(t, err)
	require.Len(t, series, 2)

	first := series[0]
	assert.Equal(t, raster.Grid{CRS: "EPSG:32632", OriginX: 1000, OriginY: 3000, Scale: 500, Width: 3, Height: 2}, first.Grid)
	assert.Equal(t, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC), series[1].Time)

	snow, err := first.Layer("NDSI_Snow_Cover")
	require.NoError(t, err)
	assert.Equal(t, 100.0, snow.Data[0])
	assert.True(t, math.IsNaN(snow.Data[2]), "fill value is masked")
	assert.Equal(t, 20.0, snow.Data[5])

	quality, err := first.Layer("NDSI_Snow_Cover_Class")
	require.NoError(t, err)
	assert.Equal(t, 250.0, quality.Data[5])
}

func TestReadNetCDFErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadNetCDF(filepath.Join(t.TempDir(), "absent.nc"), DefaultNetCDFOptions())
		assert.Error(t, err)
	})

	t.Run("y increasing", func(t *testing.T) {
		path := writeSnowFile(t, []float64{2250, 2750})
		_, err := ReadNetCDF(path, DefaultNetCDFOptions())
		assert.ErrorIs(t, err, ErrBadCoordinates)
	})

	t.Run("missing band", func(t *testing.T) {
		path := writeSnowFile(t, []float64{2750, 2250})
		opts := DefaultNetCDFOptions()
		opts.Bands = []string{"Snow_Albedo_Daily_Tile"}
		_, err := ReadNetCDF(path, opts)
		assert.Error(t, err)
	})
}
