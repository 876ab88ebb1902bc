// Package source loads rasters from disk: daily snow cover stacks from
// NetCDF and DEM tiles from Esri ASCII grids or TIFF.
package source

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/chrissnell/snowline/internal/raster"
)

var (
	// ErrUnsupportedType is returned for variables of a type that cannot be
	// read as a raster.
	ErrUnsupportedType = errors.New("source: unsupported variable type")
	// ErrBadCoordinates is returned when a coordinate axis is not regular.
	ErrBadCoordinates = errors.New("source: irregular coordinate axis")
)

// NetCDFOptions describes the layout of a daily snow cover file.
type NetCDFOptions struct {
	// Bands are the (time, y, x) variables read into image bands.
	Bands   []string
	TimeVar string
	XVar    string
	YVar    string
	// Epoch and Step convert time values: t = Epoch + value*Step.
	Epoch time.Time
	Step  time.Duration
	CRS   string
}

// DefaultNetCDFOptions matches a CF file of daily MOD10A1 layers.
func DefaultNetCDFOptions() NetCDFOptions {
	return NetCDFOptions{
		Bands:   []string{"NDSI_Snow_Cover", "NDSI_Snow_Cover_Class"},
		TimeVar: "time",
		XVar:    "x",
		YVar:    "y",
		Epoch:   time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:    24 * time.Hour,
	}
}

// ReadNetCDF reads one image per time step. Values equal to a variable's
// _FillValue are masked.
func ReadNetCDF(path string, opts NetCDFOptions) (raster.Series, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer nc.Close()

	g, err := netcdfGrid(nc, opts)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	times, err := axis(nc, opts.TimeVar)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}

	getters := make([]api.VarGetter, len(opts.Bands))
	fills := make([]float64, len(opts.Bands))
	for i, name := range opts.Bands {
		if getters[i], err = nc.GetVarGetter(name); err != nil {
			return nil, fmt.Errorf("source: %s: variable %s: %w", path, name, err)
		}
		fills[i] = fillValue(getters[i])
	}

	out := make(raster.Series, 0, len(times))
	for k, tv := range times {
		t := opts.Epoch.Add(time.Duration(tv * float64(opts.Step)))
		bands := make([]raster.Band, len(opts.Bands))
		for i, vg := range getters {
			v, err := vg.GetSlice(int64(k), int64(k+1))
			if err != nil {
				return nil, fmt.Errorf("source: %s: %s[%d]: %w", path, opts.Bands[i], k, err)
			}
			data, err := plane(v, fills[i])
			if err != nil {
				return nil, fmt.Errorf("source: %s: %s: %w", path, opts.Bands[i], err)
			}
			if len(data) != g.Len() {
				return nil, fmt.Errorf("source: %s: %s has %d values for grid %s: %w",
					path, opts.Bands[i], len(data), g, raster.ErrGridMismatch)
			}
			bands[i] = raster.Band{Name: opts.Bands[i], Data: data}
		}
		im, err := raster.NewImage(g, t, bands...)
		if err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out.Sorted(), nil
}

// netcdfGrid derives the grid from pixel-centre coordinate axes.
func netcdfGrid(nc api.Group, opts NetCDFOptions) (raster.Grid, error) {
	xs, err := axis(nc, opts.XVar)
	if err != nil {
		return raster.Grid{}, err
	}
	ys, err := axis(nc, opts.YVar)
	if err != nil {
		return raster.Grid{}, err
	}
	if len(xs) < 2 || len(ys) < 2 {
		return raster.Grid{}, fmt.Errorf("%w: need two values per axis", ErrBadCoordinates)
	}
	scale := xs[1] - xs[0]
	if scale <= 0 || math.Abs(math.Abs(ys[1]-ys[0])-scale) > 1e-6*scale {
		return raster.Grid{}, fmt.Errorf("%w: x step %g, y step %g", ErrBadCoordinates, scale, ys[1]-ys[0])
	}
	if ys[1] > ys[0] {
		return raster.Grid{}, fmt.Errorf("%w: y must decrease from the first row", ErrBadCoordinates)
	}
	g := raster.Grid{
		CRS:     opts.CRS,
		OriginX: xs[0] - scale/2,
		OriginY: ys[0] + scale/2,
		Scale:   scale,
		Width:   len(xs),
		Height:  len(ys),
	}
	return g, g.Validate()
}

func axis(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []float32:
		return convert(s), nil
	case []int32:
		return convert(s), nil
	case []int64:
		return convert(s), nil
	case []int16:
		return convert(s), nil
	}
	return nil, fmt.Errorf("%w: %s is %T", ErrUnsupportedType, name, v)
}

func fillValue(vg api.VarGetter) float64 {
	v, ok := vg.Attributes().Get("_FillValue")
	if !ok {
		return math.NaN()
	}
	switch f := v.(type) {
	case int8:
		return float64(f)
	case uint8:
		return float64(f)
	case int16:
		return float64(f)
	case uint16:
		return float64(f)
	case int32:
		return float64(f)
	case float32:
		return float64(f)
	case float64:
		return f
	}
	return math.NaN()
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~float32 | ~float64
}

func convert[T number](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

// plane flattens the single time step of a (1, y, x) slice.
func plane(v any, fill float64) ([]float64, error) {
	switch s := v.(type) {
	case [][][]int8:
		return flatten(s[0], fill), nil
	case [][][]uint8:
		return flatten(s[0], fill), nil
	case [][][]int16:
		return flatten(s[0], fill), nil
	case [][][]uint16:
		return flatten(s[0], fill), nil
	case [][][]int32:
		return flatten(s[0], fill), nil
	case [][][]float32:
		return flatten(s[0], fill), nil
	case [][][]float64:
		return flatten(s[0], fill), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func flatten[T number](rows [][]T, fill float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		for _, v := range row {
			f := float64(v)
			if f == fill || math.IsNaN(f) {
				f = math.NaN()
			}
			out = append(out, f)
		}
	}
	return out
}
