package source

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/chrissnell/snowline/internal/raster"
)

// ErrBadHeader is returned for a malformed Esri ASCII grid header.
var ErrBadHeader = errors.New("source: malformed ASCII grid header")

// ReadASCIIGrid reads an Esri ASCII grid. Cells equal to NODATA_value are
// masked.
func ReadASCIIGrid(r io.Reader, crs string) (raster.Layer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return raster.Layer{}, fmt.Errorf("%w: %s has no value", ErrBadHeader, key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return raster.Layer{}, fmt.Errorf("%w: %s: %v", ErrBadHeader, key, err)
		}
		hdr[key] = v
	}

	g, err := asciiGrid(hdr, crs)
	if err != nil {
		return raster.Layer{}, err
	}
	nodata, hasNodata := hdr["nodata_value"]

	l := raster.NewLayer(g)
	n := 0
	put := func(s string) error {
		if n >= len(l.Data) {
			return fmt.Errorf("source: ASCII grid has more than %d cells", len(l.Data))
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("source: ASCII grid cell %d: %w", n, err)
		}
		if !hasNodata || v != nodata {
			l.Data[n] = v
		}
		n++
		return nil
	}
	if first != "" {
		if err := put(first); err != nil {
			return raster.Layer{}, err
		}
	}
	for sc.Scan() {
		if err := put(sc.Text()); err != nil {
			return raster.Layer{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return raster.Layer{}, fmt.Errorf("source: read ASCII grid: %w", err)
	}
	if n != len(l.Data) {
		return raster.Layer{}, fmt.Errorf("source: ASCII grid has %d cells, header says %d", n, len(l.Data))
	}
	return l, nil
}

func asciiGrid(hdr map[string]float64, crs string) (raster.Grid, error) {
	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := hdr[k]; !ok {
			return raster.Grid{}, fmt.Errorf("%w: missing %s", ErrBadHeader, k)
		}
	}
	cs := hdr["cellsize"]
	g := raster.Grid{CRS: crs, Scale: cs, Width: int(hdr["ncols"]), Height: int(hdr["nrows"])}

	if x, ok := hdr["xllcorner"]; ok {
		g.OriginX = x
	} else if xc, ok := hdr["xllcenter"]; ok {
		g.OriginX = xc - cs/2
	} else {
		return raster.Grid{}, fmt.Errorf("%w: missing xllcorner", ErrBadHeader)
	}
	if y, ok := hdr["yllcorner"]; ok {
		g.OriginY = y + float64(g.Height)*cs
	} else if yc, ok := hdr["yllcenter"]; ok {
		g.OriginY = yc - cs/2 + float64(g.Height)*cs
	} else {
		return raster.Grid{}, fmt.Errorf("%w: missing yllcorner", ErrBadHeader)
	}
	return g, g.Validate()
}

// TIFFOptions georeferences a plain TIFF tile. Elevation = Gain*v + Offset.
type TIFFOptions struct {
	CRS     string
	OriginX float64
	OriginY float64
	Scale   float64
	Gain    float64
	Offset  float64
	// NoData is the raw pixel value treated as masked.
	NoData *float64
}

// ReadTIFFTile decodes a single-band TIFF elevation tile.
func ReadTIFFTile(r io.Reader, opts TIFFOptions) (raster.Layer, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return raster.Layer{}, fmt.Errorf("source: decode tiff: %w", err)
	}
	b := img.Bounds()
	g := raster.Grid{
		CRS:     opts.CRS,
		OriginX: opts.OriginX,
		OriginY: opts.OriginY,
		Scale:   opts.Scale,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}
	if err := g.Validate(); err != nil {
		return raster.Layer{}, err
	}
	gain := opts.Gain
	if gain == 0 {
		gain = 1
	}

	l := raster.NewLayer(g)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := pixel(img, b.Min.X+col, b.Min.Y+row)
			if opts.NoData != nil && v == *opts.NoData {
				continue
			}
			l.Data[g.Index(col, row)] = gain*v + opts.Offset
		}
	}
	return l, nil
}

func pixel(img image.Image, x, y int) float64 {
	switch im := img.(type) {
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y)
	}
	r, _, _, _ := img.At(x, y).RGBA()
	return float64(r)
}

// MosaicDEM mosaics tiles onto the grid covering all of them at scale.
func MosaicDEM(tiles []raster.Layer, scale float64) (raster.Layer, error) {
	if len(tiles) == 0 {
		return raster.Layer{}, errors.New("source: no DEM tiles")
	}
	return raster.Mosaic(tiles, raster.Extent(tiles, scale))
}

// TileSpec locates one DEM tile on disk.
type TileSpec struct {
	Path string
	// TIFF georeferencing; ignored for .asc files.
	TIFF TIFFOptions
}

// LoadDEM reads and mosaics DEM tiles. Files ending in .asc are read as Esri
// ASCII grids, everything else as TIFF.
func LoadDEM(tiles []TileSpec, crs string, scale float64) (raster.Layer, error) {
	layers := make([]raster.Layer, 0, len(tiles))
	for _, t := range tiles {
		l, err := loadTile(t, crs)
		if err != nil {
			return raster.Layer{}, err
		}
		if math.IsNaN(scale) || scale <= 0 {
			scale = l.Grid.Scale
		}
		layers = append(layers, l)
	}
	return MosaicDEM(layers, scale)
}

func loadTile(t TileSpec, crs string) (raster.Layer, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return raster.Layer{}, fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(t.Path), ".asc") {
		l, err := ReadASCIIGrid(f, crs)
		if err != nil {
			return raster.Layer{}, fmt.Errorf("%s: %w", t.Path, err)
		}
		return l, nil
	}
	opts := t.TIFF
	if opts.CRS == "" {
		opts.CRS = crs
	}
	l, err := ReadTIFFTile(f, opts)
	if err != nil {
		return raster.Layer{}, fmt.Errorf("%s: %w", t.Path, err)
	}
	return l, nil
}
