package raster

import (
	"fmt"
	"math"
	"time"
)

// Layer is a single band bound to its grid. NaN marks masked pixels.
type Layer struct {
	Grid Grid
	Data []float64
}

// NewLayer returns a fully masked layer on g.
func NewLayer(g Grid) Layer {
	return Fill(g, math.NaN())
}

// Fill returns a layer on g with every pixel set to v.
func Fill(g Grid, v float64) Layer {
	data := make([]float64, g.Len())
	for i := range data {
		data[i] = v
	}
	return Layer{Grid: g, Data: data}
}

// At returns the value at (col, row), NaN outside the grid.
func (l Layer) At(col, row int) float64 {
	if !l.Grid.Contains(col, row) {
		return math.NaN()
	}
	return l.Data[l.Grid.Index(col, row)]
}

// Clone returns a deep copy of the layer.
func (l Layer) Clone() Layer {
	data := make([]float64, len(l.Data))
	copy(data, l.Data)
	return Layer{Grid: l.Grid, Data: data}
}

// Mask returns true for every unmasked pixel.
func (l Layer) Mask() []bool {
	m := make([]bool, len(l.Data))
	for i, v := range l.Data {
		m[i] = !math.IsNaN(v)
	}
	return m
}

// CountValid returns the number of unmasked pixels.
func (l Layer) CountValid() int {
	n := 0
	for _, v := range l.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Band is a named pixel array belonging to an Image.
type Band struct {
	Name string
	Data []float64
}

// Image is a multi-band raster sharing one grid. Images are treated as
// immutable; every operation that changes bands or metadata returns a copy.
type Image struct {
	Grid  Grid
	Time  time.Time
	Meta  map[string]any
	bands []Band
}

// NewImage builds an image, checking that every band covers the grid.
func NewImage(g Grid, t time.Time, bands ...Band) (*Image, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(bands))
	for _, b := range bands {
		if len(b.Data) != g.Len() {
			return nil, fmt.Errorf("band %q has %d pixels, grid has %d: %w", b.Name, len(b.Data), g.Len(), ErrGridMismatch)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("raster: duplicate band %q", b.Name)
		}
		seen[b.Name] = true
	}
	return &Image{Grid: g, Time: t, Meta: map[string]any{}, bands: bands}, nil
}

// FromLayer wraps a single layer as an image with one band.
func FromLayer(name string, l Layer, t time.Time) *Image {
	return &Image{Grid: l.Grid, Time: t, Meta: map[string]any{}, bands: []Band{{Name: name, Data: l.Data}}}
}

// BandNames lists the bands in insertion order.
func (im *Image) BandNames() []string {
	names := make([]string, len(im.bands))
	for i, b := range im.bands {
		names[i] = b.Name
	}
	return names
}

// Bands returns the image bands. The pixel slices are shared and must not
// be modified.
func (im *Image) Bands() []Band {
	out := make([]Band, len(im.bands))
	copy(out, im.bands)
	return out
}

// NumBands returns the number of bands.
func (im *Image) NumBands() int {
	return len(im.bands)
}

// ValidBandCount returns the number of bands holding at least one unmasked pixel.
func (im *Image) ValidBandCount() int {
	n := 0
	for _, b := range im.bands {
		for _, v := range b.Data {
			if !math.IsNaN(v) {
				n++
				break
			}
		}
	}
	return n
}

// Layer returns the named band as a layer.
func (im *Image) Layer(name string) (Layer, error) {
	for _, b := range im.bands {
		if b.Name == name {
			return Layer{Grid: im.Grid, Data: b.Data}, nil
		}
	}
	return Layer{}, fmt.Errorf("%w: %q", ErrNoSuchBand, name)
}

// AddBands returns a copy of the image with extra bands appended.
func (im *Image) AddBands(bands ...Band) (*Image, error) {
	all := make([]Band, 0, len(im.bands)+len(bands))
	all = append(all, im.bands...)
	all = append(all, bands...)
	out, err := NewImage(im.Grid, im.Time, all...)
	if err != nil {
		return nil, err
	}
	for k, v := range im.Meta {
		out.Meta[k] = v
	}
	return out, nil
}

// Set returns a copy of the image with a metadata key set.
func (im *Image) Set(key string, value any) *Image {
	meta := make(map[string]any, len(im.Meta)+1)
	for k, v := range im.Meta {
		meta[k] = v
	}
	meta[key] = value
	return &Image{Grid: im.Grid, Time: im.Time, Meta: meta, bands: im.bands}
}

// Get returns a metadata value.
func (im *Image) Get(key string) (any, bool) {
	v, ok := im.Meta[key]
	return v, ok
}
