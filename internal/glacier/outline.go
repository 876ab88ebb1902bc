// Package glacier loads glacier outlines and computes snow metrics over
// glacierised pixels.
package glacier

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"

	"github.com/chrissnell/snowline/internal/raster"
)

// ErrNoOutlines is returned when a shapefile holds no polygon.
var ErrNoOutlines = errors.New("glacier: no outlines")

// Outline is one glacier polygon.
type Outline struct {
	ID   string
	Name string
	// AreaKm2 is the inventory area attribute.
	AreaKm2 float64
	geom.Polygonal
}

// Fields names the shapefile attributes read into an Outline.
type Fields struct {
	ID   string
	Name string
	Area string
}

// DefaultFields matches the GLIMS outline attributes.
func DefaultFields() Fields {
	return Fields{ID: "glac_id", Name: "glac_name", Area: "area"}
}

// LoadShapefile reads polygon outlines from a shapefile. Non-polygon shapes
// are rejected. Coordinates must already be in the analysis CRS.
func LoadShapefile(path string, f Fields) ([]*Outline, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("glacier: open %s: %w", path, err)
	}
	defer dec.Close()

	var out []*Outline
	for {
		g, fields, more := dec.DecodeRowFields(f.ID, f.Name, f.Area)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("glacier: %s row %d: outline is %T, want a polygon", path, len(out), g)
		}
		o := &Outline{
			ID:        strings.TrimSpace(fields[f.ID]),
			Name:      strings.TrimSpace(fields[f.Name]),
			Polygonal: poly,
		}
		if s := strings.TrimSpace(fields[f.Area]); s != "" {
			if o.AreaKm2, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("glacier: %s outline %q area %q: %w", path, o.ID, s, err)
			}
		}
		out = append(out, o)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("glacier: read %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoOutlines, path)
	}
	return out, nil
}

// Index is a spatial index over outlines.
type Index struct {
	tree *rtree.Rtree
	n    int
}

// NewIndex indexes outlines.
func NewIndex(outlines []*Outline) *Index {
	idx := &Index{tree: rtree.NewTree(25, 50), n: len(outlines)}
	for _, o := range outlines {
		idx.tree.Insert(o)
	}
	return idx
}

// Len returns the number of indexed outlines.
func (idx *Index) Len() int {
	return idx.n
}

// Search returns the outlines whose extent overlaps b.
func (idx *Index) Search(b *geom.Bounds) []*Outline {
	found := idx.tree.SearchIntersect(b)
	out := make([]*Outline, len(found))
	for i, s := range found {
		out[i] = s.(*Outline)
	}
	return out
}

// Rasterize returns a layer on g that is 1 where a pixel centre falls inside
// any outline and masked elsewhere.
func (idx *Index) Rasterize(g raster.Grid) raster.Layer {
	out := raster.NewLayer(g)
	for _, o := range idx.Search(g.Bounds()) {
		b := o.Bounds()
		c0 := max(int(math.Floor((b.Min.X-g.OriginX)/g.Scale)), 0)
		c1 := min(int(math.Ceil((b.Max.X-g.OriginX)/g.Scale)), g.Width-1)
		r0 := max(int(math.Floor((g.OriginY-b.Max.Y)/g.Scale)), 0)
		r1 := min(int(math.Ceil((g.OriginY-b.Min.Y)/g.Scale)), g.Height-1)
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				i := g.Index(col, row)
				if out.Data[i] == 1 {
					continue
				}
				x, y := g.Center(col, row)
				if (geom.Point{X: x, Y: y}).Within(o.Polygonal) != geom.Outside {
					out.Data[i] = 1
				}
			}
		}
	}
	return out
}
