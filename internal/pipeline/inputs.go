package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/snowline/internal/geo"
	"github.com/chrissnell/snowline/internal/glacier"
	"github.com/chrissnell/snowline/internal/raster"
	"github.com/chrissnell/snowline/internal/source"
	"github.com/chrissnell/snowline/internal/terrain"
	"github.com/chrissnell/snowline/pkg/config"
)

// Inputs are the read-only rasters and outlines shared by every unit of a
// run.
type Inputs struct {
	Primary   raster.Series
	Secondary raster.Series
	DEM       raster.Layer
	// Glaciers is nil when no outlines are configured.
	Glaciers *glacier.Index
	// GlacierGate is the aspect gating below-snowline glacier metrics.
	GlacierGate terrain.Aspect
	// Fingerprint identifies the source files in composite cache keys.
	Fingerprint string
}

// LoadInputs reads the snow cover stacks, the DEM mosaic and the glacier
// outlines named by c.
func LoadInputs(c *config.ConfigData, logger *zap.SugaredLogger) (*Inputs, error) {
	in := &Inputs{}
	primary := c.Sources.Primary
	names := []string{primary.SnowBand, primary.QualityBand}

	var err error
	in.GlacierGate = terrain.North
	if gc := c.Glaciers; gc != nil && gc.GateAspect != "" {
		if in.GlacierGate, err = terrain.ParseAspect(gc.GateAspect); err != nil {
			return nil, fmt.Errorf("glaciers: gate-aspect: %w", err)
		}
	}
	if in.Primary, err = loadSnowSource(primary, names, c.Analysis.CRS); err != nil {
		return nil, fmt.Errorf("primary snow cover: %w", err)
	}
	fp := []string{fingerprint(primary.Paths)}
	if s := c.Sources.Secondary; s != nil {
		if in.Secondary, err = loadSnowSource(*s, names, c.Analysis.CRS); err != nil {
			return nil, fmt.Errorf("secondary snow cover: %w", err)
		}
		fp = append(fp, fingerprint(s.Paths))
	}
	in.Fingerprint = strings.Join(fp, "|")

	tiles := make([]source.TileSpec, len(c.Sources.DEM))
	for i, t := range c.Sources.DEM {
		tiles[i] = source.TileSpec{Path: t.Path, TIFF: source.TIFFOptions{
			CRS:     c.Analysis.CRS,
			OriginX: t.OriginX,
			OriginY: t.OriginY,
			Scale:   t.Scale,
			Gain:    t.Gain,
			Offset:  t.Offset,
			NoData:  t.NoData,
		}}
	}
	if in.DEM, err = source.LoadDEM(tiles, c.Analysis.CRS, 0); err != nil {
		return nil, fmt.Errorf("DEM: %w", err)
	}

	if gc := c.Glaciers; gc != nil && gc.Shapefile != "" {
		fields := glacier.DefaultFields()
		for _, f := range [][2]*string{{&fields.ID, &gc.IDField}, {&fields.Name, &gc.NameField}, {&fields.Area, &gc.AreaField}} {
			if *f[1] != "" {
				*f[0] = *f[1]
			}
		}
		outlines, err := glacier.LoadShapefile(gc.Shapefile, fields)
		if err != nil {
			return nil, err
		}
		in.Glaciers = glacier.NewIndex(outlines)
	}

	logger.Infow("loaded inputs",
		"primary_images", len(in.Primary),
		"secondary_images", len(in.Secondary),
		"dem", in.DEM.Grid.String(),
		"glaciers", glacierCount(in.Glaciers),
	)
	return in, nil
}

func glacierCount(idx *glacier.Index) int {
	if idx == nil {
		return 0
	}
	return idx.Len()
}

// loadSnowSource reads every file of a source concurrently and names its
// bands after names, so both sensors share band names.
func loadSnowSource(s config.SnowSourceData, names []string, crs string) (raster.Series, error) {
	opts := source.DefaultNetCDFOptions()
	opts.TimeVar, opts.XVar, opts.YVar, opts.CRS = s.TimeVar, s.XVar, s.YVar, crs
	opts.Bands = []string{s.SnowBand}
	if s.QualityBand != "" {
		opts.Bands = append(opts.Bands, s.QualityBand)
	}
	var err error
	if opts.Epoch, err = time.Parse(time.RFC3339, s.Epoch); err != nil {
		return nil, fmt.Errorf("epoch: %w", err)
	}
	if opts.Step, err = time.ParseDuration(s.Step); err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}

	parts := make([]raster.Series, len(s.Paths))
	var g errgroup.Group
	for i, p := range s.Paths {
		g.Go(func() error {
			series, err := source.ReadNetCDF(p, opts)
			if err != nil {
				return err
			}
			parts[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out raster.Series
	for _, part := range parts {
		for _, im := range part {
			renamed, err := renameBands(im, names)
			if err != nil {
				return nil, err
			}
			out = append(out, renamed)
		}
	}
	return out.Sorted(), nil
}

// renameBands renames the bands of im in order.
func renameBands(im *raster.Image, names []string) (*raster.Image, error) {
	bands := im.Bands()
	for i := range bands {
		if i < len(names) {
			bands[i].Name = names[i]
		}
	}
	out, err := raster.NewImage(im.Grid, im.Time, bands...)
	if err != nil {
		return nil, err
	}
	for k, v := range im.Meta {
		out.Meta[k] = v
	}
	return out, nil
}

// fingerprint summarises file identities so edited sources miss the cache.
func fingerprint(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, p := range sorted {
		b.WriteString(p)
		if fi, err := os.Stat(p); err == nil {
			fmt.Fprintf(&b, ":%d:%d", fi.Size(), fi.ModTime().UnixNano())
		}
		b.WriteByte(';')
	}
	return b.String()
}

// AOIsFromConfig builds AOIs from bounding boxes or polygon rings.
func AOIsFromConfig(aois []config.AOIData) ([]*geo.AOI, error) {
	out := make([]*geo.AOI, 0, len(aois))
	for _, a := range aois {
		if len(a.Rings) > 0 {
			aoi, err := geo.NewAOI(a.Name, a.Rings)
			if err != nil {
				return nil, err
			}
			out = append(out, aoi)
			continue
		}
		if len(a.BBox) != 4 {
			return nil, fmt.Errorf("%w: %q needs a bbox of 4 values", geo.ErrEmptyAOI, a.Name)
		}
		if a.BBox[2] <= a.BBox[0] || a.BBox[3] <= a.BBox[1] {
			return nil, fmt.Errorf("%w: %q bbox %v has no area", geo.ErrEmptyAOI, a.Name, a.BBox)
		}
		b := &geom.Bounds{
			Min: geom.Point{X: a.BBox[0], Y: a.BBox[1]},
			Max: geom.Point{X: a.BBox[2], Y: a.BBox[3]},
		}
		out = append(out, geo.BoxAOI(a.Name, b))
	}
	return out, nil
}
