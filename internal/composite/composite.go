// Package composite builds gap-filled temporal composites of daily snow
// cover observations, one per analysis interval.
package composite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/interval"
	"github.com/chrissnell/snowline/internal/raster"
)

// ErrEmptyInterval marks an interval without any valid observation. Such
// composites are dropped from the output series.
var ErrEmptyInterval = errors.New("composite: empty interval")

const (
	// BandValue is the band holding the composited snow cover fraction.
	BandValue = "value"
	// TagBandCount holds the number of bands with at least one valid pixel.
	TagBandCount = "band_count"
	// TagDate holds the interval start formatted as YYYY-MM-DD.
	TagDate = "Year-Month-Day"
)

// Options configures a Compositor.
type Options struct {
	// SnowBand and QualityBand name the daily observation bands.
	SnowBand    string
	QualityBand string
	// QualityThreshold marks primary pixels with a quality class at or above
	// it as unusable.
	QualityThreshold float64
	// SmoothRadius is the focal mean radius in pixels used to fill gaps.
	SmoothRadius float64
}

// DefaultOptions matches the MODIS daily snow cover product.
func DefaultOptions() Options {
	return Options{
		SnowBand:         "NDSI_Snow_Cover",
		QualityBand:      "NDSI_Snow_Cover_Class",
		QualityThreshold: 200,
		SmoothRadius:     2,
	}
}

// Compositor produces interval composites.
type Compositor struct {
	compute raster.Compute
	opts    Options
	logger  *zap.SugaredLogger
}

// New returns a Compositor backed by compute.
func New(compute raster.Compute, opts Options, logger *zap.SugaredLogger) *Compositor {
	return &Compositor{compute: compute, opts: opts, logger: logger}
}

// GapFill returns the usable snow cover of one primary observation.
// Unusable pixels take the value of the same-day secondary observation when
// one exists and stay masked otherwise.
func (c *Compositor) GapFill(primary *raster.Image, secondary raster.Series) (raster.Layer, error) {
	snow, err := primary.Layer(c.opts.SnowBand)
	if err != nil {
		return raster.Layer{}, err
	}
	quality, err := primary.Layer(c.opts.QualityBand)
	if err != nil {
		return raster.Layer{}, err
	}

	bad := make([]bool, len(quality.Data))
	for i, q := range quality.Data {
		bad[i] = !math.IsNaN(q) && q >= c.opts.QualityThreshold
	}

	fill := raster.NewLayer(primary.Grid)
	day := primary.Time.Truncate(24 * time.Hour)
	if same := secondary.FilterDate(day, day.Add(24*time.Hour)); len(same) > 0 {
		fill, err = c.usable(same[0], primary.Grid)
		if err != nil {
			return raster.Layer{}, fmt.Errorf("secondary %s: %w", same[0].Time.Format(time.DateOnly), err)
		}
	}

	out := snow.Clone()
	for i, b := range bad {
		if b {
			out.Data[i] = fill.Data[i]
		}
	}
	return out, nil
}

// usable masks the unusable pixels of a secondary image and projects it onto g.
func (c *Compositor) usable(im *raster.Image, g raster.Grid) (raster.Layer, error) {
	snow, err := im.Layer(c.opts.SnowBand)
	if err != nil {
		return raster.Layer{}, err
	}
	if quality, err := im.Layer(c.opts.QualityBand); err == nil {
		keep := make([]bool, len(quality.Data))
		for i, q := range quality.Data {
			keep[i] = math.IsNaN(q) || q < c.opts.QualityThreshold
		}
		if snow, err = raster.UpdateMask(snow, keep); err != nil {
			return raster.Layer{}, err
		}
	}
	return c.compute.Resample(snow, g, raster.Mean)
}

// Composite reduces the observations falling inside iv to one image with a
// single band, BandValue. The observed mean always wins over the smoothed
// gap fill.
func (c *Compositor) Composite(ctx context.Context, iv interval.TimeInterval, primary, secondary raster.Series) (*raster.Image, error) {
	days := primary.FilterDate(iv.Start, iv.End)
	if len(days) == 0 {
		return nil, fmt.Errorf("%s: no observations: %w", iv.Label(), ErrEmptyInterval)
	}
	secondary = secondary.FilterDate(iv.Start, iv.End)

	filled := make(raster.Series, 0, len(days))
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l, err := c.GapFill(d, secondary)
		if err != nil {
			return nil, fmt.Errorf("gap fill %s: %w", d.Time.Format(time.DateOnly), err)
		}
		filled = append(filled, raster.FromLayer(BandValue, l, d.Time))
	}

	mean, err := filled.Reduce(BandValue, raster.Mean)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", iv.Label(), err)
	}
	smooth := c.compute.FocalMean(mean, c.opts.SmoothRadius)
	blended := mean.Clone()
	for i, v := range blended.Data {
		if math.IsNaN(v) {
			blended.Data[i] = smooth.Data[i]
		}
	}

	img := raster.FromLayer(BandValue, blended, iv.Start).
		Set(TagDate, iv.Label())
	bandCount := img.ValidBandCount()
	img = img.Set(TagBandCount, bandCount)
	if bandCount == 0 {
		return nil, fmt.Errorf("%s: no valid pixels in %d observations: %w", iv.Label(), len(days), ErrEmptyInterval)
	}
	return img, nil
}

// Build composites every interval, dropping empty ones.
func (c *Compositor) Build(ctx context.Context, intervals []interval.TimeInterval, primary, secondary raster.Series) (raster.Series, error) {
	var out raster.Series
	for _, iv := range intervals {
		img, err := c.Composite(ctx, iv, primary, secondary)
		if errors.Is(err, ErrEmptyInterval) {
			c.logger.Debugw("dropping empty composite", "interval", iv.Label())
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}
