package composite

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/interval"
	"github.com/chrissnell/snowline/internal/raster"
)

var grid = raster.Grid{CRS: "EPSG:32645", OriginX: 0, OriginY: 1500, Scale: 500, Width: 3, Height: 3}

func day(n int) time.Time {
	return time.Date(2021, 1, n, 0, 0, 0, 0, time.UTC)
}

func observation(t *testing.T, when time.Time, snow float64, badPixels ...int) *raster.Image {
	t.Helper()
	s := raster.Fill(grid, snow)
	q := raster.Fill(grid, 0)
	for _, p := range badPixels {
		q.Data[p] = 250
		s.Data[p] = 0
	}
	im, err := raster.NewImage(grid, when,
		raster.Band{Name: "NDSI_Snow_Cover", Data: s.Data},
		raster.Band{Name: "NDSI_Snow_Cover_Class", Data: q.Data},
	)
	require.NoError(t, err)
	return im
}

func newCompositor() *Compositor {
	return New(raster.NewLocal(0), DefaultOptions(), zap.NewNop().Sugar())
}

func TestGapFill(t *testing.T) {
	c := newCompositor()
	primary := observation(t, day(1), 80, 0, 1)
	secondary := raster.Series{observation(t, day(1), 40, 1), observation(t, day(2), 10)}

	l, err := c.GapFill(primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, 40.0, l.Data[0], "bad primary pixel takes the same-day secondary value")
	assert.True(t, math.IsNaN(l.Data[1]), "bad in both sensors stays unusable")
	assert.Equal(t, 80.0, l.Data[2])

	l, err = c.GapFill(primary, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(l.Data[0]), "no secondary image leaves the pixel unusable")
}

func TestCompositeMeanAndBlend(t *testing.T) {
	c := newCompositor()
	primary := raster.Series{
		observation(t, day(1), 80, 4),
		observation(t, day(2), 60, 0, 4),
		observation(t, day(12), 0),
	}
	secondary := raster.Series{observation(t, day(1), 40)}

	iv := interval.TimeInterval{Start: day(1), End: day(11)}
	img, err := c.Composite(context.Background(), iv, primary, secondary)
	require.NoError(t, err)

	v, err := img.Layer(BandValue)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, v.Data[1], 1e-9)
	assert.InDelta(t, 80.0, v.Data[0], 1e-9, "day 2 pixel 0 is unusable, day 1 observation stands")
	// pixel 4 was filled by the secondary on day 1 and unusable on day 2
	assert.InDelta(t, 40.0, v.Data[4], 1e-9)

	count, ok := img.Get(TagBandCount)
	require.True(t, ok)
	assert.Equal(t, 1, count)
	date, _ := img.Get(TagDate)
	assert.Equal(t, "2021-01-01", date)
	assert.True(t, img.Time.Equal(day(1)))
}

func TestCompositeSmoothingOnlyFillsGaps(t *testing.T) {
	c := newCompositor()
	primary := raster.Series{
		observation(t, day(1), 70, 0, 4),
		// only pixel 0 is usable on day 2
		observation(t, day(2), 40, 1, 2, 3, 4, 5, 6, 7, 8),
	}

	img, err := c.Composite(context.Background(), interval.TimeInterval{Start: day(1), End: day(3)}, primary, nil)
	require.NoError(t, err)
	v, err := img.Layer(BandValue)
	require.NoError(t, err)

	assert.InDelta(t, 40.0, v.Data[0], 1e-9)
	assert.InDelta(t, 70.0, v.Data[8], 1e-9)
	// the centre has no observation and takes the focal mean of its neighbours
	assert.InDelta(t, (7*70.0+40.0)/8, v.Data[4], 1e-9)
}

func TestEmptyIntervals(t *testing.T) {
	c := newCompositor()
	iv := interval.TimeInterval{Start: day(1), End: day(11)}

	_, err := c.Composite(context.Background(), iv, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInterval)

	allBad := raster.Series{observation(t, day(3), 50, 0, 1, 2, 3, 4, 5, 6, 7, 8)}
	_, err = c.Composite(context.Background(), iv, allBad, nil)
	assert.ErrorIs(t, err, ErrEmptyInterval)

	primary := raster.Series{observation(t, day(3), 50), observation(t, day(25), 50)}
	ivs := []interval.TimeInterval{iv, {Start: day(11), End: day(21)}, {Start: day(21), End: day(31)}}
	series, err := c.Build(context.Background(), ivs, primary, nil)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, series[1].Time.Equal(day(21)))
}
