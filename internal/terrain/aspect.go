// Package terrain derives the per-AOI terrain inputs of the snowline
// estimate: analysis elevation, elevation range and aspect classes.
package terrain

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/snowline/internal/raster"
)

// Aspect is a slope orientation class. The numeric values are the codes of
// the coded aspect band.
type Aspect int

const (
	East  Aspect = 1
	North Aspect = 2
	South Aspect = 3
	West  Aspect = 4
	// Mixed marks coarse cells without a majority aspect.
	Mixed Aspect = 5
)

// Aspects lists every class in code order.
var Aspects = [...]Aspect{East, North, South, West, Mixed}

// Named lists the four compass classes.
var Named = [...]Aspect{East, North, South, West}

// NumAspects is the number of aspect classes.
const NumAspects = len(Aspects)

func (a Aspect) String() string {
	switch a {
	case East:
		return "East"
	case North:
		return "North"
	case South:
		return "South"
	case West:
		return "West"
	case Mixed:
		return "mixed"
	}
	return fmt.Sprintf("Aspect(%d)", int(a))
}

// Index returns the position of a in Aspects.
func (a Aspect) Index() int {
	return int(a) - 1
}

// Valid reports whether a is one of the five classes.
func (a Aspect) Valid() bool {
	return a >= East && a <= Mixed
}

// ParseAspect parses an aspect name, case-insensitively.
func ParseAspect(s string) (Aspect, error) {
	for _, a := range Aspects {
		if strings.EqualFold(a.String(), s) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("terrain: unknown aspect %q", s)
}

// Quadrant assigns an aspect in degrees (0 = north, clockwise) to a compass
// class. NaN aspects are unclassified.
func Quadrant(deg float64) (Aspect, bool) {
	switch {
	case math.IsNaN(deg):
		return 0, false
	case deg > 315 || deg <= 45:
		return North, true
	case deg <= 135:
		return East, true
	case deg <= 225:
		return South, true
	default:
		return West, true
	}
}

// AspectDegrees computes the downslope direction of every DEM pixel in
// degrees clockwise from north. Gradients use central differences, falling
// back to one-sided differences at the grid edge and next to masked pixels.
// Flat pixels are NaN.
func AspectDegrees(dem raster.Layer) raster.Layer {
	g := dem.Grid
	out := raster.NewLayer(g)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			z := dem.At(col, row)
			if math.IsNaN(z) {
				continue
			}
			dzdx, okx := diff(dem.At(col-1, row), z, dem.At(col+1, row), g.Scale)
			// rows grow southward, so north is row-1
			dzdy, oky := diff(dem.At(col, row+1), z, dem.At(col, row-1), g.Scale)
			if !okx || !oky || (dzdx == 0 && dzdy == 0) {
				continue
			}
			deg := math.Atan2(-dzdx, -dzdy) * 180 / math.Pi
			if deg < 0 {
				deg += 360
			}
			out.Data[g.Index(col, row)] = deg
		}
	}
	return out
}

// diff returns the derivative across lo, mid, hi spaced by step.
func diff(lo, mid, hi, step float64) (float64, bool) {
	switch {
	case !math.IsNaN(lo) && !math.IsNaN(hi):
		return (hi - lo) / (2 * step), true
	case !math.IsNaN(hi):
		return (hi - mid) / step, true
	case !math.IsNaN(lo):
		return (mid - lo) / step, true
	}
	return 0, false
}
