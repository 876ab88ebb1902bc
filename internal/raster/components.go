package raster

import "math"

// Connectivity selects the pixel neighbourhood used for clustering.
type Connectivity int

const (
	// FourConnected joins orthogonal neighbours only.
	FourConnected Connectivity = 4
	// EightConnected also joins diagonal neighbours.
	EightConnected Connectivity = 8
)

var (
	offsets4 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	offsets8 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func (c Connectivity) offsets() [][2]int {
	if c == FourConnected {
		return offsets4
	}
	return offsets8
}

// Component is one connected run of equal-valued pixels.
type Component struct {
	Value float64
	Size  int
	// Open is set when the component touches the grid edge or a masked pixel.
	Open bool
}

// Components labels the connected regions of a layer.
type Components struct {
	// Labels holds the component index per pixel, -1 for masked pixels.
	Labels []int
	List   []Component
}

// Label groups unmasked pixels holding the same value into connected
// components.
func Label(src Layer, conn Connectivity) *Components {
	g := src.Grid
	labels := make([]int, len(src.Data))
	for i := range labels {
		labels[i] = -1
	}
	offs := conn.offsets()
	res := &Components{Labels: labels}
	stack := make([]int, 0, 64)

	for start, v := range src.Data {
		if math.IsNaN(v) || labels[start] >= 0 {
			continue
		}
		id := len(res.List)
		comp := Component{Value: v}
		labels[start] = id
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp.Size++
			col, row := p%g.Width, p/g.Width
			for _, o := range offs {
				nc, nr := col+o[0], row+o[1]
				if !g.Contains(nc, nr) {
					comp.Open = true
					continue
				}
				n := g.Index(nc, nr)
				nv := src.Data[n]
				if math.IsNaN(nv) {
					comp.Open = true
					continue
				}
				if nv != v || labels[n] >= 0 {
					continue
				}
				labels[n] = id
				stack = append(stack, n)
			}
		}
		res.List = append(res.List, comp)
	}
	return res
}

// ConnectedPixelCount writes, for every unmasked pixel, the size of its
// equal-valued connected component capped at maxSize.
func ConnectedPixelCount(src Layer, conn Connectivity, maxSize int) Layer {
	comps := Label(src, conn)
	out := NewLayer(src.Grid)
	for i, id := range comps.Labels {
		if id < 0 {
			continue
		}
		out.Data[i] = float64(min(comps.List[id].Size, maxSize))
	}
	return out
}
