package render

import (
	"math"

	"github.com/couchcryptid/quake-energy/internal/domain"
)

// grid bins events over a bounding box. It implements plotter.GridXYZ; empty
// cells report NaN so the heat map leaves them transparent.
type grid struct {
	bbox  domain.BoundingBox
	cols  int
	rows  int
	cells []float64
}

// aggregate folds one event value into a cell. The first value a cell sees
// arrives with cur == NaN.
type aggregate func(cur, v float64) float64

func countAgg(cur, _ float64) float64 {
	if math.IsNaN(cur) {
		return 1
	}
	return cur + 1
}

func maxAgg(cur, v float64) float64 {
	if math.IsNaN(cur) || v > cur {
		return v
	}
	return cur
}

func newGrid(bbox domain.BoundingBox, bins int, quakes []domain.Quake, value func(domain.Quake) float64, agg aggregate) *grid {
	if bins < 1 {
		bins = 1
	}
	g := &grid{bbox: bbox, cols: bins, rows: bins, cells: make([]float64, bins*bins)}
	for i := range g.cells {
		g.cells[i] = math.NaN()
	}

	for _, q := range quakes {
		if !bbox.Contains(q.Latitude, q.Longitude) {
			continue
		}
		c := binIndex(q.Longitude, bbox.MinLon(), bbox.MaxLon(), g.cols)
		r := binIndex(q.Latitude, bbox.MinLat(), bbox.MaxLat(), g.rows)
		i := r*g.cols + c
		g.cells[i] = agg(g.cells[i], value(q))
	}
	return g
}

func binIndex(v, lo, hi float64, n int) int {
	i := int((v - lo) / (hi - lo) * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (g *grid) Dims() (c, r int) { return g.cols, g.rows }

func (g *grid) Z(c, r int) float64 { return g.cells[r*g.cols+c] }

func (g *grid) X(c int) float64 {
	w := (g.bbox.MaxLon() - g.bbox.MinLon()) / float64(g.cols)
	return g.bbox.MinLon() + (float64(c)+0.5)*w
}

func (g *grid) Y(r int) float64 {
	h := (g.bbox.MaxLat() - g.bbox.MinLat()) / float64(g.rows)
	return g.bbox.MinLat() + (float64(r)+0.5)*h
}

// zRange returns the min and max over non-empty cells and whether any cell
// holds a value.
func (g *grid) zRange() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.cells {
		if math.IsNaN(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}
