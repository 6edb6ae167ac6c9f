// Package grid orders an unordered set of blob centres into the row-major
// sequence of a rectangular or staggered calibration lattice.
package grid

import (
	"math"
	"sort"

	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ErrNotAGrid is returned when the points cannot be arranged into the
// requested lattice.
var ErrNotAGrid = errors.New("points do not form the expected grid")

// Lattice selects the grid layout.
type Lattice int

const (
	// Rectangular places row i, column j at (j, i).
	Rectangular Lattice = iota
	// Staggered places row i, column j at (2j + i%2, i).
	Staggered
)

// neighbourRadius is the search radius for direct lattice neighbours, as a
// multiple of the median nearest-neighbour distance.
const neighbourRadius = 1.3

// snapTolerance is how far a point may sit from its predicted position, as
// a fraction of the local step length.
const snapTolerance = 0.35

// Order returns pts rearranged so that index row*cols+col holds the point
// at that lattice position. The first point is the grid corner closest to
// the image's top-left among the orientations that fit.
func Order(pts []geometry.Point2D, cols, rows int, lattice Lattice) ([]geometry.Point2D, error) {
	if cols <= 0 || rows <= 0 {
		return nil, errors.Wrapf(ErrNotAGrid, "invalid grid %dx%d", cols, rows)
	}
	n := cols * rows
	if len(pts) != n {
		return nil, errors.Wrapf(ErrNotAGrid, "expected %d points, got %d", n, len(pts))
	}
	if n == 1 {
		return []geometry.Point2D{pts[0]}, nil
	}

	spacing := medianNearest(pts)
	if spacing <= 0 {
		return nil, errors.Wrap(ErrNotAGrid, "duplicate points")
	}

	if rows == 1 || (cols == 1 && lattice == Rectangular) {
		return orderLine(pts)
	}

	idx := newIndex(pts, spacing)
	coords, err := walk(pts, idx, spacing, lattice)
	if err != nil {
		return nil, err
	}
	return arrange(pts, coords, cols, rows, lattice)
}

type latticeCoord struct{ a, b int }

type node struct {
	c      latticeCoord
	e1, e2 geometry.Point2D
}

// walk assigns lattice coordinates by breadth-first growth from a seed near
// the centroid, predicting each neighbour from the local step vectors.
func walk(pts []geometry.Point2D, idx *index, spacing float64, lattice Lattice) (map[int]latticeCoord, error) {
	u1, u2 := geometry.Point2D{X: 1, Y: 0}, geometry.Point2D{X: 0, Y: 1}
	if lattice == Staggered {
		s := math.Sqrt2 / 2
		u1, u2 = geometry.Point2D{X: s, Y: s}, geometry.Point2D{X: s, Y: -s}
	}

	var (
		seed   = -1
		e1, e2 geometry.Point2D
	)
	for _, i := range byDistanceTo(pts, geometry.Centroid(pts)) {
		var ok bool
		if e1, e2, ok = basisAt(pts, idx, i, spacing, u1, u2); ok {
			seed = i
			break
		}
	}
	if seed < 0 {
		return nil, errors.Wrap(ErrNotAGrid, "no point has neighbours along both grid axes")
	}

	assigned := map[int]node{seed: {e1: e1, e2: e2}}
	queue := []int{seed}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		nd := assigned[i]

		steps := []struct {
			da, db int
			v      geometry.Point2D
		}{
			{1, 0, nd.e1}, {-1, 0, nd.e1.Scale(-1)},
			{0, 1, nd.e2}, {0, -1, nd.e2.Scale(-1)},
		}
		for _, s := range steps {
			k, dist := idx.nearest(pts[i].Add(s.v))
			if k < 0 || k == i || dist > snapTolerance*s.v.Norm() {
				continue
			}
			c := latticeCoord{a: nd.c.a + s.da, b: nd.c.b + s.db}
			if other, ok := assigned[k]; ok {
				if other.c != c {
					return nil, errors.Wrap(ErrNotAGrid, "inconsistent lattice walk")
				}
				continue
			}
			next := node{c: c, e1: nd.e1, e2: nd.e2}
			actual := pts[k].Sub(pts[i])
			if s.da != 0 {
				next.e1 = actual.Scale(float64(s.da))
			} else {
				next.e2 = actual.Scale(float64(s.db))
			}
			assigned[k] = next
			queue = append(queue, k)
		}
	}

	if len(assigned) != len(pts) {
		return nil, errors.Wrapf(ErrNotAGrid, "reached %d of %d points", len(assigned), len(pts))
	}
	coords := make(map[int]latticeCoord, len(assigned))
	for i, nd := range assigned {
		coords[i] = nd.c
	}
	return coords, nil
}

// basisAt picks the two neighbour vectors of point i best aligned with the
// target directions u1 and u2. Negated neighbours are candidates too, since
// the lattice is symmetric.
func basisAt(pts []geometry.Point2D, idx *index, i int, spacing float64, u1, u2 geometry.Point2D) (geometry.Point2D, geometry.Point2D, bool) {
	var cands []geometry.Point2D
	for _, k := range idx.within(pts[i], neighbourRadius*spacing) {
		if k == i {
			continue
		}
		v := pts[k].Sub(pts[i])
		cands = append(cands, v, v.Scale(-1))
	}

	e1, ok := bestAligned(cands, u1, nil)
	if !ok {
		return e1, e1, false
	}
	e2, ok := bestAligned(cands, u2, &e1)
	return e1, e2, ok
}

func bestAligned(cands []geometry.Point2D, target geometry.Point2D, avoid *geometry.Point2D) (geometry.Point2D, bool) {
	best, bestCos := geometry.Point2D{}, 0.5
	found := false
	for _, c := range cands {
		n := c.Norm()
		if n == 0 {
			continue
		}
		if avoid != nil && math.Abs(c.Dot(*avoid))/(n*avoid.Norm()) > 0.5 {
			continue
		}
		if cos := c.Dot(target) / n; cos > bestCos {
			best, bestCos, found = c, cos, true
		}
	}
	return best, found
}

// orientation maps walk coordinates (x, y) into one of the four proper
// rotations of the grid.
type orientation func(x, y int) (int, int)

var orientations = []orientation{
	func(x, y int) (int, int) { return x, y },
	func(x, y int) (int, int) { return y, -x },
	func(x, y int) (int, int) { return -x, -y },
	func(x, y int) (int, int) { return -y, x },
}

func arrange(pts []geometry.Point2D, coords map[int]latticeCoord, cols, rows int, lattice Lattice) ([]geometry.Point2D, error) {
	var (
		best      []geometry.Point2D
		bestScore = math.Inf(1)
	)
	for _, orient := range orientations {
		out, ok := place(pts, coords, cols, rows, lattice, orient)
		if !ok {
			continue
		}
		if score := out[0].X + out[0].Y; score < bestScore {
			best, bestScore = out, score
		}
	}
	if best == nil {
		return nil, errors.Wrapf(ErrNotAGrid, "points do not fit a %dx%d grid", cols, rows)
	}
	return best, nil
}

func place(pts []geometry.Point2D, coords map[int]latticeCoord, cols, rows int, lattice Lattice, orient orientation) ([]geometry.Point2D, bool) {
	xs := make(map[int][2]int, len(coords))
	minX, minY := math.MaxInt, math.MaxInt
	for i, c := range coords {
		x, y := c.a, c.b
		if lattice == Staggered {
			x, y = c.a+c.b, c.a-c.b
		}
		x, y = orient(x, y)
		xs[i] = [2]int{x, y}
		minX = min(minX, x)
		minY = min(minY, y)
	}

	out := make([]geometry.Point2D, cols*rows)
	filled := make([]bool, cols*rows)
	for i, xy := range xs {
		x, row := xy[0]-minX, xy[1]-minY
		col := x
		if lattice == Staggered {
			off := x - row%2
			if off < 0 || off%2 != 0 {
				return nil, false
			}
			col = off / 2
		}
		if col >= cols || row >= rows {
			return nil, false
		}
		k := row*cols + col
		if filled[k] {
			return nil, false
		}
		filled[k] = true
		out[k] = pts[i]
	}
	return out, true
}

// orderLine sorts points along their principal axis, pointing right or down.
func orderLine(pts []geometry.Point2D) ([]geometry.Point2D, error) {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	cxx := stat.Variance(xs, nil)
	cyy := stat.Variance(ys, nil)
	cxy := stat.Covariance(xs, ys, nil)
	theta := 0.5 * math.Atan2(2*cxy, cxx-cyy)
	dir := geometry.Point2D{X: math.Cos(theta), Y: math.Sin(theta)}
	if dir.X+dir.Y < 0 {
		dir = dir.Scale(-1)
	}

	out := append([]geometry.Point2D(nil), pts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Dot(dir) < out[j].Dot(dir)
	})
	return out, nil
}

func medianNearest(pts []geometry.Point2D) float64 {
	d := make([]float64, len(pts))
	for i, p := range pts {
		best := math.Inf(1)
		for j, q := range pts {
			if i != j {
				best = math.Min(best, p.Distance(q))
			}
		}
		d[i] = best
	}
	sort.Float64s(d)
	return stat.Quantile(0.5, stat.Empirical, d, nil)
}

func byDistanceTo(pts []geometry.Point2D, c geometry.Point2D) []int {
	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pts[order[i]].Distance(c) < pts[order[j]].Distance(c)
	})
	return order
}
