package grid

import (
	"math"

	"camera-calibration/pkg/geometry"
)

// index buckets points into square cells so neighbour queries only touch
// nearby buckets.
type index struct {
	pts     []geometry.Point2D
	cell    float64
	buckets map[[2]int][]int
}

func newIndex(pts []geometry.Point2D, cell float64) *index {
	idx := &index{pts: pts, cell: cell, buckets: make(map[[2]int][]int)}
	for i, p := range pts {
		k := idx.key(p)
		idx.buckets[k] = append(idx.buckets[k], i)
	}
	return idx
}

func (idx *index) key(p geometry.Point2D) [2]int {
	return [2]int{int(math.Floor(p.X / idx.cell)), int(math.Floor(p.Y / idx.cell))}
}

// within returns the indexes of all points no farther than r from p.
func (idx *index) within(p geometry.Point2D, r float64) []int {
	var out []int
	span := int(math.Ceil(r / idx.cell))
	k := idx.key(p)
	for dy := -span; dy <= span; dy++ {
		for dx := -span; dx <= span; dx++ {
			for _, i := range idx.buckets[[2]int{k[0] + dx, k[1] + dy}] {
				if idx.pts[i].Distance(p) <= r {
					out = append(out, i)
				}
			}
		}
	}
	return out
}

// nearest returns the closest point to p within two cells, or -1.
func (idx *index) nearest(p geometry.Point2D) (int, float64) {
	best, bestD := -1, math.Inf(1)
	k := idx.key(p)
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			for _, i := range idx.buckets[[2]int{k[0] + dx, k[1] + dy}] {
				if d := idx.pts[i].Distance(p); d < bestD {
					best, bestD = i, d
				}
			}
		}
	}
	return best, bestD
}
