package pattern

import (
	"camera-calibration/pkg/geometry"
)

// ObjectPoints returns the pattern-frame coordinates of every feature in
// row-major order (z = 0), matching the detector's point ordering.
//
// Rectangular grids place point (i, j) at (j*u, i*u). The asymmetric grid
// staggers odd rows by one unit: ((2j + i%2)*u, i*u).
func (s Spec) ObjectPoints() []geometry.Point3D {
	g := s.GridSize()
	if g.X <= 0 || g.Y <= 0 {
		return nil
	}

	u := s.UnitSize
	pts := make([]geometry.Point3D, 0, g.X*g.Y)
	for i := 0; i < g.Y; i++ {
		for j := 0; j < g.X; j++ {
			x := float64(j) * u
			if s.Kind == AsymmetricCircles {
				x = float64(2*j+i%2) * u
			}
			pts = append(pts, geometry.Point3D{X: x, Y: float64(i) * u})
		}
	}
	return pts
}
