package pattern

import (
	"camera-calibration/pkg/geometry"
)

// Detection is the outcome of looking for a pattern in one image. When
// Success is true, ImagePoints[i] and ObjectPoints[i] refer to the same
// physical feature. When Success is false both slices are empty and Err
// explains why.
type Detection struct {
	ImagePoints  []geometry.Point2D
	ObjectPoints []geometry.Point3D
	ImageSize    geometry.SizeInt
	Success      bool
	Err          error

	// Grid is the (points per row, rows) layout the points were found in.
	Grid geometry.PointInt
}

// Failed builds a negative detection for an image of the given size.
func Failed(size geometry.SizeInt, err error) Detection {
	return Detection{ImageSize: size, Err: err}
}

// Len returns the number of correspondences.
func (d Detection) Len() int {
	return len(d.ImagePoints)
}
