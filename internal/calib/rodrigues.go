package calib

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// rodrigues converts an axis-angle vector to a rotation matrix. Small
// angles use series expansions so the map stays smooth through zero.
func rodrigues(r r3.Vec) [3][3]float64 {
	t2 := r3.Norm2(r)
	var a, b float64
	if t2 < 1e-10 {
		a = 1 - t2/6
		b = 0.5 - t2/24
	} else {
		t := math.Sqrt(t2)
		a = math.Sin(t) / t
		b = (1 - math.Cos(t)) / t2
	}

	// R = I + a[r]x + b[r]x²
	x, y, z := r.X, r.Y, r.Z
	return [3][3]float64{
		{1 - b*(y*y+z*z), -a*z + b*x*y, a*y + b*x*z},
		{a*z + b*x*y, 1 - b*(x*x+z*z), -a*x + b*y*z},
		{-a*y + b*x*z, a*x + b*y*z, 1 - b*(x*x+y*y)},
	}
}

// rotationVector converts a rotation matrix back to axis-angle form.
func rotationVector(m [3][3]float64) r3.Vec {
	c := (m[0][0] + m[1][1] + m[2][2] - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	theta := math.Acos(c)
	w := r3.Vec{X: m[2][1] - m[1][2], Y: m[0][2] - m[2][0], Z: m[1][0] - m[0][1]}

	s := math.Sin(theta)
	switch {
	case s > 1e-5:
		return r3.Scale(theta/(2*s), w)
	case c > 0:
		return r3.Scale(0.5, w)
	}

	// Near π the antisymmetric part vanishes; read the axis from R + I = 2kkᵀ.
	xx := math.Sqrt(math.Max(0, (m[0][0]+1)/2))
	yy := math.Sqrt(math.Max(0, (m[1][1]+1)/2))
	zz := math.Sqrt(math.Max(0, (m[2][2]+1)/2))
	var k r3.Vec
	switch {
	case xx >= yy && xx >= zz:
		k = r3.Vec{X: xx, Y: (m[0][1] + m[1][0]) / (4 * xx), Z: (m[0][2] + m[2][0]) / (4 * xx)}
	case yy >= zz:
		k = r3.Vec{X: (m[0][1] + m[1][0]) / (4 * yy), Y: yy, Z: (m[1][2] + m[2][1]) / (4 * yy)}
	default:
		k = r3.Vec{X: (m[0][2] + m[2][0]) / (4 * zz), Y: (m[1][2] + m[2][1]) / (4 * zz), Z: zz}
	}
	return r3.Scale(theta, r3.Unit(k))
}
