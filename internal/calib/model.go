package calib

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Model selects the lens distortion model.
type Model int

const (
	// Standard is the Brown–Conrady model with coefficients (k1, k2, p1, p2, k3).
	Standard Model = iota
	// Fisheye is the Kannala–Brandt equidistant model with (k1, k2, k3, k4).
	Fisheye
)

func (m Model) String() string {
	if m == Fisheye {
		return "fisheye"
	}
	return "standard"
}

// ParseModel accepts "standard" (or "pinhole") and "fisheye".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "pinhole", "":
		return Standard, nil
	case "fisheye":
		return Fisheye, nil
	}
	return Standard, errors.Errorf("unknown camera model %q", s)
}

// NumDistCoeffs is the length of the model's distortion vector.
func (m Model) NumDistCoeffs() int {
	if m == Fisheye {
		return 4
	}
	return 5
}

// intrinsics is the pinhole part of the camera. Skew is always zero.
type intrinsics struct {
	fx, fy, cx, cy float64
}

func (k intrinsics) apply(p r2.Vec) r2.Vec {
	return r2.Vec{X: k.fx*p.X + k.cx, Y: k.fy*p.Y + k.cy}
}

// distortStandard applies radial and tangential distortion to normalised
// image coordinates.
func distortStandard(p r2.Vec, d []float64) r2.Vec {
	k1, k2, p1, p2, k3 := d[0], d[1], d[2], d[3], d[4]
	x, y := p.X, p.Y
	rsq := x*x + y*y
	radial := 1 + rsq*(k1+rsq*(k2+rsq*k3))
	return r2.Vec{
		X: x*radial + 2*p1*x*y + p2*(rsq+2*x*x),
		Y: y*radial + p1*(rsq+2*y*y) + 2*p2*x*y,
	}
}

// distortFisheye applies the equidistant fisheye mapping
// θd = θ(1 + k1θ² + k2θ⁴ + k3θ⁶ + k4θ⁸) with θ = atan(r).
func distortFisheye(p r2.Vec, d []float64) r2.Vec {
	r := math.Hypot(p.X, p.Y)
	theta := math.Atan(r)
	t2 := theta * theta
	thetaD := theta * (1 + t2*(d[0]+t2*(d[1]+t2*(d[2]+t2*d[3]))))
	scale := 1.0
	if r > 1e-8 {
		scale = thetaD / r
	}
	return r2.Scale(scale, p)
}

// pose is a view's rigid transform from pattern to camera coordinates.
type pose struct {
	rot [3][3]float64
	t   r3.Vec
}

func newPose(rvec, tvec r3.Vec) pose {
	return pose{rot: rodrigues(rvec), t: tvec}
}

func (p pose) apply(x r3.Vec) r3.Vec {
	r := &p.rot
	return r3.Vec{
		X: r[0][0]*x.X + r[0][1]*x.Y + r[0][2]*x.Z + p.t.X,
		Y: r[1][0]*x.X + r[1][1]*x.Y + r[1][2]*x.Z + p.t.Y,
		Z: r[2][0]*x.X + r[2][1]*x.Y + r[2][2]*x.Z + p.t.Z,
	}
}

// project maps a pattern point through pose, lens and intrinsics.
func project(m Model, k intrinsics, dist []float64, ps pose, x r3.Vec) r2.Vec {
	c := ps.apply(x)
	n := r2.Vec{X: c.X / c.Z, Y: c.Y / c.Z}
	if m == Fisheye {
		n = distortFisheye(n, dist)
	} else {
		n = distortStandard(n, dist)
	}
	return k.apply(n)
}
