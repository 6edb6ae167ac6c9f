package calib

import (
	"math"

	"camera-calibration/pkg/geometry"

	"gonum.org/v1/gonum/spatial/r3"
)

// Result is a finished calibration. Results are never modified after
// Calibrate returns; recalibrating produces a new one.
type Result struct {
	// RMSError is sqrt(Σ‖observed − projected‖² / points) in pixels.
	RMSError float64
	// CameraMatrix is [[fx s cx] [0 fy cy] [0 0 1]] with s = 0.
	CameraMatrix [3][3]float64
	// DistCoeffs is (k1, k2, p1, p2, k3) for Standard and (k1, k2, k3, k4)
	// for Fisheye.
	DistCoeffs []float64
	// RotationVecs and TranslationVecs hold one axis-angle rotation and one
	// translation per view, mapping pattern to camera coordinates.
	RotationVecs    [][3]float64
	TranslationVecs [][3]float64
	Model           Model
	ImageSize       geometry.SizeInt

	viewRMS []float64
}

func newResult(pb *problem, p []float64, cost float64, size geometry.SizeInt) *Result {
	ni := pb.nIntrinsic()
	r := &Result{
		RMSError: math.Sqrt(cost / float64(pb.nPoints())),
		CameraMatrix: [3][3]float64{
			{p[0], 0, p[2]},
			{0, p[1], p[3]},
			{0, 0, 1},
		},
		DistCoeffs: append([]float64(nil), p[4:ni]...),
		Model:      pb.model,
		ImageSize:  size,
	}

	buf := make([]float64, 2*pb.maxCount())
	for v := 0; v < pb.views(); v++ {
		o := pb.poseOffset(v)
		r.RotationVecs = append(r.RotationVecs, [3]float64{p[o], p[o+1], p[o+2]})
		r.TranslationVecs = append(r.TranslationVecs, [3]float64{p[o+3], p[o+4], p[o+5]})
		r.viewRMS = append(r.viewRMS, math.Sqrt(pb.viewCost(p, v, buf)/float64(pb.count(v))))
	}
	return r
}

// Fx, Fy, Cx, Cy and Skew read the camera matrix.
func (r *Result) Fx() float64   { return r.CameraMatrix[0][0] }
func (r *Result) Fy() float64   { return r.CameraMatrix[1][1] }
func (r *Result) Cx() float64   { return r.CameraMatrix[0][2] }
func (r *Result) Cy() float64   { return r.CameraMatrix[1][2] }
func (r *Result) Skew() float64 { return r.CameraMatrix[0][1] }

// Views returns the number of poses in the result.
func (r *Result) Views() int {
	return len(r.RotationVecs)
}

// Project maps pattern points into the image of the given view. It returns
// nil if view is out of range.
func (r *Result) Project(view int, obj []geometry.Point3D) []geometry.Point2D {
	if view < 0 || view >= r.Views() {
		return nil
	}
	k := intrinsics{fx: r.Fx(), fy: r.Fy(), cx: r.Cx(), cy: r.Cy()}
	rv, tv := r.RotationVecs[view], r.TranslationVecs[view]
	ps := newPose(r3.Vec{X: rv[0], Y: rv[1], Z: rv[2]}, r3.Vec{X: tv[0], Y: tv[1], Z: tv[2]})

	out := make([]geometry.Point2D, len(obj))
	for i, o := range obj {
		q := project(r.Model, k, r.DistCoeffs, ps, r3.Vec{X: o.X, Y: o.Y, Z: o.Z})
		out[i] = geometry.Point2D{X: q.X, Y: q.Y}
	}
	return out
}

// PerViewErrors returns the RMS reprojection error of each view. Results
// that were loaded from disk carry none.
func (r *Result) PerViewErrors() []float64 {
	return append([]float64(nil), r.viewRMS...)
}
