// Package calib estimates camera intrinsics and lens distortion from
// accumulated pattern detections.
package calib

import (
	"math"

	"camera-calibration/internal/dataset"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// planarTolerance is the largest |z| accepted for a pattern point.
const planarTolerance = 1e-9

// Solver runs calibrations with fixed options.
type Solver struct {
	opts Options
	log  *logrus.Entry
}

// NewSolver creates a solver.
func NewSolver(opts Options) *Solver {
	return &Solver{opts: opts, log: logrus.WithField("component", "calib")}
}

// Calibrate runs a solve with DefaultOptions.
func Calibrate(ds dataset.Dataset, model Model) (*Result, error) {
	return NewSolver(DefaultOptions()).Calibrate(ds, model)
}

// Calibrate jointly estimates the camera matrix, distortion coefficients and
// one pose per entry of ds, minimising reprojection error. ds is only read.
func (s *Solver) Calibrate(ds dataset.Dataset, model Model) (*Result, error) {
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	size, err := commonShape(ds.Shapes())
	if err != nil {
		return nil, err
	}

	obj := make([][]r3.Vec, ds.Len())
	img := make([][]r2.Vec, ds.Len())
	for v, e := range ds.Entries {
		det := e.Detection
		if len(det.ImagePoints) != len(det.ObjectPoints) {
			return nil, errors.Wrapf(ErrSolverDivergence, "view %d has %d image points and %d object points",
				v, len(det.ImagePoints), len(det.ObjectPoints))
		}
		if len(det.ImagePoints) < 4 {
			return nil, errors.Wrapf(ErrSolverDivergence, "view %d has %d points, need at least 4",
				v, len(det.ImagePoints))
		}
		obj[v] = make([]r3.Vec, len(det.ObjectPoints))
		img[v] = make([]r2.Vec, len(det.ImagePoints))
		for i, o := range det.ObjectPoints {
			if math.Abs(o.Z) > planarTolerance {
				return nil, errors.Wrapf(ErrSolverDivergence, "view %d: pattern points must be planar (z = 0)", v)
			}
			obj[v][i] = r3.Vec{X: o.X, Y: o.Y, Z: o.Z}
			img[v][i] = r2.Vec{X: det.ImagePoints[i].X, Y: det.ImagePoints[i].Y}
		}
	}

	var pb *problem
	if model == Fisheye {
		nested := make([][][1]r3.Vec, len(obj))
		for v := range obj {
			nested[v] = expandObjectPoints(ds.Entries[v].Detection.ObjectPoints)
		}
		pb = newFisheyeProblem(nested, img)
	} else {
		pb = newStandardProblem(obj, img)
	}

	if 2*pb.nPoints() < pb.nParams() {
		return nil, errors.Wrapf(ErrSolverDivergence, "%d points cannot determine %d parameters",
			pb.nPoints(), pb.nParams())
	}

	p0, err := initialParams(pb, obj, img, size)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"model": model.String(), "views": pb.views(), "points": pb.nPoints()})
	log.Debug("starting refinement")

	p, cost, iters, err := pb.optimise(p0, s.opts)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, errors.Wrap(ErrSolverDivergence, "reprojection error is not finite")
	}
	if !(p[0] > 0) || !(p[1] > 0) {
		return nil, errors.Wrapf(ErrSolverDivergence, "non-positive focal length (%g, %g)", p[0], p[1])
	}

	res := newResult(pb, p, cost, size)
	log.WithFields(logrus.Fields{"rms": res.RMSError, "iterations": iters}).Info("calibration finished")
	return res, nil
}

// commonShape returns the single image size shared by every view.
func commonShape(shapes []geometry.SizeInt) (geometry.SizeInt, error) {
	first := shapes[0]
	if first.Empty() {
		return first, errors.Wrapf(ErrShapeMismatch, "invalid image size %dx%d", first.Width, first.Height)
	}
	for i, s := range shapes[1:] {
		if s != first {
			return first, errors.Wrapf(ErrShapeMismatch, "image %d is %dx%d, image 0 is %dx%d",
				i+1, s.Width, s.Height, first.Width, first.Height)
		}
	}
	return first, nil
}

// expandObjectPoints gives each pattern point its own singleton row, the
// (N,1,3) layout the fisheye problem is built from.
func expandObjectPoints(pts []geometry.Point3D) [][1]r3.Vec {
	out := make([][1]r3.Vec, len(pts))
	for i, p := range pts {
		out[i][0] = r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

// initialParams builds the starting parameter vector from per-view
// homographies: focal lengths from the orthogonality constraints, zero
// distortion, and poses decomposed from each homography.
func initialParams(pb *problem, obj [][]r3.Vec, img [][]r2.Vec, size geometry.SizeInt) ([]float64, error) {
	hs := make([]*mat.Dense, len(obj))
	for v := range obj {
		flat := make([]r2.Vec, len(obj[v]))
		for i, o := range obj[v] {
			flat[i] = r2.Vec{X: o.X, Y: o.Y}
		}
		h, err := homography(flat, img[v])
		if err != nil {
			return nil, errors.Wrapf(err, "view %d", v)
		}
		hs[v] = h
	}

	k := initIntrinsics(hs, size)
	p := make([]float64, pb.nParams())
	p[0], p[1], p[2], p[3] = k.fx, k.fy, k.cx, k.cy
	for v, h := range hs {
		rvec, tvec, err := initPose(h, k)
		if err != nil {
			return nil, errors.Wrapf(err, "view %d", v)
		}
		o := pb.poseOffset(v)
		copy(p[o:o+6], []float64{rvec.X, rvec.Y, rvec.Z, tvec.X, tvec.Y, tvec.Z})
	}
	return p, nil
}
