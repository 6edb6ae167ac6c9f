package calib

import (
	"math"

	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// initIntrinsics estimates focal lengths from the view homographies with the
// principal point fixed at the image centre. Each homography contributes two
// orthogonality constraints on (1/fx², 1/fy²): between its first two
// columns and between their sum and difference.
func initIntrinsics(hs []*mat.Dense, size geometry.SizeInt) intrinsics {
	c := size.Center()
	k := intrinsics{cx: c.X, cy: c.Y}
	fallback := float64(max(size.Width, size.Height))

	a := mat.NewDense(2*len(hs), 2, nil)
	b := mat.NewVecDense(2*len(hs), nil)
	for i, h := range hs {
		var hc, vc, d1, d2 [3]float64
		for j := 0; j < 3; j++ {
			hc[j] = h.At(j, 0) - h.At(2, 0)*pick(j, c.X, c.Y)
			vc[j] = h.At(j, 1) - h.At(2, 1)*pick(j, c.X, c.Y)
		}
		for j := 0; j < 3; j++ {
			d1[j] = (hc[j] + vc[j]) / 2
			d2[j] = (hc[j] - vc[j]) / 2
		}
		normalise(&hc)
		normalise(&vc)
		normalise(&d1)
		normalise(&d2)

		a.SetRow(2*i, []float64{hc[0] * vc[0], hc[1] * vc[1]})
		b.SetVec(2*i, -hc[2]*vc[2])
		a.SetRow(2*i+1, []float64{d1[0] * d2[0], d1[1] * d2[1]})
		b.SetVec(2*i+1, -d1[2]*d2[2])
	}

	var f mat.VecDense
	if err := f.SolveVec(a, b); err != nil {
		k.fx, k.fy = fallback, fallback
		return k
	}
	k.fx = math.Sqrt(math.Abs(1 / f.AtVec(0)))
	k.fy = math.Sqrt(math.Abs(1 / f.AtVec(1)))
	if !usableFocal(k.fx, fallback) || !usableFocal(k.fy, fallback) {
		k.fx, k.fy = fallback, fallback
	}
	return k
}

// usableFocal rejects estimates that are non-finite or wildly out of scale,
// as happens when every view is nearly fronto-parallel.
func usableFocal(f, ref float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > ref/100 && f < ref*100
}

func pick(j int, cx, cy float64) float64 {
	switch j {
	case 0:
		return cx
	case 1:
		return cy
	}
	return 0
}

func normalise(v *[3]float64) {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// initPose recovers a view's rotation and translation from its homography
// and the intrinsics. The pattern is kept in front of the camera.
func initPose(h *mat.Dense, k intrinsics) (rvec, tvec r3.Vec, err error) {
	kinv := mat.NewDense(3, 3, []float64{
		1 / k.fx, 0, -k.cx / k.fx,
		0, 1 / k.fy, -k.cy / k.fy,
		0, 0, 1,
	})
	var m mat.Dense
	m.Mul(kinv, h)

	col := func(j int) r3.Vec {
		return r3.Vec{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
	}
	m1, m2, m3 := col(0), col(1), col(2)
	n1, n2 := r3.Norm(m1), r3.Norm(m2)
	if n1 == 0 || n2 == 0 {
		return rvec, tvec, errors.Wrap(ErrSolverDivergence, "degenerate homography")
	}
	lambda := 2 / (n1 + n2)
	if m3.Z < 0 {
		lambda = -lambda
	}

	r1 := r3.Scale(lambda, m1)
	r2 := r3.Scale(lambda, m2)
	r3v := r3.Cross(r1, r2)
	tvec = r3.Scale(lambda, m3)

	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	var svd mat.SVD
	if !svd.Factorize(rot, mat.SVDFull) {
		return rvec, tvec, errors.Wrap(ErrSolverDivergence, "rotation SVD failed")
	}
	var u, v, q mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	q.Mul(&u, v.T())
	if mat.Det(&q) < 0 {
		// Flip the last singular direction to keep a proper rotation.
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		q.Mul(&u, v.T())
	}

	var rm [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm[i][j] = q.At(i, j)
		}
	}
	return rotationVector(rm), tvec, nil
}
