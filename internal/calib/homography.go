package calib

import (
	"math"

	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// minSpread is the smallest principal-variance ratio accepted before a point
// set is treated as collinear.
const minSpread = 1e-6

// normalisation returns the similarity that moves pts to zero mean and
// mean distance √2 from the origin, along with its inverse.
func normalisation(pts []r2.Vec) (t, inv *mat.Dense) {
	var c r2.Vec
	for _, p := range pts {
		c = r2.Add(c, p)
	}
	c = r2.Scale(1/float64(len(pts)), c)

	var mean float64
	for _, p := range pts {
		mean += r2.Norm(r2.Sub(p, c))
	}
	mean /= float64(len(pts))
	s := math.Sqrt2 / mean

	t = mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	})
	inv = mat.NewDense(3, 3, []float64{
		1 / s, 0, c.X,
		0, 1 / s, c.Y,
		0, 0, 1,
	})
	return t, inv
}

// homography estimates H with img ~ H·[obj, 1] by the normalised direct
// linear transform.
func homography(obj, img []r2.Vec) (*mat.Dense, error) {
	if len(obj) < 4 || len(obj) != len(img) {
		return nil, errors.Wrapf(ErrSolverDivergence, "homography needs at least 4 point pairs, got %d", len(obj))
	}
	if spread(obj) < minSpread || spread(img) < minSpread {
		return nil, errors.Wrap(ErrSolverDivergence, "points are collinear")
	}

	to, _ := normalisation(obj)
	ti, tiInv := normalisation(img)

	a := mat.NewDense(2*len(obj), 9, nil)
	for i := range obj {
		o := apply(to, obj[i])
		p := apply(ti, img[i])
		a.SetRow(2*i, []float64{-o.X, -o.Y, -1, 0, 0, 0, p.X * o.X, p.X * o.Y, p.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -o.X, -o.Y, -1, p.Y * o.X, p.Y * o.Y, p.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return nil, errors.Wrap(ErrSolverDivergence, "homography SVD failed")
	}
	sv := svd.Values(nil)
	if sv[7] <= 1e-10*sv[0] {
		return nil, errors.Wrap(ErrSolverDivergence, "degenerate point configuration")
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, mat.Col(nil, 8, &v))

	var h mat.Dense
	h.Product(tiInv, hn, to)
	if z := h.At(2, 2); math.Abs(z) > 1e-12 {
		h.Scale(1/z, &h)
	}
	return &h, nil
}

func apply(h mat.Matrix, p r2.Vec) r2.Vec {
	x := h.At(0, 0)*p.X + h.At(0, 1)*p.Y + h.At(0, 2)
	y := h.At(1, 0)*p.X + h.At(1, 1)*p.Y + h.At(1, 2)
	w := h.At(2, 0)*p.X + h.At(2, 1)*p.Y + h.At(2, 2)
	return r2.Vec{X: x / w, Y: y / w}
}

func spread(pts []r2.Vec) float64 {
	g := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		g[i] = geometry.Point2D{X: p.X, Y: p.Y}
	}
	return geometry.Spread(g)
}
