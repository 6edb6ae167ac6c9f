package calib

import (
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// problem is the joint reprojection least-squares problem. The parameter
// vector is [fx fy cx cy | dist | (rvec, tvec) per view].
type problem struct {
	model Model
	obs   [][]r2.Vec
	// point returns pattern point i of view v.
	point func(v, i int) r3.Vec
	// count returns the number of points in view v.
	count func(v int) int
}

// newStandardProblem builds the pinhole problem from flat (N,3) object points.
func newStandardProblem(obj [][]r3.Vec, img [][]r2.Vec) *problem {
	return &problem{
		model: Standard,
		obs:   img,
		point: func(v, i int) r3.Vec { return obj[v][i] },
		count: func(v int) int { return len(obj[v]) },
	}
}

// newFisheyeProblem builds the fisheye problem. Object points must carry the
// singleton middle dimension, (N,1,3); see expandObjectPoints.
func newFisheyeProblem(obj [][][1]r3.Vec, img [][]r2.Vec) *problem {
	return &problem{
		model: Fisheye,
		obs:   img,
		point: func(v, i int) r3.Vec { return obj[v][i][0] },
		count: func(v int) int { return len(obj[v]) },
	}
}

func (pb *problem) views() int      { return len(pb.obs) }
func (pb *problem) nIntrinsic() int { return 4 + pb.model.NumDistCoeffs() }
func (pb *problem) nParams() int    { return pb.nIntrinsic() + 6*pb.views() }

func (pb *problem) nPoints() int {
	n := 0
	for v := range pb.obs {
		n += pb.count(v)
	}
	return n
}

func (pb *problem) poseOffset(v int) int {
	return pb.nIntrinsic() + 6*v
}

// unpack splits a parameter vector into camera, distortion and the pose of
// view v.
func (pb *problem) unpack(p []float64, v int) (intrinsics, []float64, pose) {
	k := intrinsics{fx: p[0], fy: p[1], cx: p[2], cy: p[3]}
	dist := p[4:pb.nIntrinsic()]
	o := pb.poseOffset(v)
	ps := newPose(
		r3.Vec{X: p[o], Y: p[o+1], Z: p[o+2]},
		r3.Vec{X: p[o+3], Y: p[o+4], Z: p[o+5]},
	)
	return k, dist, ps
}

// residuals writes observed minus projected coordinates of view v into out,
// which must have length 2*count(v).
func (pb *problem) residuals(p []float64, v int, out []float64) {
	k, dist, ps := pb.unpack(p, v)
	for i, o := range pb.obs[v] {
		q := project(pb.model, k, dist, ps, pb.point(v, i))
		out[2*i] = o.X - q.X
		out[2*i+1] = o.Y - q.Y
	}
}

// viewCost is the sum of squared residuals of view v.
func (pb *problem) viewCost(p []float64, v int, buf []float64) float64 {
	buf = buf[:2*pb.count(v)]
	pb.residuals(p, v, buf)
	return floats.Dot(buf, buf)
}

func (pb *problem) cost(p []float64) float64 {
	var total float64
	buf := make([]float64, 0, 2*pb.maxCount())
	for v := range pb.obs {
		total += pb.viewCost(p, v, buf[:cap(buf)])
	}
	return total
}

func (pb *problem) maxCount() int {
	n := 0
	for v := range pb.obs {
		n = max(n, pb.count(v))
	}
	return n
}

// normalEquations returns JᵀJ and Jᵀe at p. Each view only touches the
// intrinsic columns and its own six pose columns, so blocks are built per
// view in parallel and scattered into the full system.
func (pb *problem) normalEquations(p []float64) (*mat.SymDense, *mat.VecDense) {
	ni := pb.nIntrinsic()
	np := pb.nParams()
	cols := ni + 6

	type block struct {
		v   int
		jtj mat.SymDense
		jte mat.VecDense
	}
	blocks := make([]block, pb.views())

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(runtime.NumCPU(), pb.views()); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := append([]float64(nil), p...)
			for v := range work {
				n := 2 * pb.count(v)
				jac := mat.NewDense(n, cols, nil)
				e := make([]float64, n)
				plus := make([]float64, n)
				minus := make([]float64, n)
				pb.residuals(local, v, e)

				for c := 0; c < cols; c++ {
					j := c
					if c >= ni {
						j = pb.poseOffset(v) + c - ni
					}
					h := 1e-6 * math.Max(math.Abs(local[j]), 1)
					orig := local[j]
					local[j] = orig + h
					pb.residuals(local, v, plus)
					local[j] = orig - h
					pb.residuals(local, v, minus)
					local[j] = orig
					for r := 0; r < n; r++ {
						jac.Set(r, c, (plus[r]-minus[r])/(2*h))
					}
				}

				b := &blocks[v]
				b.v = v
				b.jtj.SymOuterK(1, jac.T())
				b.jte.MulVec(jac.T(), mat.NewVecDense(n, e))
			}
		}()
	}
	for v := 0; v < pb.views(); v++ {
		work <- v
	}
	close(work)
	wg.Wait()

	jtj := mat.NewSymDense(np, nil)
	jte := mat.NewVecDense(np, nil)
	for _, b := range blocks {
		index := func(c int) int {
			if c < ni {
				return c
			}
			return pb.poseOffset(b.v) + c - ni
		}
		for a := 0; a < cols; a++ {
			ia := index(a)
			jte.SetVec(ia, jte.AtVec(ia)+b.jte.AtVec(a))
			for c := a; c < cols; c++ {
				ic := index(c)
				jtj.SetSym(ia, ic, jtj.At(ia, ic)+b.jtj.At(a, c))
			}
		}
	}
	return jtj, jte
}

// Options controls the Levenberg–Marquardt refinement.
type Options struct {
	// MaxIterations bounds the number of accepted steps.
	MaxIterations int
	// Tolerance stops the solver once the relative cost decrease or the
	// relative step length falls below it.
	Tolerance float64
	// InitialDamping is the starting Marquardt parameter.
	InitialDamping float64
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations:  100,
		Tolerance:      1e-12,
		InitialDamping: 1e-3,
	}
}

const maxDamping = 1e16

// optimise minimises the reprojection cost from p0 with Marquardt-scaled
// damping. It returns the refined parameters, final cost and iterations.
func (pb *problem) optimise(p0 []float64, opts Options) ([]float64, float64, int, error) {
	p := append([]float64(nil), p0...)
	cost := pb.cost(p)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, 0, 0, errors.Wrap(ErrSolverDivergence, "initial estimate is not finite")
	}

	np := len(p)
	lambda := opts.InitialDamping
	trial := make([]float64, np)
	iter := 0
	for ; iter < opts.MaxIterations && cost > 0; iter++ {
		jtj, jte := pb.normalEquations(p)

		improved := false
		for lambda < maxDamping {
			damped := mat.NewSymDense(np, nil)
			damped.CopySym(jtj)
			for i := 0; i < np; i++ {
				d := jtj.At(i, i)
				damped.SetSym(i, i, d+lambda*(d+1e-12))
			}

			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= 10
				continue
			}
			var delta mat.VecDense
			// J is of the residual (observed - projected), so the
			// Gauss–Newton step is -(JᵀJ)⁻¹Jᵀe.
			if err := chol.SolveVecTo(&delta, jte); err != nil {
				lambda *= 10
				continue
			}
			for i := range trial {
				trial[i] = p[i] - delta.AtVec(i)
			}

			next := pb.cost(trial)
			if !math.IsNaN(next) && next < cost {
				step := floats.Norm(delta.RawVector().Data, 2)
				decrease := (cost - next) / cost
				copy(p, trial)
				cost = next
				lambda = math.Max(lambda/10, 1e-15)
				improved = true
				if decrease < opts.Tolerance || step < opts.Tolerance*(floats.Norm(p, 2)+opts.Tolerance) {
					return p, cost, iter + 1, nil
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			// No damped step reduces the cost: p is a local minimum.
			break
		}
	}
	return p, cost, iter, nil
}
