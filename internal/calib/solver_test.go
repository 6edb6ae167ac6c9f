package calib

import (
	"math"
	"strings"
	"testing"

	"camera-calibration/internal/dataset"
	"camera-calibration/internal/pattern"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var board = pattern.Spec{Kind: pattern.Circles, Cols: 9, Rows: 6, UnitSize: 25, RadiusRatio: 5}

// tilted views of a 200x125 mm board roughly centred in front of the camera.
var viewPoses = []struct{ r, t r3.Vec }{
	{r3.Vec{X: 0.2, Y: 0.1, Z: 0}, r3.Vec{X: -100, Y: -60, Z: 600}},
	{r3.Vec{X: -0.25, Y: 0.15, Z: 0.05}, r3.Vec{X: -90, Y: -70, Z: 650}},
	{r3.Vec{X: 0.1, Y: -0.3, Z: -0.1}, r3.Vec{X: -110, Y: -50, Z: 550}},
	{r3.Vec{X: 0.3, Y: 0.25, Z: 0.2}, r3.Vec{X: -80, Y: -65, Z: 700}},
	{r3.Vec{X: -0.2, Y: -0.2, Z: 0.1}, r3.Vec{X: -105, Y: -55, Z: 620}},
}

type camera struct {
	model Model
	k     intrinsics
	dist  []float64
}

func synthetic(cam camera, size geometry.SizeInt, scale float64) dataset.Dataset {
	obj := board.ObjectPoints()
	var ds dataset.Dataset
	for v, vp := range viewPoses {
		t := r3.Scale(scale, vp.t)
		ps := newPose(vp.r, t)
		img := make([]geometry.Point2D, len(obj))
		for i, o := range obj {
			q := project(cam.model, cam.k, cam.dist, ps, r3.Vec{X: o.X, Y: o.Y, Z: o.Z})
			img[i] = geometry.Point2D{X: q.X, Y: q.Y}
		}
		ds.Entries = append(ds.Entries, dataset.Entry{
			ID: dataset.ID(v + 1),
			Detection: pattern.Detection{
				ImagePoints:  img,
				ObjectPoints: obj,
				ImageSize:    size,
				Success:      true,
			},
			Shape: size,
		})
	}
	return ds
}

func TestCalibrateStandardNoDistortion(t *testing.T) {
	size := geometry.NewSizeInt(640, 480)
	cam := camera{model: Standard, k: intrinsics{fx: 800, fy: 810, cx: 322, cy: 236}, dist: make([]float64, 5)}
	ds := synthetic(cam, size, 1)

	res, err := Calibrate(ds, Standard)
	require.NoError(t, err)

	assert.Less(t, res.RMSError, 1.0)
	assert.Less(t, res.RMSError, 1e-3)
	assert.InEpsilon(t, 800, res.Fx(), 1e-3)
	assert.InEpsilon(t, 810, res.Fy(), 1e-3)
	assert.InDelta(t, 322, res.Cx(), 0.5)
	assert.InDelta(t, 236, res.Cy(), 0.5)
	assert.Zero(t, res.Skew())
	assert.Equal(t, 1.0, res.CameraMatrix[2][2])

	require.Len(t, res.DistCoeffs, 5)
	for i, d := range res.DistCoeffs {
		assert.InDelta(t, 0, d, 1e-3, "coefficient %d", i)
	}
	assert.Equal(t, Standard, res.Model)
	assert.Equal(t, size, res.ImageSize)
	assert.Equal(t, len(viewPoses), res.Views())
	assert.Len(t, res.TranslationVecs, len(viewPoses))

	for v, e := range res.PerViewErrors() {
		assert.Less(t, e, 1e-3, "view %d", v)
	}
}

func TestCalibrateStandardWithDistortion(t *testing.T) {
	size := geometry.NewSizeInt(640, 480)
	cam := camera{model: Standard, k: intrinsics{fx: 700, fy: 700, cx: 319.5, cy: 239.5},
		dist: []float64{-0.12, 0.03, 0.001, -0.0005, 0}}
	ds := synthetic(cam, size, 1)

	res, err := Calibrate(ds, Standard)
	require.NoError(t, err)
	assert.Less(t, res.RMSError, 0.01)
	assert.InEpsilon(t, 700, res.Fx(), 0.01)
	assert.InDelta(t, -0.12, res.DistCoeffs[0], 0.02)
	assert.InDelta(t, 0.001, res.DistCoeffs[2], 0.001)
}

func TestCalibrateFisheye(t *testing.T) {
	size := geometry.NewSizeInt(640, 480)
	cam := camera{model: Fisheye, k: intrinsics{fx: 400, fy: 400, cx: 319.5, cy: 239.5},
		dist: []float64{0.02, -0.01, 0.005, 0}}
	ds := synthetic(cam, size, 0.5)

	res, err := Calibrate(ds, Fisheye)
	require.NoError(t, err)
	assert.Equal(t, Fisheye, res.Model)
	require.Len(t, res.DistCoeffs, 4)
	assert.Less(t, res.RMSError, 0.01)
	assert.InEpsilon(t, 400, res.Fx(), 0.01)
	assert.InEpsilon(t, 400, res.Fy(), 0.01)
}

func TestProjectMatchesObservations(t *testing.T) {
	size := geometry.NewSizeInt(640, 480)
	cam := camera{model: Standard, k: intrinsics{fx: 800, fy: 800, cx: 319.5, cy: 239.5}, dist: make([]float64, 5)}
	ds := synthetic(cam, size, 1)

	res, err := Calibrate(ds, Standard)
	require.NoError(t, err)

	det := ds.Entries[2].Detection
	got := res.Project(2, det.ObjectPoints)
	require.Len(t, got, len(det.ImagePoints))
	for i := range got {
		assert.InDelta(t, det.ImagePoints[i].X, got[i].X, 1e-2)
		assert.InDelta(t, det.ImagePoints[i].Y, got[i].Y, 1e-2)
	}
	assert.Nil(t, res.Project(len(viewPoses), det.ObjectPoints))
}

func TestCalibratePreconditions(t *testing.T) {
	_, err := Calibrate(dataset.Dataset{}, Standard)
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	size := geometry.NewSizeInt(640, 480)
	cam := camera{model: Standard, k: intrinsics{fx: 800, fy: 800, cx: 319.5, cy: 239.5}, dist: make([]float64, 5)}
	ds := synthetic(cam, size, 1)
	ds.Entries[3].Shape = geometry.NewSizeInt(800, 600)

	res, err := Calibrate(ds, Standard)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Nil(t, res)

	res, err = Calibrate(ds, Fisheye)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Nil(t, res)
}

func TestCalibrateDegenerate(t *testing.T) {
	size := geometry.NewSizeInt(640, 480)
	entry := func(obj []geometry.Point3D, img []geometry.Point2D) dataset.Entry {
		return dataset.Entry{
			Detection: pattern.Detection{ImagePoints: img, ObjectPoints: obj, ImageSize: size, Success: true},
			Shape:     size,
		}
	}

	// Collinear pattern points.
	var obj []geometry.Point3D
	var img []geometry.Point2D
	for i := 0; i < 20; i++ {
		obj = append(obj, geometry.Point3D{X: float64(i) * 10})
		img = append(img, geometry.Point2D{X: 100 + float64(i)*12, Y: 200 + float64(i)*3})
	}
	_, err := Calibrate(dataset.Dataset{Entries: []dataset.Entry{entry(obj, img)}}, Standard)
	assert.True(t, errors.Is(err, ErrSolverDivergence), "%v", err)

	// Fewer than four correspondences.
	_, err = Calibrate(dataset.Dataset{Entries: []dataset.Entry{entry(obj[:3], img[:3])}}, Standard)
	assert.True(t, errors.Is(err, ErrSolverDivergence), "%v", err)

	// Mismatched counts.
	_, err = Calibrate(dataset.Dataset{Entries: []dataset.Entry{entry(obj, img[:10])}}, Fisheye)
	assert.True(t, errors.Is(err, ErrSolverDivergence), "%v", err)

	// Non-planar pattern.
	bent := append([]geometry.Point3D(nil), board.ObjectPoints()...)
	bent[5].Z = 3
	flat := make([]geometry.Point2D, len(bent))
	for i, b := range bent {
		flat[i] = geometry.Point2D{X: b.X + 50, Y: b.Y*1.1 + 40}
	}
	_, err = Calibrate(dataset.Dataset{Entries: []dataset.Entry{entry(bent, flat)}}, Standard)
	assert.True(t, errors.Is(err, ErrSolverDivergence), "%v", err)
}

func TestExpandObjectPoints(t *testing.T) {
	pts := board.ObjectPoints()
	nested := expandObjectPoints(pts)

	// (N, 1, 3): one singleton row per point.
	require.Len(t, nested, len(pts))
	for i, row := range nested {
		require.Len(t, row, 1)
		assert.Equal(t, r3.Vec{X: pts[i].X, Y: pts[i].Y, Z: pts[i].Z}, row[0])
	}

	pb := newFisheyeProblem([][][1]r3.Vec{nested}, nil)
	assert.Equal(t, len(pts), pb.count(0))
	assert.Equal(t, nested[7][0], pb.point(0, 7))
}

func TestRodriguesRoundTrip(t *testing.T) {
	vecs := []r3.Vec{
		{},
		{X: 1e-9, Y: -2e-9, Z: 0},
		{X: 0.3, Y: -0.2, Z: 0.1},
		{X: 0, Y: 0, Z: 2.5},
		{X: math.Pi, Y: 0, Z: 0},
		{X: 0, Y: math.Pi / math.Sqrt2, Z: math.Pi / math.Sqrt2},
	}
	for _, v := range vecs {
		got := rotationVector(rodrigues(v))
		// Rotations by π about k and -k are equal; compare matrices.
		want, back := rodrigues(v), rodrigues(got)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, want[i][j], back[i][j], 1e-9, "%v", v)
			}
		}
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("Fisheye")
	require.NoError(t, err)
	assert.Equal(t, Fisheye, m)
	m, err = ParseModel("standard")
	require.NoError(t, err)
	assert.Equal(t, Standard, m)
	_, err = ParseModel("omni")
	assert.Error(t, err)
	assert.Equal(t, 4, Fisheye.NumDistCoeffs())
	assert.Equal(t, 5, Standard.NumDistCoeffs())
}

func TestFormatResult(t *testing.T) {
	r := &Result{
		RMSError:        0.25,
		CameraMatrix:    [3][3]float64{{812.4, 0, 319.6}, {0, 809.9, 240.2}, {0, 0, 1}},
		DistCoeffs:      []float64{-0.1, 0.02, 0, 0.001, 0},
		RotationVecs:    [][3]float64{{}},
		TranslationVecs: [][3]float64{{}},
		Model:           Standard,
	}
	out := FormatResult(r)
	assert.True(t, strings.HasPrefix(out, "Results:\n\nRMS Error,\n0.25\n"))
	assert.Contains(t, out, "fx = 812\nfy = 810\n")
	assert.Contains(t, out, "cx = 320\ncy = 240\n")
	assert.Contains(t, out, "[[812   0 319]\n [  0 809 240]\n [  0   0   1]]")
	assert.Contains(t, out, "k1 = -0.1000\n")
	assert.Contains(t, out, "p2 = 0.0010\n")

	r.Model = Fisheye
	r.DistCoeffs = []float64{0.1, 0.2, 0.3, 0.4}
	assert.Contains(t, FormatResult(r), "k4 = 0.4000\n")
}
