// Package detect locates calibration pattern feature points in images.
package detect

import (
	"image"
	"math"
	"sort"

	"camera-calibration/internal/grid"
	"camera-calibration/internal/pattern"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Detector finds a pattern's feature points. It holds no per-image state
// and is safe for concurrent use.
type Detector struct {
	params Params
	log    *logrus.Entry
}

// New creates a Detector with the given parameters.
func New(params Params) *Detector {
	return &Detector{
		params: params,
		log:    logrus.WithField("component", "detect"),
	}
}

// Detect looks for spec in img. It never panics and never returns an error
// value: failures come back as a Detection with Success false and Err set.
func (d *Detector) Detect(img image.Image, spec pattern.Spec) pattern.Detection {
	if img == nil || img.Bounds().Empty() {
		return pattern.Failed(geometry.SizeInt{}, ErrEmptyImage)
	}
	gray := imageToGray(img)
	defer gray.Close()
	return d.DetectMat(gray, spec)
}

// DetectMat is Detect for callers already holding a Mat. Grayscale, BGR and
// BGRA inputs are accepted.
func (d *Detector) DetectMat(src gocv.Mat, spec pattern.Spec) pattern.Detection {
	if src.Empty() {
		return pattern.Failed(geometry.SizeInt{}, ErrEmptyImage)
	}
	size := geometry.NewSizeInt(src.Cols(), src.Rows())
	if err := spec.Validate(); err != nil {
		return pattern.Failed(size, err)
	}

	gray := src
	if src.Channels() != 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		code := gocv.ColorBGRToGray
		if src.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gocv.CvtColor(src, &gray, code)
	}

	var (
		pts []geometry.Point2D
		err error
	)
	switch spec.Kind {
	case pattern.Checkerboard:
		pts, err = d.findCorners(gray, spec)
	default:
		pts, err = d.findCircles(gray, spec)
	}
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"pattern": spec.String(),
			"width":   size.Width,
			"height":  size.Height,
		}).Debugf("detection failed: %v", err)
		return pattern.Failed(size, err)
	}

	g := spec.GridSize()
	return pattern.Detection{
		ImagePoints:  pts,
		ObjectPoints: spec.ObjectPoints(),
		ImageSize:    size,
		Success:      true,
		Grid:         geometry.PointInt{X: g.X, Y: g.Y},
	}
}

func (d *Detector) findCorners(gray gocv.Mat, spec pattern.Spec) ([]geometry.Point2D, error) {
	g := spec.GridSize()
	// OpenCV rejects chessboards with fewer than three inner corners per side.
	if g.X < 3 || g.Y < 3 {
		return nil, errors.Wrapf(pattern.ErrInvalidSpec,
			"checkerboard needs at least 4x4 squares, got %dx%d", spec.Cols, spec.Rows)
	}

	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(gray, g, &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	if !found || corners.Rows()*corners.Cols() != g.X*g.Y {
		return nil, errors.Wrapf(ErrPatternNotFound, "no %dx%d chessboard corners", g.X, g.Y)
	}

	win := d.params.subPixWindow(minSpacing(readCorners(&corners), g.X))
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, d.params.SubPixMaxIter, d.params.SubPixEpsilon)
	gocv.CornerSubPix(gray, &corners, image.Pt(win, win), image.Pt(-1, -1), criteria)

	return readCorners(&corners), nil
}

// readCorners unpacks an Nx1 CV_32FC2 corner Mat.
func readCorners(corners *gocv.Mat) []geometry.Point2D {
	n := corners.Rows() * corners.Cols()
	pts := make([]geometry.Point2D, n)
	for i := 0; i < n; i++ {
		v := corners.GetVecfAt(i, 0)
		pts[i] = geometry.Point2D{X: float64(v[0]), Y: float64(v[1])}
	}
	return pts
}

// minSpacing is the smallest distance between horizontally or vertically
// adjacent corners of a row-major grid with the given row length.
func minSpacing(pts []geometry.Point2D, perRow int) float64 {
	best := math.Inf(1)
	for i := range pts {
		if (i+1)%perRow != 0 && i+1 < len(pts) {
			best = math.Min(best, pts[i].Distance(pts[i+1]))
		}
		if i+perRow < len(pts) {
			best = math.Min(best, pts[i].Distance(pts[i+perRow]))
		}
	}
	return best
}

type blob struct {
	centre geometry.Point2D
	area   float64
}

func (d *Detector) findCircles(gray gocv.Mat, spec pattern.Spec) ([]geometry.Point2D, error) {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	// Dark circles on a light background become foreground.
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	w, h := gray.Cols(), gray.Rows()
	var blobs []blob
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < d.params.MinBlobArea {
			continue
		}
		perimeter := gocv.ArcLength(contour, true)
		if perimeter <= 0 || 4*math.Pi*area/(perimeter*perimeter) < d.params.MinCircularity {
			continue
		}

		raw := contour.ToPoints()
		poly := make([]geometry.Point2D, len(raw))
		touches := false
		for k, p := range raw {
			if p.X <= 0 || p.Y <= 0 || p.X >= w-1 || p.Y >= h-1 {
				touches = true
				break
			}
			poly[k] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
		}
		if touches {
			continue
		}
		blobs = append(blobs, blob{centre: geometry.PolygonCentroid(poly), area: area})
	}

	blobs = dominantSize(blobs, d.params.AreaTolerance)
	want := spec.PointCount()
	if len(blobs) != want {
		return nil, errors.Wrapf(ErrPatternNotFound, "found %d circles, expected %d", len(blobs), want)
	}

	centres := make([]geometry.Point2D, len(blobs))
	for i, b := range blobs {
		centres[i] = b.centre
	}

	lattice := grid.Rectangular
	if spec.Kind == pattern.AsymmetricCircles {
		lattice = grid.Staggered
	}
	g := spec.GridSize()
	ordered, err := grid.Order(centres, g.X, g.Y, lattice)
	if err != nil {
		return nil, errors.Wrap(ErrPatternNotFound, err.Error())
	}
	return ordered, nil
}

// dominantSize keeps the blobs whose area is within tol of the median area.
func dominantSize(blobs []blob, tol float64) []blob {
	if len(blobs) == 0 {
		return nil
	}
	areas := make([]float64, len(blobs))
	for i, b := range blobs {
		areas[i] = b.area
	}
	sort.Float64s(areas)
	median := areas[len(areas)/2]

	kept := blobs[:0:0]
	for _, b := range blobs {
		if math.Abs(b.area-median) <= tol*median {
			kept = append(kept, b)
		}
	}
	return kept
}
