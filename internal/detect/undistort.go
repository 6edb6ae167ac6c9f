package detect

import (
	"image"

	"camera-calibration/internal/calib"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrBadCalibration is returned when a result cannot drive undistortion.
var ErrBadCalibration = errors.New("unusable calibration result")

// Undistort removes lens distortion from img using r. The output keeps the
// input size and camera matrix. Results that record an image size only
// apply to images of that size.
func Undistort(img image.Image, r *calib.Result) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if r == nil {
		return nil, errors.Wrap(ErrBadCalibration, "no result")
	}
	if want := r.Model.NumDistCoeffs(); len(r.DistCoeffs) != want {
		return nil, errors.Wrapf(ErrBadCalibration, "%s model needs %d distortion coefficients, got %d",
			r.Model, want, len(r.DistCoeffs))
	}
	if r.Fx() <= 0 || r.Fy() <= 0 {
		return nil, errors.Wrapf(ErrBadCalibration, "focal length must be positive, got %g, %g", r.Fx(), r.Fy())
	}
	size := geometry.NewSizeInt(img.Bounds().Dx(), img.Bounds().Dy())
	if !r.ImageSize.Empty() && r.ImageSize != size {
		return nil, errors.Wrapf(ErrBadCalibration, "calibrated for %dx%d, image is %dx%d",
			r.ImageSize.Width, r.ImageSize.Height, size.Width, size.Height)
	}

	src := imageToBGR(img)
	defer src.Close()
	k := cameraMatrixMat(r.CameraMatrix)
	defer k.Close()
	d := gocv.NewMatWithSize(1, len(r.DistCoeffs), gocv.MatTypeCV64F)
	defer d.Close()
	for i, c := range r.DistCoeffs {
		d.SetDoubleAt(0, i, c)
	}

	dst := gocv.NewMat()
	defer dst.Close()
	switch r.Model {
	case calib.Fisheye:
		gocv.FisheyeUndistortImageWithParams(src, &dst, k, d, k, image.Pt(size.Width, size.Height))
	default:
		gocv.Undistort(src, &dst, k, d, k)
	}
	if dst.Empty() {
		return nil, errors.Wrap(ErrBadCalibration, "undistortion produced no image")
	}
	return bgrToImage(dst), nil
}

func cameraMatrixMat(m [3][3]float64) gocv.Mat {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			k.SetDoubleAt(i, j, m[i][j])
		}
	}
	return k
}
