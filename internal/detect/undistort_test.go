package detect

import (
	"image"
	"image/color"
	"testing"

	"camera-calibration/internal/calib"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func pinhole(model calib.Model, w, h int) *calib.Result {
	return &calib.Result{
		CameraMatrix: [3][3]float64{{200, 0, float64(w-1) / 2}, {0, 200, float64(h-1) / 2}, {0, 0, 1}},
		DistCoeffs:   make([]float64, model.NumDistCoeffs()),
		Model:        model,
	}
}

func TestUndistortZeroDistortionIsIdentity(t *testing.T) {
	img := gradient(64, 48)
	out, err := Undistort(img, pinhole(calib.Standard, 64, 48))
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), out.Bounds())

	for _, p := range []image.Point{{10, 10}, {32, 24}, {50, 40}} {
		want, got := img.RGBAAt(p.X, p.Y), out.RGBAAt(p.X, p.Y)
		assert.InDelta(t, float64(want.R), float64(got.R), 1, "%v", p)
		assert.InDelta(t, float64(want.G), float64(got.G), 1, "%v", p)
	}
}

func TestUndistortFisheyeKeepsCentre(t *testing.T) {
	img := gradient(65, 49)
	out, err := Undistort(img, pinhole(calib.Fisheye, 65, 49))
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), out.Bounds())

	want, got := img.RGBAAt(32, 24), out.RGBAAt(32, 24)
	assert.InDelta(t, float64(want.R), float64(got.R), 2)
	assert.InDelta(t, float64(want.G), float64(got.G), 2)
}

func TestUndistortRejectsBadInput(t *testing.T) {
	img := gradient(64, 48)

	_, err := Undistort(nil, pinhole(calib.Standard, 64, 48))
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Undistort(img, nil)
	assert.True(t, errors.Is(err, ErrBadCalibration))

	r := pinhole(calib.Standard, 64, 48)
	r.DistCoeffs = r.DistCoeffs[:4]
	_, err = Undistort(img, r)
	assert.True(t, errors.Is(err, ErrBadCalibration))

	r = pinhole(calib.Standard, 64, 48)
	r.CameraMatrix[0][0] = 0
	_, err = Undistort(img, r)
	assert.True(t, errors.Is(err, ErrBadCalibration))

	r = pinhole(calib.Standard, 64, 48)
	r.ImageSize = geometry.NewSizeInt(640, 480)
	_, err = Undistort(img, r)
	assert.True(t, errors.Is(err, ErrBadCalibration))
}
