package main

import (
	stdimage "image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/image"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndistortFile(t *testing.T) {
	dir := t.TempDir()
	src := stdimage.NewRGBA(stdimage.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, color.Gray{Y: uint8(x * 6)})
		}
	}
	in := filepath.Join(dir, "shot.jpg")
	require.NoError(t, image.Save(src, in))

	res := &calib.Result{
		CameraMatrix: [3][3]float64{{100, 0, 19.5}, {0, 100, 14.5}, {0, 0, 1}},
		DistCoeffs:   make([]float64, calib.Standard.NumDistCoeffs()),
		Model:        calib.Standard,
	}

	out, err := undistortFile(in, "", res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot_undistorted.png"), out)
	frame, err := image.Load(out)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), frame.Image.Bounds())

	outDir := filepath.Join(dir, "flat")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	out, err = undistortFile(in, outDir, res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "shot_undistorted.png"), out)

	res.DistCoeffs = nil
	_, err = undistortFile(in, "", res)
	assert.Error(t, err)
}
