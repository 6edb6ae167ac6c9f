// Package codec persists calibration results as JSON (structured text) or
// NPZ (named binary arrays). Both forms carry the camera matrix K, the
// distortion vector D and the fisheye model flag.
package codec

import (
	"os"
	"path/filepath"
	"strings"

	"camera-calibration/internal/calib"

	"github.com/pkg/errors"
)

// ErrCodec is returned for unknown formats and malformed or incomplete data.
var ErrCodec = errors.New("invalid calibration data")

// Format selects the persisted form.
type Format int

const (
	// StructuredText is a JSON object with keys K, D and fisheye.
	StructuredText Format = iota
	// BinaryArray is a NumPy .npz archive with entries K, D and fisheye.
	BinaryArray
)

func (f Format) String() string {
	switch f {
	case StructuredText:
		return "json"
	case BinaryArray:
		return "npz"
	}
	return "unknown"
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return StructuredText, nil
	case ".npz":
		return BinaryArray, nil
	}
	return 0, errors.Wrapf(ErrCodec, "unsupported file extension %q (want .json or .npz)", filepath.Ext(path))
}

// Encode serialises the camera matrix, distortion vector and model of r.
func Encode(r *calib.Result, f Format) ([]byte, error) {
	if r == nil {
		return nil, errors.Wrap(ErrCodec, "nil result")
	}
	if err := checkModel(len(r.DistCoeffs), r.Model == calib.Fisheye); err != nil {
		return nil, err
	}
	switch f {
	case StructuredText:
		return encodeJSON(r)
	case BinaryArray:
		return encodeNPZ(r)
	}
	return nil, errors.Wrapf(ErrCodec, "unknown format %d", int(f))
}

// Decode parses data written by Encode or by compatible tools. The returned
// result carries no RMS error, poses or image size.
func Decode(data []byte, f Format) (*calib.Result, error) {
	switch f {
	case StructuredText:
		return decodeJSON(data)
	case BinaryArray:
		return decodeNPZ(data)
	}
	return nil, errors.Wrapf(ErrCodec, "unknown format %d", int(f))
}

// SaveFile encodes r in the format implied by path and writes it.
func SaveFile(path string, r *calib.Result) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(r, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// LoadFile reads and decodes a result from path.
func LoadFile(path string) (*calib.Result, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	r, err := Decode(data, f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return r, nil
}

// checkModel enforces fisheye ⇔ 4 coefficients, standard ⇔ 5.
func checkModel(n int, fisheye bool) error {
	want := calib.Standard.NumDistCoeffs()
	if fisheye {
		want = calib.Fisheye.NumDistCoeffs()
	}
	if n != want {
		return errors.Wrapf(ErrCodec, "fisheye=%v needs %d distortion coefficients, got %d", fisheye, want, n)
	}
	return nil
}

func newResult(k [3][3]float64, d []float64, fisheye bool) *calib.Result {
	model := calib.Standard
	if fisheye {
		model = calib.Fisheye
	}
	return &calib.Result{CameraMatrix: k, DistCoeffs: d, Model: model}
}
