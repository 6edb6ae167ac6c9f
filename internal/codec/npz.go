package codec

import (
	"bytes"
	"strings"

	"camera-calibration/internal/calib"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

var npzKeys = []string{"K", "D", "fisheye"}

func encodeNPZ(r *calib.Result) ([]byte, error) {
	k := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			k.Set(i, j, r.CameraMatrix[i][j])
		}
	}

	var buf bytes.Buffer
	w := npz.NewWriter(&buf)
	if err := w.Write("K", k); err != nil {
		return nil, errors.Wrap(err, "failed to write K")
	}
	if err := w.Write("D", append([]float64(nil), r.DistCoeffs...)); err != nil {
		return nil, errors.Wrap(err, "failed to write D")
	}
	if err := w.Write("fisheye", r.Model == calib.Fisheye); err != nil {
		return nil, errors.Wrap(err, "failed to write fisheye")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finish npz archive")
	}
	return buf.Bytes(), nil
}

func decodeNPZ(data []byte) (*calib.Result, error) {
	rd, err := npz.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(ErrCodec, "malformed npz archive: %v", err)
	}

	present := map[string]bool{}
	for _, key := range rd.Keys() {
		present[strings.TrimSuffix(key, ".npy")] = true
	}
	for _, key := range npzKeys {
		if !present[key] {
			return nil, errors.Wrapf(ErrCodec, "missing entry %s", key)
		}
	}

	var km mat.Dense
	if err := rd.Read("K", &km); err != nil {
		return nil, errors.Wrapf(ErrCodec, "bad K entry: %v", err)
	}
	if r, c := km.Dims(); r != 3 || c != 3 {
		return nil, errors.Wrapf(ErrCodec, "K must be 3x3, got %dx%d", r, c)
	}
	var k [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			k[i][j] = km.At(i, j)
		}
	}

	var d []float64
	if err := rd.Read("D", &d); err != nil {
		return nil, errors.Wrapf(ErrCodec, "bad D entry: %v", err)
	}
	var fisheye bool
	if err := rd.Read("fisheye", &fisheye); err != nil {
		return nil, errors.Wrapf(ErrCodec, "bad fisheye entry: %v", err)
	}

	if err := checkModel(len(d), fisheye); err != nil {
		return nil, err
	}
	return newResult(k, d, fisheye), nil
}
