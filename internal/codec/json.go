package codec

import (
	"encoding/json"

	"camera-calibration/internal/calib"

	"github.com/pkg/errors"
)

type jsonResult struct {
	K       [3][3]float64 `json:"K"`
	D       []float64     `json:"D"`
	Fisheye bool          `json:"fisheye"`
}

// rawResult keeps every key optional so missing ones can be reported.
type rawResult struct {
	K       *[][]float64    `json:"K"`
	D       json.RawMessage `json:"D"`
	Fisheye *bool           `json:"fisheye"`
}

func encodeJSON(r *calib.Result) ([]byte, error) {
	out := jsonResult{K: r.CameraMatrix, D: r.DistCoeffs, Fisheye: r.Model == calib.Fisheye}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return append(data, '\n'), nil
}

func decodeJSON(data []byte) (*calib.Result, error) {
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrCodec, "malformed JSON: %v", err)
	}
	if raw.K == nil {
		return nil, errors.Wrap(ErrCodec, "missing key K")
	}
	if len(raw.D) == 0 || string(raw.D) == "null" {
		return nil, errors.Wrap(ErrCodec, "missing key D")
	}
	if raw.Fisheye == nil {
		return nil, errors.Wrap(ErrCodec, "missing key fisheye")
	}

	var k [3][3]float64
	if len(*raw.K) != 3 {
		return nil, errors.Wrapf(ErrCodec, "K must have 3 rows, got %d", len(*raw.K))
	}
	for i, row := range *raw.K {
		if len(row) != 3 {
			return nil, errors.Wrapf(ErrCodec, "K row %d must have 3 values, got %d", i, len(row))
		}
		copy(k[i][:], row)
	}

	d, err := flattenD(raw.D)
	if err != nil {
		return nil, err
	}
	if err := checkModel(len(d), *raw.Fisheye); err != nil {
		return nil, err
	}
	return newResult(k, d, *raw.Fisheye), nil
}

// flattenD accepts D as a flat array or as the nested (1,N) or (N,1)
// arrays NumPy's tolist() produces.
func flattenD(raw json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	// A failed Unmarshal may leave partial values behind, so the nested
	// form is collected into a fresh slice.
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, errors.Wrapf(ErrCodec, "D must be an array of numbers: %v", err)
	}
	var out []float64
	for _, row := range nested {
		out = append(out, row...)
	}
	return out, nil
}
