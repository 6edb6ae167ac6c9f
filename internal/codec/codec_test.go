package codec

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"camera-calibration/internal/calib"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleResult(model calib.Model) *calib.Result {
	d := []float64{-0.1234567890123, 0.0456, 1e-5, -2.5e-4, 0.001}
	if model == calib.Fisheye {
		d = []float64{0.0123, -0.00456, math.Pi / 1000, 1.0 / 3}
	}
	return &calib.Result{
		RMSError:     0.321,
		CameraMatrix: [3][3]float64{{812.123456789, 0, 319.987654321}, {0, 809.5, 240.125}, {0, 0, 1}},
		DistCoeffs:   d,
		Model:        model,
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{StructuredText, BinaryArray} {
		for _, m := range []calib.Model{calib.Standard, calib.Fisheye} {
			in := sampleResult(m)
			data, err := Encode(in, f)
			require.NoError(t, err, "%v %v", f, m)

			out, err := Decode(data, f)
			require.NoError(t, err, "%v %v", f, m)
			assert.Equal(t, in.CameraMatrix, out.CameraMatrix, "%v %v", f, m)
			assert.Equal(t, in.DistCoeffs, out.DistCoeffs, "%v %v", f, m)
			assert.Equal(t, in.Model, out.Model, "%v %v", f, m)
			assert.Zero(t, out.RMSError)
		}
	}
}

func TestJSONLayout(t *testing.T) {
	data, err := Encode(sampleResult(calib.Fisheye), StructuredText)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"K\": [\n")
	assert.Contains(t, string(data), "\"fisheye\": true")
}

func TestDecodeJSONNestedD(t *testing.T) {
	standard := `{"K": [[800, 0, 320], [0, 800, 240], [0, 0, 1]],
		"D": [[-0.1, 0.01, 0.0, 0.0, 0.002]], "fisheye": false}`
	r, err := Decode([]byte(standard), StructuredText)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.1, 0.01, 0, 0, 0.002}, r.DistCoeffs)
	assert.Equal(t, 800.0, r.Fx())

	fisheye := `{"fisheye": true, "D": [[0.1], [0.2], [0.3], [0.4]],
		"K": [[300, 0, 320], [0, 300, 240], [0, 0, 1]]}`
	r, err = Decode([]byte(fisheye), StructuredText)
	require.NoError(t, err)
	assert.Equal(t, calib.Fisheye, r.Model)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, r.DistCoeffs)
}

func TestDecodeJSONFlatAndNestedAgree(t *testing.T) {
	const k = `"K": [[800, 0, 320], [0, 800, 240], [0, 0, 1]]`
	forms := map[bool][]string{
		false: {
			`[-0.1, 0.01, 0.0, 0.0, 0.002]`,
			`[[-0.1, 0.01, 0.0, 0.0, 0.002]]`,
			`[[-0.1], [0.01], [0.0], [0.0], [0.002]]`,
		},
		true: {
			`[0.1, 0.2, 0.3, 0.4]`,
			`[[0.1, 0.2, 0.3, 0.4]]`,
			`[[0.1], [0.2], [0.3], [0.4]]`,
		},
	}
	for fisheye, ds := range forms {
		var want []float64
		for i, d := range ds {
			in := fmt.Sprintf(`{%s, "D": %s, "fisheye": %v}`, k, d, fisheye)
			r, err := Decode([]byte(in), StructuredText)
			require.NoError(t, err, in)
			if i == 0 {
				want = r.DistCoeffs
				continue
			}
			assert.Equal(t, want, r.DistCoeffs, in)
		}
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	cases := map[string]string{
		"missing K":       `{"D": [0, 0, 0, 0, 0], "fisheye": false}`,
		"missing D":       `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "fisheye": false}`,
		"missing fisheye": `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [0, 0, 0, 0, 0]}`,
		"fisheye with 5":  `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [0, 0, 0, 0, 0], "fisheye": true}`,
		"standard with 4": `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [0, 0, 0, 0], "fisheye": false}`,
		"short K":         `{"K": [[1, 0, 0], [0, 1, 0]], "D": [0, 0, 0, 0, 0], "fisheye": false}`,
		"bad D":           `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": "none", "fisheye": false}`,
		"not json":        `K = 1`,

		"nested 4 as standard": `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [[0.1], [0.2], [0.3], [0.4]], "fisheye": false}`,
		"row of 4 as standard": `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [[0.1, 0.2, 0.3, 0.4]], "fisheye": false}`,
		"nested 5 as fisheye":  `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [[0.1, 0.2, 0.3, 0.4, 0.5]], "fisheye": true}`,
		"trailing data":        `{"K": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "D": [0, 0, 0, 0, 0], "fisheye": false} {}`,
	}
	for name, in := range cases {
		_, err := Decode([]byte(in), StructuredText)
		assert.True(t, errors.Is(err, ErrCodec), "%s: %v", name, err)
	}
}

func TestDecodeNPZErrors(t *testing.T) {
	_, err := Decode([]byte("not a zip"), BinaryArray)
	assert.True(t, errors.Is(err, ErrCodec))

	// Archive without a fisheye entry.
	var buf bytes.Buffer
	w := npz.NewWriter(&buf)
	require.NoError(t, w.Write("K", mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})))
	require.NoError(t, w.Write("D", []float64{0, 0, 0, 0, 0}))
	require.NoError(t, w.Close())
	_, err = Decode(buf.Bytes(), BinaryArray)
	assert.True(t, errors.Is(err, ErrCodec), "%v", err)

	// Inconsistent model flag.
	buf.Reset()
	w = npz.NewWriter(&buf)
	require.NoError(t, w.Write("K", mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})))
	require.NoError(t, w.Write("D", []float64{0, 0, 0, 0, 0}))
	require.NoError(t, w.Write("fisheye", true))
	require.NoError(t, w.Close())
	_, err = Decode(buf.Bytes(), BinaryArray)
	assert.True(t, errors.Is(err, ErrCodec), "%v", err)
}

func TestEncodeRejectsInconsistentModel(t *testing.T) {
	r := sampleResult(calib.Standard)
	r.Model = calib.Fisheye
	_, err := Encode(r, StructuredText)
	assert.True(t, errors.Is(err, ErrCodec))

	_, err = Encode(nil, BinaryArray)
	assert.True(t, errors.Is(err, ErrCodec))
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/tmp/cam.JSON")
	require.NoError(t, err)
	assert.Equal(t, StructuredText, f)

	f, err = FormatFromPath("cam.npz")
	require.NoError(t, err)
	assert.Equal(t, BinaryArray, f)
	assert.Equal(t, ".npz", f.Extension())

	_, err = FormatFromPath("cam.yaml")
	assert.True(t, errors.Is(err, ErrCodec))
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"result.json", "result.npz"} {
		path := filepath.Join(dir, name)
		in := sampleResult(calib.Standard)
		require.NoError(t, SaveFile(path, in))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())

		out, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, in.CameraMatrix, out.CameraMatrix)
		assert.Equal(t, in.DistCoeffs, out.DistCoeffs)
	}

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
