package calib

import (
	"fmt"
	"strconv"
	"strings"
)

var distNames = map[Model][]string{
	Standard: {"k1", "k2", "p1", "p2", "k3"},
	Fisheye:  {"k1", "k2", "k3", "k4"},
}

// FormatResult renders the human-readable calibration report: RMS error,
// focal lengths and optical centre rounded to pixels, the integer camera
// matrix, and the named distortion coefficients.
func FormatResult(r *Result) string {
	var b strings.Builder
	b.WriteString("Results:\n\n")

	if r.Views() > 0 {
		fmt.Fprintf(&b, "RMS Error,\n%v\n\n", r.RMSError)
	}
	fmt.Fprintf(&b, "Focal Length (pixels),\nfx = %.0f\nfy = %.0f\n\n", r.Fx(), r.Fy())
	fmt.Fprintf(&b, "Optical Centres,\ncx = %.0f\ncy = %.0f\n\n\n", r.Cx(), r.Cy())
	fmt.Fprintf(&b, "Camera Matrix,\n%s\n\n\n", formatIntMatrix(r.CameraMatrix))

	b.WriteString("Distortion Coefficients,\n")
	names := distNames[r.Model]
	for i, d := range r.DistCoeffs {
		name := "d" + strconv.Itoa(i)
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(&b, "%s = %.4f\n", name, d)
	}
	return b.String()
}

// formatIntMatrix truncates to integers and right-aligns columns the way
// NumPy prints an integer array.
func formatIntMatrix(m [3][3]float64) string {
	var cells [3][3]string
	width := 0
	for i := range m {
		for j := range m[i] {
			cells[i][j] = strconv.Itoa(int(m[i][j]))
			width = max(width, len(cells[i][j]))
		}
	}

	var b strings.Builder
	b.WriteString("[")
	for i := range cells {
		if i > 0 {
			b.WriteString("\n ")
		}
		b.WriteString("[")
		for j := range cells[i] {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%*s", width, cells[i][j])
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}
