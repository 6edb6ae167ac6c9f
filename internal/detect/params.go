package detect

import "github.com/pkg/errors"

var (
	// ErrPatternNotFound is the detection failure reported for an image in
	// which the requested pattern could not be located.
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrEmptyImage is reported for nil or zero-sized input.
	ErrEmptyImage = errors.New("empty image")
)

// Params tunes the detector.
type Params struct {
	// MinBlobArea is the smallest contour area, in pixels, considered a circle.
	MinBlobArea float64
	// MinCircularity is the lower bound on 4πA/P² for a blob contour.
	MinCircularity float64
	// AreaTolerance is the allowed relative deviation of a blob's area from
	// the median blob area.
	AreaTolerance float64

	// SubPixMaxIter and SubPixEpsilon terminate corner refinement.
	SubPixMaxIter int
	SubPixEpsilon float64
	// SubPixMinWindow and SubPixMaxWindow clamp the refinement half-window.
	SubPixMinWindow int
	SubPixMaxWindow int
}

// DefaultParams returns parameters suited to printed or on-screen targets
// photographed at typical distances.
func DefaultParams() Params {
	return Params{
		MinBlobArea:    12,
		MinCircularity: 0.6,
		AreaTolerance:  0.5,

		SubPixMaxIter:   30,
		SubPixEpsilon:   0.001,
		SubPixMinWindow: 2,
		SubPixMaxWindow: 11,
	}
}

// subPixWindow derives the corner refinement half-window from the smallest
// spacing between neighbouring corners.
func (p Params) subPixWindow(spacing float64) int {
	w := int(spacing / 4)
	if w < p.SubPixMinWindow {
		w = p.SubPixMinWindow
	}
	if w > p.SubPixMaxWindow {
		w = p.SubPixMaxWindow
	}
	return w
}
