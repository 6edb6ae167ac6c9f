// Package pattern describes planar calibration targets: their geometry, the
// object points a detector pairs with image points, and rendering of the
// target at a physical size.
package pattern

import (
	"fmt"
	"image"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidSpec is returned when a Spec or RenderSpec fails validation.
var ErrInvalidSpec = errors.New("invalid pattern spec")

// Kind identifies the calibration target layout.
type Kind int

const (
	Checkerboard Kind = iota
	Circles
	AsymmetricCircles
)

func (k Kind) String() string {
	switch k {
	case Checkerboard:
		return "Checkerboard"
	case Circles:
		return "Circles"
	case AsymmetricCircles:
		return "Asymmetric Circles"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the display names as well as compact forms such as
// "checkerboard", "circles", "asymmetric-circles" or "acircles".
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(norm)
	switch norm {
	case "checkerboard", "chessboard":
		return Checkerboard, nil
	case "circles", "circlegrid":
		return Circles, nil
	case "asymmetriccircles", "asymmetric", "acircles":
		return AsymmetricCircles, nil
	}
	return 0, errors.Wrapf(ErrInvalidSpec, "unknown pattern kind %q", s)
}

// Spec is the geometry of a calibration target. For Checkerboard, Cols and
// Rows count squares; for the circle grids they count circles. UnitSize is
// the square side or circle spacing in millimetres. RadiusRatio is the
// spacing-to-radius ratio used when drawing circles.
type Spec struct {
	Kind        Kind    `json:"kind"`
	Cols        int     `json:"cols"`
	Rows        int     `json:"rows"`
	UnitSize    float64 `json:"unit_size"`
	RadiusRatio float64 `json:"radius_ratio"`
}

// DefaultSpec returns a 10x10 checkerboard with 25 mm squares.
func DefaultSpec() Spec {
	return Spec{
		Kind:        Checkerboard,
		Cols:        10,
		Rows:        10,
		UnitSize:    25,
		RadiusRatio: 5,
	}
}

// Validate reports the first field that is out of range.
func (s Spec) Validate() error {
	switch s.Kind {
	case Checkerboard, Circles, AsymmetricCircles:
	default:
		return errors.Wrapf(ErrInvalidSpec, "unknown kind %d", int(s.Kind))
	}
	if s.Cols <= 0 {
		return errors.Wrapf(ErrInvalidSpec, "cols must be positive, got %d", s.Cols)
	}
	if s.Rows <= 0 {
		return errors.Wrapf(ErrInvalidSpec, "rows must be positive, got %d", s.Rows)
	}
	if !(s.UnitSize > 0) {
		return errors.Wrapf(ErrInvalidSpec, "unit size must be positive, got %g", s.UnitSize)
	}
	if !(s.RadiusRatio > 0) {
		return errors.Wrapf(ErrInvalidSpec, "radius ratio must be positive, got %g", s.RadiusRatio)
	}
	return nil
}

// GridSize returns the detectable feature grid as (points per row, rows).
// A checkerboard of Cols x Rows squares has (Cols-1) x (Rows-1) inner corners.
func (s Spec) GridSize() image.Point {
	if s.Kind == Checkerboard {
		return image.Pt(s.Cols-1, s.Rows-1)
	}
	return image.Pt(s.Cols, s.Rows)
}

// PointCount is the number of features a successful detection yields.
func (s Spec) PointCount() int {
	g := s.GridSize()
	if g.X <= 0 || g.Y <= 0 {
		return 0
	}
	return g.X * g.Y
}

func (s Spec) String() string {
	return fmt.Sprintf("%s %dx%d @ %gmm", s.Kind, s.Cols, s.Rows, s.UnitSize)
}
