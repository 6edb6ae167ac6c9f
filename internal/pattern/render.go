package pattern

import (
	"image"
	"image/draw"

	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"golang.org/x/image/vector"
)

// mmPerInch converts display DPI to pixels per millimetre.
const mmPerInch = 25.4

// kappa places cubic Bézier control points for a quarter circle.
const kappa = 0.5522847498307936

// RenderSpec drives Render. It is recomputed whenever the canvas is resized
// or any pattern field changes; nothing is cached between calls.
type RenderSpec struct {
	Pattern        Spec
	CanvasWidthPx  int
	CanvasHeightPx int
	PixelsPerMM    float64
}

// NewRenderSpec is the canonical way to describe a render: the pattern
// (including its radius ratio), the canvas size, and the display density.
func NewRenderSpec(p Spec, widthPx, heightPx int, pixelsPerMM float64) RenderSpec {
	return RenderSpec{
		Pattern:        p,
		CanvasWidthPx:  widthPx,
		CanvasHeightPx: heightPx,
		PixelsPerMM:    pixelsPerMM,
	}
}

// PixelsPerMMFromDPI converts a dots-per-inch density to pixels per millimetre.
func PixelsPerMMFromDPI(dpi float64) float64 {
	return dpi / mmPerInch
}

// Validate checks the canvas and density as well as the pattern.
func (rs RenderSpec) Validate() error {
	if err := rs.Pattern.Validate(); err != nil {
		return err
	}
	if rs.CanvasWidthPx <= 0 || rs.CanvasHeightPx <= 0 {
		return errors.Wrapf(ErrInvalidSpec, "canvas must be positive, got %dx%d",
			rs.CanvasWidthPx, rs.CanvasHeightPx)
	}
	if !(rs.PixelsPerMM > 0) {
		return errors.Wrapf(ErrInvalidSpec, "pixels per mm must be positive, got %g", rs.PixelsPerMM)
	}
	return nil
}

// Layout is the pixel geometry of a rendered target. Coordinates are
// continuous canvas coordinates: pixel (x, y) covers [x, x+1) x [y, y+1), so
// subtract 0.5 to compare against pixel-centre detector output.
type Layout struct {
	// Cell is UnitSize converted to pixels.
	Cell float64
	// Radius is the circle radius in pixels (circle grids only).
	Radius float64
	// Squares holds the filled checkerboard squares.
	Squares []geometry.Rect
	// Features holds the detectable points in row-major order: inner corners
	// for a checkerboard, circle centres otherwise.
	Features []geometry.Point2D
}

// ComputeLayout places the pattern centred on the canvas.
func ComputeLayout(rs RenderSpec) (Layout, error) {
	if err := rs.Validate(); err != nil {
		return Layout{}, err
	}

	p := rs.Pattern
	cell := p.UnitSize * rs.PixelsPerMM
	w, h := float64(rs.CanvasWidthPx), float64(rs.CanvasHeightPx)
	layout := Layout{Cell: cell}

	if p.Kind == Checkerboard {
		ox := (w - float64(p.Cols)*cell) / 2
		oy := (h - float64(p.Rows)*cell) / 2
		for i := 0; i < p.Rows; i++ {
			for j := 0; j < p.Cols; j++ {
				if (i+j)%2 != 0 {
					continue
				}
				layout.Squares = append(layout.Squares, geometry.Rect{
					X: ox + float64(j)*cell, Y: oy + float64(i)*cell,
					Width: cell, Height: cell,
				})
			}
		}
		for i := 1; i < p.Rows; i++ {
			for j := 1; j < p.Cols; j++ {
				layout.Features = append(layout.Features, geometry.Point2D{
					X: ox + float64(j)*cell,
					Y: oy + float64(i)*cell,
				})
			}
		}
		return layout, nil
	}

	layout.Radius = cell / p.RadiusRatio

	obj := p.ObjectPoints()
	flat := make([]geometry.Point2D, len(obj))
	for i, o := range obj {
		flat[i] = o.XY().Scale(rs.PixelsPerMM)
	}
	box := geometry.BoundingBox(flat)
	origin := geometry.Point2D{X: (w - box.Width) / 2, Y: (h - box.Height) / 2}
	layout.Features = make([]geometry.Point2D, len(flat))
	for i, f := range flat {
		layout.Features[i] = origin.Add(f)
	}
	return layout, nil
}

// Render draws the target as black features on a white canvas. Squares
// are clipped to the canvas; circles that do not fit entirely are omitted.
func Render(rs RenderSpec) (*image.Gray, error) {
	layout, err := ComputeLayout(rs)
	if err != nil {
		return nil, err
	}

	w, h := rs.CanvasWidthPx, rs.CanvasHeightPx
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	z := vector.NewRasterizer(w, h)
	if rs.Pattern.Kind == Checkerboard {
		for _, sq := range layout.Squares {
			addRect(z, sq, float64(w), float64(h))
		}
	} else {
		r := layout.Radius
		for _, c := range layout.Features {
			if c.X-r < 0 || c.Y-r < 0 || c.X+r > float64(w) || c.Y+r > float64(h) {
				continue
			}
			addCircle(z, c, r)
		}
	}
	z.Draw(dst, dst.Bounds(), image.Black, image.Point{})
	return dst, nil
}

func addRect(z *vector.Rasterizer, r geometry.Rect, w, h float64) {
	x0, y0 := clamp(r.X, 0, w), clamp(r.Y, 0, h)
	x1, y1 := clamp(r.X+r.Width, 0, w), clamp(r.Y+r.Height, 0, h)
	if x1 <= x0 || y1 <= y0 {
		return
	}
	z.MoveTo(float32(x0), float32(y0))
	z.LineTo(float32(x1), float32(y0))
	z.LineTo(float32(x1), float32(y1))
	z.LineTo(float32(x0), float32(y1))
	z.ClosePath()
}

func addCircle(z *vector.Rasterizer, c geometry.Point2D, r float64) {
	k := kappa * r
	cx, cy := c.X, c.Y
	z.MoveTo(f32(cx+r), f32(cy))
	z.CubeTo(f32(cx+r), f32(cy+k), f32(cx+k), f32(cy+r), f32(cx), f32(cy+r))
	z.CubeTo(f32(cx-k), f32(cy+r), f32(cx-r), f32(cy+k), f32(cx-r), f32(cy))
	z.CubeTo(f32(cx-r), f32(cy-k), f32(cx-k), f32(cy-r), f32(cx), f32(cy-r))
	z.CubeTo(f32(cx+k), f32(cy-r), f32(cx+r), f32(cy-k), f32(cx+r), f32(cy))
	z.ClosePath()
}

func f32(v float64) float32 { return float32(v) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
