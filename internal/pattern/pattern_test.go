package pattern

import (
	"image"
	"math"
	"testing"

	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"Checkerboard", Checkerboard},
		{"chessboard", Checkerboard},
		{"Circles", Circles},
		{"Asymmetric Circles", AsymmetricCircles},
		{"asymmetric-circles", AsymmetricCircles},
		{"acircles", AsymmetricCircles},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("hexagons")
	assert.True(t, errors.Is(err, ErrInvalidSpec))
}

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range []Kind{Checkerboard, Circles, AsymmetricCircles} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultSpec().Validate())

	bad := []Spec{
		{Kind: Checkerboard, Cols: 0, Rows: 5, UnitSize: 1, RadiusRatio: 1},
		{Kind: Checkerboard, Cols: 5, Rows: -1, UnitSize: 1, RadiusRatio: 1},
		{Kind: Circles, Cols: 5, Rows: 5, UnitSize: 0, RadiusRatio: 1},
		{Kind: Circles, Cols: 5, Rows: 5, UnitSize: math.NaN(), RadiusRatio: 1},
		{Kind: Circles, Cols: 5, Rows: 5, UnitSize: 1, RadiusRatio: 0},
		{Kind: Kind(7), Cols: 5, Rows: 5, UnitSize: 1, RadiusRatio: 1},
	}
	for _, s := range bad {
		err := s.Validate()
		assert.True(t, errors.Is(err, ErrInvalidSpec), "%+v", s)
	}
}

func TestGridSize(t *testing.T) {
	cb := Spec{Kind: Checkerboard, Cols: 7, Rows: 5, UnitSize: 25, RadiusRatio: 5}
	assert.Equal(t, image.Pt(6, 4), cb.GridSize())
	assert.Equal(t, 24, cb.PointCount())

	c := Spec{Kind: Circles, Cols: 4, Rows: 3, UnitSize: 25, RadiusRatio: 5}
	assert.Equal(t, image.Pt(4, 3), c.GridSize())
	assert.Equal(t, 12, c.PointCount())

	thin := Spec{Kind: Checkerboard, Cols: 1, Rows: 4, UnitSize: 25, RadiusRatio: 5}
	assert.Zero(t, thin.PointCount())
	assert.Nil(t, thin.ObjectPoints())
}

func TestObjectPointsRectangular(t *testing.T) {
	s := Spec{Kind: Checkerboard, Cols: 4, Rows: 3, UnitSize: 10, RadiusRatio: 5}
	pts := s.ObjectPoints()
	require.Len(t, pts, 6)
	assert.Equal(t, geometry.Point3D{X: 0, Y: 0}, pts[0])
	assert.Equal(t, geometry.Point3D{X: 20, Y: 0}, pts[2])
	assert.Equal(t, geometry.Point3D{X: 0, Y: 10}, pts[3])
	assert.Equal(t, geometry.Point3D{X: 20, Y: 10}, pts[5])
	for _, p := range pts {
		assert.Zero(t, p.Z)
	}
}

func TestObjectPointsAsymmetric(t *testing.T) {
	s := Spec{Kind: AsymmetricCircles, Cols: 3, Rows: 3, UnitSize: 5, RadiusRatio: 5}
	pts := s.ObjectPoints()
	require.Len(t, pts, 9)
	want := []geometry.Point2D{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0},
		{X: 5, Y: 5}, {X: 15, Y: 5}, {X: 25, Y: 5},
		{X: 0, Y: 10}, {X: 10, Y: 10}, {X: 20, Y: 10},
	}
	for i, w := range want {
		assert.Equal(t, w, pts[i].XY(), "point %d", i)
	}
}

func TestRenderCanvasSize(t *testing.T) {
	rs := NewRenderSpec(DefaultSpec(), 320, 200, 0.5)
	img, err := Render(rs)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 200), img.Bounds())
}

func TestRenderRejectsInvalid(t *testing.T) {
	_, err := Render(NewRenderSpec(DefaultSpec(), 0, 100, 1))
	assert.True(t, errors.Is(err, ErrInvalidSpec))

	_, err = Render(NewRenderSpec(DefaultSpec(), 100, 100, 0))
	assert.True(t, errors.Is(err, ErrInvalidSpec))

	_, err = Render(NewRenderSpec(Spec{Kind: Circles}, 100, 100, 1))
	assert.True(t, errors.Is(err, ErrInvalidSpec))
}

func TestRenderCheckerboardParity(t *testing.T) {
	spec := Spec{Kind: Checkerboard, Cols: 4, Rows: 3, UnitSize: 10, RadiusRatio: 5}
	rs := NewRenderSpec(spec, 100, 80, 2) // 20 px squares, board 80x60
	img, err := Render(rs)
	require.NoError(t, err)

	ox, oy := 10, 10
	for i := 0; i < spec.Rows; i++ {
		for j := 0; j < spec.Cols; j++ {
			v := img.GrayAt(ox+j*20+10, oy+i*20+10).Y
			if (i+j)%2 == 0 {
				assert.Equal(t, uint8(0), v, "cell %d,%d should be black", i, j)
			} else {
				assert.Equal(t, uint8(255), v, "cell %d,%d should be white", i, j)
			}
		}
	}
	// Margin stays white.
	assert.Equal(t, uint8(255), img.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(255), img.GrayAt(95, 75).Y)
}

func TestRenderCheckerboardCentred(t *testing.T) {
	spec := Spec{Kind: Checkerboard, Cols: 3, Rows: 3, UnitSize: 10, RadiusRatio: 5}
	layout, err := ComputeLayout(NewRenderSpec(spec, 200, 100, 1))
	require.NoError(t, err)

	var pts []geometry.Point2D
	for _, sq := range layout.Squares {
		pts = append(pts, geometry.Point2D{X: sq.X, Y: sq.Y},
			geometry.Point2D{X: sq.X + sq.Width, Y: sq.Y + sq.Height})
	}
	c := geometry.BoundingBox(pts).Center()
	assert.InDelta(t, 100, c.X, 1e-9)
	assert.InDelta(t, 50, c.Y, 1e-9)
	assert.Len(t, layout.Features, 4)
	assert.Len(t, layout.Squares, 5)
}

func TestRenderCirclesArea(t *testing.T) {
	spec := Spec{Kind: Circles, Cols: 3, Rows: 2, UnitSize: 10, RadiusRatio: 4}
	rs := NewRenderSpec(spec, 200, 150, 4) // cell 40 px, radius 10 px
	layout, err := ComputeLayout(rs)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, layout.Radius, 1e-12)

	img, err := Render(rs)
	require.NoError(t, err)

	var ink float64
	for _, v := range img.Pix {
		ink += float64(255-v) / 255
	}
	want := float64(spec.Cols*spec.Rows) * math.Pi * 100
	assert.InEpsilon(t, want, ink, 0.02)

	for _, c := range layout.Features {
		assert.Equal(t, uint8(0), img.GrayAt(int(c.X), int(c.Y)).Y)
	}
}

func TestRenderAsymmetricLayout(t *testing.T) {
	spec := Spec{Kind: AsymmetricCircles, Cols: 4, Rows: 3, UnitSize: 10, RadiusRatio: 5}
	layout, err := ComputeLayout(NewRenderSpec(spec, 300, 200, 2))
	require.NoError(t, err)
	require.Len(t, layout.Features, 12)

	// Odd rows are shifted right by one cell.
	assert.InDelta(t, layout.Features[0].X+20, layout.Features[4].X, 1e-9)
	assert.InDelta(t, layout.Features[0].Y+20, layout.Features[4].Y, 1e-9)
	assert.InDelta(t, layout.Features[0].X+40, layout.Features[1].X, 1e-9)

	c := geometry.BoundingBox(layout.Features).Center()
	assert.InDelta(t, 150, c.X, 1e-9)
	assert.InDelta(t, 100, c.Y, 1e-9)
}

func TestRenderOmitsCirclesOffCanvas(t *testing.T) {
	spec := Spec{Kind: Circles, Cols: 10, Rows: 1, UnitSize: 10, RadiusRatio: 4}
	img, err := Render(NewRenderSpec(spec, 50, 50, 1))
	require.NoError(t, err)

	// Centres at x = -20..70; only those fully inside [0,50] are drawn.
	black := 0
	for _, v := range img.Pix {
		if v < 128 {
			black++
		}
	}
	assert.Positive(t, black)
	assert.Equal(t, uint8(255), img.GrayAt(0, 25).Y)
}

func TestRenderRecomputesOnResize(t *testing.T) {
	spec := DefaultSpec()
	a, err := Render(NewRenderSpec(spec, 400, 400, 1))
	require.NoError(t, err)
	b, err := Render(NewRenderSpec(spec, 500, 400, 1))
	require.NoError(t, err)
	assert.NotEqual(t, a.Bounds(), b.Bounds())
}

func TestPixelsPerMMFromDPI(t *testing.T) {
	assert.InDelta(t, 1.0, PixelsPerMMFromDPI(25.4), 1e-12)
	assert.InDelta(t, 96/25.4, PixelsPerMMFromDPI(96), 1e-12)
}
