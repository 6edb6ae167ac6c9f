package detect

import (
	"image"
	"image/color"

	"camera-calibration/internal/pattern"
	"camera-calibration/pkg/colorutil"

	"gocv.io/x/gocv"
)

var failureLines = []string{"Points", "Not", "Found!"}

// DrawOverlay returns a copy of img annotated with det. Successful
// detections get per-row coloured markers joined in detection order and a
// green border; failures get a red panel and a red border. The border is a
// twentieth of the image width. det is not modified.
func DrawOverlay(img image.Image, det pattern.Detection) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	mat := imageToBGR(img)
	defer mat.Close()

	border := colorutil.Named("red")
	if det.Success && det.Len() > 0 {
		drawPoints(&mat, det)
		border = colorutil.Named("green")
	} else {
		drawFailure(&mat)
	}

	bw := max(1, mat.Cols()/20)
	out := gocv.NewMat()
	defer out.Close()
	gocv.CopyMakeBorder(mat, &out, bw, bw, bw, bw, gocv.BorderConstant, border)
	return bgrToImage(out), nil
}

func drawPoints(mat *gocv.Mat, det pattern.Detection) {
	perRow := det.Grid.X
	if perRow <= 0 {
		perRow = det.Len()
	}
	radius := max(3, mat.Cols()/200)
	thickness := max(1, radius/3)

	var prev image.Point
	for i, p := range det.ImagePoints {
		c := colorutil.Tab10(i / perRow)
		pt := image.Pt(int(p.X+0.5), int(p.Y+0.5))
		if i > 0 {
			gocv.Line(mat, prev, pt, c, thickness)
		}
		gocv.Circle(mat, pt, radius, c, thickness)
		prev = pt
	}
}

func drawFailure(mat *gocv.Mat) {
	w, h := mat.Cols(), mat.Rows()
	red := colorutil.Named("red")

	panel := image.Rect(w/4, h/4, w-w/4, h-h/4)
	gocv.Rectangle(mat, panel, color.RGBA{R: 40, G: 40, B: 40, A: 255}, -1)
	gocv.Rectangle(mat, panel, red, max(1, w/200))

	scale := float64(panel.Dx()) / 300
	thickness := max(1, int(scale*2))
	lineH := panel.Dy() / (len(failureLines) + 1)
	for i, line := range failureLines {
		sz := gocv.GetTextSize(line, gocv.FontHersheySimplex, scale, thickness)
		org := image.Pt(panel.Min.X+(panel.Dx()-sz.X)/2, panel.Min.Y+(i+1)*lineH+sz.Y/2)
		gocv.PutText(mat, line, org, gocv.FontHersheySimplex, scale, red, thickness)
	}
}
