package image

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Sheet lays out frames as a grid of thumbnails.
type Sheet struct {
	Columns   int
	CellWidth int
	Gap       int
	BackColor color.Color
}

// NewSheet creates a sheet with the given column count and cell width.
func NewSheet(columns, cellWidth int) *Sheet {
	if columns < 1 {
		columns = 1
	}
	return &Sheet{
		Columns:   columns,
		CellWidth: cellWidth,
		Gap:       4,
		BackColor: color.RGBA{40, 40, 40, 255}, // Dark gray background
	}
}

// Render produces the sheet. Each cell is as tall as the tallest thumbnail
// in its row; images are scaled to CellWidth and centred in their cell.
func (s *Sheet) Render(imgs []image.Image) *image.NRGBA {
	if len(imgs) == 0 {
		return imaging.New(1, 1, s.BackColor)
	}

	thumbs := make([]*image.NRGBA, len(imgs))
	for i, img := range imgs {
		thumbs[i] = imaging.Resize(img, s.CellWidth, 0, imaging.Lanczos)
	}

	cols := s.Columns
	if len(thumbs) < cols {
		cols = len(thumbs)
	}
	rows := (len(thumbs) + cols - 1) / cols

	rowHeights := make([]int, rows)
	for i, t := range thumbs {
		if h := t.Bounds().Dy(); h > rowHeights[i/cols] {
			rowHeights[i/cols] = h
		}
	}

	width := cols*s.CellWidth + (cols+1)*s.Gap
	height := s.Gap
	for _, h := range rowHeights {
		height += h + s.Gap
	}

	out := imaging.New(width, height, s.BackColor)
	y := s.Gap
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if i >= len(thumbs) {
				break
			}
			t := thumbs[i]
			x := s.Gap + c*(s.CellWidth+s.Gap) + (s.CellWidth-t.Bounds().Dx())/2
			dy := (rowHeights[r] - t.Bounds().Dy()) / 2
			out = imaging.Paste(out, t, image.Pt(x, y+dy))
		}
		y += rowHeights[r] + s.Gap
	}
	return out
}
