package detect

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// stripes runs fn over horizontal bands of [0, height) in parallel.
func stripes(height int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := min(startY+rowsPerWorker, height)
		if startY >= height {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}

// imageToGray converts an image to a single-channel 8-bit Mat.
func imageToGray(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)

	if g, ok := img.(*image.Gray); ok {
		stripes(height, func(yStart, yEnd int) {
			for y := yStart; y < yEnd; y++ {
				row := g.Pix[(y+bounds.Min.Y-g.Rect.Min.Y)*g.Stride:]
				off := bounds.Min.X - g.Rect.Min.X
				for x := 0; x < width; x++ {
					mat.SetUCharAt(y, x, row[off+x])
				}
			}
		})
		return mat
	}

	stripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < width; x++ {
				c := color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray)
				mat.SetUCharAt(y, x, c.Y)
			}
		}
	})
	return mat
}

// imageToBGR converts an image to a 3-channel BGR Mat (OpenCV's default
// channel order).
func imageToBGR(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	stripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				mat.SetUCharAt(y, x*3+0, uint8(b>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})
	return mat
}

// bgrToImage converts a 3-channel BGR Mat back to an RGBA image.
func bgrToImage(mat gocv.Mat) *image.RGBA {
	h, w := mat.Rows(), mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride

	stripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			rowOffset := y * stride
			for x := 0; x < w; x++ {
				pixOffset := rowOffset + x*4
				img.Pix[pixOffset+0] = mat.GetUCharAt(y, x*3+2)
				img.Pix[pixOffset+1] = mat.GetUCharAt(y, x*3+1)
				img.Pix[pixOffset+2] = mat.GetUCharAt(y, x*3+0)
				img.Pix[pixOffset+3] = 255
			}
		}
	})
	return img
}
