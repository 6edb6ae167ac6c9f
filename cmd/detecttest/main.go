// Command detecttest runs pattern detection on one image and prints the points.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"camera-calibration/internal/detect"
	"camera-calibration/internal/image"
	"camera-calibration/internal/pattern"
)

func main() {
	imagePath := flag.String("image", "", "Path to image (PNG, JPEG, TIFF, BMP)")
	kind := flag.String("pattern", "checkerboard", "checkerboard, circles or asymmetric-circles")
	cols := flag.Int("cols", 10, "Squares or circles per row")
	rows := flag.Int("rows", 10, "Squares or circles per column")
	size := flag.Float64("size", 25, "Square side or circle spacing (mm)")
	overlay := flag.String("overlay", "", "Write the detection overlay to this file")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: detecttest -image <path> [-pattern checkerboard] [-cols 10] [-rows 10] [-overlay out.png]")
		os.Exit(1)
	}

	k, err := pattern.ParseKind(*kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	spec := pattern.DefaultSpec()
	spec.Kind, spec.Cols, spec.Rows, spec.UnitSize = k, *cols, *rows, *size
	if err := spec.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	frame, err := image.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	sz := frame.Size()
	fmt.Printf("Loaded image: %dx%d pixels\n", sz.Width, sz.Height)
	fmt.Printf("Pattern: %s (grid %v, %d points)\n", spec, spec.GridSize(), spec.PointCount())

	params := detect.DefaultParams()
	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Blob area min: %.0f px, circularity min: %.2f, area tolerance: %.2f\n",
		params.MinBlobArea, params.MinCircularity, params.AreaTolerance)
	fmt.Printf("  Sub-pixel: %d iterations, eps %g, window %d-%d px\n",
		params.SubPixMaxIter, params.SubPixEpsilon, params.SubPixMinWindow, params.SubPixMaxWindow)

	fmt.Printf("\nDetecting...\n")
	start := time.Now()
	det := detect.New(params).Detect(frame.Image, spec)
	elapsed := time.Since(start)

	if !det.Success {
		fmt.Printf("Not found after %v: %v\n", elapsed, det.Err)
	} else {
		fmt.Printf("Found %d points in %v:\n", det.Len(), elapsed)
		fmt.Printf("%-6s %10s %10s %10s %10s\n", "#", "X", "Y", "ObjX", "ObjY")
		for i, p := range det.ImagePoints {
			o := det.ObjectPoints[i]
			fmt.Printf("%-6d %10.2f %10.2f %10.1f %10.1f\n", i, p.X, p.Y, o.X, o.Y)
		}
	}

	if *overlay != "" {
		out, err := detect.DrawOverlay(frame.Image, det)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to draw overlay: %v\n", err)
			os.Exit(1)
		}
		if err := image.Save(out, *overlay); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nOverlay written to %s\n", *overlay)
	}

	if !det.Success {
		os.Exit(2)
	}
}
