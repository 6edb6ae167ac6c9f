// Command calibtest detects and calibrates on a directory of images and
// prints per-view diagnostics.
package main

import (
	"context"
	"flag"
	"fmt"
	goimage "image"
	"math"
	"os"
	"path/filepath"
	"time"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/dataset"
	"camera-calibration/internal/detect"
	"camera-calibration/internal/image"
	"camera-calibration/internal/pattern"
)

func main() {
	dir := flag.String("d", "", "Directory of calibration images")
	kind := flag.String("pattern", "checkerboard", "checkerboard, circles or asymmetric-circles")
	cols := flag.Int("cols", 10, "Squares or circles per row")
	rows := flag.Int("rows", 10, "Squares or circles per column")
	size := flag.Float64("size", 25, "Square side or circle spacing (mm)")
	modelName := flag.String("model", "standard", "standard or fisheye")
	iters := flag.Int("iters", 100, "Maximum solver iterations")
	workers := flag.Int("j", 0, "Detection workers (0 = one per CPU)")
	flag.Parse()

	if *dir == "" {
		fmt.Println("Usage: calibtest -d <dir> [-pattern checkerboard] [-cols 10] [-rows 10] [-model standard]")
		os.Exit(1)
	}

	k, err := pattern.ParseKind(*kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	spec := pattern.DefaultSpec()
	spec.Kind, spec.Cols, spec.Rows, spec.UnitSize = k, *cols, *rows, *size
	model, err := calib.ParseModel(*modelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	frames, skipped, err := image.LoadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	for _, p := range skipped {
		fmt.Printf("Skipped %s\n", p)
	}
	imgs := make([]goimage.Image, len(frames))
	for i, f := range frames {
		imgs[i] = f.Image
	}

	// Detect
	pool := detect.NewPool(detect.New(detect.DefaultParams()), *workers)
	fmt.Printf("=== Detecting %s in %d images (%d workers) ===\n", spec, len(frames), pool.Workers())
	start := time.Now()
	dets := pool.DetectAll(context.Background(), imgs, spec)
	fmt.Printf("Detection took %v\n\n", time.Since(start))

	acc := dataset.NewAccumulator()
	views := make([]string, 0, len(frames))
	for i, det := range dets {
		name := filepath.Base(frames[i].Path)
		if _, err := acc.Add(det, det.ImageSize); err != nil {
			fmt.Printf("  %-30s %v\n", name, err)
			continue
		}
		views = append(views, name)
		fmt.Printf("  %-30s %d points\n", name, det.Len())
	}

	// Calibrate
	opts := calib.DefaultOptions()
	opts.MaxIterations = *iters
	fmt.Printf("\n=== Calibrating %d views (%s) ===\n", acc.Len(), model)
	start = time.Now()
	res, err := calib.NewSolver(opts).Calibrate(acc.Dataset(), model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Solve took %v\n\n", time.Since(start))
	fmt.Print(calib.FormatResult(res))

	fmt.Printf("%-30s %8s %10s %24s\n", "View", "RMS", "Angle", "Translation")
	for i, e := range res.PerViewErrors() {
		r := res.RotationVecs[i]
		t := res.TranslationVecs[i]
		angle := math.Sqrt(r[0]*r[0]+r[1]*r[1]+r[2]*r[2]) * 180 / math.Pi
		fmt.Printf("%-30s %8.4f %9.2f° [%7.1f %7.1f %7.1f]\n", views[i], e, angle, t[0], t[1], t[2])
	}
}
