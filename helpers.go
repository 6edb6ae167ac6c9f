package main

import (
	"fmt"
	goimage "image"
	"os"
	"path/filepath"
	"strings"

	"camera-calibration/internal/app"
	"camera-calibration/internal/calib"
	"camera-calibration/internal/config"
	"camera-calibration/internal/image"
	"camera-calibration/internal/pattern"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// patternOptions holds the target flags shared by several commands. Unset
// flags fall back to the saved settings.
type patternOptions struct {
	kind        string
	cols, rows  int
	size, ratio float64
	model       string
}

func addPatternFlags(cmd *cobra.Command, withModel bool) *patternOptions {
	o := &patternOptions{}
	f := cmd.Flags()
	f.StringVarP(&o.kind, "pattern", "p", "", "target kind: checkerboard, circles or asymmetric-circles")
	f.IntVar(&o.cols, "cols", 0, "squares (checkerboard) or circles per row")
	f.IntVar(&o.rows, "rows", 0, "squares (checkerboard) or circles per column")
	f.Float64Var(&o.size, "size", 0, "square side or circle spacing in millimetres")
	f.Float64Var(&o.ratio, "radius-ratio", 0, "circle spacing divided by circle radius")
	if withModel {
		f.StringVarP(&o.model, "model", "m", "", "lens model: standard or fisheye")
	}
	return o
}

// apply merges changed flags into settings and validates the result.
func (o *patternOptions) apply(cmd *cobra.Command) error {
	f := cmd.Flags()
	spec := settings.Pattern
	if f.Changed("pattern") {
		k, err := pattern.ParseKind(o.kind)
		if err != nil {
			return err
		}
		spec.Kind = k
	}
	if f.Changed("cols") {
		spec.Cols = o.cols
	}
	if f.Changed("rows") {
		spec.Rows = o.rows
	}
	if f.Changed("size") {
		spec.UnitSize = o.size
	}
	if f.Changed("radius-ratio") {
		spec.RadiusRatio = o.ratio
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	settings.Pattern = spec

	if f.Changed("model") {
		m, err := calib.ParseModel(o.model)
		if err != nil {
			return err
		}
		settings.Model = m
	}
	return nil
}

// expandPaths replaces directories with the images inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		inDir, err := image.ListDir(a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, inDir...)
	}
	return paths, nil
}

func printDetection(f app.Frame) {
	name := f.Path
	if name == "" {
		name = fmt.Sprintf("frame %d", f.ID)
	} else {
		name = filepath.Base(name)
	}
	if f.Detected() {
		fmt.Printf("%s %s (%d points)\n", mark(true), name, f.Detection.Len())
		return
	}
	fmt.Printf("%s %s: %v\n", mark(false), name, f.Detection.Err)
}

func mark(ok bool) string {
	if ok {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// writeOverlays saves one overlay per frame plus an overview sheet.
func writeOverlays(state *app.State, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var overlays []goimage.Image
	for _, f := range state.Frames() {
		ov, err := state.Overlay(f.ID)
		if err != nil {
			return err
		}
		overlays = append(overlays, ov)

		name := fmt.Sprintf("frame%03d", f.ID)
		if f.Path != "" {
			base := filepath.Base(f.Path)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if err := image.Save(ov, filepath.Join(dir, name+"_overlay.png")); err != nil {
			return err
		}
	}
	width := settings.ThumbnailWidth
	if width <= 0 {
		width = config.Default().ThumbnailWidth
	}
	sheet := image.NewSheet(4, width).Render(overlays)
	return image.Save(sheet, filepath.Join(dir, "overview.png"))
}
