package main

import (
	"fmt"

	"camera-calibration/internal/image"
	"camera-calibration/internal/pattern"

	"github.com/spf13/cobra"
)

func NewPatternCommand() *cobra.Command {
	var (
		width, height int
		dpi           float64
		output        string
	)

	cmd := &cobra.Command{
		Use:     "pattern",
		Short:   "Render a printable target",
		GroupID: gTools,
		Long: `Render a printable target.

The target is drawn at its physical size for the given DPI and centred on a
white canvas. Print it without scaling, or show it full screen on a display
whose DPI is given.`,
		Example: `  camera-calibration pattern -p circles --cols 7 --rows 6 --size 30 --dpi 300 --width 2480 --height 3508 -o a4.png`,
	}
	opts := addPatternFlags(cmd, false)
	f := cmd.Flags()
	f.IntVar(&width, "width", 1920, "canvas width in pixels")
	f.IntVar(&height, "height", 1080, "canvas height in pixels")
	f.Float64Var(&dpi, "dpi", 0, "output resolution in dots per inch (default: saved display DPI)")
	f.StringVarP(&output, "output", "o", "pattern.png", "image file to write")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := opts.apply(cmd); err != nil {
			return err
		}
		if cmd.Flags().Changed("dpi") {
			settings.DisplayDPI = dpi
		}

		rs := pattern.NewRenderSpec(settings.Pattern, width, height, pattern.PixelsPerMMFromDPI(settings.DisplayDPI))
		img, err := pattern.Render(rs)
		if err != nil {
			return err
		}
		if err := image.Save(img, output); err != nil {
			return err
		}
		fmt.Printf("%s %s (%dx%d at %g DPI)\n", mark(true), bold(output), width, height, settings.DisplayDPI)
		saveSettings()
		return nil
	}
	return cmd
}
