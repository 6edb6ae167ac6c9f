package main

import (
	"fmt"

	"camera-calibration/internal/app"
	"camera-calibration/internal/calib"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCalibrateCommand() *cobra.Command {
	var output, projectPath, overlayDir string

	cmd := &cobra.Command{
		Use:     "calibrate [images or directories...]",
		Short:   "Calibrate from photos of the target",
		GroupID: gCalibration,
		Long: `Calibrate from photos of the target.

Detects the pattern in every image, then solves for the camera matrix and
distortion coefficients using the images where it was found. Directories are
expanded to the images they contain.

With --project and no images, the images listed in the project are used. With
--project and images, the session is written to the project file.`,
		Example: `  camera-calibration calibrate shots/ -p checkerboard --cols 10 --rows 7 --size 24 -o cam.json
  camera-calibration calibrate --project bench.calproj -m fisheye -o cam.npz`,
	}
	opts := addPatternFlags(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here (.json or .npz)")
	cmd.Flags().StringVar(&projectPath, "project", "", "project file to read images from or save the session to")
	cmd.Flags().StringVar(&overlayDir, "overlay-dir", "", "write detection overlays to this directory")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && projectPath == "" {
			return errors.New("no images given")
		}

		state := app.NewState(settings)
		state.On(app.EventFrameDetected, func(data interface{}) {
			printDetection(data.(app.Frame))
		})

		if len(args) == 0 {
			skipped, err := state.LoadProject(projectPath)
			if err != nil {
				return err
			}
			for _, p := range skipped {
				fmt.Printf("%s %s: could not be loaded\n", mark(false), p)
			}
			settings.Pattern = state.Pattern()
			settings.Model = state.Model()
		}
		// Pattern flags apply to images named on the command line; project images
		// were already queued with the project target.
		if err := opts.apply(cmd); err != nil {
			return err
		}
		if err := state.SetPattern(settings.Pattern); err != nil {
			return err
		}
		state.SetModel(settings.Model)

		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := state.LoadImage(p); err != nil {
				logrus.WithError(err).Warn("skipping image")
				fmt.Printf("%s %s: %v\n", mark(false), p, err)
			}
		}
		state.Wait()

		frames := state.Frames()
		fmt.Printf("\n%s of %d images contain a %s\n\n",
			bold("%d", state.Successful()), len(frames), settings.Pattern)

		if overlayDir != "" {
			if err := writeOverlays(state, overlayDir); err != nil {
				return errors.Wrap(err, "failed to write overlays")
			}
		}

		res, err := state.Calibrate()
		if err != nil {
			return err
		}
		fmt.Print(calib.FormatResult(res))

		if output != "" {
			if err := state.SaveResult(output); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", bold(output))
			settings.LastOutput = output
		}
		if projectPath != "" && len(args) > 0 {
			if err := state.SaveProject(projectPath, output); err != nil {
				return err
			}
			fmt.Printf("Saved project %s\n", bold(projectPath))
		}
		saveSettings()
		return nil
	}
	return cmd
}
