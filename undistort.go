package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/codec"
	"camera-calibration/internal/detect"
	"camera-calibration/internal/image"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewUndistortCommand() *cobra.Command {
	var resultPath, outputDir string

	cmd := &cobra.Command{
		Use:     "undistort [images or directories...]",
		Short:   "Remove lens distortion from images",
		GroupID: gTools,
		Long: `Remove lens distortion from images using a saved calibration.

Each image is written as <name>_undistorted.png, next to the input unless
--output-dir is set. Without --result the last saved calibration is used.`,
		Example: `  camera-calibration undistort -r cam.json shots/`,
		Args:    cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVarP(&resultPath, "result", "r", "", "calibration file (.json or .npz)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "write undistorted images to this directory")

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		if resultPath == "" {
			resultPath = settings.LastOutput
		}
		if resultPath == "" {
			return errors.New("no result given and no previous output recorded")
		}
		res, err := codec.LoadFile(resultPath)
		if err != nil {
			return err
		}

		paths, err := expandPaths(args)
		if err != nil {
			return err
		}
		if outputDir != "" {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create %s", outputDir)
			}
		}

		failed := 0
		for _, p := range paths {
			out, err := undistortFile(p, outputDir, res)
			if err != nil {
				failed++
				logrus.WithError(err).WithField("image", p).Warn("undistort failed")
				fmt.Printf("%s %s: %v\n", mark(false), filepath.Base(p), err)
				continue
			}
			fmt.Printf("%s %s -> %s\n", mark(true), filepath.Base(p), out)
		}
		if failed > 0 {
			return errors.Errorf("%d of %d images failed", failed, len(paths))
		}
		return nil
	}
	return cmd
}

func undistortFile(path, outputDir string, res *calib.Result) (string, error) {
	frame, err := image.Load(path)
	if err != nil {
		return "", err
	}
	img, err := detect.Undistort(frame.Image, res)
	if err != nil {
		return "", err
	}

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	name := strings.TrimSuffix(frame.Name(), filepath.Ext(path)) + "_undistorted.png"
	out := filepath.Join(dir, name)
	if err := image.Save(img, out); err != nil {
		return "", err
	}
	return out, nil
}
