// Package main provides the camera-calibration command line tool.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/camera"
	"camera-calibration/internal/codec"
	"camera-calibration/internal/config"
	"camera-calibration/internal/pattern"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	logLevel   = "info"
	logFile    = ""
	logOut     *os.File
	configPath = config.DefaultPath()

	// settings is loaded before any command runs.
	settings = config.Default()
)

var (
	gCalibration = "Calibration:"
	gTools       = "Tools:"
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
	if logFile == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open log file %s", logFile)
	}
	// Colour codes would end up in the file.
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	logOut = f
	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, calib.ErrEmptyDataset):
		fmt.Fprintln(os.Stderr, "\nError: no image contained the pattern")
		fmt.Fprintln(os.Stderr, "  - Check --pattern, --cols and --rows match the printed target")
		fmt.Fprintln(os.Stderr, "  - For checkerboards, --cols and --rows count squares, not corners")
	case errors.Is(err, calib.ErrShapeMismatch):
		fmt.Fprintln(os.Stderr, "\nError: images have different resolutions")
		fmt.Fprintln(os.Stderr, "  - All images must come from the same camera mode")
	case errors.Is(err, calib.ErrSolverDivergence):
		fmt.Fprintln(os.Stderr, "\nError: calibration did not converge")
		fmt.Fprintln(os.Stderr, "  - Add more images with the target tilted and moved around the frame")
	case errors.Is(err, codec.ErrCodec):
		fmt.Fprintln(os.Stderr, "\nError: not a valid calibration file")
	case errors.Is(err, pattern.ErrInvalidSpec):
		fmt.Fprintln(os.Stderr, "\nError: invalid pattern parameters")
	case errors.Is(err, camera.ErrDeviceUnavailable):
		fmt.Fprintln(os.Stderr, "\nError: camera could not be opened")
		fmt.Fprintln(os.Stderr, "  - Run 'camera-calibration cameras' to list devices")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera-calibration",
		Short: "camera-calibration computes camera intrinsics from images of a planar target",
		Long: `camera-calibration computes a camera's intrinsic matrix and lens distortion
coefficients from images of a printed checkerboard or circle grid.

Print a target with 'pattern', photograph it from several angles, then run
'calibrate' on the photos (or 'capture' to grab them from a camera).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.Load(configPath)
			if err != nil {
				return err
			}
			settings = s
			if !cmd.Flags().Changed("log-level") {
				logLevel = settings.LogLevel
			}
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&logFile, "log-file", "", "also append log output to this file")
	globalFlags.StringVar(&configPath, "config", configPath, "settings file path")

	for _, g := range []string{gCalibration, gTools} {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewCalibrateCommand(),
		NewCaptureCommand(),
		NewPatternCommand(),
		NewShowCommand(),
		NewUndistortCommand(),
		NewCamerasCommand(),
		NewVersionCommand(),
	)

	return cmd
}

// saveSettings persists settings; failures are logged, not returned.
func saveSettings() {
	if err := config.Save(configPath, settings); err != nil {
		logrus.WithError(err).Warn("failed to save settings")
	}
}
