package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"camera-calibration/internal/app"
	"camera-calibration/internal/calib"
	"camera-calibration/internal/camera"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCaptureCommand() *cobra.Command {
	var (
		device, want, every int
		output              string
	)

	cmd := &cobra.Command{
		Use:     "capture",
		Short:   "Calibrate from a live camera",
		GroupID: gCalibration,
		Long: `Calibrate from a live camera.

Grabs frames from the device and runs detection on every Nth one. Calibrates
once enough frames contain the pattern, or when interrupted with Ctrl-C.
Move the target around the field of view and tilt it between frames.`,
	}
	opts := addPatternFlags(cmd, true)
	f := cmd.Flags()
	f.IntVarP(&device, "device", "d", 0, "capture device index")
	f.IntVar(&want, "frames", 15, "number of successful detections to collect")
	f.IntVar(&every, "every", 10, "run detection on every Nth frame")
	f.StringVarP(&output, "output", "o", "", "write the result here (.json or .npz)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := opts.apply(cmd); err != nil {
			return err
		}
		if cmd.Flags().Changed("device") {
			settings.CameraDevice = device
		}
		if every < 1 {
			every = 1
		}

		src, err := camera.Open(settings.CameraDevice)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		stream := camera.NewStream(src)
		state := app.NewState(settings)
		state.On(app.EventFrameDetected, func(data interface{}) {
			printDetection(data.(app.Frame))
			if state.Successful() >= want {
				stream.Stop()
			}
		})

		fmt.Printf("Capturing from device %d, looking for a %s. Press Ctrl-C to finish early.\n",
			settings.CameraDevice, settings.Pattern)
		for frame := range stream.Start(ctx) {
			if frame.Seq%every == 0 {
				state.AddImage(frame.Image, "")
			}
		}
		if err := stream.Wait(); err != nil {
			logrus.WithError(err).Warn("capture ended")
		}
		state.Wait()

		fmt.Printf("\n%s frames contain the pattern\n\n", bold("%d", state.Successful()))
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
		saveSettings()
		return nil
	}
	return cmd
}
