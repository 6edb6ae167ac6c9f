package main

import (
	"fmt"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/camera"
	"camera-calibration/internal/codec"
	"camera-calibration/internal/version"

	"github.com/spf13/cobra"
)

func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show [file]",
		Short:   "Print a saved calibration",
		GroupID: gTools,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := settings.LastOutput
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no file given and no previous output recorded")
			}

			res, err := codec.LoadFile(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s model)\n\n", bold(path), res.Model)
			fmt.Print(calib.FormatResult(res))
			return nil
		},
	}
}

func NewCamerasCommand() *cobra.Command {
	var maxIndex int
	cmd := &cobra.Command{
		Use:     "cameras",
		Short:   "List capture devices",
		GroupID: gTools,
		RunE: func(_ *cobra.Command, _ []string) error {
			ids := camera.ListDevices(maxIndex)
			if len(ids) == 0 {
				fmt.Println("No capture devices found")
				return nil
			}
			for _, id := range ids {
				current := ""
				if id == settings.CameraDevice {
					current = " (selected)"
				}
				fmt.Printf("%s device %d%s\n", mark(true), id, current)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxIndex, "max", 10, "highest device index to try")
	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version.String())
		},
	}
}
