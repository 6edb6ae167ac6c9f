package calib

import "github.com/pkg/errors"

var (
	// ErrEmptyDataset is returned when there are no detections to calibrate from.
	ErrEmptyDataset = errors.New("calibration dataset is empty")
	// ErrShapeMismatch is returned when the dataset mixes image resolutions.
	ErrShapeMismatch = errors.New("images in the dataset have different sizes")
	// ErrSolverDivergence is returned when the correspondences are degenerate
	// or the optimisation cannot produce a valid camera.
	ErrSolverDivergence = errors.New("calibration did not converge")
)
