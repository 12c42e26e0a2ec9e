package cv

import "errors"

var (
	// ErrCaptureFailure is returned when the screenshot provider yields no data
	ErrCaptureFailure = errors.New("capture failed")

	// ErrPlayerNotFound is returned when the player mask has no contour.
	// Extract still returns a usable result with an all-zero grid.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrCalibrationFailure is returned when no usable contour exists in the rough region.
	// The rough region is returned alongside it.
	ErrCalibrationFailure = errors.New("calibration failed")

	// ErrEmptyFrame is returned for nil or zero-sized images
	ErrEmptyFrame = errors.New("empty frame")
)
