package monitor

import (
	"context"
	"errors"
	"time"

	"jordanella.com/runner-collector/internal/cv"
)

// ErrorType represents the category of a pipeline failure
type ErrorType int

const (
	ErrorCapture        ErrorType = iota // Screenshot provider returned no data
	ErrorEmptyFrame                      // Frame decoded to zero pixels
	ErrorPlayerNotFound                  // No player contour in this frame
	ErrorCalibration                     // No usable contour in the rough region
	ErrorCancelled                       // Context cancelled mid cycle
	ErrorUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrorCapture:
		return "capture"
	case ErrorEmptyFrame:
		return "empty_frame"
	case ErrorPlayerNotFound:
		return "player_not_found"
	case ErrorCalibration:
		return "calibration"
	case ErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrorSeverity determines how loudly the error is reported
type ErrorSeverity int

const (
	SeverityHigh   ErrorSeverity = iota // Reported and counted
	SeverityMedium                      // Degraded but continuing
	SeverityLow                         // Log only
)

// ErrorAction tells the collection loop what to do with the current cycle
type ErrorAction int

const (
	ActionRecord         ErrorAction = iota // Record the frame as extracted
	ActionRecordZeroGrid                    // Record the frame with an all-zero grid
	ActionSkipFrame                         // Record nothing for this cycle
	ActionUseFallback                       // Continue with the degraded value returned alongside the error
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRecord:
		return "record"
	case ActionRecordZeroGrid:
		return "record_zero_grid"
	case ActionSkipFrame:
		return "skip_frame"
	case ActionUseFallback:
		return "use_fallback"
	default:
		return "unknown"
	}
}

// ErrorEvent describes one failure observed by the collection loop
type ErrorEvent struct {
	Type       ErrorType
	Severity   ErrorSeverity
	Frame      int
	Err        error
	Context    map[string]interface{}
	DetectedAt time.Time
}

// ErrorResponse is the loop's decision for the failing cycle
type ErrorResponse struct {
	Action  ErrorAction
	Message string
}

// ClassifyError maps a pipeline error onto its ErrorType
func ClassifyError(err error) ErrorType {
	switch {
	case errors.Is(err, cv.ErrCaptureFailure):
		return ErrorCapture
	case errors.Is(err, cv.ErrEmptyFrame):
		return ErrorEmptyFrame
	case errors.Is(err, cv.ErrPlayerNotFound):
		return ErrorPlayerNotFound
	case errors.Is(err, cv.ErrCalibrationFailure):
		return ErrorCalibration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCancelled
	default:
		return ErrorUnknown
	}
}

// NewErrorEvent classifies err and stamps the event
func NewErrorEvent(frame int, err error) *ErrorEvent {
	t := ClassifyError(err)
	return &ErrorEvent{
		Type:       t,
		Severity:   defaultSeverity(t),
		Frame:      frame,
		Err:        err,
		DetectedAt: time.Now(),
	}
}

func defaultSeverity(t ErrorType) ErrorSeverity {
	switch t {
	case ErrorPlayerNotFound, ErrorCancelled:
		return SeverityLow
	case ErrorCalibration:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
