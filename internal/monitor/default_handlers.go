package monitor

import "fmt"

// Policy holds the knobs the default handlers depend on
type Policy struct {
	// RecordWithoutPlayer records frames with no player as an all-zero grid instead of dropping them
	RecordWithoutPlayer bool
}

// HandleCaptureError drops the cycle; the next capture is the retry
func HandleCaptureError(event *ErrorEvent) ErrorResponse {
	return ErrorResponse{
		Action:  ActionSkipFrame,
		Message: fmt.Sprintf("frame %d not captured: %v", event.Frame, event.Err),
	}
}

// HandleCalibrationError keeps the rough region
func HandleCalibrationError(event *ErrorEvent) ErrorResponse {
	return ErrorResponse{
		Action:  ActionUseFallback,
		Message: "calibration found no contour, using the rough region",
	}
}

// HandlePlayerNotFound records a zero grid or skips, depending on the policy
func (p Policy) HandlePlayerNotFound(event *ErrorEvent) ErrorResponse {
	if p.RecordWithoutPlayer {
		return ErrorResponse{
			Action:  ActionRecordZeroGrid,
			Message: fmt.Sprintf("frame %d has no player, recording zero grid", event.Frame),
		}
	}
	return ErrorResponse{
		Action:  ActionSkipFrame,
		Message: fmt.Sprintf("frame %d has no player, skipping", event.Frame),
	}
}

// Handle routes an event to the matching handler. A nil event means the cycle succeeded.
func (p Policy) Handle(event *ErrorEvent) ErrorResponse {
	if event == nil {
		return ErrorResponse{Action: ActionRecord}
	}

	switch event.Type {
	case ErrorCapture, ErrorEmptyFrame:
		return HandleCaptureError(event)

	case ErrorPlayerNotFound:
		return p.HandlePlayerNotFound(event)

	case ErrorCalibration:
		return HandleCalibrationError(event)

	case ErrorCancelled:
		return ErrorResponse{
			Action:  ActionSkipFrame,
			Message: "cycle cancelled",
		}

	default:
		// Unknown per-frame failures never end the session
		return ErrorResponse{
			Action:  ActionSkipFrame,
			Message: fmt.Sprintf("unexpected error on frame %d: %v", event.Frame, event.Err),
		}
	}
}
