package events

import (
	"image"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	// Calibration events
	EventTypeCalibrationCompleted EventType = "calibration.completed"
	EventTypeCalibrationFailed    EventType = "calibration.failed"

	// Session events
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionStopped EventType = "session.stopped"

	// Frame events
	EventTypeFrameSkipped  EventType = "frame.skipped"
	EventTypePlayerMissing EventType = "player.missing"
	EventTypeGameOver      EventType = "game.over"

	// Dataset events
	EventTypeDatasetExported EventType = "dataset.exported"

	// Health events
	EventTypeHealthWarning EventType = "health.warning"

	// Error events
	EventTypeError EventType = "error"
)

// AllEventTypes lists every event type emitted by the collector
var AllEventTypes = []EventType{
	EventTypeCalibrationCompleted,
	EventTypeCalibrationFailed,
	EventTypeSessionStarted,
	EventTypeSessionStopped,
	EventTypeFrameSkipped,
	EventTypePlayerMissing,
	EventTypeGameOver,
	EventTypeDatasetExported,
	EventTypeHealthWarning,
	EventTypeError,
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "session", "health_checker")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus is the publishing side the collector and health checker use
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)

	// Publish never blocks; undeliverable events are dropped
	Publish(event Event)

	// Stop delivers queued events and shuts the dispatcher down
	Stop()
}

// Helper functions to create common events

func rectData(r image.Rectangle) map[string]interface{} {
	return map[string]interface{}{
		"x":      r.Min.X,
		"y":      r.Min.Y,
		"width":  r.Dx(),
		"height": r.Dy(),
	}
}

// NewCalibrationCompletedEvent creates a calibration completed event
func NewCalibrationCompletedEvent(rough, refined image.Rectangle) Event {
	return Event{
		Type:      EventTypeCalibrationCompleted,
		Source:    "calibrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rough":   rectData(rough),
			"refined": rectData(refined),
		},
	}
}

// NewCalibrationFailedEvent creates a calibration failed event; the rough region stays in use
func NewCalibrationFailedEvent(rough image.Rectangle, err error) Event {
	return Event{
		Type:      EventTypeCalibrationFailed,
		Source:    "calibrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rough": rectData(rough),
			"error": err.Error(),
		},
	}
}

// NewSessionStartedEvent creates a session started event
func NewSessionStartedEvent(sessionID string, region image.Rectangle) Event {
	return Event{
		Type:      EventTypeSessionStarted,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"region":     rectData(region),
		},
	}
}

// NewSessionStoppedEvent creates a session stopped event
func NewSessionStoppedEvent(sessionID string, samples, frames int, duration time.Duration) Event {
	return Event{
		Type:      EventTypeSessionStopped,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"samples":    samples,
			"frames":     frames,
			"duration":   duration.String(),
		},
	}
}

// NewFrameSkippedEvent creates a frame skipped event for a failed capture
func NewFrameSkippedEvent(sessionID string, frame int, err error) Event {
	return Event{
		Type:      EventTypeFrameSkipped,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"frame":      frame,
			"error":      err.Error(),
		},
	}
}

// NewPlayerMissingEvent creates a player missing event
func NewPlayerMissingEvent(sessionID string, frame, streak int) Event {
	return Event{
		Type:      EventTypePlayerMissing,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"frame":      frame,
			"streak":     streak,
		},
	}
}

// NewGameOverEvent creates a game over event
func NewGameOverEvent(sessionID string, frame int, shopPrompt bool) Event {
	return Event{
		Type:      EventTypeGameOver,
		Source:    "session",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"frame":       frame,
			"shop_prompt": shopPrompt,
		},
	}
}

// NewDatasetExportedEvent creates a dataset exported event
func NewDatasetExportedEvent(sessionID, sink string, samples int) Event {
	return Event{
		Type:      EventTypeDatasetExported,
		Source:    "recorder",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"sink":       sink,
			"samples":    samples,
		},
	}
}

// NewHealthWarningEvent creates a health warning event
func NewHealthWarningEvent(check, message string) Event {
	return Event{
		Type:      EventTypeHealthWarning,
		Source:    "health_checker",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"check":   check,
			"message": message,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, component string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"source":    source,
		"component": component,
	}
	if err != nil {
		data["error"] = err.Error()
	}

	// Merge metadata
	for k, v := range metadata {
		data[k] = v
	}

	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
