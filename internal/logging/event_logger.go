package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"jordanella.com/runner-collector/internal/events"
)

// EventLogger subscribes to event bus and logs all events
type EventLogger struct {
	logger        *Logger
	eventBus      events.EventBus
	subscriptions []events.SubscriptionID
	logFile       *os.File
	path          string
}

// NewEventLogger creates a new event logger
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log file with timestamp
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	// Events go to their own file, not the shared session sink
	fileLogger := logrus.New()
	fileLogger.SetOutput(logFile)
	fileLogger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	fileLogger.SetLevel(logrus.DebugLevel)

	el := &EventLogger{
		logger:   NewLoggerWith(fileLogger, "EventLogger"),
		eventBus: eventBus,
		logFile:  logFile,
		path:     logPath,
	}

	// Subscribe to all event types
	el.subscribeToEvents()

	return el, nil
}

// subscribeToEvents subscribes to all event types
func (el *EventLogger) subscribeToEvents() {
	for _, eventType := range events.AllEventTypes {
		el.subscriptions = append(el.subscriptions, el.eventBus.Subscribe(eventType, el.handleEvent))
	}
}

// handleEvent handles incoming events and logs them
func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{
		"event_type": string(event.Type),
		"source":     event.Source,
	}

	// Add event-specific data to context
	if event.Data != nil {
		for k, v := range event.Data {
			context[k] = v
		}
	}

	// Log the event
	el.logger.InfoWithContext(fmt.Sprintf("Event: %s", event.Type), context)
}

// Path returns the event log file path
func (el *EventLogger) Path() string {
	return el.path
}

// Close unsubscribes from the bus and closes the log file
func (el *EventLogger) Close() error {
	for _, id := range el.subscriptions {
		el.eventBus.Unsubscribe(id)
	}
	el.subscriptions = nil
	if el.logFile != nil {
		return el.logFile.Close()
	}
	return nil
}
