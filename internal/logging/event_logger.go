package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jordanella.com/webcam-touch/internal/events"
)

// EventLogger subscribes to the event bus and writes every event to a
// timestamped events_*.log file
type EventLogger struct {
	logger         *Logger
	eventBus       events.EventBus
	subscriptionID events.SubscriptionID
	logFile        *os.File
	logPath        string
	includeMoves   bool
}

// NewEventLogger creates a new event logger. touch.moved events arrive at
// frame rate and are only written when includeMoves is set.
func NewEventLogger(eventBus events.EventBus, logDir string, includeMoves bool) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	el := &EventLogger{
		logger:       NewLoggerWithOutputs("EventLogger", logFile),
		eventBus:     eventBus,
		logFile:      logFile,
		logPath:      logPath,
		includeMoves: includeMoves,
	}
	el.subscriptionID = eventBus.SubscribeAll(el.handleEvent)

	return el, nil
}

// Path returns the log file location
func (el *EventLogger) Path() string {
	return el.logPath
}

// handleEvent handles incoming events and logs them
func (el *EventLogger) handleEvent(event events.Event) {
	if event.Type == events.EventTypeTouchMoved && !el.includeMoves {
		return
	}

	context := map[string]interface{}{
		"source": event.Source,
	}

	if touch, ok := events.TouchFromEvent(event); ok {
		context["id"] = touch.ID
		context["screen"] = fmt.Sprintf("%.1f,%.1f", touch.Screen.X, touch.Screen.Y)
		context["area"] = touch.Area
		context["in_bounds"] = touch.InBounds
		context["frame"] = touch.Frame
	} else {
		for k, v := range event.Data {
			context[k] = v
		}
	}

	if event.Type == events.EventTypeError {
		el.logger.WarnWithContext(fmt.Sprintf("Event: %s", event.Type), context)
		return
	}
	el.logger.InfoWithContext(fmt.Sprintf("Event: %s", event.Type), context)
}

// Close unsubscribes and closes the log file
func (el *EventLogger) Close() error {
	el.eventBus.Unsubscribe(el.subscriptionID)
	if el.logFile != nil {
		return el.logFile.Close()
	}
	return nil
}
