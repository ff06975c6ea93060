package events

import (
	"time"

	"jordanella.com/webcam-touch/internal/calibration"
)

// EventType represents different types of events in the system
type EventType string

const (
	// Touch events
	EventTypeTouchBegan EventType = "touch.began"
	EventTypeTouchMoved EventType = "touch.moved"
	EventTypeTouchEnded EventType = "touch.ended"

	// Detector lifecycle events
	EventTypeDetectorStarted EventType = "detector.started"
	EventTypeDetectorStopped EventType = "detector.stopped"

	// Frame source health events
	EventTypeSourceStalled   EventType = "source.stalled"
	EventTypeSourceRecovered EventType = "source.recovered"

	// Calibration events
	EventTypeCalibrationCompleted EventType = "calibration.completed"
	EventTypeSettingsChanged      EventType = "settings.changed"

	// Error events
	EventTypeError EventType = "error"
)

// AllEventTypes lists every event type the system emits
var AllEventTypes = []EventType{
	EventTypeTouchBegan,
	EventTypeTouchMoved,
	EventTypeTouchEnded,
	EventTypeDetectorStarted,
	EventTypeDetectorStopped,
	EventTypeSourceStalled,
	EventTypeSourceRecovered,
	EventTypeCalibrationCompleted,
	EventTypeSettingsChanged,
	EventTypeError,
}

// IsTouch reports whether the type is one of the touch phases
func (t EventType) IsTouch() bool {
	return t == EventTypeTouchBegan || t == EventTypeTouchMoved || t == EventTypeTouchEnded
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "detector", "health_monitor")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// SubscribeAll registers a handler for every event type
	SubscribeAll(handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking)
	Publish(event Event)

	// PublishAsync sends an event without blocking, dropping it when the queue is full
	PublishAsync(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// TouchPayload describes one touch observation. It travels in Data["touch"]
// next to flattened copies of its fields.
type TouchPayload struct {
	ID        string
	Phase     string
	Webcam    calibration.Vec2
	Screen    calibration.Vec2
	World     calibration.Vec2
	Area      int
	Intensity float64
	InBounds  bool
	Frame     int64
	Timestamp time.Time
}

// Helper functions to create common events

// NewTouchEvent creates a touch event of the given phase type
func NewTouchEvent(eventType EventType, touch TouchPayload) Event {
	ts := touch.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Type:      eventType,
		Source:    "detector",
		Timestamp: ts,
		Data: map[string]interface{}{
			"touch":     touch,
			"touch_id":  touch.ID,
			"phase":     touch.Phase,
			"screen_x":  touch.Screen.X,
			"screen_y":  touch.Screen.Y,
			"area":      touch.Area,
			"intensity": touch.Intensity,
			"in_bounds": touch.InBounds,
			"frame":     touch.Frame,
		},
	}
}

// TouchFromEvent extracts the payload of a touch event
func TouchFromEvent(event Event) (TouchPayload, bool) {
	if !event.Type.IsTouch() || event.Data == nil {
		return TouchPayload{}, false
	}
	touch, ok := event.Data["touch"].(TouchPayload)
	return touch, ok
}

// NewDetectorEvent creates a detector lifecycle event
func NewDetectorEvent(eventType EventType, source string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["capture_source"] = source
	return Event{
		Type:      eventType,
		Source:    "detector",
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewStalledEvent creates a source.stalled event, or source.recovered when
// stalled is false
func NewStalledEvent(stalled bool, lastFrame time.Time, silence time.Duration) Event {
	eventType := EventTypeSourceRecovered
	if stalled {
		eventType = EventTypeSourceStalled
	}
	return Event{
		Type:      eventType,
		Source:    "health_monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"last_frame": lastFrame,
			"silence_ms": silence.Milliseconds(),
		},
	}
}

// NewCalibrationEvent creates a calibration completed event
func NewCalibrationEvent(profile string, corners calibration.Quad) Event {
	return Event{
		Type:      EventTypeCalibrationCompleted,
		Source:    "calibrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"profile": profile,
			"corners": corners,
		},
	}
}

// NewSettingsChangedEvent creates a settings changed event
func NewSettingsChangedEvent(source string, settings calibration.Settings) Event {
	return Event{
		Type:      EventTypeSettingsChanged,
		Source:    source,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"settings":  settings,
			"threshold": settings.Threshold,
			"rotation":  settings.Rotation,
			"zoom":      settings.Zoom,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, component string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"source":    source,
		"component": component,
		"error":     err.Error(),
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
