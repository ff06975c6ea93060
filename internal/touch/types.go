package touch

import (
	"time"

	"github.com/google/uuid"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/events"
)

// Phase is the lifecycle stage of a touch
type Phase string

const (
	PhaseBegan Phase = "began"
	PhaseMoved Phase = "moved"
	PhaseEnded Phase = "ended"
)

// EventType returns the bus event published for this phase
func (p Phase) EventType() events.EventType {
	switch p {
	case PhaseBegan:
		return events.EventTypeTouchBegan
	case PhaseEnded:
		return events.EventTypeTouchEnded
	default:
		return events.EventTypeTouchMoved
	}
}

// Touch is one tracked contact in one processed frame
type Touch struct {
	ID        uuid.UUID
	Phase     Phase
	Webcam    calibration.Vec2 // Normalized, origin bottom-left
	Screen    calibration.Vec2 // Pixels, origin bottom-left
	World     calibration.Vec2
	Area      int     // Motion cells
	Intensity float64 // 0.0-1.0
	InBounds  bool    // Inside the calibrated area
	Frame     int64   // Processed frame index
	Timestamp time.Time
}

// Payload converts the touch for event subscribers
func (t Touch) Payload() events.TouchPayload {
	return events.TouchPayload{
		ID:        t.ID.String(),
		Phase:     string(t.Phase),
		Webcam:    t.Webcam,
		Screen:    t.Screen,
		World:     t.World,
		Area:      t.Area,
		Intensity: t.Intensity,
		InBounds:  t.InBounds,
		Frame:     t.Frame,
		Timestamp: t.Timestamp,
	}
}

// Event wraps the touch in its phase event
func (t Touch) Event() events.Event {
	return events.NewTouchEvent(t.Phase.EventType(), t.Payload())
}

// Observation is one accepted cluster after coordinate mapping, before
// identity is assigned
type Observation struct {
	Webcam    calibration.Vec2
	Screen    calibration.Vec2
	World     calibration.Vec2
	Area      int
	Intensity float64
	InBounds  bool
}
