package touch

import (
	"testing"
	"time"

	"jordanella.com/webcam-touch/internal/calibration"
)

func obsAt(x, y float64) Observation {
	return Observation{Webcam: calibration.Vec2{X: x, Y: y}, Area: 20, InBounds: true}
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker(&TrackerConfig{MatchDistance: 0.1, MaxMissedFrames: 1})
	now := time.Now()

	began := tr.Update([]Observation{obsAt(0.5, 0.5)}, 1, now)
	if len(began) != 1 || began[0].Phase != PhaseBegan {
		t.Fatalf("Expected one began touch, got %v", began)
	}
	id := began[0].ID

	moved := tr.Update([]Observation{obsAt(0.55, 0.52)}, 2, now)
	if len(moved) != 1 || moved[0].Phase != PhaseMoved || moved[0].ID != id {
		t.Fatalf("Expected the same touch to move, got %v", moved)
	}

	// One missed frame is tolerated
	if got := tr.Update(nil, 3, now); len(got) != 0 {
		t.Fatalf("Expected no output while within MaxMissedFrames, got %v", got)
	}
	if tr.Active() != 1 {
		t.Errorf("Expected touch to stay live, got %d active", tr.Active())
	}

	ended := tr.Update(nil, 4, now)
	if len(ended) != 1 || ended[0].Phase != PhaseEnded || ended[0].ID != id {
		t.Fatalf("Expected the touch to end, got %v", ended)
	}
	if ended[0].Webcam != moved[0].Webcam || ended[0].Frame != 4 {
		t.Errorf("Expected ended touch at the last position on frame 4, got %+v", ended[0])
	}
	if tr.Active() != 0 {
		t.Errorf("Expected no live touches, got %d", tr.Active())
	}
}

func TestTrackerFarObservationStartsNewTouch(t *testing.T) {
	tr := NewTracker(&TrackerConfig{MatchDistance: 0.05, MaxMissedFrames: 0})
	now := time.Now()

	first := tr.Update([]Observation{obsAt(0.1, 0.1)}, 1, now)
	next := tr.Update([]Observation{obsAt(0.9, 0.9)}, 2, now)

	if len(next) != 2 {
		t.Fatalf("Expected a new touch and an ended touch, got %v", next)
	}
	if next[0].Phase != PhaseBegan || next[0].ID == first[0].ID {
		t.Errorf("Expected a fresh touch, got %+v", next[0])
	}
	if next[1].Phase != PhaseEnded || next[1].ID != first[0].ID {
		t.Errorf("Expected the old touch to end, got %+v", next[1])
	}
}

func TestTrackerGreedyMatchesClosestFirst(t *testing.T) {
	tr := NewTracker(&TrackerConfig{MatchDistance: 0.2, MaxMissedFrames: 2})
	now := time.Now()

	start := tr.Update([]Observation{obsAt(0.3, 0.5), obsAt(0.5, 0.5)}, 1, now)
	left, right := start[0].ID, start[1].ID

	// Both observations are within range of both touches
	got := tr.Update([]Observation{obsAt(0.52, 0.5), obsAt(0.33, 0.5)}, 2, now)
	if len(got) != 2 {
		t.Fatalf("Expected two moved touches, got %v", got)
	}
	if got[0].ID != right || got[1].ID != left {
		t.Errorf("Expected nearest-neighbour assignment, got %v then %v", got[0].ID, got[1].ID)
	}
	for _, touch := range got {
		if touch.Phase != PhaseMoved {
			t.Errorf("Expected moved, got %s", touch.Phase)
		}
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(nil)
	now := time.Now()
	tr.Update([]Observation{obsAt(0.2, 0.2), obsAt(0.8, 0.8)}, 1, now)

	ended := tr.Reset(7, now)
	if len(ended) != 2 {
		t.Fatalf("Expected both touches to end, got %d", len(ended))
	}
	for _, touch := range ended {
		if touch.Phase != PhaseEnded || touch.Frame != 7 {
			t.Errorf("Unexpected reset touch %+v", touch)
		}
	}
	if tr.Active() != 0 {
		t.Error("Expected no live touches after Reset")
	}
}

func TestPhaseEventType(t *testing.T) {
	touch := Touch{Phase: PhaseEnded}
	event := touch.Event()
	if event.Type != "touch.ended" {
		t.Errorf("Expected touch.ended, got %s", event.Type)
	}
	if event.Data["phase"] != "ended" {
		t.Errorf("Expected phase data, got %v", event.Data["phase"])
	}
}
