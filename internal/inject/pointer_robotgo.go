//go:build robotgo

package inject

import (
	"fmt"

	"github.com/go-vgo/robotgo"
	"jordanella.com/webcam-touch/internal/touch"
)

// PointerSink moves the desktop mouse with the primary touch. With press
// set, Began and Ended hold and release the left button.
type PointerSink struct {
	screenW float64
	screenH float64
	press   bool
	primary primary
}

// NewPointerSink maps touches from a screenW x screenH calibrated screen
// onto the main display
func NewPointerSink(screenW, screenH float64, press bool) (*PointerSink, error) {
	if w, h := robotgo.GetScreenSize(); w <= 0 || h <= 0 {
		return nil, fmt.Errorf("no display available for pointer output")
	}
	return &PointerSink{screenW: screenW, screenH: screenH, press: press}, nil
}

// Deliver moves the pointer for the primary touch
func (s *PointerSink) Deliver(t touch.Touch) error {
	if !s.primary.accept(t) {
		return nil
	}

	w, h := robotgo.GetScreenSize()
	x, y := toTopLeft(t.Screen, s.screenW, s.screenH, w, h)
	robotgo.Move(x, y)

	if !s.press {
		return nil
	}
	switch t.Phase {
	case touch.PhaseBegan:
		if err := robotgo.Toggle("left"); err != nil {
			s.primary.release()
			return err
		}
	case touch.PhaseEnded:
		return robotgo.Toggle("left", "up")
	}
	return nil
}

// Close releases the button if a touch is still held
func (s *PointerSink) Close() error {
	if s.primary.release() && s.press {
		return robotgo.Toggle("left", "up")
	}
	return nil
}
