package inject

import (
	"context"
	"fmt"

	"jordanella.com/webcam-touch/internal/adb"
	"jordanella.com/webcam-touch/internal/touch"
)

// motionDevice is the part of the adb controller the sink drives
type motionDevice interface {
	Motion(ctx context.Context, action adb.MotionAction, x, y int) error
	ScreenSize() (width, height int)
}

// ADBSink replays the primary touch on an Android device as motion events
type ADBSink struct {
	device  motionDevice
	screenW float64
	screenH float64
	primary primary
	lastX   int
	lastY   int
}

// NewADBSink maps touches from a screenW x screenH calibrated screen onto
// the connected device
func NewADBSink(device *adb.Controller, screenW, screenH float64) (*ADBSink, error) {
	return newADBSink(device, screenW, screenH)
}

func newADBSink(device motionDevice, screenW, screenH float64) (*ADBSink, error) {
	if w, h := device.ScreenSize(); w <= 0 || h <= 0 {
		return nil, fmt.Errorf("device screen size unknown, connect first")
	}
	return &ADBSink{device: device, screenW: screenW, screenH: screenH}, nil
}

// Deliver sends DOWN, MOVE or UP for the primary touch
func (s *ADBSink) Deliver(t touch.Touch) error {
	if !s.primary.accept(t) {
		return nil
	}

	w, h := s.device.ScreenSize()
	x, y := toTopLeft(t.Screen, s.screenW, s.screenH, w, h)

	action := adb.MotionMove
	switch t.Phase {
	case touch.PhaseBegan:
		action = adb.MotionDown
	case touch.PhaseEnded:
		action = adb.MotionUp
	}
	s.lastX, s.lastY = x, y

	err := s.device.Motion(context.Background(), action, x, y)
	if err != nil && action == adb.MotionDown {
		// The device never saw the press; let the next touch claim it
		s.primary.release()
	}
	return err
}

// Close lifts a touch still held on the device
func (s *ADBSink) Close() error {
	if s.primary.release() {
		return s.device.Motion(context.Background(), adb.MotionUp, s.lastX, s.lastY)
	}
	return nil
}
