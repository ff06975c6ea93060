//go:build !robotgo

package inject

import "jordanella.com/webcam-touch/internal/touch"

// PointerSink is unavailable without the robotgo build tag
type PointerSink struct{}

// NewPointerSink always fails in this build
func NewPointerSink(screenW, screenH float64, press bool) (*PointerSink, error) {
	return nil, ErrInjectionUnavailable
}

// Deliver always fails in this build
func (s *PointerSink) Deliver(t touch.Touch) error { return ErrInjectionUnavailable }

// Close is a no-op
func (s *PointerSink) Close() error { return nil }
