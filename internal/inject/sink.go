// Package inject delivers tracked touches to an output: the log, the
// desktop pointer or an Android device.
package inject

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
)

// ErrInjectionUnavailable is returned when the binary was built without
// the input backend a sink needs
var ErrInjectionUnavailable = errors.New("input injection not available in this build")

// Sink consumes touches
type Sink interface {
	Deliver(t touch.Touch) error
	Close() error
}

// Handler adapts a sink to the detector's handler hook. Delivery errors
// are passed to onError when it is set.
func Handler(sink Sink, onError func(error)) touch.Handler {
	return func(touches []touch.Touch) {
		for _, t := range touches {
			if err := sink.Deliver(t); err != nil && onError != nil {
				onError(fmt.Errorf("deliver touch %s: %w", t.ID, err))
			}
		}
	}
}

// LogSink writes touches to a logger
type LogSink struct {
	logger       *logging.Logger
	includeMoves bool
}

// NewLogSink creates a log sink. Moves are only logged when includeMoves is set.
func NewLogSink(logger *logging.Logger, includeMoves bool) *LogSink {
	return &LogSink{logger: logger, includeMoves: includeMoves}
}

// Deliver logs one touch
func (s *LogSink) Deliver(t touch.Touch) error {
	if t.Phase == touch.PhaseMoved && !s.includeMoves {
		return nil
	}
	s.logger.InfoWithContext(fmt.Sprintf("Touch %s", t.Phase), map[string]interface{}{
		"id":        t.ID.String()[:8],
		"screen":    fmt.Sprintf("%.0f,%.0f", t.Screen.X, t.Screen.Y),
		"area":      t.Area,
		"in_bounds": t.InBounds,
	})
	return nil
}

// Close is a no-op
func (s *LogSink) Close() error { return nil }

// MultiSink fans touches out to several sinks
type MultiSink []Sink

// Deliver sends t to every sink and joins their errors
func (m MultiSink) Deliver(t touch.Touch) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// primary follows the first active touch. Single-pointer outputs ignore
// every other contact until it ends.
type primary struct {
	mu     sync.Mutex
	id     uuid.UUID
	active bool
}

// accept reports whether t belongs to the primary touch, claiming it on Began
func (p *primary) accept(t touch.Touch) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch t.Phase {
	case touch.PhaseBegan:
		if p.active || !t.InBounds {
			return false
		}
		p.id = t.ID
		p.active = true
		return true
	case touch.PhaseMoved:
		return p.active && p.id == t.ID
	case touch.PhaseEnded:
		if p.active && p.id == t.ID {
			p.active = false
			return true
		}
	}
	return false
}

// release forgets the primary touch and reports whether one was held
func (p *primary) release() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	held := p.active
	p.active = false
	return held
}

// toTopLeft converts bottom-left screen pixels of a srcW x srcH screen to
// top-left integer pixels on a dstW x dstH output, clamped to its edges
func toTopLeft(p calibration.Vec2, srcW, srcH float64, dstW, dstH int) (int, int) {
	x := p.X / srcW * float64(dstW)
	y := (1 - p.Y/srcH) * float64(dstH)
	return clamp(x, dstW), clamp(y, dstH)
}

func clamp(v float64, size int) int {
	i := int(math.Round(v))
	if i < 0 {
		return 0
	}
	if i > size-1 {
		return size - 1
	}
	return i
}
