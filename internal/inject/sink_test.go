package inject

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"jordanella.com/webcam-touch/internal/adb"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
)

type motionCall struct {
	action adb.MotionAction
	x, y   int
}

type fakeDevice struct {
	calls    []motionCall
	w, h     int
	failDown int // DOWN calls left to fail
}

func (d *fakeDevice) Motion(ctx context.Context, action adb.MotionAction, x, y int) error {
	if action == adb.MotionDown && d.failDown > 0 {
		d.failDown--
		return errors.New("device offline")
	}
	d.calls = append(d.calls, motionCall{action, x, y})
	return nil
}

func (d *fakeDevice) ScreenSize() (int, int) { return d.w, d.h }

func touchAt(id uuid.UUID, phase touch.Phase, x, y float64) touch.Touch {
	return touch.Touch{ID: id, Phase: phase, Screen: calibration.Vec2{X: x, Y: y}, InBounds: true}
}

func TestToTopLeft(t *testing.T) {
	tests := []struct {
		name string
		p    calibration.Vec2
		x, y int
	}{
		{"bottom-left", calibration.Vec2{X: 0, Y: 0}, 0, 999},
		{"top-left", calibration.Vec2{X: 0, Y: 100}, 0, 0},
		{"center", calibration.Vec2{X: 100, Y: 50}, 500, 500},
		{"clamped", calibration.Vec2{X: 300, Y: -20}, 999, 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := toTopLeft(tt.p, 200, 100, 1000, 1000)
			if x != tt.x || y != tt.y {
				t.Errorf("Expected (%d,%d), got (%d,%d)", tt.x, tt.y, x, y)
			}
		})
	}
}

func TestADBSinkFollowsPrimaryTouch(t *testing.T) {
	device := &fakeDevice{w: 1080, h: 1920}
	sink, err := newADBSink(device, 1920, 1080)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	first, second := uuid.New(), uuid.New()
	sink.Deliver(touchAt(first, touch.PhaseBegan, 960, 540))
	sink.Deliver(touchAt(second, touch.PhaseBegan, 100, 100))
	sink.Deliver(touchAt(first, touch.PhaseMoved, 1920, 1080))
	sink.Deliver(touchAt(second, touch.PhaseEnded, 100, 100))
	sink.Deliver(touchAt(first, touch.PhaseEnded, 1920, 1080))

	want := []motionCall{
		{adb.MotionDown, 540, 960},
		{adb.MotionMove, 1079, 0},
		{adb.MotionUp, 1079, 0},
	}
	if len(device.calls) != len(want) {
		t.Fatalf("Expected %d calls, got %v", len(want), device.calls)
	}
	for i := range want {
		if device.calls[i] != want[i] {
			t.Errorf("Call %d: expected %+v, got %+v", i, want[i], device.calls[i])
		}
	}

	// Nothing held, nothing to lift
	if err := sink.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if len(device.calls) != len(want) {
		t.Error("Close should not send UP without a held touch")
	}
}

func TestADBSinkCloseLiftsHeldTouch(t *testing.T) {
	device := &fakeDevice{w: 100, h: 100}
	sink, err := newADBSink(device, 100, 100)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	sink.Deliver(touchAt(uuid.New(), touch.PhaseBegan, 50, 50))
	sink.Close()

	if len(device.calls) != 2 || device.calls[1].action != adb.MotionUp {
		t.Errorf("Expected DOWN then UP, got %v", device.calls)
	}
}

func TestADBSinkReleasesTouchWhenDownFails(t *testing.T) {
	device := &fakeDevice{w: 100, h: 100, failDown: 1}
	sink, err := newADBSink(device, 100, 100)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}

	first, second := uuid.New(), uuid.New()
	if err := sink.Deliver(touchAt(first, touch.PhaseBegan, 50, 50)); err == nil {
		t.Fatal("Expected the failed DOWN to be returned")
	}
	sink.Deliver(touchAt(first, touch.PhaseMoved, 60, 60))
	sink.Deliver(touchAt(first, touch.PhaseEnded, 60, 60))
	if len(device.calls) != 0 {
		t.Fatalf("MOVE and UP must not follow a failed DOWN, got %v", device.calls)
	}

	// The next touch can claim the pointer
	if err := sink.Deliver(touchAt(second, touch.PhaseBegan, 10, 10)); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(device.calls) != 1 || device.calls[0].action != adb.MotionDown {
		t.Errorf("Expected DOWN for the next touch, got %v", device.calls)
	}
}

func TestADBSinkIgnoresOutOfBoundsBegan(t *testing.T) {
	device := &fakeDevice{w: 100, h: 100}
	sink, _ := newADBSink(device, 100, 100)

	tc := touchAt(uuid.New(), touch.PhaseBegan, 150, 50)
	tc.InBounds = false
	sink.Deliver(tc)

	if len(device.calls) != 0 {
		t.Errorf("Out-of-bounds touch should not be forwarded, got %v", device.calls)
	}
}

func TestADBSinkRequiresScreenSize(t *testing.T) {
	if _, err := newADBSink(&fakeDevice{}, 100, 100); err == nil {
		t.Error("Expected error for unknown device size")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLoggerWithOutputs("Sink", &buf)
	sink := NewLogSink(logger, false)

	id := uuid.New()
	sink.Deliver(touchAt(id, touch.PhaseBegan, 10, 20))
	sink.Deliver(touchAt(id, touch.PhaseMoved, 11, 21))

	out := buf.String()
	if !strings.Contains(out, "Touch began") {
		t.Errorf("Expected began line, got %q", out)
	}
	if strings.Contains(out, "Touch moved") {
		t.Errorf("Moves should be skipped, got %q", out)
	}
}

type failingSink struct{ closed bool }

func (f *failingSink) Deliver(t touch.Touch) error { return errors.New("unplugged") }
func (f *failingSink) Close() error                { f.closed = true; return nil }

func TestHandlerAndMultiSink(t *testing.T) {
	failing := &failingSink{}
	var buf bytes.Buffer
	sink := MultiSink{NewLogSink(logging.NewLoggerWithOutputs("Sink", &buf), true), failing}

	var errs []error
	handler := Handler(sink, func(err error) { errs = append(errs, err) })
	handler([]touch.Touch{
		touchAt(uuid.New(), touch.PhaseBegan, 1, 1),
		touchAt(uuid.New(), touch.PhaseBegan, 2, 2),
	})

	if len(errs) != 2 {
		t.Errorf("Expected 2 delivery errors, got %d", len(errs))
	}
	if strings.Count(buf.String(), "Touch began") != 2 {
		t.Errorf("Log sink should still receive both touches: %q", buf.String())
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if !failing.closed {
		t.Error("Expected every sink to be closed")
	}
}

func TestPointerSinkUnavailableWithoutTag(t *testing.T) {
	if _, err := NewPointerSink(100, 100, false); err != nil && !errors.Is(err, ErrInjectionUnavailable) {
		t.Errorf("Expected ErrInjectionUnavailable or success, got %v", err)
	}
}
