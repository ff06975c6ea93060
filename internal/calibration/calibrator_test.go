package calibration

import (
	"errors"
	"testing"
)

func recordCorner(c *Calibrator, samples ...Vec2) bool {
	done := false
	for _, p := range samples {
		done = c.Record(p)
	}
	return done
}

func TestCalibratorAveragesCorners(t *testing.T) {
	c := NewCalibrator(mustMapper(t, DefaultSettings()), 2)
	c.Begin()

	if corner, active := c.Current(); !active || corner != CornerBottomLeft {
		t.Fatalf("Expected to start at bottom-left, got %v (active=%v)", corner, active)
	}

	recordCorner(c, Vec2{0.1, 0.1}, Vec2{0.2, 0.1})
	if corner, _ := c.Current(); corner != CornerBottomRight {
		t.Errorf("Expected bottom-right next, got %v", corner)
	}
	recordCorner(c, Vec2{0.9, 0.1}, Vec2{0.9, 0.2})
	recordCorner(c, Vec2{0.9, 0.9}, Vec2{0.9, 0.9})

	if _, err := c.Result(); !errors.Is(err, ErrCalibrationIncomplete) {
		t.Errorf("Expected ErrCalibrationIncomplete before the last corner, got %v", err)
	}

	if done := recordCorner(c, Vec2{0.1, 0.8}, Vec2{0.1, 0.9}); !done {
		t.Fatal("Expected the last corner to complete calibration")
	}
	if _, active := c.Current(); active {
		t.Error("Expected calibration to stop after the last corner")
	}

	q, err := c.Result()
	if err != nil {
		t.Fatalf("Failed to get result: %v", err)
	}
	want := Quad{
		BottomLeft:  Vec2{0.15, 0.1},
		BottomRight: Vec2{0.9, 0.15},
		TopRight:    Vec2{0.9, 0.9},
		TopLeft:     Vec2{0.1, 0.85},
	}
	for i, got := range q.Corners() {
		if !got.Equal(want.Corners()[i], tol) {
			t.Errorf("%v: expected %v, got %v", Corner(i), want.Corners()[i], got)
		}
	}

	settings := DefaultSettings()
	if err := c.Apply(settings); err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	if settings.WebcamCorners != q {
		t.Error("Expected Apply to store the recorded quad")
	}
}

func TestCalibratorRecordsPreparedSpace(t *testing.T) {
	settings := DefaultSettings()
	settings.FlipHorizontal = true
	c := NewCalibrator(mustMapper(t, settings), 1)
	c.Begin()

	recordCorner(c, Vec2{0.9, 0.1}, Vec2{0.1, 0.1}, Vec2{0.1, 0.9}, Vec2{0.9, 0.9})
	q, err := c.Result()
	if err != nil {
		t.Fatalf("Failed to get result: %v", err)
	}
	if !q.BottomLeft.Equal(Vec2{0.1, 0.1}, tol) {
		t.Errorf("Expected flipped bottom-left (0.1, 0.1), got %v", q.BottomLeft)
	}

	// The calibrated mapping sends the raw bottom-left touch to the screen origin
	applied := settings.Clone()
	if err := c.Apply(applied); err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	screen, _ := mustMapper(t, applied).WebcamToScreen(Vec2{0.9, 0.1})
	if !screen.Equal(Vec2{0, 0}, 1e-6) {
		t.Errorf("Expected screen origin, got %v", screen)
	}
}

func TestCalibratorCancel(t *testing.T) {
	c := NewCalibrator(mustMapper(t, DefaultSettings()), 1)

	if c.Record(Vec2{0.5, 0.5}) {
		t.Error("Record should be ignored before Begin")
	}

	c.Begin()
	recordCorner(c, Vec2{0.1, 0.1}, Vec2{0.9, 0.1})
	if recorded, target := c.Progress(); recorded != 0 || target != 1 {
		t.Errorf("Expected 0/1 progress, got %d/%d", recorded, target)
	}
	c.Cancel()

	if _, active := c.Current(); active {
		t.Error("Expected Cancel to stop calibration")
	}
	if err := c.Apply(DefaultSettings()); !errors.Is(err, ErrCalibrationIncomplete) {
		t.Errorf("Expected ErrCalibrationIncomplete after Cancel, got %v", err)
	}
}

func TestCalibratorRejectsDegenerateResult(t *testing.T) {
	c := NewCalibrator(mustMapper(t, DefaultSettings()), 1)
	c.Begin()
	recordCorner(c, Vec2{0.5, 0.5}, Vec2{0.5, 0.5}, Vec2{0.5, 0.5}, Vec2{0.5, 0.5})

	if _, err := c.Result(); !errors.Is(err, ErrDegenerateQuad) {
		t.Errorf("Expected ErrDegenerateQuad, got %v", err)
	}
}
