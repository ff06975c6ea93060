package calibration

import (
	"testing"
)

func mustMapper(t *testing.T, settings *Settings) *Mapper {
	t.Helper()
	m, err := NewMapper(settings)
	if err != nil {
		t.Fatalf("Failed to build mapper: %v", err)
	}
	return m
}

func TestMapperIdentity(t *testing.T) {
	m := mustMapper(t, DefaultSettings())

	got, inside := m.WebcamToScreen(Vec2{0.5, 0.5})
	if !inside {
		t.Error("Expected the centre to be inside")
	}
	if !got.Equal(Vec2{960, 540}, tol) {
		t.Errorf("Expected (960, 540), got %v", got)
	}

	got, inside = m.WebcamToScreen(Vec2{1.2, 0.5})
	if inside {
		t.Error("Expected x=1.2 to fall outside the calibrated area")
	}
	if !near(got.X, 1.2*1920) {
		t.Errorf("Expected extrapolated x %.1f, got %.4f", 1.2*1920, got.X)
	}
}

func TestMapperPrepareSteps(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		in     Vec2
		want   Vec2
	}{
		{"flip horizontal", func(s *Settings) { s.FlipHorizontal = true }, Vec2{0.25, 0.5}, Vec2{0.75, 0.5}},
		{"flip vertical", func(s *Settings) { s.FlipVertical = true }, Vec2{0.5, 0.2}, Vec2{0.5, 0.8}},
		{"rotation", func(s *Settings) { s.Rotation = 90 }, Vec2{1, 0.5}, Vec2{0.5, 1}},
		{"zoom", func(s *Settings) { s.Zoom = 2 }, Vec2{0.75, 0.5}, Vec2{1, 0.5}},
		{"offset", func(s *Settings) { s.CameraOffset = Offset{X: 0.1, Y: -0.1} }, Vec2{0.5, 0.5}, Vec2{0.6, 0.4}},
		{"flip then rotate", func(s *Settings) {
			s.FlipHorizontal = true
			s.Rotation = 90
		}, Vec2{0, 0.5}, Vec2{0.5, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.modify(settings)
			m := mustMapper(t, settings)

			got := m.Prepare(tt.in)
			if !got.Equal(tt.want, tol) {
				t.Errorf("Prepare(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if back := m.Unprepare(got); !back.Equal(tt.in, tol) {
				t.Errorf("Unprepare(%v) = %v, want %v", got, back, tt.in)
			}
		})
	}
}

func TestMapperRoundTrip(t *testing.T) {
	settings := DefaultSettings()
	settings.FlipHorizontal = true
	settings.Rotation = 12
	settings.Zoom = 1.3
	settings.CameraOffset = Offset{X: 0.05, Y: -0.02}
	settings.WebcamCorners = Quad{
		BottomLeft:  Vec2{0.12, 0.08},
		BottomRight: Vec2{0.91, 0.15},
		TopRight:    Vec2{0.85, 0.93},
		TopLeft:     Vec2{0.18, 0.86},
	}
	m := mustMapper(t, settings)

	for _, sx := range []float64{0, 100, 960, 1500, 1920} {
		for _, sy := range []float64{0, 50, 540, 1000, 1080} {
			screen := Vec2{sx, sy}

			webcam, inside := m.ScreenToWebcam(screen)
			if !inside {
				t.Errorf("Expected screen point %v to be inside", screen)
			}

			back, inside := m.WebcamToScreen(webcam)
			if !inside {
				t.Errorf("Expected webcam point %v to map inside", webcam)
			}
			if !back.Equal(screen, 1e-4) {
				t.Errorf("Expected %v after round trip, got %v", screen, back)
			}

			again, _ := m.ScreenToWebcam(back)
			if !again.Equal(webcam, tol) {
				t.Errorf("Expected webcam %v after round trip, got %v", webcam, again)
			}
		}
	}
}

func TestMapperWorld(t *testing.T) {
	settings := DefaultSettings()
	settings.World = World{Center: Vec2{10, -2}, OrthoSize: 5}
	m := mustMapper(t, settings)

	if got := m.ScreenToWorld(Vec2{960, 540}); !got.Equal(Vec2{10, -2}, tol) {
		t.Errorf("Expected the screen centre at the camera centre, got %v", got)
	}

	halfWidth := 5 * 1920.0 / 1080.0
	if got := m.ScreenToWorld(Vec2{1920, 1080}); !got.Equal(Vec2{10 + halfWidth, 3}, tol) {
		t.Errorf("Expected top-right at (%.4f, 3), got %v", 10+halfWidth, got)
	}

	p := Vec2{123, 456}
	if got := m.WorldToScreen(m.ScreenToWorld(p)); !got.Equal(p, tol) {
		t.Errorf("Expected world round trip to return %v, got %v", p, got)
	}

	world, inside := m.WebcamToWorld(Vec2{0.5, 0.5})
	if !inside || !world.Equal(Vec2{10, -2}, tol) {
		t.Errorf("Expected webcam centre at the camera centre, got %v (inside=%v)", world, inside)
	}
}

func TestNewMapperRejectsDegenerateCorners(t *testing.T) {
	settings := DefaultSettings()
	settings.WebcamCorners = Quad{}
	if _, err := NewMapper(settings); err == nil {
		t.Error("Expected an error for collapsed corners")
	}
}
