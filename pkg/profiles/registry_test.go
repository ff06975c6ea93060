package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"jordanella.com/webcam-touch/internal/calibration"
)

const deskYAML = `profiles:
  - name: desk
    description: Camera above the desk, mounted upside down
    rotation: 180
    flip_horizontal: true
    threshold: 0.2
    screen:
      width: 1280
      height: 720
  - name: wall
    zoom: 1.5
    camera_offset:
      x: 0.05
      y: -0.02
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "setups.yaml", deskYAML)
	writeFile(t, dir, "notes.txt", "not a profile")

	r := NewRegistry()
	if err := r.LoadFromDirectory(dir); err != nil {
		t.Fatalf("Failed to load profiles: %v", err)
	}

	if r.Count() != 2 {
		t.Fatalf("Expected 2 profiles, got %d", r.Count())
	}
	names := r.List()
	if names[0] != "desk" || names[1] != "wall" {
		t.Errorf("Expected sorted [desk wall], got %v", names)
	}
	if !r.Has("desk") || r.Has("ceiling") {
		t.Error("Has reported wrong membership")
	}
}

func TestLoadRejectsUnnamedProfile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "profiles:\n  - rotation: 90\n")

	r := NewRegistry()
	if err := r.LoadFromFile(path); err == nil {
		t.Fatal("Expected error for unnamed profile")
	}
	if r.Count() != 0 {
		t.Error("No profiles should be registered from a bad file")
	}
}

func TestResolveOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	if err := r.LoadFromFile(writeFile(t, dir, "setups.yaml", deskYAML)); err != nil {
		t.Fatalf("Failed to load profiles: %v", err)
	}

	base := calibration.DefaultSettings()
	base.MinArea = 42

	s, err := r.Resolve("desk", base)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if s.Rotation != 180 || !s.FlipHorizontal || s.Threshold != 0.2 {
		t.Errorf("Overrides not applied: %+v", s)
	}
	if s.ScreenWidth != 1280 || s.ScreenHeight != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", s.ScreenWidth, s.ScreenHeight)
	}
	if s.MinArea != 42 || s.Zoom != 1 {
		t.Errorf("Unset fields should keep base values: %+v", s)
	}
	if base.Rotation != 0 {
		t.Error("Resolve must not modify base")
	}

	if _, err := r.Resolve("ceiling", base); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestResolveValidates(t *testing.T) {
	r := NewRegistry()
	zero := 0.0
	r.Register(Profile{Name: "broken", Zoom: &zero})

	if _, err := r.Resolve("broken", calibration.DefaultSettings()); err == nil {
		t.Error("Expected validation error for zero zoom")
	}
}

func TestSaveProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := calibration.DefaultSettings()
	s.Rotation = 90
	s.WebcamCorners = calibration.Quad{
		BottomLeft:  calibration.Vec2{X: 0.1, Y: 0.2},
		BottomRight: calibration.Vec2{X: 0.9, Y: 0.1},
		TopRight:    calibration.Vec2{X: 0.8, Y: 0.9},
		TopLeft:     calibration.Vec2{X: 0.2, Y: 0.8},
	}

	path, err := SaveProfile(dir, FromSettings("lab", s))
	if err != nil {
		t.Fatalf("Failed to save profile: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load saved profile: %v", err)
	}
	got, err := r.Resolve("lab", calibration.DefaultSettings())
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if got.Rotation != 90 || got.WebcamCorners != s.WebcamCorners {
		t.Errorf("Saved profile did not round trip: %+v", got)
	}

	if _, err := SaveProfile(dir, Profile{Name: "../escape"}); err == nil {
		t.Error("Expected error for name with path separator")
	}
}
