package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"jordanella.com/webcam-touch/internal/calibration"
)

func TestLoadCalibrationMissingDocument(t *testing.T) {
	config := NewDefaultConfig()
	config.SettingsPath = filepath.Join(t.TempDir(), "missing.json")

	settings, err := config.LoadCalibration()
	if !errors.Is(err, calibration.ErrSettingsNotFound) {
		t.Fatalf("Expected ErrSettingsNotFound, got %v", err)
	}
	if settings == nil || settings.Zoom != 1 {
		t.Errorf("Expected default settings, got %+v", settings)
	}
}

func TestLoadCalibrationWithProfile(t *testing.T) {
	dir := t.TempDir()

	base := calibration.DefaultSettings()
	base.Threshold = 0.3
	settingsPath := filepath.Join(dir, "touch_settings.json")
	if err := calibration.SaveSettings(settingsPath, base); err != nil {
		t.Fatalf("Failed to save settings: %v", err)
	}

	profilesDir := filepath.Join(dir, "profiles")
	if err := os.MkdirAll(profilesDir, 0755); err != nil {
		t.Fatalf("Failed to create profiles dir: %v", err)
	}
	profile := "profiles:\n  - name: mirrored\n    flip_horizontal: true\n"
	if err := os.WriteFile(filepath.Join(profilesDir, "mirrored.yaml"), []byte(profile), 0644); err != nil {
		t.Fatalf("Failed to write profile: %v", err)
	}

	config := NewDefaultConfig()
	config.SettingsPath = settingsPath
	config.ProfilesDir = profilesDir
	config.Profile = "mirrored"

	settings, err := config.LoadCalibration()
	if err != nil {
		t.Fatalf("Failed to load calibration: %v", err)
	}
	if !settings.FlipHorizontal {
		t.Error("Expected profile override to apply")
	}
	if settings.Threshold != 0.3 {
		t.Errorf("Expected threshold from the document, got %.2f", settings.Threshold)
	}

	config.Profile = "unknown"
	if _, err := config.LoadCalibration(); err == nil {
		t.Error("Expected error for unknown profile")
	}
}
