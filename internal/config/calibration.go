package config

import (
	"errors"
	"fmt"

	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/pkg/profiles"
)

// LoadCalibration reads the settings document and overlays the configured
// profile. A missing document is not fatal: defaults are used and
// calibration.ErrSettingsNotFound is returned alongside them.
func (c *Config) LoadCalibration() (*calibration.Settings, error) {
	settings, err := calibration.LoadSettings(c.SettingsPath)
	missing := errors.Is(err, calibration.ErrSettingsNotFound)
	if err != nil && !missing {
		return nil, err
	}

	if c.Profile != "" {
		registry := profiles.NewRegistry()
		if err := registry.LoadFromDirectory(c.ProfilesDir); err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		resolved, err := registry.Resolve(c.Profile, settings)
		if err != nil {
			return nil, err
		}
		settings = resolved
	}

	if missing {
		return settings, calibration.ErrSettingsNotFound
	}
	return settings, nil
}
