package database

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"jordanella.com/webcam-touch/internal/calibration"
)

// SaveCalibration stores a calibrated settings document under profile
func (db *DB) SaveCalibration(profile string, settings *calibration.Settings) (int64, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return 0, fmt.Errorf("failed to encode settings: %w", err)
	}

	result, err := db.conn.Exec(`
		INSERT INTO calibration_history (profile, settings_json, quad_area, created_at)
		VALUES (?, ?, ?, ?)
	`, profile, string(settingsJSON), math.Abs(settings.WebcamCorners.Area()), time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to save calibration: %w", err)
	}

	return result.LastInsertId()
}

// GetLatestCalibration returns the newest settings stored for profile
func (db *DB) GetLatestCalibration(profile string) (*calibration.Settings, error) {
	var settingsJSON string
	err := db.conn.QueryRow(`
		SELECT settings_json
		FROM calibration_history
		WHERE profile = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, profile).Scan(&settingsJSON)
	if err != nil {
		return nil, fmt.Errorf("no calibration for profile %q: %w", profile, err)
	}

	settings := calibration.DefaultSettings()
	if err := json.Unmarshal([]byte(settingsJSON), settings); err != nil {
		return nil, fmt.Errorf("failed to decode calibration: %w", err)
	}
	return settings, nil
}

// ListCalibrations returns stored calibrations, newest first
func (db *DB) ListCalibrations(limit int) ([]*CalibrationRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, profile, settings_json, quad_area, created_at
		FROM calibration_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibrations: %w", err)
	}
	defer rows.Close()

	records := []*CalibrationRecord{}
	for rows.Next() {
		r := &CalibrationRecord{}
		if err := rows.Scan(&r.ID, &r.Profile, &r.SettingsJSON, &r.QuadArea, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
