package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"jordanella.com/webcam-touch/internal/calibration"
)

// StartSession inserts a running session and returns its ID
func (db *DB) StartSession(captureSource, profile string, settings *calibration.Settings) (string, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}

	id := uuid.NewString()
	var profileValue sql.NullString
	if profile != "" {
		profileValue = sql.NullString{String: profile, Valid: true}
	}

	_, err = db.conn.Exec(`
		INSERT INTO sessions (id, capture_source, profile, settings_json, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, captureSource, profileValue, string(settingsJSON), time.Now(), SessionRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	return id, nil
}

// FinishSession records final counters for a session
func (db *DB) FinishSession(id string, summary SessionSummary) error {
	status := summary.Status
	if status == "" {
		status = SessionFinished
	}

	result, err := db.conn.Exec(`
		UPDATE sessions
		SET finished_at = ?, frames_processed = ?, touches = ?, errors = ?, status = ?
		WHERE id = ?
	`, time.Now(), summary.FramesProcessed, summary.Touches, summary.Errors, status, id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.conn.QueryRow(`
		SELECT id, capture_source, profile, settings_json, started_at, finished_at,
		       frames_processed, touches, errors, status
		FROM sessions
		WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions, newest first
func (db *DB) ListSessions(limit int) ([]*Session, error) {
	rows, err := db.conn.Query(`
		SELECT id, capture_source, profile, settings_json, started_at, finished_at,
		       frames_processed, touches, errors, status
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Settings decodes the settings a session started with
func (s *Session) Settings() (*calibration.Settings, error) {
	settings := calibration.DefaultSettings()
	if err := json.Unmarshal([]byte(s.SettingsJSON), settings); err != nil {
		return nil, fmt.Errorf("failed to decode session settings: %w", err)
	}
	return settings, nil
}

// DeleteSessionsBefore removes finished sessions older than cutoff along with their touches
func (db *DB) DeleteSessionsBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`
		DELETE FROM sessions
		WHERE started_at < ? AND status != ?
	`, cutoff, SessionRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	session := &Session{}
	var status string
	err := row.Scan(
		&session.ID,
		&session.CaptureSource,
		&session.Profile,
		&session.SettingsJSON,
		&session.StartedAt,
		&session.FinishedAt,
		&session.FramesProcessed,
		&session.Touches,
		&session.Errors,
		&status,
	)
	if err != nil {
		return nil, err
	}
	session.Status = SessionStatus(status)
	return session, nil
}
