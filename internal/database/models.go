package database

import (
	"database/sql"
	"time"
)

// SessionStatus is the lifecycle state of a detector session
type SessionStatus string

const (
	SessionRunning  SessionStatus = "running"
	SessionFinished SessionStatus = "finished"
	SessionFailed   SessionStatus = "failed"
)

// Session represents one detector run
type Session struct {
	ID              string
	CaptureSource   string
	Profile         sql.NullString
	SettingsJSON    string
	StartedAt       time.Time
	FinishedAt      sql.NullTime
	FramesProcessed int64
	Touches         int64
	Errors          int64
	Status          SessionStatus
}

// Duration returns how long the session ran, or has been running
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.Valid {
		return s.FinishedAt.Time.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// SessionSummary is the counters written when a session finishes
type SessionSummary struct {
	FramesProcessed int64
	Touches         int64
	Errors          int64
	Status          SessionStatus
}

// TouchEventRecord is one persisted touch phase
type TouchEventRecord struct {
	ID         int64
	SessionID  string
	TouchID    string
	Phase      string
	Frame      int64
	WebcamX    float64
	WebcamY    float64
	ScreenX    float64
	ScreenY    float64
	WorldX     float64
	WorldY     float64
	Area       int
	Intensity  float64
	InBounds   bool
	OccurredAt time.Time
}

// CalibrationRecord is one stored calibration
type CalibrationRecord struct {
	ID           int64
	Profile      string
	SettingsJSON string
	QuadArea     float64
	CreatedAt    time.Time
}

// ErrorLog represents an error that occurred during a session
type ErrorLog struct {
	ID          int64
	SessionID   sql.NullString
	Category    string
	Severity    string
	Component   string
	Message     string
	ErrorText   sql.NullString
	Recoverable bool
	OccurredAt  time.Time
}
