package config

import (
	"fmt"
	"time"

	"jordanella.com/webcam-touch/internal/cv"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
)

// Sink names accepted in [Output]
const (
	SinkLog     = "log"
	SinkPointer = "pointer"
	SinkADB     = "adb"
	SinkNone    = "none"
)

// Config is the application configuration loaded from touch.ini. The
// calibration itself lives in the settings document at SettingsPath.
type Config struct {
	// Capture
	CaptureMethod string
	Device        int
	Display       int
	SequenceDir   string
	Loop          bool
	FPS           int
	TargetWidth   int
	TargetHeight  int

	// Detection
	SettingsPath    string
	ProfilesDir     string
	Profile         string
	DropOutOfBounds bool
	SnapshotDir     string

	// Tracking
	MatchDistance   float64
	MaxMissedFrames int

	// Storage
	DatabasePath  string
	RecordTouches bool
	RecordMoves   bool

	// Output
	Sink           string
	PointerPress   bool
	ADBPath        string // Directory holding adb, or empty to search PATH
	ADBDevice      string // adb serial, e.g. 127.0.0.1:5555
	StatusInterval int    // Seconds between status lines, 0 disables

	// Monitor
	StallTimeoutMS  int
	CheckIntervalMS int

	// Logging
	LogLevel       string
	LogDir         string
	LoggingEnabled bool
	LogMoves       bool
}

// CaptureConfig converts the capture section for the frame sources
func (c *Config) CaptureConfig() (cv.CaptureConfig, error) {
	method, ok := cv.ParseCaptureMethod(c.CaptureMethod)
	if !ok {
		return cv.CaptureConfig{}, fmt.Errorf("unknown capture method %q", c.CaptureMethod)
	}
	return cv.CaptureConfig{
		Method:       method,
		Device:       c.Device,
		Display:      c.Display,
		SequenceDir:  c.SequenceDir,
		Loop:         c.Loop,
		FPS:          c.FPS,
		TargetWidth:  c.TargetWidth,
		TargetHeight: c.TargetHeight,
	}, nil
}

// TrackerConfig converts the tracking section
func (c *Config) TrackerConfig() *touch.TrackerConfig {
	return &touch.TrackerConfig{
		MatchDistance:   c.MatchDistance,
		MaxMissedFrames: c.MaxMissedFrames,
	}
}

// StallTimeout is how long the source may go silent before it is reported
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.StallTimeoutMS) * time.Millisecond
}

// CheckInterval is the health check period
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}

// Validate rejects values the application cannot run with
func (c *Config) Validate() error {
	if _, err := c.CaptureConfig(); err != nil {
		return err
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.MatchDistance <= 0 {
		return fmt.Errorf("match distance must be positive, got %.3f", c.MatchDistance)
	}
	if c.MaxMissedFrames < 0 {
		return fmt.Errorf("max missed frames must not be negative, got %d", c.MaxMissedFrames)
	}
	switch c.Sink {
	case SinkLog, SinkPointer, SinkADB, SinkNone:
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	if _, err := logging.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
