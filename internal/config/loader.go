package config

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// LoadFromINI loads configuration from a touch.ini file. Missing keys keep
// the values from NewDefaultConfig.
func LoadFromINI(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	d := NewDefaultConfig()
	config := &Config{}

	// Capture
	section := cfg.Section("Capture")
	config.CaptureMethod = section.Key("method").MustString(d.CaptureMethod)
	config.Device = section.Key("device").MustInt(d.Device)
	config.Display = section.Key("display").MustInt(d.Display)
	config.SequenceDir = section.Key("sequenceDir").MustString(d.SequenceDir)
	config.Loop = section.Key("loop").MustBool(d.Loop)
	config.FPS = section.Key("fps").MustInt(d.FPS)
	config.TargetWidth = section.Key("targetWidth").MustInt(d.TargetWidth)
	config.TargetHeight = section.Key("targetHeight").MustInt(d.TargetHeight)

	// Detection
	section = cfg.Section("Detection")
	config.SettingsPath = section.Key("settingsPath").MustString(d.SettingsPath)
	config.ProfilesDir = section.Key("profilesDir").MustString(d.ProfilesDir)
	config.Profile = section.Key("profile").MustString(d.Profile)
	config.DropOutOfBounds = section.Key("dropOutOfBounds").MustBool(d.DropOutOfBounds)
	config.SnapshotDir = section.Key("snapshotDir").MustString(d.SnapshotDir)

	// Tracking
	section = cfg.Section("Tracking")
	config.MatchDistance = section.Key("matchDistance").MustFloat64(d.MatchDistance)
	config.MaxMissedFrames = section.Key("maxMissedFrames").MustInt(d.MaxMissedFrames)

	// Storage
	section = cfg.Section("Storage")
	config.DatabasePath = section.Key("databasePath").MustString(d.DatabasePath)
	config.RecordTouches = section.Key("recordTouches").MustBool(d.RecordTouches)
	config.RecordMoves = section.Key("recordMoves").MustBool(d.RecordMoves)

	// Output
	section = cfg.Section("Output")
	config.Sink = section.Key("sink").In(d.Sink, []string{SinkLog, SinkPointer, SinkADB, SinkNone})
	config.PointerPress = section.Key("pointerPress").MustBool(d.PointerPress)
	config.ADBPath = section.Key("adbPath").MustString(d.ADBPath)
	config.ADBDevice = section.Key("adbDevice").MustString(d.ADBDevice)
	config.StatusInterval = section.Key("statusInterval").MustInt(d.StatusInterval)

	// Monitor
	section = cfg.Section("Monitor")
	config.StallTimeoutMS = section.Key("stallTimeoutMs").MustInt(d.StallTimeoutMS)
	config.CheckIntervalMS = section.Key("checkIntervalMs").MustInt(d.CheckIntervalMS)

	// Logging
	section = cfg.Section("Logging")
	config.LogLevel = section.Key("logLevel").MustString(d.LogLevel)
	config.LogDir = section.Key("logDir").MustString(d.LogDir)
	config.LoggingEnabled = section.Key("loggingEnabled").MustBool(d.LoggingEnabled)
	config.LogMoves = section.Key("logMoves").MustBool(d.LogMoves)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *Config {
	return &Config{
		CaptureMethod:   "webcam",
		Device:          0,
		Display:         0,
		SequenceDir:     "frames",
		Loop:            false,
		FPS:             30,
		TargetWidth:     320,
		TargetHeight:    240,
		SettingsPath:    "touch_settings.json",
		ProfilesDir:     "profiles",
		Profile:         "",
		DropOutOfBounds: false,
		SnapshotDir:     "",
		MatchDistance:   0.08,
		MaxMissedFrames: 2,
		DatabasePath:    "data/touch.db",
		RecordTouches:   true,
		RecordMoves:     false,
		Sink:            SinkLog,
		PointerPress:    false,
		StatusInterval:  10,
		StallTimeoutMS:  2000,
		CheckIntervalMS: 500,
		LogLevel:        "INFO",
		LogDir:          "logs",
		LoggingEnabled:  true,
		LogMoves:        false,
	}
}

// SaveToINI saves configuration to an INI file
func SaveToINI(config *Config, path string) error {
	cfg := ini.Empty()

	// Capture
	section := cfg.Section("Capture")
	section.Key("method").SetValue(config.CaptureMethod)
	section.Key("device").SetValue(strconv.Itoa(config.Device))
	section.Key("display").SetValue(strconv.Itoa(config.Display))
	section.Key("sequenceDir").SetValue(config.SequenceDir)
	section.Key("loop").SetValue(strconv.FormatBool(config.Loop))
	section.Key("fps").SetValue(strconv.Itoa(config.FPS))
	section.Key("targetWidth").SetValue(strconv.Itoa(config.TargetWidth))
	section.Key("targetHeight").SetValue(strconv.Itoa(config.TargetHeight))

	// Detection
	section = cfg.Section("Detection")
	section.Key("settingsPath").SetValue(config.SettingsPath)
	section.Key("profilesDir").SetValue(config.ProfilesDir)
	section.Key("profile").SetValue(config.Profile)
	section.Key("dropOutOfBounds").SetValue(strconv.FormatBool(config.DropOutOfBounds))
	section.Key("snapshotDir").SetValue(config.SnapshotDir)

	// Tracking
	section = cfg.Section("Tracking")
	section.Key("matchDistance").SetValue(strconv.FormatFloat(config.MatchDistance, 'g', -1, 64))
	section.Key("maxMissedFrames").SetValue(strconv.Itoa(config.MaxMissedFrames))

	// Storage
	section = cfg.Section("Storage")
	section.Key("databasePath").SetValue(config.DatabasePath)
	section.Key("recordTouches").SetValue(strconv.FormatBool(config.RecordTouches))
	section.Key("recordMoves").SetValue(strconv.FormatBool(config.RecordMoves))

	// Output
	section = cfg.Section("Output")
	section.Key("sink").SetValue(config.Sink)
	section.Key("pointerPress").SetValue(strconv.FormatBool(config.PointerPress))
	section.Key("adbPath").SetValue(config.ADBPath)
	section.Key("adbDevice").SetValue(config.ADBDevice)
	section.Key("statusInterval").SetValue(strconv.Itoa(config.StatusInterval))

	// Monitor
	section = cfg.Section("Monitor")
	section.Key("stallTimeoutMs").SetValue(strconv.Itoa(config.StallTimeoutMS))
	section.Key("checkIntervalMs").SetValue(strconv.Itoa(config.CheckIntervalMS))

	// Logging
	section = cfg.Section("Logging")
	section.Key("logLevel").SetValue(config.LogLevel)
	section.Key("logDir").SetValue(config.LogDir)
	section.Key("loggingEnabled").SetValue(strconv.FormatBool(config.LoggingEnabled))
	section.Key("logMoves").SetValue(strconv.FormatBool(config.LogMoves))

	return cfg.SaveTo(path)
}
