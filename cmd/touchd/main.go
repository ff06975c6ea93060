package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"jordanella.com/webcam-touch/internal/adb"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/config"
	"jordanella.com/webcam-touch/internal/cv"
	"jordanella.com/webcam-touch/internal/database"
	"jordanella.com/webcam-touch/internal/events"
	"jordanella.com/webcam-touch/internal/inject"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/monitor"
	"jordanella.com/webcam-touch/internal/touch"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "touch.ini", "Path to the application config")
	profile := flag.String("profile", "", "Calibration profile (overrides config)")
	sink := flag.String("sink", "", "Touch output: log, pointer, adb or none (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write a default config to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.SaveToINI(config.NewDefaultConfig(), *configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		log.Printf("Default config written to %s", *configPath)
		return
	}

	cfg, err := config.LoadFromINI(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config: %v", err)
		cfg = config.NewDefaultConfig()
	}
	if *profile != "" {
		cfg.Profile = *profile
	}
	if *sink != "" {
		cfg.Sink = *sink
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("touchd: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// Event bus first so everything else can publish
	bus := events.NewEventBus(1000)
	defer bus.Stop()

	reporter := logging.NewErrorReporter()
	reporter.SetLogger(logger.Named("Errors"))
	reporter.SetEventBus(bus)

	if cfg.LoggingEnabled && cfg.LogDir != "" {
		eventLogger, err := logging.NewEventLogger(bus, cfg.LogDir, cfg.LogMoves)
		if err != nil {
			logger.Warn(fmt.Sprintf("Event log disabled: %v", err))
		} else {
			defer eventLogger.Close()
			logger.Info(fmt.Sprintf("Event log: %s", eventLogger.Path()))
		}
	}

	settings, err := cfg.LoadCalibration()
	if errors.Is(err, calibration.ErrSettingsNotFound) {
		logger.Warn(fmt.Sprintf("No settings at %s, running uncalibrated", cfg.SettingsPath))
	} else if err != nil {
		return fmt.Errorf("failed to load calibration: %w", err)
	}

	captureConfig, err := cfg.CaptureConfig()
	if err != nil {
		return err
	}
	source, err := cv.OpenSource(&captureConfig)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", captureConfig.Method, err)
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}
	w, h := source.GetDimensions()
	logger.InfoWithContext("Capture source ready", map[string]interface{}{
		"method": captureConfig.Method.String(),
		"size":   fmt.Sprintf("%dx%d", w, h),
		"fps":    captureConfig.FPS,
	})

	output, err := openSink(ctx, cfg, settings, logger)
	if err != nil {
		return err
	}
	defer output.Close()

	detector, err := touch.NewDetector(source,
		touch.WithSettings(settings),
		touch.WithEventBus(bus),
		touch.WithLogger(logger.Named("Detector")),
		touch.WithErrorReporter(reporter),
		touch.WithDropOutOfBounds(cfg.DropOutOfBounds),
		touch.WithTracker(cfg.TrackerConfig()),
		touch.WithSnapshotDir(cfg.SnapshotDir),
		touch.WithCaptureRate(float64(captureConfig.FPS)),
		touch.WithTargetSize(captureConfig.TargetWidth, captureConfig.TargetHeight),
		touch.WithSourceName(captureConfig.Method.String()),
		touch.WithHandler(inject.Handler(output, func(err error) {
			reporter.ReportError(logging.ErrorCategoryInjection, logging.ErrorSeverityMedium, "Sink", "Touch delivery failed", err)
		})),
	)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}

	// Persistence is optional; the detector runs without it
	var finishRecording func()
	if cfg.RecordTouches && cfg.DatabasePath != "" {
		finishRecording, err = startRecording(cfg, bus, settings, captureConfig.Method.String(), detector, logger)
		if err != nil {
			reporter.ReportError(logging.ErrorCategoryStorage, logging.ErrorSeverityHigh, "Database", "Recording disabled", err)
		}
	}

	health := monitor.NewHealthChecker(detector).
		WithStallTimeout(cfg.StallTimeout()).
		WithCheckInterval(cfg.CheckInterval()).
		WithEventBus(bus).
		WithStallCallback(func(stalled bool, silence time.Duration) {
			if stalled {
				logger.Warn(fmt.Sprintf("Frame source silent for %v", silence.Round(time.Millisecond)))
			} else {
				logger.Info("Frame source recovered")
			}
		})

	defer func() {
		health.Stop()
		detector.Stop()
		// Drain the final touch.ended events before the recorder detaches
		bus.Stop()
		if finishRecording != nil {
			finishRecording()
		}
	}()

	if err := detector.Start(ctx); err != nil {
		return err
	}
	health.Start()

	var status <-chan time.Time
	if cfg.StatusInterval > 0 {
		ticker := time.NewTicker(time.Duration(cfg.StatusInterval) * time.Second)
		defer ticker.Stop()
		status = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return nil
		case <-detector.SourceDone():
			logger.Info("Frame source finished")
			return nil
		case <-status:
			logger.Info(detector.Stats().String())
		}
	}
}

// newLogger builds the root logger writing to stdout and, when enabled, a log file
func newLogger(cfg *config.Config) (*logging.Logger, func(), error) {
	level, err := logging.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger("touchd").SetMinLevel(level)

	if !cfg.LoggingEnabled || cfg.LogDir == "" {
		return logger, func() {}, nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(cfg.LogDir, fmt.Sprintf("touchd_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}
	logger.AddOutput(f)
	return logger, func() { f.Close() }, nil
}

// openSink creates the configured touch output
func openSink(ctx context.Context, cfg *config.Config, settings *calibration.Settings, logger *logging.Logger) (inject.Sink, error) {
	screenW, screenH := float64(settings.ScreenWidth), float64(settings.ScreenHeight)
	logSink := inject.NewLogSink(logger.Named("Touch"), cfg.LogMoves)

	switch cfg.Sink {
	case config.SinkNone:
		return inject.MultiSink{}, nil
	case config.SinkPointer:
		pointer, err := inject.NewPointerSink(screenW, screenH, cfg.PointerPress)
		if err != nil {
			return nil, fmt.Errorf("pointer output: %w", err)
		}
		return inject.MultiSink{logSink, pointer}, nil
	case config.SinkADB:
		ctrl, err := adb.ConnectADB(ctx, cfg.ADBPath, cfg.ADBDevice)
		if err != nil {
			return nil, fmt.Errorf("adb output: %w", err)
		}
		device, err := inject.NewADBSink(ctrl, screenW, screenH)
		if err != nil {
			return nil, fmt.Errorf("adb output: %w", err)
		}
		dw, dh := ctrl.ScreenSize()
		logger.Info(fmt.Sprintf("Forwarding touches to %s (%dx%d)", ctrl.Device(), dw, dh))
		return inject.MultiSink{logSink, device}, nil
	default:
		return logSink, nil
	}
}

// startRecording opens the database, starts a session and attaches the
// event recorder. The returned func closes everything in order.
func startRecording(cfg *config.Config, bus events.EventBus, settings *calibration.Settings, sourceName string, detector *touch.Detector, logger *logging.Logger) (func(), error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	db.SetLogger(logger.Named("Database"))
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	sessionID, err := db.StartSession(sourceName, cfg.Profile, settings)
	if err != nil {
		db.Close()
		return nil, err
	}
	recorder := database.NewEventRecorder(db, bus, sessionID,
		database.WithRecordMoves(cfg.RecordMoves),
		database.WithProfile(cfg.Profile),
		database.WithInitialSettings(settings),
		database.WithRecorderLogger(logger.Named("Recorder")),
	)
	logger.Info(fmt.Sprintf("Recording session %s to %s", sessionID, cfg.DatabasePath))

	return func() {
		if err := recorder.Close(); err != nil {
			logger.Error("Failed to flush recorder", err)
		}
		stats := detector.Stats()
		err := db.FinishSession(sessionID, database.SessionSummary{
			FramesProcessed: stats.FramesProcessed,
			Touches:         stats.Touches,
			Errors:          stats.Errors,
		})
		if err != nil {
			logger.Error("Failed to finish session", err)
		}
		db.Close()
	}, nil
}
