package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/cv"
	"jordanella.com/webcam-touch/internal/database"
	"jordanella.com/webcam-touch/internal/events"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
	"jordanella.com/webcam-touch/pkg/profiles"
)

// touchRecord is one line of the JSON Lines report
type touchRecord struct {
	ID        string  `json:"id"`
	Phase     string  `json:"phase"`
	Frame     int64   `json:"frame"`
	WebcamX   float64 `json:"webcam_x"`
	WebcamY   float64 `json:"webcam_y"`
	ScreenX   float64 `json:"screen_x"`
	ScreenY   float64 `json:"screen_y"`
	WorldX    float64 `json:"world_x"`
	WorldY    float64 `json:"world_y"`
	Area      int     `json:"area"`
	Intensity float64 `json:"intensity"`
	InBounds  bool    `json:"in_bounds"`
	OffsetMS  int64   `json:"offset_ms"`
}

type replayOptions struct {
	settings     *calibration.Settings
	profile      string
	tracker      *touch.TrackerConfig
	fps          int
	targetWidth  int
	targetHeight int
	dropOOB      bool
	snapshotDir  string
	outDir       string
	db           *database.DB
	logger       *logging.Logger
}

type replayResult struct {
	dir     string
	frames  int
	touches map[touch.Phase]int
	report  string
	elapsed time.Duration
	stats   touch.Stats
}

func main() {
	// Parse command line flags
	settingsPath := flag.String("settings", "touch_settings.json", "Calibration settings document")
	profilesDir := flag.String("profiles", "profiles", "Directory of calibration profiles")
	profile := flag.String("profile", "", "Calibration profile to apply")
	workers := flag.Int("workers", 4, "Sequences replayed in parallel")
	fps := flag.Int("fps", 30, "Frame rate the sequences were recorded at")
	width := flag.Int("width", 320, "Detection width, 0 keeps the source size")
	height := flag.Int("height", 240, "Detection height, 0 keeps the source size")
	matchDistance := flag.Float64("match", touch.DefaultTrackerConfig().MatchDistance, "Tracker match distance")
	maxMissed := flag.Int("missed", touch.DefaultTrackerConfig().MaxMissedFrames, "Frames a touch may go unseen")
	dropOOB := flag.Bool("drop-oob", false, "Discard touches outside the calibrated area")
	snapshotDir := flag.String("snapshots", "", "Write mask snapshots under this directory")
	outDir := flag.String("out", "replay", "Directory for JSON Lines touch reports")
	dbPath := flag.String("db", "", "Record each sequence as a session in this database")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	dirs := flag.Args()
	if len(dirs) == 0 {
		log.Fatalf("Usage: touch-replay [flags] <sequence dir>...")
	}

	logger := logging.NewLogger("replay")
	if *verbose {
		logger.SetMinLevel(logging.LogLevelDebug)
	}

	settings, err := calibration.LoadSettings(*settingsPath)
	if errors.Is(err, calibration.ErrSettingsNotFound) {
		log.Printf("Warning: %s not found, replaying uncalibrated", *settingsPath)
	} else if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *profile != "" {
		registry := profiles.NewRegistry()
		if err := registry.LoadFromDirectory(*profilesDir); err != nil {
			log.Fatalf("Failed to load profiles: %v", err)
		}
		if settings, err = registry.Resolve(*profile, settings); err != nil {
			log.Fatalf("Failed to apply profile: %v", err)
		}
	}

	opts := replayOptions{
		settings:     settings,
		profile:      *profile,
		tracker:      &touch.TrackerConfig{MatchDistance: *matchDistance, MaxMissedFrames: *maxMissed},
		fps:          *fps,
		targetWidth:  *width,
		targetHeight: *height,
		dropOOB:      *dropOOB,
		snapshotDir:  *snapshotDir,
		outDir:       *outDir,
		logger:       logger,
	}

	if *dbPath != "" {
		db, err := database.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		db.SetLogger(logger.Named("Database"))
		if err := db.RunMigrations(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		opts.db = db
	}

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	start := time.Now()
	swg := sizedwaitgroup.New(max(*workers, 1))
	var mu sync.Mutex
	var results []*replayResult
	var failed int

	for _, dir := range dirs {
		swg.Add()
		go func(dir string) {
			defer swg.Done()
			result, err := replayDir(dir, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("✗ %s: %v", dir, err)
				failed++
				return
			}
			results = append(results, result)
		}(dir)
	}
	swg.Wait()

	var frames, touches int
	for _, r := range results {
		frames += r.frames
		touches += r.touches[touch.PhaseBegan]
		log.Printf("✓ %s: %s frames, %d touches (%d moved, %d ended) in %v -> %s",
			r.dir, humanize.Comma(int64(r.frames)), r.touches[touch.PhaseBegan],
			r.touches[touch.PhaseMoved], r.touches[touch.PhaseEnded],
			r.elapsed.Round(time.Millisecond), r.report)
	}
	log.Printf("Replayed %d sequences (%d failed): %s frames, %s touches in %v",
		len(results), failed, humanize.Comma(int64(frames)), humanize.Comma(int64(touches)),
		time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		os.Exit(1)
	}
}

// replayDir runs one image sequence through its own detector
func replayDir(dir string, opts replayOptions) (*replayResult, error) {
	started := time.Now()

	source, err := cv.NewSequenceSource(dir, false)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(dir))
	reportPath := filepath.Join(opts.outDir, name+".jsonl")
	report, err := os.Create(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	defer report.Close()
	encoder := json.NewEncoder(report)

	result := &replayResult{
		dir:     dir,
		touches: make(map[touch.Phase]int),
		report:  reportPath,
	}

	// Timestamps follow the recording rate, not the replay speed
	interval := time.Second / time.Duration(max(opts.fps, 1))
	base := time.Now()

	var writeErr error
	detectorOpts := []touch.Option{
		touch.WithSettings(opts.settings),
		touch.WithLogger(opts.logger.Named("Detector:" + name)),
		touch.WithTracker(opts.tracker),
		touch.WithTargetSize(opts.targetWidth, opts.targetHeight),
		touch.WithDropOutOfBounds(opts.dropOOB),
		touch.WithSourceName("sequence:" + name),
		touch.WithHandler(func(touches []touch.Touch) {
			for _, t := range touches {
				result.touches[t.Phase]++
				if err := encoder.Encode(newTouchRecord(t, base)); err != nil && writeErr == nil {
					writeErr = err
				}
			}
		}),
	}
	if opts.snapshotDir != "" {
		detectorOpts = append(detectorOpts, touch.WithSnapshotDir(filepath.Join(opts.snapshotDir, name)))
	}

	var bus *events.DefaultEventBus
	if opts.db != nil {
		bus = events.NewEventBus(1000)
		defer bus.Stop()
		detectorOpts = append(detectorOpts, touch.WithEventBus(bus))
	}

	detector, err := touch.NewDetector(nil, detectorOpts...)
	if err != nil {
		return nil, err
	}

	if bus != nil {
		finish, err := recordSession(opts, bus, name)
		if err != nil {
			return nil, err
		}
		defer func() { finish(detector.Stats()) }()
	}

	for {
		frame, err := source.CaptureFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ts := base.Add(time.Duration(result.frames) * interval)
		if _, err := detector.ProcessFrame(frame, ts); err != nil {
			return nil, fmt.Errorf("frame %d: %w", result.frames+1, err)
		}
		result.frames++
	}
	detector.EndAll(base.Add(time.Duration(result.frames) * interval))

	result.stats = detector.Stats()
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write report: %w", writeErr)
	}

	result.elapsed = time.Since(started)
	opts.logger.Debug(fmt.Sprintf("%s: %s", name, result.stats.String()))
	return result, nil
}

// recordSession starts a database session fed from bus. The returned func
// drains the bus and closes the session with the detector's counters.
func recordSession(opts replayOptions, bus *events.DefaultEventBus, name string) (func(touch.Stats), error) {
	sessionID, err := opts.db.StartSession("sequence:"+name, opts.profile, opts.settings)
	if err != nil {
		return nil, err
	}
	recorder := database.NewEventRecorder(opts.db, bus, sessionID,
		database.WithRecordMoves(true),
		database.WithProfile(opts.profile),
		database.WithRecorderLogger(opts.logger.Named("Recorder")),
	)

	return func(stats touch.Stats) {
		bus.Stop()
		if err := recorder.Close(); err != nil {
			opts.logger.Error("Failed to flush recorder", err)
		}
		err := opts.db.FinishSession(sessionID, database.SessionSummary{
			FramesProcessed: stats.FramesProcessed,
			Touches:         stats.Touches,
			Errors:          stats.Errors,
		})
		if err != nil {
			opts.logger.Error("Failed to finish session", err)
		}
	}, nil
}

func newTouchRecord(t touch.Touch, base time.Time) touchRecord {
	return touchRecord{
		ID:        t.ID.String(),
		Phase:     string(t.Phase),
		Frame:     t.Frame,
		WebcamX:   t.Webcam.X,
		WebcamY:   t.Webcam.Y,
		ScreenX:   t.Screen.X,
		ScreenY:   t.Screen.Y,
		WorldX:    t.World.X,
		WorldY:    t.World.Y,
		Area:      t.Area,
		Intensity: t.Intensity,
		InBounds:  t.InBounds,
		OffsetMS:  t.Timestamp.Sub(base).Milliseconds(),
	}
}
