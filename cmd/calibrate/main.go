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
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/config"
	"jordanella.com/webcam-touch/internal/cv"
	"jordanella.com/webcam-touch/internal/database"
	"jordanella.com/webcam-touch/internal/events"
	"jordanella.com/webcam-touch/internal/logging"
	"jordanella.com/webcam-touch/internal/touch"
	"jordanella.com/webcam-touch/pkg/profiles"
)

const usage = `Usage: calibrate [-config touch.ini] <command> [flags]

Commands:
  init      write default settings to the settings document
  show      print the active settings and where the screen corners land
  set       change placement and detection fields
  map       map a normalized webcam point to screen and world
  corners   record the webcam quad by touching the four screen corners
  history   list stored calibrations
`

func main() {
	configPath := flag.String("config", "touch.ini", "Path to the application config")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromINI(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config: %v", err)
		cfg = config.NewDefaultConfig()
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "init":
		err = runInit(cfg, args)
	case "show":
		err = runShow(cfg, args)
	case "set":
		err = runSet(cfg, args)
	case "map":
		err = runMap(cfg, args)
	case "corners":
		err = runCorners(cfg, args)
	case "history":
		err = runHistory(cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func runInit(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing settings document")
	fs.Parse(args)

	if _, err := os.Stat(cfg.SettingsPath); err == nil && !*force {
		return fmt.Errorf("%s exists, use -force to overwrite", cfg.SettingsPath)
	}
	if err := calibration.SaveSettings(cfg.SettingsPath, calibration.DefaultSettings()); err != nil {
		return err
	}
	log.Printf("Default settings written to %s", cfg.SettingsPath)
	return nil
}

func runShow(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	fs.Parse(args)

	settings, err := cfg.LoadCalibration()
	if errors.Is(err, calibration.ErrSettingsNotFound) {
		log.Printf("Warning: %s not found, showing defaults", cfg.SettingsPath)
	} else if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	mapper, err := calibration.NewMapper(settings)
	if err != nil {
		return err
	}
	w, h := mapper.ScreenSize()
	fmt.Println("\nScreen corners in raw webcam coordinates:")
	for _, c := range []struct {
		name string
		p    calibration.Vec2
	}{
		{"bottom-left", calibration.Vec2{X: 0, Y: 0}},
		{"bottom-right", calibration.Vec2{X: w, Y: 0}},
		{"top-right", calibration.Vec2{X: w, Y: h}},
		{"top-left", calibration.Vec2{X: 0, Y: h}},
	} {
		p, _ := mapper.ScreenToWebcam(c.p)
		fmt.Printf("  %-12s (%.4f, %.4f)\n", c.name, p.X, p.Y)
	}
	return nil
}

func runSet(cfg *config.Config, args []string) error {
	settings, err := calibration.LoadSettings(cfg.SettingsPath)
	if err != nil && !errors.Is(err, calibration.ErrSettingsNotFound) {
		return err
	}

	fs := flag.NewFlagSet("set", flag.ExitOnError)
	fs.Float64Var(&settings.Threshold, "threshold", settings.Threshold, "Motion threshold 0-1")
	fs.IntVar(&settings.MinArea, "min-area", settings.MinArea, "Smallest accepted cluster")
	fs.IntVar(&settings.MaxArea, "max-area", settings.MaxArea, "Largest accepted cluster, 0 unbounded")
	fs.IntVar(&settings.SampleStep, "step", settings.SampleStep, "Pixel sampling step")
	fs.IntVar(&settings.PollIntervalMS, "poll", settings.PollIntervalMS, "Processing period in ms")
	fs.Float64Var(&settings.Rotation, "rotation", settings.Rotation, "Rotation in degrees, counter-clockwise")
	fs.Float64Var(&settings.Zoom, "zoom", settings.Zoom, "Zoom about the image center")
	fs.Float64Var(&settings.CameraOffset.X, "offset-x", settings.CameraOffset.X, "Horizontal offset")
	fs.Float64Var(&settings.CameraOffset.Y, "offset-y", settings.CameraOffset.Y, "Vertical offset")
	fs.BoolVar(&settings.FlipHorizontal, "flip-h", settings.FlipHorizontal, "Mirror horizontally")
	fs.BoolVar(&settings.FlipVertical, "flip-v", settings.FlipVertical, "Mirror vertically")
	fs.Float64Var(&settings.World.OrthoSize, "ortho", settings.World.OrthoSize, "World camera half height")
	screen := fs.String("screen", "", "Screen size as WIDTHxHEIGHT")
	resetCorners := fs.Bool("reset-corners", false, "Forget the calibrated quad")
	fs.Parse(args)

	if *screen != "" {
		w, h, err := parseSize(*screen)
		if err != nil {
			return err
		}
		settings.ScreenWidth, settings.ScreenHeight = w, h
	}
	if *resetCorners {
		settings.WebcamCorners = calibration.UnitQuad()
	}

	if err := calibration.SaveSettings(cfg.SettingsPath, settings); err != nil {
		return err
	}

	var changed []string
	fs.Visit(func(f *flag.Flag) { changed = append(changed, f.Name+"="+f.Value.String()) })
	log.Printf("Updated %s: %s", cfg.SettingsPath, strings.Join(changed, ", "))
	return nil
}

func runMap(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("expected <u> <v>")
	}
	u, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return fmt.Errorf("invalid u: %w", err)
	}
	v, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil {
		return fmt.Errorf("invalid v: %w", err)
	}

	settings, err := cfg.LoadCalibration()
	if err != nil && !errors.Is(err, calibration.ErrSettingsNotFound) {
		return err
	}
	mapper, err := calibration.NewMapper(settings)
	if err != nil {
		return err
	}

	webcam := calibration.Vec2{X: u, Y: v}
	screen, inside := mapper.WebcamToScreen(webcam)
	world := mapper.ScreenToWorld(screen)
	fmt.Printf("webcam (%.4f, %.4f) -> screen (%.1f, %.1f) world (%.3f, %.3f) inside=%v\n",
		u, v, screen.X, screen.Y, world.X, world.Y, inside)
	return nil
}

func runHistory(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 10, "Number of calibrations to list")
	fs.Parse(args)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetLogger(logging.NewLoggerWithOutputs("Database"))
	if err := db.RunMigrations(); err != nil {
		return err
	}

	records, err := db.ListCalibrations(*limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No calibrations recorded")
		return nil
	}
	for _, r := range records {
		profile := r.Profile
		if profile == "" {
			profile = "(default)"
		}
		fmt.Printf("%4d  %s  %-16s quad area %.4f\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), profile, r.QuadArea)
	}
	return nil
}

func runCorners(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("corners", flag.ExitOnError)
	samples := fs.Int("samples", 10, "Touch samples averaged per corner")
	saveProfile := fs.String("save-profile", "", "Store the result as this profile instead of the settings document")
	timeout := fs.Duration("timeout", 2*time.Minute, "Give up after this long")
	fs.Parse(args)

	settings, err := cfg.LoadCalibration()
	if err != nil && !errors.Is(err, calibration.ErrSettingsNotFound) {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	captureConfig, err := cfg.CaptureConfig()
	if err != nil {
		return err
	}
	source, err := cv.OpenSource(&captureConfig)
	if err != nil {
		return err
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	logger := logging.NewLogger("calibrate")
	bus := events.NewEventBus(100)
	defer bus.Stop()

	mapper, err := calibration.NewMapper(settings)
	if err != nil {
		return err
	}
	session := newCornerSession(calibration.NewCalibrator(mapper, *samples), logger)

	detector, err := touch.NewDetector(source,
		touch.WithSettings(settings),
		touch.WithLogger(logging.NewLoggerWithOutputs("Detector")),
		touch.WithTracker(cfg.TrackerConfig()),
		touch.WithCaptureRate(float64(captureConfig.FPS)),
		touch.WithTargetSize(captureConfig.TargetWidth, captureConfig.TargetHeight),
		touch.WithHandler(session.handle),
	)
	if err != nil {
		return err
	}

	session.begin()
	if err := detector.Start(ctx); err != nil {
		return err
	}

	select {
	case <-session.done:
	case <-ctx.Done():
	case <-detector.SourceDone():
	}
	detector.Stop()

	quad, err := session.calibrator.Result()
	if err != nil {
		return fmt.Errorf("calibration not finished: %w", err)
	}
	settings.WebcamCorners = quad

	profileName := *saveProfile
	if profileName != "" {
		path, err := profiles.SaveProfile(cfg.ProfilesDir, profiles.FromSettings(profileName, settings))
		if err != nil {
			return err
		}
		log.Printf("Profile %s written to %s", profileName, path)
	} else {
		if err := calibration.SaveSettings(cfg.SettingsPath, settings); err != nil {
			return err
		}
		log.Printf("Calibration saved to %s", cfg.SettingsPath)
	}

	if cfg.DatabasePath != "" {
		recordCalibration(cfg, bus, settings, profileName, quad, logger)
	}
	return nil
}

// recordCalibration stores the calibration through the event recorder so
// the history matches what a running daemon would record
func recordCalibration(cfg *config.Config, bus *events.DefaultEventBus, settings *calibration.Settings, profile string, quad calibration.Quad, logger *logging.Logger) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Warn(fmt.Sprintf("Calibration history not updated: %v", err))
		return
	}
	defer db.Close()
	db.SetLogger(logging.NewLoggerWithOutputs("Database"))
	if err := db.RunMigrations(); err != nil {
		logger.Warn(fmt.Sprintf("Calibration history not updated: %v", err))
		return
	}

	recorder := database.NewEventRecorder(db, bus, "",
		database.WithProfile(profile),
		database.WithInitialSettings(settings),
		database.WithRecorderLogger(logger.Named("Recorder")),
	)
	bus.Publish(events.NewCalibrationEvent(profile, quad))
	bus.Stop()
	recorder.Close()
}

func parseSize(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	return w, h, nil
}
