package touch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/cv"
	"jordanella.com/webcam-touch/internal/events"
	"jordanella.com/webcam-touch/internal/logging"
)

// ErrAlreadyRunning is returned by Start on a running detector
var ErrAlreadyRunning = errors.New("detector already running")

// Handler receives the touches of one processed frame
type Handler func(touches []Touch)

// Option configures a Detector
type Option func(*Detector)

// WithSettings replaces the default settings
func WithSettings(settings *calibration.Settings) Option {
	return func(d *Detector) {
		d.settings = settings.Clone()
	}
}

// WithEventBus publishes touch and lifecycle events to bus
func WithEventBus(bus events.EventBus) Option {
	return func(d *Detector) {
		d.eventBus = bus
	}
}

// WithHandler adds a synchronous per-frame touch handler
func WithHandler(h Handler) Option {
	return func(d *Detector) {
		d.handlers = append(d.handlers, h)
	}
}

// WithLogger sets the detector's logger
func WithLogger(logger *logging.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithErrorReporter routes capture and detection failures to reporter
func WithErrorReporter(reporter *logging.ErrorReporter) Option {
	return func(d *Detector) {
		d.reporter = reporter
	}
}

// WithDropOutOfBounds discards clusters outside the calibrated area
func WithDropOutOfBounds(drop bool) Option {
	return func(d *Detector) {
		d.dropOutOfBounds = drop
	}
}

// WithTracker sets the tracker configuration
func WithTracker(config *TrackerConfig) Option {
	return func(d *Detector) {
		d.tracker = NewTracker(config)
	}
}

// WithSnapshotDir writes a mask snapshot for every frame with clusters
func WithSnapshotDir(dir string) Option {
	return func(d *Detector) {
		d.snapshotDir = dir
	}
}

// WithCaptureRate paces the pull loop, in frames per second
func WithCaptureRate(fps float64) Option {
	return func(d *Detector) {
		d.captureRate = fps
	}
}

// WithSourceName labels the source in logs and lifecycle events
func WithSourceName(name string) Option {
	return func(d *Detector) {
		d.sourceName = name
	}
}

// WithTargetSize downscales frames before differencing
func WithTargetSize(width, height int) Option {
	return func(d *Detector) {
		d.targetWidth = width
		d.targetHeight = height
	}
}

// Detector turns a stream of frames into tracked touches. Frames are pulled
// from a FrameSource by a rate-limited capture loop or pushed with Submit.
// Both land in a single newest-frame slot that the processing loop drains
// every poll interval, so a slow processor skips frames instead of queueing.
type Detector struct {
	source       cv.FrameSource
	sourceName   string
	captureRate  float64
	targetWidth  int
	targetHeight int

	service *cv.Service
	tracker *Tracker

	settingsMu sync.RWMutex
	settings   *calibration.Settings
	mapper     *calibration.Mapper

	eventBus        events.EventBus
	handlers        []Handler
	logger          *logging.Logger
	reporter        *logging.ErrorReporter
	dropOutOfBounds bool
	snapshotDir     string

	// Newest-frame slot
	slotMu       sync.Mutex
	latest       *image.RGBA
	latestAt     time.Time
	latestSeq    uint64
	processedSeq uint64

	// Serializes ProcessFrame
	procMu     sync.Mutex
	frameIndex int64

	stats counters

	runMu       sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	captureDone chan struct{}
}

// NewDetector creates a detector. source may be nil when frames are only
// delivered through Submit or ProcessFrame.
func NewDetector(source cv.FrameSource, opts ...Option) (*Detector, error) {
	d := &Detector{
		source:      source,
		captureRate: 30,
		settings:    calibration.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.sourceName == "" {
		d.sourceName = "push"
		if source != nil {
			d.sourceName = fmt.Sprintf("%T", source)
		}
	}
	if d.logger == nil {
		d.logger = logging.NewLogger("Detector")
	}
	if d.tracker == nil {
		d.tracker = NewTracker(nil)
	}

	if err := d.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	mapper, err := calibration.NewMapper(d.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapper: %w", err)
	}
	d.mapper = mapper

	d.service = cv.NewService(nil).
		WithConfig(d.settings.MotionConfig(), d.settings.ClusterConfig()).
		WithTargetSize(d.targetWidth, d.targetHeight)

	return d, nil
}

// Settings returns a copy of the active settings
func (d *Detector) Settings() *calibration.Settings {
	d.settingsMu.RLock()
	defer d.settingsMu.RUnlock()
	return d.settings.Clone()
}

// Mapper returns the active coordinate mapper
func (d *Detector) Mapper() *calibration.Mapper {
	d.settingsMu.RLock()
	defer d.settingsMu.RUnlock()
	return d.mapper
}

// UpdateSettings validates and swaps in new settings. Frames already being
// processed finish with the old mapping.
func (d *Detector) UpdateSettings(settings *calibration.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	mapper, err := calibration.NewMapper(settings)
	if err != nil {
		return fmt.Errorf("failed to build mapper: %w", err)
	}

	next := settings.Clone()
	d.settingsMu.Lock()
	d.settings = next
	d.mapper = mapper
	d.settingsMu.Unlock()

	d.service.SetConfig(next.MotionConfig(), next.ClusterConfig())
	d.logger.InfoWithContext("Settings updated", map[string]interface{}{
		"threshold": next.Threshold,
		"rotation":  next.Rotation,
		"zoom":      next.Zoom,
	})
	d.publish(events.NewSettingsChangedEvent("detector", *next))
	return nil
}

// Submit hands a frame to the processing loop, replacing any frame that
// has not been processed yet
func (d *Detector) Submit(frame *image.RGBA) {
	now := time.Now()

	d.slotMu.Lock()
	if d.latestSeq > d.processedSeq {
		d.stats.dropped.Add(1)
	}
	d.latest = frame
	d.latestAt = now
	d.latestSeq++
	d.slotMu.Unlock()

	d.stats.captured.Add(1)
	d.stats.markFrame(now)
}

// takeLatest returns the newest unprocessed frame, if any
func (d *Detector) takeLatest() (*image.RGBA, time.Time, bool) {
	d.slotMu.Lock()
	defer d.slotMu.Unlock()

	if d.latest == nil || d.latestSeq == d.processedSeq {
		return nil, time.Time{}, false
	}
	d.processedSeq = d.latestSeq
	return d.latest, d.latestAt, true
}

// Start launches the capture and processing loops. Without a FrameSource
// only the processing loop runs and frames must arrive through Submit.
func (d *Detector) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.stats.started.Store(time.Now().UnixNano())
	d.captureDone = make(chan struct{})

	if d.source != nil {
		d.wg.Add(1)
		go d.captureLoop(ctx)
	} else {
		close(d.captureDone)
	}

	d.wg.Add(1)
	go d.processLoop(ctx)

	d.logger.InfoWithContext("Detector started", map[string]interface{}{
		"source":        d.sourceName,
		"poll_interval": d.Settings().PollInterval().String(),
	})
	d.publish(events.NewDetectorEvent(events.EventTypeDetectorStarted, d.sourceName, nil))
	return nil
}

// Stop cancels both loops, waits for them and ends any live touches
func (d *Detector) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if !d.running {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.running = false

	d.EndAll(time.Now())

	stats := d.Stats()
	d.logger.InfoWithContext("Detector stopped", map[string]interface{}{
		"stats": stats.String(),
	})
	d.publish(events.NewDetectorEvent(events.EventTypeDetectorStopped, d.sourceName, map[string]interface{}{
		"frames_processed": stats.FramesProcessed,
		"touches":          stats.Touches,
		"errors":           stats.Errors,
	}))
}

// EndAll ends every live touch, emits the ended touches and returns them.
// The next frame re-primes the differencer.
func (d *Detector) EndAll(ts time.Time) []Touch {
	d.procMu.Lock()
	ended := d.tracker.Reset(d.frameIndex, ts)
	d.service.Reset()
	d.procMu.Unlock()

	d.emit(ended)
	return ended
}

// Running reports whether the loops are active
func (d *Detector) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.running
}

// SourceDone is closed once the capture loop has exited, e.g. when a
// non-looping sequence runs out of frames
func (d *Detector) SourceDone() <-chan struct{} {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.captureDone
}

// LastFrameTime returns when the newest frame was captured
func (d *Detector) LastFrameTime() time.Time {
	return d.stats.lastFrameTime()
}

// Stats returns a snapshot of the counters
func (d *Detector) Stats() Stats {
	s := Stats{
		FramesCaptured:  d.stats.captured.Load(),
		FramesProcessed: d.stats.processed.Load(),
		FramesDropped:   d.stats.dropped.Load(),
		Touches:         d.stats.touches.Load(),
		Errors:          d.stats.errors.Load(),
		ActiveTouches:   d.tracker.Active(),
		LastFrame:       d.stats.lastFrameTime(),
	}
	if n := d.stats.started.Load(); n != 0 {
		s.Started = time.Unix(0, n)
		s.Uptime = time.Since(s.Started)
	}
	return s
}

func (d *Detector) captureLoop(ctx context.Context) {
	defer d.wg.Done()
	defer close(d.captureDone)

	limiter := rate.NewLimiter(rate.Limit(d.captureRate), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		frame, err := d.source.CaptureFrame()
		switch {
		case err == nil:
			d.Submit(frame)
		case errors.Is(err, io.EOF):
			d.logger.Info("Frame source exhausted")
			return
		case errors.Is(err, cv.ErrNoFrame):
			// Nothing new yet
		default:
			d.fail(logging.ErrorCategoryCapture, "Frame capture failed", err)
		}
	}
}

func (d *Detector) processLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := d.Settings().PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if frame, at, ok := d.takeLatest(); ok {
				d.ProcessFrame(frame, at)
			}
			if next := d.Settings().PollInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// ProcessFrame runs one frame through differencing, clustering, mapping and
// tracking. The first frame after a reset only primes the differencer.
func (d *Detector) ProcessFrame(frame *image.RGBA, ts time.Time) ([]Touch, error) {
	d.procMu.Lock()
	defer d.procMu.Unlock()

	if ts.IsZero() {
		ts = time.Now()
	}
	d.stats.markFrame(ts)

	detection, err := d.service.DetectInFrame(frame)
	if err != nil {
		d.fail(logging.ErrorCategoryDetection, "Detection failed", err)
		return nil, err
	}
	d.frameIndex++
	d.stats.processed.Add(1)
	if !detection.Primed {
		return nil, nil
	}

	mapper := d.Mapper()
	observations := make([]Observation, 0, len(detection.Clusters))
	for _, c := range detection.Clusters {
		webcam := calibration.Vec2{X: c.Centroid.X, Y: c.Centroid.Y}
		screen, inside := mapper.WebcamToScreen(webcam)
		if !inside && d.dropOutOfBounds {
			continue
		}
		observations = append(observations, Observation{
			Webcam:    webcam,
			Screen:    screen,
			World:     mapper.ScreenToWorld(screen),
			Area:      c.Area,
			Intensity: c.Intensity,
			InBounds:  inside,
		})
	}

	touches := d.tracker.Update(observations, d.frameIndex, ts)
	d.emit(touches)

	if d.snapshotDir != "" && len(detection.Clusters) > 0 {
		path := filepath.Join(d.snapshotDir, fmt.Sprintf("frame_%06d.png", d.frameIndex))
		if err := cv.SaveDetectionSnapshot(path, detection); err != nil {
			d.logger.Warn(fmt.Sprintf("Snapshot failed: %v", err))
		}
	}

	return touches, nil
}

// emit publishes touches and calls the handlers
func (d *Detector) emit(touches []Touch) {
	if len(touches) == 0 {
		return
	}
	d.stats.touches.Add(int64(len(touches)))

	for _, t := range touches {
		d.logger.DebugWithContext("Touch", map[string]interface{}{
			"id":     t.ID.String(),
			"phase":  string(t.Phase),
			"screen": fmt.Sprintf("%.1f,%.1f", t.Screen.X, t.Screen.Y),
			"area":   t.Area,
		})
		d.publish(t.Event())
	}
	for _, h := range d.handlers {
		h(touches)
	}
}

func (d *Detector) publish(event events.Event) {
	if d.eventBus != nil {
		d.eventBus.Publish(event)
	}
}

// fail counts, logs and reports a non-fatal loop error
func (d *Detector) fail(category logging.ErrorCategory, message string, err error) {
	d.stats.errors.Add(1)
	if d.reporter != nil {
		d.reporter.ReportError(category, logging.ErrorSeverityMedium, "Detector", message, err)
		return
	}
	d.logger.Error(message, err)
}
