package database

import (
	"database/sql"
	"sync"
	"time"

	"jordanella.com/webcam-touch/internal/calibration"
	"jordanella.com/webcam-touch/internal/events"
	"jordanella.com/webcam-touch/internal/logging"
)

const (
	defaultRecorderBatch    = 64
	defaultRecorderInterval = time.Second
)

// EventRecorder persists bus events for one session. Touch phases are
// buffered and written in batches; errors and calibrations are written
// as they arrive.
type EventRecorder struct {
	db          *DB
	bus         events.EventBus
	sessionID   string
	profile     string
	recordMoves bool
	batchSize   int
	logger      *logging.Logger

	flushMu      sync.Mutex
	mu           sync.Mutex
	pending      []*TouchEventRecord
	lastSettings *calibration.Settings
	recorded     int64

	subscriptions []events.SubscriptionID
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// RecorderOption configures an EventRecorder
type RecorderOption func(*EventRecorder)

// WithRecordMoves stores touch.moved events as well as began and ended
func WithRecordMoves(enabled bool) RecorderOption {
	return func(r *EventRecorder) { r.recordMoves = enabled }
}

// WithBatchSize sets how many touch records are buffered before a write
func WithBatchSize(n int) RecorderOption {
	return func(r *EventRecorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRecorderLogger replaces the recorder's logger
func WithRecorderLogger(logger *logging.Logger) RecorderOption {
	return func(r *EventRecorder) { r.logger = logger }
}

// WithProfile names the calibration profile for stored calibrations
func WithProfile(profile string) RecorderOption {
	return func(r *EventRecorder) { r.profile = profile }
}

// WithInitialSettings seeds the settings calibrations are applied onto
func WithInitialSettings(settings *calibration.Settings) RecorderOption {
	return func(r *EventRecorder) { r.lastSettings = settings.Clone() }
}

// NewEventRecorder subscribes to bus and starts the periodic flush loop
func NewEventRecorder(db *DB, bus events.EventBus, sessionID string, opts ...RecorderOption) *EventRecorder {
	r := &EventRecorder{
		db:        db,
		bus:       bus,
		sessionID: sessionID,
		batchSize: defaultRecorderBatch,
		logger:    logging.NewLogger("Recorder"),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, t := range []events.EventType{
		events.EventTypeTouchBegan,
		events.EventTypeTouchMoved,
		events.EventTypeTouchEnded,
	} {
		r.subscriptions = append(r.subscriptions, bus.Subscribe(t, r.handleTouch))
	}
	r.subscriptions = append(r.subscriptions,
		bus.Subscribe(events.EventTypeError, r.handleError),
		bus.Subscribe(events.EventTypeSettingsChanged, r.handleSettings),
		bus.Subscribe(events.EventTypeCalibrationCompleted, r.handleCalibration),
	)

	r.wg.Add(1)
	go r.flushLoop(defaultRecorderInterval)

	return r
}

// Recorded returns how many touch records have been written
func (r *EventRecorder) Recorded() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Flush writes buffered touch records. A failed batch stays buffered
// ahead of newer records and is retried on the next flush.
func (r *EventRecorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := r.db.InsertTouchEvents(batch); err != nil {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.recorded += int64(len(batch))
	r.mu.Unlock()
	return nil
}

// Close unsubscribes, stops the flush loop and writes anything still buffered
func (r *EventRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		for _, id := range r.subscriptions {
			r.bus.Unsubscribe(id)
		}
		close(r.stopCh)
		r.wg.Wait()
		err = r.Flush()
	})
	return err
}

func (r *EventRecorder) flushLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("Failed to flush touch records", err)
			}
		}
	}
}

func (r *EventRecorder) handleTouch(event events.Event) {
	if event.Type == events.EventTypeTouchMoved && !r.recordMoves {
		return
	}
	touch, ok := events.TouchFromEvent(event)
	if !ok {
		return
	}

	ts := touch.Timestamp
	if ts.IsZero() {
		ts = event.Timestamp
	}

	r.mu.Lock()
	r.pending = append(r.pending, &TouchEventRecord{
		SessionID:  r.sessionID,
		TouchID:    touch.ID,
		Phase:      touch.Phase,
		Frame:      touch.Frame,
		WebcamX:    touch.Webcam.X,
		WebcamY:    touch.Webcam.Y,
		ScreenX:    touch.Screen.X,
		ScreenY:    touch.Screen.Y,
		WorldX:     touch.World.X,
		WorldY:     touch.World.Y,
		Area:       touch.Area,
		Intensity:  touch.Intensity,
		InBounds:   touch.InBounds,
		OccurredAt: ts,
	})
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		if err := r.Flush(); err != nil {
			r.logger.Error("Failed to flush touch records", err)
		}
	}
}

func (r *EventRecorder) handleError(event events.Event) {
	entry := &ErrorLog{
		SessionID:   sql.NullString{String: r.sessionID, Valid: r.sessionID != ""},
		Category:    stringField(event.Data, "category", "system"),
		Severity:    stringField(event.Data, "severity", "medium"),
		Component:   stringField(event.Data, "component", event.Source),
		Message:     stringField(event.Data, "message", ""),
		Recoverable: true,
		OccurredAt:  event.Timestamp,
	}
	if text := stringField(event.Data, "error", ""); text != "" {
		entry.ErrorText = sql.NullString{String: text, Valid: true}
		if entry.Message == "" {
			entry.Message = text
		}
	}
	if recoverable, ok := event.Data["recoverable"].(bool); ok {
		entry.Recoverable = recoverable
	}

	if _, err := r.db.LogError(entry); err != nil {
		r.logger.Error("Failed to record error event", err)
	}
}

func (r *EventRecorder) handleSettings(event events.Event) {
	settings, ok := event.Data["settings"].(calibration.Settings)
	if !ok {
		return
	}
	r.mu.Lock()
	r.lastSettings = settings.Clone()
	r.mu.Unlock()
}

func (r *EventRecorder) handleCalibration(event events.Event) {
	corners, ok := event.Data["corners"].(calibration.Quad)
	if !ok {
		return
	}
	profile := stringField(event.Data, "profile", r.profile)

	r.mu.Lock()
	settings := calibration.DefaultSettings()
	if r.lastSettings != nil {
		settings = r.lastSettings.Clone()
	}
	r.mu.Unlock()
	settings.WebcamCorners = corners

	if _, err := r.db.SaveCalibration(profile, settings); err != nil {
		r.logger.Error("Failed to record calibration", err)
	}
}

func stringField(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
