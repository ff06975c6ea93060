package monitor

import (
	"context"
	"sync"
	"time"

	"jordanella.com/webcam-touch/internal/events"
)

// FrameClock reports when the last frame arrived. The touch detector
// satisfies it.
type FrameClock interface {
	LastFrameTime() time.Time
}

// StallCallback is called when the frame source stalls or recovers
type StallCallback func(stalled bool, silence time.Duration)

// HealthChecker watches a frame source for silence
type HealthChecker struct {
	clock          FrameClock
	bus            events.EventBus
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startedAt      time.Time
	stalled        bool
	stallCount     int
	stallThreshold int
	stallTimeout   time.Duration
	checkInterval  time.Duration
	onStall        StallCallback
	mu             sync.RWMutex
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(clock FrameClock) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthChecker{
		clock:          clock,
		ctx:            ctx,
		cancel:         cancel,
		startedAt:      time.Now(),
		stallThreshold: 1,
		stallTimeout:   2 * time.Second,
		checkInterval:  500 * time.Millisecond,
	}
}

// WithStallCallback sets the callback for stall and recovery transitions
func (hc *HealthChecker) WithStallCallback(callback StallCallback) *HealthChecker {
	hc.onStall = callback
	return hc
}

// WithEventBus publishes source.stalled and source.recovered events
func (hc *HealthChecker) WithEventBus(bus events.EventBus) *HealthChecker {
	hc.bus = bus
	return hc
}

// WithCheckInterval sets the health check interval
func (hc *HealthChecker) WithCheckInterval(interval time.Duration) *HealthChecker {
	if interval > 0 {
		hc.checkInterval = interval
	}
	return hc
}

// WithStallTimeout sets how long the source may stay silent
func (hc *HealthChecker) WithStallTimeout(timeout time.Duration) *HealthChecker {
	if timeout > 0 {
		hc.stallTimeout = timeout
	}
	return hc
}

// WithStallThreshold sets how many consecutive silent checks declare a stall
func (hc *HealthChecker) WithStallThreshold(n int) *HealthChecker {
	if n > 0 {
		hc.stallThreshold = n
	}
	return hc
}

// Start begins health monitoring
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	hc.startedAt = time.Now()
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.monitorStall()
}

// Stop stops health monitoring
func (hc *HealthChecker) Stop() {
	hc.cancel()
	hc.wg.Wait()
}

// Stalled reports whether the source is currently considered stalled
func (hc *HealthChecker) Stalled() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.stalled
}

// Private
func (hc *HealthChecker) monitorStall() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.ctx.Done():
			return
		case now := <-ticker.C:
			hc.check(now)
		}
	}
}

// check evaluates the source at now and fires transitions
func (hc *HealthChecker) check(now time.Time) {
	hc.mu.Lock()

	last := hc.clock.LastFrameTime()
	if last.IsZero() {
		// No frame yet; measure from when monitoring began
		last = hc.startedAt
	}
	silence := now.Sub(last)

	var transition, stalled bool
	if silence > hc.stallTimeout {
		hc.stallCount++
		if hc.stallCount >= hc.stallThreshold && !hc.stalled {
			hc.stalled = true
			transition, stalled = true, true
		}
	} else {
		hc.stallCount = 0
		if hc.stalled {
			hc.stalled = false
			transition = true
		}
	}
	callback := hc.onStall
	bus := hc.bus
	hc.mu.Unlock()

	if !transition {
		return
	}
	if bus != nil {
		bus.PublishAsync(events.NewStalledEvent(stalled, last, silence))
	}
	if callback != nil {
		callback(stalled, silence)
	}
}
