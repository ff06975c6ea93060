package calibration

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCalibrationIncomplete is returned when a result is requested before all corners are recorded
var ErrCalibrationIncomplete = errors.New("calibration incomplete")

// Corner identifies one calibration corner
type Corner int

const (
	CornerBottomLeft Corner = iota
	CornerBottomRight
	CornerTopRight
	CornerTopLeft
	cornerCount
)

func (c Corner) String() string {
	switch c {
	case CornerBottomLeft:
		return "bottom-left"
	case CornerBottomRight:
		return "bottom-right"
	case CornerTopRight:
		return "top-right"
	case CornerTopLeft:
		return "top-left"
	default:
		return fmt.Sprintf("corner(%d)", int(c))
	}
}

// Calibrator walks the user through touching each screen corner and
// averages the touches into a webcam quad
type Calibrator struct {
	mapper           *Mapper
	samplesPerCorner int

	active   bool
	complete bool
	current  Corner
	sum      Vec2
	count    int
	corners  [cornerCount]Vec2

	mu sync.Mutex
}

// NewCalibrator creates a calibrator. Samples are prepared with mapper so the
// resulting quad lives in the same space WebcamToScreen inverts.
func NewCalibrator(mapper *Mapper, samplesPerCorner int) *Calibrator {
	if samplesPerCorner < 1 {
		samplesPerCorner = 1
	}
	return &Calibrator{
		mapper:           mapper,
		samplesPerCorner: samplesPerCorner,
		current:          cornerCount,
	}
}

// Begin starts a new calibration at the bottom-left corner
func (c *Calibrator) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = true
	c.complete = false
	c.current = CornerBottomLeft
	c.sum = Vec2{}
	c.count = 0
	c.corners = [cornerCount]Vec2{}
}

// Record adds a raw webcam sample to the current corner and reports whether
// the last corner has just been completed
func (c *Calibrator) Record(p Vec2) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return false
	}

	c.sum = c.sum.Add(c.mapper.Prepare(p))
	c.count++
	if c.count < c.samplesPerCorner {
		return false
	}

	c.corners[c.current] = c.sum.Scale(1 / float64(c.count))
	c.sum = Vec2{}
	c.count = 0
	c.current++
	if c.current == cornerCount {
		c.active = false
		c.complete = true
		return true
	}
	return false
}

// Current returns the corner waiting for samples and whether a calibration is running
func (c *Calibrator) Current() (Corner, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.active
}

// Progress returns samples recorded for the current corner and the per-corner target
func (c *Calibrator) Progress() (recorded, target int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.samplesPerCorner
}

// Cancel abandons a running calibration
func (c *Calibrator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = false
	c.complete = false
	c.current = cornerCount
	c.sum = Vec2{}
	c.count = 0
}

// Result returns the recorded quad once every corner is complete
func (c *Calibrator) Result() (Quad, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.complete {
		return Quad{}, ErrCalibrationIncomplete
	}

	q := Quad{
		BottomLeft:  c.corners[CornerBottomLeft],
		BottomRight: c.corners[CornerBottomRight],
		TopRight:    c.corners[CornerTopRight],
		TopLeft:     c.corners[CornerTopLeft],
	}
	if err := q.Validate(); err != nil {
		return Quad{}, err
	}
	return q, nil
}

// Apply stores the recorded quad in settings
func (c *Calibrator) Apply(settings *Settings) error {
	q, err := c.Result()
	if err != nil {
		return err
	}
	settings.WebcamCorners = q
	return nil
}
