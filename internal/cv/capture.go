package cv

import (
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrNoFrame is returned when an operation needs a frame that is not available yet
	ErrNoFrame = errors.New("no frame available")

	// ErrFrameSizeMismatch is returned when two frames that must match differ in size
	ErrFrameSizeMismatch = errors.New("frame size mismatch")

	// ErrWebcamUnavailable is returned when the binary was built without OpenCV support
	ErrWebcamUnavailable = errors.New("webcam capture requires building with -tags gocv")
)

// FrameSource produces a time-ordered sequence of RGBA frames
type FrameSource interface {
	CaptureFrame() (*image.RGBA, error)
	GetDimensions() (width, height int)
}

// CaptureMethod defines how frames are captured
type CaptureMethod int

const (
	// CaptureMethodWebcam reads from a video capture device
	CaptureMethodWebcam CaptureMethod = iota
	// CaptureMethodScreen grabs a display or a rectangle of it
	CaptureMethodScreen
	// CaptureMethodSequence replays a directory of still images
	CaptureMethodSequence
	// CaptureMethodQueue pops frames pushed in-process
	CaptureMethodQueue
)

// String returns the config name of the capture method
func (m CaptureMethod) String() string {
	switch m {
	case CaptureMethodWebcam:
		return "webcam"
	case CaptureMethodScreen:
		return "screen"
	case CaptureMethodSequence:
		return "sequence"
	case CaptureMethodQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// ParseCaptureMethod maps a config name back to a CaptureMethod
func ParseCaptureMethod(s string) (CaptureMethod, bool) {
	switch s {
	case "webcam", "camera":
		return CaptureMethodWebcam, true
	case "screen", "display":
		return CaptureMethodScreen, true
	case "sequence", "directory", "dir":
		return CaptureMethodSequence, true
	case "queue":
		return CaptureMethodQueue, true
	default:
		return CaptureMethodWebcam, false
	}
}

// CaptureConfig holds configuration for frame capture
type CaptureConfig struct {
	Method       CaptureMethod
	Device       int    // Webcam device index
	Display      int    // Screen capture display index
	SequenceDir  string // For sequence replay
	Loop         bool   // Restart the sequence when exhausted
	FPS          int    // Capture rate
	TargetWidth  int    // Detection resolution, 0 keeps the source size
	TargetHeight int
}

// DefaultCaptureConfig returns recommended capture configuration
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		Method:       CaptureMethodWebcam,
		FPS:          30,
		TargetWidth:  320,
		TargetHeight: 240,
	}
}

// FrameInterval returns the time between two captures at the configured rate
func (c *CaptureConfig) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return 33 * time.Millisecond
	}
	return time.Second / time.Duration(c.FPS)
}

// OpenSource creates the frame source the config names. Queue sources are
// created in-process with NewQueueSource instead.
func OpenSource(config *CaptureConfig) (FrameSource, error) {
	switch config.Method {
	case CaptureMethodWebcam:
		return NewWebcamSource(config.Device)
	case CaptureMethodScreen:
		return NewScreenSource(config.Display)
	case CaptureMethodSequence:
		return NewSequenceSource(config.SequenceDir, config.Loop)
	default:
		return nil, fmt.Errorf("capture method %s cannot be opened from config", config.Method)
	}
}
