//go:build gocv
// +build gocv

package cv

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// WebcamSource reads frames from a video capture device through OpenCV
type WebcamSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	width   int
	height  int
	mu      sync.Mutex
}

// NewWebcamSource opens the given capture device
func NewWebcamSource(device int) (FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("webcam %d did not open", device)
	}

	return &WebcamSource{
		capture: capture,
		mat:     gocv.NewMat(),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// CaptureFrame reads the next frame from the device
func (w *WebcamSource) CaptureFrame() (*image.RGBA, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ok := w.capture.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, ErrNoFrame
	}
	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert webcam frame: %w", err)
	}
	return ToRGBA(img), nil
}

// GetDimensions returns the device resolution
func (w *WebcamSource) GetDimensions() (width, height int) {
	return w.width, w.height
}

// Close releases the device
func (w *WebcamSource) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mat.Close()
	return w.capture.Close()
}
