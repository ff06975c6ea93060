//go:build !gocv
// +build !gocv

package cv

import "fmt"

// NewWebcamSource always fails without the gocv build tag
func NewWebcamSource(device int) (FrameSource, error) {
	return nil, fmt.Errorf("webcam %d: %w", device, ErrWebcamUnavailable)
}
