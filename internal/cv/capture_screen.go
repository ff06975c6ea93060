package cv

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenSource grabs a display (or part of it) as the frame feed
type ScreenSource struct {
	rect image.Rectangle
}

// NewScreenSource captures the whole of the given display
func NewScreenSource(display int) (*ScreenSource, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range (0-%d)", display, n-1)
	}
	return &ScreenSource{rect: screenshot.GetDisplayBounds(display)}, nil
}

// NewScreenRegionSource captures a fixed rectangle in virtual screen coordinates
func NewScreenRegionSource(region Region) (*ScreenSource, error) {
	if region.Width() <= 0 || region.Height() <= 0 {
		return nil, fmt.Errorf("invalid capture region %v", region)
	}
	return &ScreenSource{rect: *region.ToImageRectangle()}, nil
}

// CaptureFrame grabs the configured rectangle
func (s *ScreenSource) CaptureFrame() (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return ToRGBA(img), nil
}

// GetDimensions returns the capture rectangle size
func (s *ScreenSource) GetDimensions() (width, height int) {
	return s.rect.Dx(), s.rect.Dy()
}
