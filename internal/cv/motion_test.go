package cv

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

// solidFrame returns a w x h frame filled with c
func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// paintRect fills rect on a copy of img
func paintRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out.SetRGBA(x, y, c)
		}
	}
	return out
}

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
	grey  = color.RGBA{128, 128, 128, 255}
)

func TestDiffFramesIdenticalFrames(t *testing.T) {
	frame := solidFrame(40, 30, grey)

	mask, err := DiffFrames(frame, frame, DefaultMotionConfig())
	if err != nil {
		t.Fatalf("DiffFrames failed: %v", err)
	}

	if mask.Count != 0 {
		t.Errorf("Expected no motion, got %d cells", mask.Count)
	}
	if mask.Width != 20 || mask.Height != 15 {
		t.Errorf("Expected 20x15 cells, got %dx%d", mask.Width, mask.Height)
	}
}

func TestDiffFramesMarksChangedArea(t *testing.T) {
	prev := solidFrame(40, 40, black)
	curr := paintRect(prev, image.Rect(10, 10, 20, 20), white)

	mask, err := DiffFrames(prev, curr, &MotionConfig{Threshold: 0.5, SampleStep: 2})
	if err != nil {
		t.Fatalf("DiffFrames failed: %v", err)
	}

	// Pixels 10..19 sampled every 2nd pixel -> cells 5..9 on both axes
	if mask.Count != 25 {
		t.Errorf("Expected 25 motion cells, got %d", mask.Count)
	}
	if !mask.At(5, 5) || !mask.At(9, 9) {
		t.Error("Expected corners of the painted square to be motion")
	}
	if mask.At(4, 5) || mask.At(10, 10) {
		t.Error("Expected cells outside the square to be still")
	}
	if mask.Level(5, 5) != 255 {
		t.Errorf("Expected level 255 for a white cell, got %d", mask.Level(5, 5))
	}
}

func TestDiffFramesThreshold(t *testing.T) {
	prev := solidFrame(10, 10, black)
	// Delta of 60 per channel -> 60/255 ~= 0.235
	curr := solidFrame(10, 10, color.RGBA{60, 60, 60, 255})

	tests := []struct {
		name      string
		threshold float64
		wantCount int
	}{
		{"below delta", 0.2, 25},
		{"above delta", 0.3, 0},
		{"zero threshold", 0, 25},
		{"full threshold", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := DiffFrames(prev, curr, &MotionConfig{Threshold: tt.threshold, SampleStep: 2})
			if err != nil {
				t.Fatalf("DiffFrames failed: %v", err)
			}
			if mask.Count != tt.wantCount {
				t.Errorf("Expected %d motion cells, got %d", tt.wantCount, mask.Count)
			}
		})
	}
}

func TestDiffFramesSizeMismatch(t *testing.T) {
	_, err := DiffFrames(solidFrame(10, 10, black), solidFrame(12, 10, black), nil)
	if !errors.Is(err, ErrFrameSizeMismatch) {
		t.Errorf("Expected ErrFrameSizeMismatch, got %v", err)
	}

	_, err = DiffFrames(nil, solidFrame(10, 10, black), nil)
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}
}

func TestDiffFramesRegion(t *testing.T) {
	prev := solidFrame(40, 40, black)
	curr := solidFrame(40, 40, white)

	region := NewRegion(0, 0, 20, 10)
	mask, err := DiffFrames(prev, curr, &MotionConfig{Threshold: 0.5, SampleStep: 2, Region: &region})
	if err != nil {
		t.Fatalf("DiffFrames failed: %v", err)
	}

	// 10 cells across, 5 rows down
	if mask.Count != 50 {
		t.Errorf("Expected 50 motion cells inside the region, got %d", mask.Count)
	}
	if mask.At(10, 0) || mask.At(0, 5) {
		t.Error("Expected cells outside the region to be still")
	}
}

func TestDiffFramesParallelMatchesSerial(t *testing.T) {
	prev := solidFrame(160, 120, black)
	curr := paintRect(prev, image.Rect(30, 20, 90, 100), white)
	curr = paintRect(curr, image.Rect(120, 5, 150, 40), grey)

	serial, err := DiffFrames(prev, curr, &MotionConfig{Threshold: 0.1, SampleStep: 2, Workers: 1})
	if err != nil {
		t.Fatalf("serial DiffFrames failed: %v", err)
	}
	parallel, err := DiffFrames(prev, curr, &MotionConfig{Threshold: 0.1, SampleStep: 2, Workers: 4})
	if err != nil {
		t.Fatalf("parallel DiffFrames failed: %v", err)
	}

	if serial.Count != parallel.Count {
		t.Fatalf("Count differs: serial %d, parallel %d", serial.Count, parallel.Count)
	}
	for y := 0; y < serial.Height; y++ {
		for x := 0; x < serial.Width; x++ {
			if serial.At(x, y) != parallel.At(x, y) || serial.Level(x, y) != parallel.Level(x, y) {
				t.Fatalf("Cell (%d,%d) differs between serial and parallel", x, y)
			}
		}
	}
}

func TestMotionMaskOddSize(t *testing.T) {
	mask := NewMotionMask(5, 3, 2)
	if mask.Width != 3 || mask.Height != 2 {
		t.Errorf("Expected 3x2 cells for a 5x3 frame, got %dx%d", mask.Width, mask.Height)
	}

	mask.Set(2, 1, 10)
	mask.Set(2, 1, 20)
	if mask.Count != 1 {
		t.Errorf("Setting the same cell twice should count once, got %d", mask.Count)
	}
	if mask.At(-1, 0) || mask.At(3, 0) {
		t.Error("Out of range cells should read as still")
	}
}
