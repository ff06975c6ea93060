package cv

import (
	"fmt"
	"image"

	"github.com/remeh/sizedwaitgroup"
)

// MotionConfig configures frame differencing
type MotionConfig struct {
	Threshold  float64 // 0.0-1.0, normalized RGB delta a cell must exceed
	SampleStep int     // Sample every Nth pixel in both axes
	Region     *Region // Optional: limit sampling to a frame region
	Workers    int     // Row bands processed concurrently, <= 1 is serial
}

// DefaultMotionConfig returns recommended settings
func DefaultMotionConfig() *MotionConfig {
	return &MotionConfig{
		Threshold:  0.1,
		SampleStep: 2,
		Workers:    1,
	}
}

// MotionMask is the binary result of differencing two frames, one cell per sampled pixel
type MotionMask struct {
	Width       int // Cells per row
	Height      int // Cell rows
	Step        int // Frame pixels between cells
	FrameWidth  int
	FrameHeight int
	Count       int // Number of motion cells

	bits   []bool
	levels []uint8
}

// NewMotionMask allocates an empty mask covering a frame of the given size
func NewMotionMask(frameWidth, frameHeight, step int) *MotionMask {
	if step < 1 {
		step = 1
	}
	w := (frameWidth + step - 1) / step
	h := (frameHeight + step - 1) / step
	return &MotionMask{
		Width:       w,
		Height:      h,
		Step:        step,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
		bits:        make([]bool, w*h),
		levels:      make([]uint8, w*h),
	}
}

// At reports whether cell (x, y) saw motion
func (m *MotionMask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Level returns the mean channel value of the current frame at a motion cell
func (m *MotionMask) Level(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.levels[y*m.Width+x]
}

// Set marks cell (x, y) as motion with the given level
func (m *MotionMask) Set(x, y int, level uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	idx := y*m.Width + x
	if !m.bits[idx] {
		m.Count++
	}
	m.bits[idx] = true
	m.levels[idx] = level
}

// Fraction returns the share of cells that saw motion
func (m *MotionMask) Fraction() float64 {
	if len(m.bits) == 0 {
		return 0
	}
	return float64(m.Count) / float64(len(m.bits))
}

// DiffFrames compares two frames and marks every sampled pixel whose
// normalized RGB delta exceeds the threshold
func DiffFrames(prev, curr *image.RGBA, config *MotionConfig) (*MotionMask, error) {
	if prev == nil || curr == nil {
		return nil, ErrNoFrame
	}
	if config == nil {
		config = DefaultMotionConfig()
	}

	pb, cb := prev.Bounds(), curr.Bounds()
	if pb.Dx() != cb.Dx() || pb.Dy() != cb.Dy() {
		return nil, fmt.Errorf("previous %dx%d, current %dx%d: %w", pb.Dx(), pb.Dy(), cb.Dx(), cb.Dy(), ErrFrameSizeMismatch)
	}

	mask := NewMotionMask(cb.Dx(), cb.Dy(), config.SampleStep)

	// Cells outside the region stay empty
	rows := image.Rect(0, 0, mask.Width, mask.Height)
	if config.Region != nil {
		rows = regionCells(*config.Region, mask)
		if rows.Empty() {
			return mask, nil
		}
	}

	// Delta is compared as an integer sum to avoid a float per cell
	limit := int(config.Threshold * 3 * 255)

	counts := make([]int, mask.Height)
	diffRows := func(y0, y1 int) {
		for cy := y0; cy < y1; cy++ {
			py := cy * mask.Step
			n := 0
			for cx := rows.Min.X; cx < rows.Max.X; cx++ {
				px := cx * mask.Step
				pi := py*prev.Stride + px*4
				ci := py*curr.Stride + px*4

				r := int(curr.Pix[ci])
				g := int(curr.Pix[ci+1])
				b := int(curr.Pix[ci+2])
				delta := abs(r-int(prev.Pix[pi])) + abs(g-int(prev.Pix[pi+1])) + abs(b-int(prev.Pix[pi+2]))
				if delta > limit {
					idx := cy*mask.Width + cx
					mask.bits[idx] = true
					mask.levels[idx] = uint8((r + g + b) / 3)
					n++
				}
			}
			counts[cy] = n
		}
	}

	bands := config.Workers
	if bands <= 1 || rows.Dy() < bands*4 {
		diffRows(rows.Min.Y, rows.Max.Y)
	} else {
		// Bands write disjoint rows, so no locking is needed
		wg := sizedwaitgroup.New(bands)
		per := (rows.Dy() + bands - 1) / bands
		for y0 := rows.Min.Y; y0 < rows.Max.Y; y0 += per {
			y1 := y0 + per
			if y1 > rows.Max.Y {
				y1 = rows.Max.Y
			}
			wg.Add()
			go func(y0, y1 int) {
				defer wg.Done()
				diffRows(y0, y1)
			}(y0, y1)
		}
		wg.Wait()
	}

	for _, n := range counts {
		mask.Count += n
	}
	return mask, nil
}

// regionCells converts a frame-pixel region into the cell rectangle it covers
func regionCells(r Region, mask *MotionMask) image.Rectangle {
	frame := image.Rect(0, 0, mask.FrameWidth, mask.FrameHeight)
	px := image.Rect(r.X1, r.Y1, r.X2, r.Y2).Intersect(frame)
	if px.Empty() {
		return image.Rectangle{}
	}
	step := mask.Step
	return image.Rect(
		(px.Min.X+step-1)/step,
		(px.Min.Y+step-1)/step,
		(px.Max.X+step-1)/step,
		(px.Max.Y+step-1)/step,
	).Intersect(image.Rect(0, 0, mask.Width, mask.Height))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
