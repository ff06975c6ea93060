package calibration

import "fmt"

// boundsTolerance absorbs rounding at the calibrated area's edges
const boundsTolerance = 1e-9

var center = Vec2{0.5, 0.5}

// Mapper converts between normalized webcam, screen pixel and world
// coordinates. All three spaces have their origin at the bottom-left.
// A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	offset     Vec2
	rotation   float64
	zoom       float64
	flipH      bool
	flipV      bool
	webcam     Quad
	screen     Quad
	width      float64
	height     float64
	world      World
	halfWidth  float64
	halfHeight float64
}

// NewMapper builds a mapper from validated settings
func NewMapper(settings *Settings) (*Mapper, error) {
	if err := settings.WebcamCorners.Validate(); err != nil {
		return nil, fmt.Errorf("webcam corners: %w", err)
	}
	if settings.ScreenWidth <= 0 || settings.ScreenHeight <= 0 {
		return nil, fmt.Errorf("screen size %dx%d must be positive", settings.ScreenWidth, settings.ScreenHeight)
	}
	if settings.Zoom <= 0 {
		return nil, fmt.Errorf("zoom must be positive, got %.3f", settings.Zoom)
	}

	w := float64(settings.ScreenWidth)
	h := float64(settings.ScreenHeight)
	ortho := settings.World.OrthoSize
	if ortho <= 0 {
		ortho = DefaultSettings().World.OrthoSize
	}

	return &Mapper{
		offset:     Vec2{settings.CameraOffset.X, settings.CameraOffset.Y},
		rotation:   settings.Rotation,
		zoom:       settings.Zoom,
		flipH:      settings.FlipHorizontal,
		flipV:      settings.FlipVertical,
		webcam:     settings.WebcamCorners,
		screen:     RectQuad(w, h),
		width:      w,
		height:     h,
		world:      settings.World,
		halfWidth:  ortho * w / h,
		halfHeight: ortho,
	}, nil
}

// Prepare applies flips, rotation, zoom and the camera offset to a raw
// normalized webcam point, in that order
func (m *Mapper) Prepare(p Vec2) Vec2 {
	if m.flipH {
		p.X = 1 - p.X
	}
	if m.flipV {
		p.Y = 1 - p.Y
	}
	p = p.Rotate(center, m.rotation)
	p = center.Add(p.Sub(center).Scale(m.zoom))
	return p.Add(m.offset)
}

// Unprepare undoes Prepare
func (m *Mapper) Unprepare(p Vec2) Vec2 {
	p = p.Sub(m.offset)
	p = center.Add(p.Sub(center).Scale(1 / m.zoom))
	p = p.Rotate(center, -m.rotation)
	if m.flipV {
		p.Y = 1 - p.Y
	}
	if m.flipH {
		p.X = 1 - p.X
	}
	return p
}

// WebcamToScreen maps a raw normalized webcam point to screen pixels. The
// bool reports whether the point lies inside the calibrated area; points
// outside are extrapolated.
func (m *Mapper) WebcamToScreen(p Vec2) (Vec2, bool) {
	s, t, ok := m.webcam.Inverse(m.Prepare(p))
	if !ok {
		return Vec2{}, false
	}
	return m.screen.Bilinear(s, t), InUnitSquare(s, t, boundsTolerance)
}

// ScreenToWebcam maps screen pixels back to a raw normalized webcam point
func (m *Mapper) ScreenToWebcam(p Vec2) (Vec2, bool) {
	s := p.X / m.width
	t := p.Y / m.height
	return m.Unprepare(m.webcam.Bilinear(s, t)), InUnitSquare(s, t, boundsTolerance)
}

// ScreenToWorld projects screen pixels through the orthographic camera
func (m *Mapper) ScreenToWorld(p Vec2) Vec2 {
	return Vec2{
		X: m.world.Center.X + (2*p.X/m.width-1)*m.halfWidth,
		Y: m.world.Center.Y + (2*p.Y/m.height-1)*m.halfHeight,
	}
}

// WorldToScreen is the inverse of ScreenToWorld
func (m *Mapper) WorldToScreen(p Vec2) Vec2 {
	return Vec2{
		X: ((p.X-m.world.Center.X)/m.halfWidth + 1) * m.width / 2,
		Y: ((p.Y-m.world.Center.Y)/m.halfHeight + 1) * m.height / 2,
	}
}

// WebcamToWorld maps a raw normalized webcam point straight to world space
func (m *Mapper) WebcamToWorld(p Vec2) (Vec2, bool) {
	screen, inside := m.WebcamToScreen(p)
	return m.ScreenToWorld(screen), inside
}

// ScreenSize returns the screen dimensions in pixels
func (m *Mapper) ScreenSize() (width, height float64) {
	return m.width, m.height
}
