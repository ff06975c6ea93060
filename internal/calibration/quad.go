package calibration

import (
	"errors"
	"math"
)

// ErrDegenerateQuad is returned when a quad's corners do not span an area
var ErrDegenerateQuad = errors.New("calibration quad is degenerate")

const epsilon = 1e-9

// Vec2 is a 2D point or vector
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns v + o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Cross returns the z component of the 3D cross product
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }

// Distance returns the euclidean distance to o
func (v Vec2) Distance(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Equal compares both components within tol
func (v Vec2) Equal(o Vec2, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol
}

// Rotate turns v about center by degrees, counter-clockwise
func (v Vec2) Rotate(center Vec2, degrees float64) Vec2 {
	if degrees == 0 {
		return v
	}
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	d := v.Sub(center)
	return Vec2{
		X: center.X + d.X*cos - d.Y*sin,
		Y: center.Y + d.X*sin + d.Y*cos,
	}
}

// Quad is a calibration quadrilateral. Corners are named for the unit
// square position they map to: BottomLeft is (0,0), TopRight is (1,1).
type Quad struct {
	BottomLeft  Vec2 `json:"bottom_left" yaml:"bottom_left"`
	BottomRight Vec2 `json:"bottom_right" yaml:"bottom_right"`
	TopRight    Vec2 `json:"top_right" yaml:"top_right"`
	TopLeft     Vec2 `json:"top_left" yaml:"top_left"`
}

// UnitQuad covers the whole normalized webcam image
func UnitQuad() Quad {
	return Quad{
		BottomLeft:  Vec2{0, 0},
		BottomRight: Vec2{1, 0},
		TopRight:    Vec2{1, 1},
		TopLeft:     Vec2{0, 1},
	}
}

// RectQuad covers an axis-aligned w x h rectangle at the origin
func RectQuad(w, h float64) Quad {
	return Quad{
		BottomLeft:  Vec2{0, 0},
		BottomRight: Vec2{w, 0},
		TopRight:    Vec2{w, h},
		TopLeft:     Vec2{0, h},
	}
}

// Corners returns the corners in calibration order
func (q Quad) Corners() [4]Vec2 {
	return [4]Vec2{q.BottomLeft, q.BottomRight, q.TopRight, q.TopLeft}
}

// Area returns the signed shoelace area, positive for counter-clockwise corners
func (q Quad) Area() float64 {
	c := q.Corners()
	sum := 0.0
	for i := range c {
		sum += c[i].Cross(c[(i+1)%4])
	}
	return sum / 2
}

// Validate rejects quads that cannot be inverted
func (q Quad) Validate() error {
	if math.Abs(q.Area()) < epsilon {
		return ErrDegenerateQuad
	}
	return nil
}

// Bilinear maps unit square coordinates (s, t) into the quad
func (q Quad) Bilinear(s, t float64) Vec2 {
	bottom := q.BottomLeft.Scale(1 - s).Add(q.BottomRight.Scale(s))
	top := q.TopLeft.Scale(1 - s).Add(q.TopRight.Scale(s))
	return bottom.Scale(1 - t).Add(top.Scale(t))
}

// Inverse finds (s, t) with Bilinear(s, t) == p. ok is false when no
// solution exists; points outside the quad yield s or t outside [0,1].
func (q Quad) Inverse(p Vec2) (s, t float64, ok bool) {
	a := q.BottomLeft
	e := q.BottomRight.Sub(a)
	f := q.TopLeft.Sub(a)
	g := a.Sub(q.BottomRight).Add(q.TopRight).Sub(q.TopLeft)
	h := p.Sub(a)

	// p = a + e*s + f*t + g*s*t, eliminated to k2*t^2 + k1*t + k0 = 0
	k2 := g.Cross(f)
	k1 := e.Cross(f) + h.Cross(g)
	k0 := h.Cross(e)

	if math.Abs(k2) < epsilon {
		if math.Abs(k1) < epsilon {
			return 0, 0, false
		}
		t = -k0 / k1
		s, ok = solveS(e, f, g, h, t)
		return s, t, ok
	}

	disc := k1*k1 - 4*k0*k2
	if disc < 0 {
		return 0, 0, false
	}
	root := math.Sqrt(disc)

	// Numerically stable roots
	var t1, t2 float64
	if qq := -0.5 * (k1 + math.Copysign(root, k1)); math.Abs(qq) >= epsilon {
		t1 = qq / k2
		t2 = k0 / qq
	}
	s1, ok1 := solveS(e, f, g, h, t1)
	s2, ok2 := solveS(e, f, g, h, t2)

	switch {
	case ok1 && !ok2:
		return s1, t1, true
	case ok2 && !ok1:
		return s2, t2, true
	case !ok1 && !ok2:
		return 0, 0, false
	}

	// Both roots solve the system; keep the one nearest the unit square
	if outside(s1, t1) <= outside(s2, t2) {
		return s1, t1, true
	}
	return s2, t2, true
}

// solveS recovers s for a known t from whichever axis is better conditioned
func solveS(e, f, g, h Vec2, t float64) (float64, bool) {
	dx := e.X + g.X*t
	dy := e.Y + g.Y*t
	if math.Abs(dx) >= math.Abs(dy) {
		if math.Abs(dx) < epsilon {
			return 0, false
		}
		return (h.X - f.X*t) / dx, true
	}
	return (h.Y - f.Y*t) / dy, true
}

// outside measures how far (s, t) lies from the unit square
func outside(s, t float64) float64 {
	d := 0.0
	if s < 0 {
		d -= s
	} else if s > 1 {
		d += s - 1
	}
	if t < 0 {
		d -= t
	} else if t > 1 {
		d += t - 1
	}
	return d
}

// InUnitSquare reports whether (s, t) lies inside [0,1]² within tol
func InUnitSquare(s, t, tol float64) bool {
	return s >= -tol && s <= 1+tol && t >= -tol && t <= 1+tol
}
