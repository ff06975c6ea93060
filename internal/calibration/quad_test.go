package calibration

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) <= tol
}

func TestQuadInverseUnitSquare(t *testing.T) {
	s, tt, ok := UnitQuad().Inverse(Vec2{0.3, 0.7})
	if !ok {
		t.Fatal("Expected unit quad to invert")
	}
	if !near(s, 0.3) || !near(tt, 0.7) {
		t.Errorf("Expected (0.3, 0.7), got (%.6f, %.6f)", s, tt)
	}
}

func TestQuadInverseRoundTrip(t *testing.T) {
	quads := map[string]Quad{
		"trapezoid": {
			BottomLeft:  Vec2{0.1, 0.1},
			BottomRight: Vec2{0.9, 0.2},
			TopRight:    Vec2{0.8, 0.9},
			TopLeft:     Vec2{0.2, 0.8},
		},
		"parallelogram": {
			BottomLeft:  Vec2{0, 0},
			BottomRight: Vec2{2, 0},
			TopRight:    Vec2{3, 1},
			TopLeft:     Vec2{1, 1},
		},
		"clockwise": {
			BottomLeft:  Vec2{0.9, 0.9},
			BottomRight: Vec2{0.1, 0.85},
			TopRight:    Vec2{0.15, 0.1},
			TopLeft:     Vec2{0.95, 0.05},
		},
	}

	for name, q := range quads {
		for _, s := range []float64{0, 0.25, 0.5, 0.9, 1} {
			for _, tt := range []float64{0, 0.1, 0.5, 0.75, 1} {
				p := q.Bilinear(s, tt)
				gotS, gotT, ok := q.Inverse(p)
				if !ok {
					t.Errorf("%s: Inverse(%v) failed for (%.2f, %.2f)", name, p, s, tt)
					continue
				}
				if !near(gotS, s) || !near(gotT, tt) {
					t.Errorf("%s: expected (%.2f, %.2f), got (%.6f, %.6f)", name, s, tt, gotS, gotT)
				}
			}
		}
	}
}

func TestQuadInverseOutside(t *testing.T) {
	q := RectQuad(2, 1)
	s, tt, ok := q.Inverse(Vec2{3, 0.5})
	if !ok {
		t.Fatal("Expected extrapolation outside the quad")
	}
	if !near(s, 1.5) || !near(tt, 0.5) {
		t.Errorf("Expected (1.5, 0.5), got (%.6f, %.6f)", s, tt)
	}
	if InUnitSquare(s, tt, 0) {
		t.Error("Expected point to be reported outside the unit square")
	}
}

func TestQuadDegenerate(t *testing.T) {
	q := Quad{
		BottomLeft:  Vec2{0.5, 0.5},
		BottomRight: Vec2{0.5, 0.5},
		TopRight:    Vec2{0.5, 0.5},
		TopLeft:     Vec2{0.5, 0.5},
	}
	if err := q.Validate(); !errors.Is(err, ErrDegenerateQuad) {
		t.Errorf("Expected ErrDegenerateQuad, got %v", err)
	}
	if _, _, ok := q.Inverse(Vec2{0.5, 0.5}); ok {
		t.Error("Expected a collapsed quad not to invert")
	}

	line := Quad{
		BottomLeft:  Vec2{0, 0},
		BottomRight: Vec2{1, 0},
		TopRight:    Vec2{2, 0},
		TopLeft:     Vec2{3, 0},
	}
	if err := line.Validate(); err == nil {
		t.Error("Expected collinear corners to be rejected")
	}
}

func TestQuadArea(t *testing.T) {
	if got := RectQuad(4, 3).Area(); !near(got, 12) {
		t.Errorf("Expected area 12, got %.6f", got)
	}
}

func TestVec2Rotate(t *testing.T) {
	got := Vec2{1, 0.5}.Rotate(Vec2{0.5, 0.5}, 90)
	if !got.Equal(Vec2{0.5, 1}, tol) {
		t.Errorf("Expected (0.5, 1), got %v", got)
	}
}
