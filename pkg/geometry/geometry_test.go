package geometry

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAngle3Degenerate(t *testing.T) {
	p := Point{X: 1, Y: 1, Z: 1}
	if got := Angle3(p, p, p); got != 0 {
		t.Errorf("Angle3(p,p,p) = %v, want 0", got)
	}
}

func TestAngle3RightAngle(t *testing.T) {
	a := Point{X: 0, Y: 1}
	b := Point{X: 0, Y: 0}
	c := Point{X: 1, Y: 0}
	got := Angle3(a, b, c)
	if !almostEqual(got, 90, 1e-9) {
		t.Errorf("Angle3 = %v, want 90", got)
	}
}

func TestAngle3Range(t *testing.T) {
	tests := []struct {
		a, b, c Point
	}{
		{Point{X: 0, Y: 1}, Point{}, Point{X: 1, Y: 0}},
		{Point{X: -1, Y: 0}, Point{}, Point{X: 1, Y: 0}},
		{Point{X: 1, Y: 0.001}, Point{}, Point{X: 1, Y: 0}},
	}
	for _, tt := range tests {
		got := Angle3(tt.a, tt.b, tt.c)
		if got < 0 || got > 180 {
			t.Errorf("Angle3(%v,%v,%v) = %v, want in [0,180]", tt.a, tt.b, tt.c, got)
		}
	}
}

func TestAngleWithVertical(t *testing.T) {
	from := Point{X: 0, Y: 1}
	cases := []struct {
		to   Point
		want float64
	}{
		{Point{X: 0, Y: 0}, 0},    // directly above (y decreases)
		{Point{X: 1, Y: 1}, 90},   // horizontal
		{Point{X: 0, Y: 2}, 180},  // directly below
	}
	for _, c := range cases {
		got := AngleWithVertical(from, c.to)
		if !almostEqual(got, c.want, 1e-6) {
			t.Errorf("AngleWithVertical(%v,%v) = %v, want %v", from, c.to, got, c.want)
		}
	}
}

func TestAngleWithHorizontalSign(t *testing.T) {
	p1 := Point{X: 0, Y: 1}
	rising := Point{X: 1, Y: 0} // y decreases -> rises
	falling := Point{X: 1, Y: 2}

	if got := AngleWithHorizontal(p1, rising); got <= 0 {
		t.Errorf("expected positive angle for rising point, got %v", got)
	}
	if got := AngleWithHorizontal(p1, falling); got >= 0 {
		t.Errorf("expected negative angle for falling point, got %v", got)
	}
}

func TestDistance3AndDistance2(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 3, Y: 4, Z: 12}
	if got := Distance3(a, b); !almostEqual(got, 13, 1e-9) {
		t.Errorf("Distance3 = %v, want 13", got)
	}
	if got := Distance2(a, b); !almostEqual(got, 5, 1e-9) {
		t.Errorf("Distance2 = %v, want 5", got)
	}
}

func TestMidpointAndLerp(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 10, Y: 10, Z: 10}
	mid := Midpoint(a, b)
	if mid.X != 5 || mid.Y != 5 || mid.Z != 5 {
		t.Errorf("Midpoint = %v, want (5,5,5)", mid)
	}
	l := Lerp(a, b, 0.4)
	if !almostEqual(l.X, 4, 1e-9) {
		t.Errorf("Lerp.X = %v, want 4", l.X)
	}
}

func TestCentroidEmpty(t *testing.T) {
	if got := Centroid(); got != (Point{}) {
		t.Errorf("Centroid() = %v, want zero point", got)
	}
}

func TestPointToLineDistanceDegenerate(t *testing.T) {
	point := Point{X: 1, Y: 1}
	lineA := Point{X: 0, Y: 0}
	lineB := Point{X: 0, Y: 0}
	got := PointToLineDistance(point, lineA, lineB)
	want := Distance3(point, lineA)
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("PointToLineDistance degenerate = %v, want %v", got, want)
	}
}

func TestCalculateTorsoRotationZeroWidth(t *testing.T) {
	lShoulder := Point{X: 0, Y: 0, Z: 0}
	rShoulder := Point{X: 0, Y: 0, Z: 0}
	lHip := Point{X: -1, Y: 1, Z: 0}
	rHip := Point{X: 1, Y: 1, Z: 0}
	if got := CalculateTorsoRotation(lShoulder, rShoulder, lHip, rHip); got != 0 {
		t.Errorf("CalculateTorsoRotation = %v, want 0 for zero-width shoulders", got)
	}
}

func TestSymmetryScoreProperties(t *testing.T) {
	if got := SymmetryScore(45, 45); got != 100 {
		t.Errorf("SymmetryScore(a,a) = %v, want 100", got)
	}
	if got1, got2 := SymmetryScore(10, 40), SymmetryScore(40, 10); got1 != got2 {
		t.Errorf("SymmetryScore not order independent: %v vs %v", got1, got2)
	}
	if got := SymmetryScore(0, 30); got != 0 {
		t.Errorf("SymmetryScore at 30 deg diff = %v, want 0", got)
	}
	if got := SymmetryScore(0, 60); got != 0 {
		t.Errorf("SymmetryScore beyond 30 deg diff = %v, want clamped 0", got)
	}
}

func TestIsValidKeypointDefaultThreshold(t *testing.T) {
	if IsValidKeypoint(0.49, 0) {
		t.Error("expected 0.49 to be invalid at default threshold")
	}
	if !IsValidKeypoint(0.5, 0) {
		t.Error("expected 0.5 to be valid at default threshold")
	}
}
