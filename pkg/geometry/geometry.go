// Package geometry implements the pure 3D vector math the analyzers are
// built on: angles, distances, projections, and the symmetry score. Every
// function tolerates a missing z by treating it as 0 (implicit 2D
// projection), and every acos input is clamped to [-1,1] before use.
package geometry

import "math"

// Vec3 is a free 3D vector (no point semantics — used for differences,
// directions, and cross products).
type Vec3 struct {
	X, Y, Z float64
}

// Point is a position in 3D space. It shares Vec3's layout so the two
// convert freely, but is kept distinct to document intent at call sites.
type Point struct {
	X, Y, Z float64
}

// Sub returns b - a as a free vector.
func Sub(a, b Point) Vec3 {
	return Vec3{X: b.X - a.X, Y: b.Y - a.Y, Z: b.Z - a.Z}
}

// Magnitude returns the Euclidean length of v.
func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dot returns the dot product of u and v.
func Dot(u, v Vec3) float64 {
	return u.X*v.X + u.Y*v.Y + u.Z*v.Z
}

// Cross returns the cross product of u and v.
func Cross(u, v Vec3) Vec3 {
	return Vec3{
		X: u.Y*v.Z - u.Z*v.Y,
		Y: u.Z*v.X - u.X*v.Z,
		Z: u.X*v.Y - u.Y*v.X,
	}
}

// clampUnit clamps x to [-1,1] so it is always a valid acos input.
func clampUnit(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}

const radToDeg = 180.0 / math.Pi

// Angle3 returns the angle at b, in degrees, formed by rays b->a and b->c.
// Returns 0 when either ray has zero magnitude (degenerate geometry, per
// spec §7 — callers treat this as PoseUnrecognized if it afflicts a
// required measurement).
func Angle3(a, b, c Point) float64 {
	u := Sub(b, a)
	v := Sub(b, c)
	um, vm := u.Magnitude(), v.Magnitude()
	if um == 0 || vm == 0 {
		return 0
	}
	cosTheta := clampUnit(Dot(u, v) / (um * vm))
	return math.Acos(cosTheta) * radToDeg
}

// AngleWithVertical returns the angle, in degrees, between the vector
// from->to and the "up" direction (negative-y, since y grows downward in
// image coordinates). A point directly above from returns 0; a horizontal
// vector returns 90; a point directly below returns 180.
func AngleWithVertical(from, to Point) float64 {
	v := Sub(from, to)
	up := Vec3{X: 0, Y: -1, Z: 0}
	vm := v.Magnitude()
	if vm == 0 {
		return 0
	}
	cosTheta := clampUnit(Dot(v, up) / vm)
	return math.Acos(cosTheta) * radToDeg
}

// AngleWithHorizontal returns a signed angle, in degrees, positive when p2
// rises above p1 (y decreases) and negative when it falls.
func AngleWithHorizontal(p1, p2 Point) float64 {
	dx := p2.X - p1.X
	rise := p1.Y - p2.Y // y grows downward, so "rise" is the negated delta
	if dx == 0 && rise == 0 {
		return 0
	}
	return math.Atan2(rise, math.Abs(dx)) * radToDeg
}

// Distance3 returns the 3D Euclidean distance between a and b.
func Distance3(a, b Point) float64 {
	return Sub(a, b).Magnitude()
}

// Distance2 returns the Euclidean distance between a and b, ignoring z.
func Distance2(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Hypot(dx, dy)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}

// Lerp returns the point a fraction t of the way from a to b (t=0 -> a,
// t=1 -> b), used for points like the deadlift's mid-spine reference.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// Centroid returns the average of the given points. Returns the zero point
// for an empty input.
func Centroid(points ...Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sum Point
	for _, p := range points {
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(len(points))
	return Point{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// ProjectXY projects p onto the XY plane (drops z).
func ProjectXY(p Point) Point { return Point{X: p.X, Y: p.Y} }

// ProjectXZ projects p onto the XZ plane (drops y).
func ProjectXZ(p Point) Point { return Point{X: p.X, Z: p.Z} }

// ProjectYZ projects p onto the YZ plane (drops x).
func ProjectYZ(p Point) Point { return Point{Y: p.Y, Z: p.Z} }

// AngleBetweenSegments treats (a1,a2) and (b1,b2) as free vectors and
// returns the acute-or-obtuse angle between them, in degrees.
func AngleBetweenSegments(a1, a2, b1, b2 Point) float64 {
	u := Sub(a1, a2)
	v := Sub(b1, b2)
	um, vm := u.Magnitude(), v.Magnitude()
	if um == 0 || vm == 0 {
		return 0
	}
	cosTheta := clampUnit(Dot(u, v) / (um * vm))
	return math.Acos(cosTheta) * radToDeg
}

// PointToLineDistance returns the 3D distance from point to the infinite
// line through lineA and lineB. Degenerates to Distance3(point, lineA) when
// the line collapses to a single point.
func PointToLineDistance(point, lineA, lineB Point) float64 {
	line := Sub(lineA, lineB)
	lineLen := line.Magnitude()
	if lineLen == 0 {
		return Distance3(point, lineA)
	}
	toPoint := Sub(lineA, point)
	return Cross(line, toPoint).Magnitude() / lineLen
}

// CalculateTorsoRotation returns the angle, in degrees, between the
// shoulder line's XZ projection and the hip line's XZ projection. Returns
// 0 when either pair has zero width.
func CalculateTorsoRotation(lShoulder, rShoulder, lHip, rHip Point) float64 {
	shoulderVec := Vec3{X: rShoulder.X - lShoulder.X, Z: rShoulder.Z - lShoulder.Z}
	hipVec := Vec3{X: rHip.X - lHip.X, Z: rHip.Z - lHip.Z}
	sm, hm := shoulderVec.Magnitude(), hipVec.Magnitude()
	if sm == 0 || hm == 0 {
		return 0
	}
	cosTheta := clampUnit(Dot(shoulderVec, hipVec) / (sm * hm))
	return math.Acos(cosTheta) * radToDeg
}

// IsValidKeypoint reports whether a keypoint's score meets minScore.
// minScore <= 0 defaults to 0.5.
func IsValidKeypoint(score float64, minScore float64) bool {
	if minScore <= 0 {
		minScore = 0.5
	}
	return score >= minScore
}

// SymmetryScore returns 100 when left == right, decreasing linearly to 0 at
// a 30-degree difference (clamped below that). Order-independent.
func SymmetryScore(left, right float64) float64 {
	diff := math.Abs(left - right)
	const maxDiff = 30.0
	score := 100 * (1 - diff/maxDiff)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
