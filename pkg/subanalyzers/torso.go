package subanalyzers

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
)

// TiltDirection names which side a frontal-plane tilt leans toward.
type TiltDirection string

const (
	TiltNone  TiltDirection = "none"
	TiltLeft  TiltDirection = "left"
	TiltRight TiltDirection = "right"
)

// TorsoRotationResult is the output of AnalyzeTorsoRotation.
type TorsoRotationResult struct {
	TransverseRotation float64
	FrontalTiltAngle   float64
	FrontalDirection   TiltDirection
	CompoundScore      float64
	Feedback           score.FeedbackItem
	Valid              bool
}

// AnalyzeTorsoRotation combines transverse-plane rotation (shoulder line vs
// hip line, XZ projection) with frontal-plane tilt (shoulder height
// asymmetry normalized by shoulder width) into a single compound score.
// liftPhaseActive escalates the emitted feedback's severity by one level
// (e.g. warning -> error) since rotation under load is a higher-risk
// deviation than rotation while unloaded.
func AnalyzeTorsoRotation(f landmark.Frame, acceptableTransverse, acceptableFrontal float64, liftPhaseActive bool) TorsoRotationResult {
	required := []landmark.Index{
		landmark.LeftShoulder, landmark.RightShoulder,
		landmark.LeftHip, landmark.RightHip,
	}
	if !f.AllValid(required...) {
		return TorsoRotationResult{Feedback: invalidFeedback("torso_rotation")}
	}

	toPoint := func(idx landmark.Index) geometry.Point {
		kp := f.At(idx)
		return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
	}

	lShoulder := toPoint(landmark.LeftShoulder)
	rShoulder := toPoint(landmark.RightShoulder)
	lHip := toPoint(landmark.LeftHip)
	rHip := toPoint(landmark.RightHip)

	transverse := geometry.CalculateTorsoRotation(lShoulder, rShoulder, lHip, rHip)

	shoulderWidth := geometry.Distance2(lShoulder, rShoulder)
	var frontalAngle float64
	direction := TiltNone
	if shoulderWidth > 0 {
		heightDiff := rShoulder.Y - lShoulder.Y
		ratio := heightDiff / shoulderWidth
		frontalAngle = math.Atan(ratio) * 180 / math.Pi
		switch {
		case frontalAngle > 1:
			direction = TiltRight // right shoulder lower
		case frontalAngle < -1:
			direction = TiltLeft
		}
	}

	if acceptableTransverse <= 0 {
		acceptableTransverse = 20
	}
	if acceptableFrontal <= 0 {
		acceptableFrontal = 10
	}

	transverseExcess := math.Max(0, transverse-acceptableTransverse)
	frontalExcess := math.Max(0, math.Abs(frontalAngle)-acceptableFrontal)

	compound := 100 - (0.6*transverseExcess + 0.4*frontalExcess)
	compound = clamp01to100(compound)

	level := score.ClassifyLevel(compound)
	if liftPhaseActive {
		level = escalate(level)
	}

	return TorsoRotationResult{
		TransverseRotation: transverse,
		FrontalTiltAngle:   frontalAngle,
		FrontalDirection:   direction,
		CompoundScore:      compound,
		Valid:              true,
		Feedback: score.FeedbackItem{
			Name:       "torso_rotation",
			Level:      level,
			Value:      compound,
			Ideal:      [2]float64{90, 100},
			Acceptable: [2]float64{70, 100},
			Correction: score.CorrectionStraighten,
			Message:    "torso_rotation",
		},
	}
}

func clamp01to100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// escalate bumps a feedback level up by one severity step, never past error.
func escalate(l score.Level) score.Level {
	switch l {
	case score.LevelGood:
		return score.LevelWarning
	case score.LevelWarning:
		return score.LevelError
	default:
		return score.LevelError
	}
}
