package subanalyzers

import (
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
)

// NeckFlexionState classifies the sagittal direction of neck bend.
type NeckFlexionState string

const (
	NeckNeutral   NeckFlexionState = "neutral"
	NeckFlexion   NeckFlexionState = "flexion"
	NeckExtension NeckFlexionState = "extension"
)

// NeckBands holds the exercise-specific ideal/acceptable bands for neck
// feedback. Every exercise that composes the neck analyzer supplies its own.
type NeckBands struct {
	Angle            score.Band
	ForwardPosture   score.Band
}

// NeckResult is the output of AnalyzeNeck.
type NeckResult struct {
	Angle            float64
	ForwardDisplacement float64
	Flexion          NeckFlexionState
	Feedback         score.FeedbackItem
	Valid            bool
}

// AnalyzeNeck computes neck angle relative to the spine axis (hip-center to
// shoulder-center) and forward-posture displacement of the head from that
// axis, classified against the caller's bands.
func AnalyzeNeck(f landmark.Frame, bands NeckBands) NeckResult {
	required := []landmark.Index{
		landmark.LeftShoulder, landmark.RightShoulder,
		landmark.LeftHip, landmark.RightHip,
		landmark.LeftEar, landmark.RightEar,
	}
	if !f.AllValid(required...) {
		return NeckResult{Feedback: invalidFeedback("neck")}
	}

	toPoint := func(idx landmark.Index) geometry.Point {
		kp := f.At(idx)
		return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
	}

	shoulderMid := geometry.Midpoint(toPoint(landmark.LeftShoulder), toPoint(landmark.RightShoulder))
	hipMid := geometry.Midpoint(toPoint(landmark.LeftHip), toPoint(landmark.RightHip))
	earMid := geometry.Midpoint(toPoint(landmark.LeftEar), toPoint(landmark.RightEar))

	// Angle at the shoulder between the spine (toward hip) and the neck
	// (toward the head); a perfectly upright, aligned neck reads near 180.
	rawAngle := geometry.Angle3(hipMid, shoulderMid, earMid)
	neckAngle := 180 - rawAngle

	torsoLength := geometry.Distance3(shoulderMid, hipMid)
	forward := 0.0
	if torsoLength > 0 {
		forward = (earMid.X - shoulderMid.X) / torsoLength * 100
	}

	flexion := NeckNeutral
	switch {
	case neckAngle > 15:
		flexion = NeckFlexion
	case neckAngle < -15:
		flexion = NeckExtension
	}

	itemScore := score.ItemScore(neckAngle, bands.Angle)
	level := score.ClassifyLevel(itemScore)
	correction := score.CorrectionNone
	if flexion == NeckFlexion {
		correction = score.CorrectionUp
	} else if flexion == NeckExtension {
		correction = score.CorrectionDown
	}

	return NeckResult{
		Angle:               neckAngle,
		ForwardDisplacement: forward,
		Flexion:             flexion,
		Valid:               true,
		Feedback: score.FeedbackItem{
			Name:       "neck_alignment",
			Level:      level,
			Value:      neckAngle,
			Ideal:      [2]float64{bands.Angle.IdealMin, bands.Angle.IdealMax},
			Acceptable: [2]float64{bands.Angle.AcceptableMin, bands.Angle.AcceptableMax},
			Correction: correction,
			Message:    "neck_alignment",
		},
	}
}

// invalidFeedback builds the degraded, warning-level feedback item emitted
// on every channel when a required measurement's inputs are invalid
// (spec §3, §7 PoseUnrecognized).
func invalidFeedback(name string) score.FeedbackItem {
	return score.FeedbackItem{
		Name:       name,
		Level:      score.LevelWarning,
		Correction: score.CorrectionNone,
		Message:    name + "_invalid",
	}
}
