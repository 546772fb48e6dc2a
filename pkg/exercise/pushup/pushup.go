// Package pushup implements the pushup exercise analyzer (spec §4.6.4):
// elbow, body-alignment, hip-sag, depth-percent, and elbow-valgus angles
// composed into an up/descending/bottom/ascending phase state machine.
package pushup

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
)

// Phase is the pushup-specific stage of a repetition.
type Phase string

const (
	PhaseUp         Phase = "up"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

// Generic maps a pushup Phase onto the rep-segmenter's generic quadruple.
func (p Phase) Generic() exercise.GenericPhase {
	switch p {
	case PhaseDescending:
		return exercise.GenericDescending
	case PhaseBottom:
		return exercise.GenericBottom
	case PhaseAscending:
		return exercise.GenericAscending
	default:
		return exercise.GenericStanding
	}
}

const (
	upThreshold     = 150.0
	bottomThreshold = 100.0
)

const (
	chanLeftElbow  smoothing.Channel = "left_elbow"
	chanRightElbow smoothing.Channel = "right_elbow"
)

var (
	elbowBand         = score.Band{IdealMin: 80, IdealMax: 100, AcceptableMin: 70, AcceptableMax: 110}
	bodyAlignmentBand = score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20}
	hipPositionBand   = score.Band{IdealMin: 0, IdealMax: 8, AcceptableMin: 0, AcceptableMax: 15}
	depthBand         = score.Band{IdealMin: 80, IdealMax: 100, AcceptableMin: 60, AcceptableMax: 100}
	elbowValgusBand   = score.Band{IdealMin: 0, IdealMax: 8, AcceptableMin: 0, AcceptableMax: 15}
	armSymmetryBand   = score.Band{IdealMin: 90, IdealMax: 100, AcceptableMin: 70, AcceptableMax: 100}
)

const (
	weightElbow         = 0.25
	weightBodyAlignment = 0.25
	weightHipPosition   = 0.15
	weightDepth         = 0.15
	weightElbowValgus   = 0.10
	weightArmSymmetry   = 0.10
)

// State is the opaque per-session state threaded through Analyze. RangeMin
// and RangeMax record the first-observed elbow-angle extremes for the
// session's depth-percent normalization: per spec §7 Open Question, this
// implementation expands the range monotonically from observed frames and
// never resets or shrinks it mid-session.
type State struct {
	Phase            Phase
	RepCount         uint32
	BottomReached    bool
	Smoothers        *smoothing.Set
	DepthConfig      depth.Config
	DepthCalibration depth.Calibration
	RangeMin         float64
	RangeMax         float64
	HasRange         bool
}

// NewState constructs the initial analyzer state for a pushup session.
func NewState(smoothingCfg smoothing.Config, depthCfg depth.Config) State {
	return State{
		Phase:       PhaseUp,
		Smoothers:   smoothing.NewSet(smoothingCfg),
		DepthConfig: depthCfg,
	}
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	clone := s
	clone.Smoothers = s.Smoothers.Clone()
	return clone
}

func toPoint(f landmark.Frame, idx landmark.Index) geometry.Point {
	kp := f.At(idx)
	return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
}

var required = []landmark.Index{
	landmark.LeftShoulder, landmark.RightShoulder,
	landmark.LeftElbow, landmark.RightElbow,
	landmark.LeftWrist, landmark.RightWrist,
	landmark.LeftHip, landmark.RightHip,
	landmark.LeftAnkle, landmark.RightAnkle,
}

// Analyze computes one frame's pushup assessment.
func Analyze(f landmark.Frame, state State, timestampMs uint64) (exercise.Result, State) {
	newState := state.Clone()

	if !f.AllValid(required...) {
		return exercise.UnrecognizedResult(string(state.Phase), state.Phase.Generic(), state.RepCount,
			"elbow_angle", "body_alignment", "hip_position", "depth_percent", "elbow_valgus", "arm_symmetry"), newState
	}

	lShoulder, rShoulder := toPoint(f, landmark.LeftShoulder), toPoint(f, landmark.RightShoulder)
	lElbow, rElbow := toPoint(f, landmark.LeftElbow), toPoint(f, landmark.RightElbow)
	lWrist, rWrist := toPoint(f, landmark.LeftWrist), toPoint(f, landmark.RightWrist)
	lHip, rHip := toPoint(f, landmark.LeftHip), toPoint(f, landmark.RightHip)
	lAnkle, rAnkle := toPoint(f, landmark.LeftAnkle), toPoint(f, landmark.RightAnkle)

	rawLeftElbow := geometry.Angle3(lShoulder, lElbow, lWrist)
	rawRightElbow := geometry.Angle3(rShoulder, rElbow, rWrist)

	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	hipMid := geometry.Midpoint(lHip, rHip)
	ankleMid := geometry.Midpoint(lAnkle, rAnkle)

	bodyAlignmentDeviation := 180 - geometry.Angle3(shoulderMid, hipMid, ankleMid)

	hipPositionPercent := 0.0
	torsoLen := geometry.Distance2(shoulderMid, ankleMid)
	if ankleMid.X != shoulderMid.X && torsoLen > 0 {
		t := (hipMid.X - shoulderMid.X) / (ankleMid.X - shoulderMid.X)
		idealY := shoulderMid.Y + t*(ankleMid.Y-shoulderMid.Y)
		hipPositionPercent = (hipMid.Y - idealY) / torsoLen * 100
	}

	elbowValgusPercent := 0.0
	armLenLeft := geometry.Distance3(lShoulder, lWrist)
	armLenRight := geometry.Distance3(rShoulder, rWrist)
	if armLenLeft > 0 {
		elbowValgusPercent += geometry.PointToLineDistance(lElbow, lShoulder, lWrist) / armLenLeft * 100
	}
	if armLenRight > 0 {
		elbowValgusPercent += geometry.PointToLineDistance(rElbow, rShoulder, rWrist) / armLenRight * 100
	}
	elbowValgusPercent /= 2

	perspective := depth.CalculatePerspectiveFactor(f, newState.DepthCalibration.BaselineDepth, newState.DepthConfig)
	correctedLeftElbow := depth.ApplyPerspectiveCorrection(rawLeftElbow, perspective.Factor, depth.AngleKneeFlexion)
	correctedRightElbow := depth.ApplyPerspectiveCorrection(rawRightElbow, perspective.Factor, depth.AngleKneeFlexion)

	smoothed := newState.Smoothers.SmoothAll(map[smoothing.Channel]float64{
		chanLeftElbow:  correctedLeftElbow,
		chanRightElbow: correctedRightElbow,
	})
	leftElbow := smoothed[chanLeftElbow].SmoothedValue
	rightElbow := smoothed[chanRightElbow].SmoothedValue
	avgElbow := (leftElbow + rightElbow) / 2

	if !newState.HasRange {
		newState.RangeMin = avgElbow
		newState.RangeMax = avgElbow
		newState.HasRange = true
	} else {
		if avgElbow < newState.RangeMin {
			newState.RangeMin = avgElbow
		}
		if avgElbow > newState.RangeMax {
			newState.RangeMax = avgElbow
		}
	}
	depthPercent := 100.0
	if newState.RangeMax > newState.RangeMin {
		depthPercent = (newState.RangeMax - avgElbow) / (newState.RangeMax - newState.RangeMin) * 100
	}
	depthPercent = clamp(depthPercent, 0, 100)

	newState.Phase = nextPhase(state.Phase, avgElbow)
	repCompleted := false
	if newState.Phase == PhaseBottom {
		newState.BottomReached = true
	}
	if state.Phase == PhaseAscending && newState.Phase == PhaseUp && state.BottomReached {
		repCompleted = true
		newState.RepCount++
		newState.BottomReached = false
	}

	elbowScore := score.ItemScore(avgElbow, elbowBand)
	bodyAlignmentScore := score.ItemScore(math.Abs(bodyAlignmentDeviation), bodyAlignmentBand)
	hipPositionScore := score.ItemScore(math.Abs(hipPositionPercent), hipPositionBand)
	depthScore := score.ItemScore(depthPercent, depthBand)
	elbowValgusScore := score.ItemScore(elbowValgusPercent, elbowValgusBand)
	armSymmetryScore := score.ItemScore(geometry.SymmetryScore(leftElbow, rightElbow), armSymmetryBand)

	composite := score.Composite(
		score.Weighted{Score: elbowScore, Weight: weightElbow},
		score.Weighted{Score: bodyAlignmentScore, Weight: weightBodyAlignment},
		score.Weighted{Score: hipPositionScore, Weight: weightHipPosition},
		score.Weighted{Score: depthScore, Weight: weightDepth},
		score.Weighted{Score: elbowValgusScore, Weight: weightElbowValgus},
		score.Weighted{Score: armSymmetryScore, Weight: weightArmSymmetry},
	)

	hipCorrection := score.CorrectionNone
	if hipPositionPercent > 0 {
		hipCorrection = score.CorrectionUp
	} else if hipPositionPercent < 0 {
		hipCorrection = score.CorrectionDown
	}

	feedback := []score.FeedbackItem{
		bandedFeedback("elbow_angle", avgElbow, elbowBand, score.CorrectionNone),
		bandedFeedback("body_alignment", math.Abs(bodyAlignmentDeviation), bodyAlignmentBand, score.CorrectionStraighten),
		{
			Name:       "hip_position",
			Level:      score.ClassifyLevel(hipPositionScore),
			Value:      hipPositionPercent,
			Ideal:      [2]float64{hipPositionBand.IdealMin, hipPositionBand.IdealMax},
			Acceptable: [2]float64{hipPositionBand.AcceptableMin, hipPositionBand.AcceptableMax},
			Correction: hipCorrection,
			Message:    "hip_position",
		},
		bandedFeedback("depth_percent", depthPercent, depthBand, score.CorrectionNone),
		bandedFeedback("elbow_valgus", elbowValgusPercent, elbowValgusBand, score.CorrectionOutward),
		bandedFeedback("arm_symmetry", geometry.SymmetryScore(leftElbow, rightElbow), armSymmetryBand, score.CorrectionNone),
	}

	return exercise.Result{
		Score:        composite,
		Feedback:     feedback,
		Phase:        string(newState.Phase),
		GenericPhase: newState.Phase.Generic(),
		RepCompleted: repCompleted,
		RepCount:     newState.RepCount,
		RawAngles: map[string]float64{
			"left_elbow": leftElbow, "right_elbow": rightElbow,
			"body_alignment": bodyAlignmentDeviation, "hip_position": hipPositionPercent,
			"depth_percent": depthPercent, "elbow_valgus": elbowValgusPercent,
		},
	}, newState
}

func nextPhase(prev Phase, avgElbow float64) Phase {
	switch prev {
	case PhaseUp:
		if avgElbow < upThreshold-exercise.Hysteresis {
			return PhaseDescending
		}
		return PhaseUp
	case PhaseDescending:
		if avgElbow < bottomThreshold {
			return PhaseBottom
		}
		if avgElbow >= upThreshold {
			return PhaseUp
		}
		return PhaseDescending
	case PhaseBottom:
		if avgElbow > bottomThreshold+exercise.Hysteresis {
			return PhaseAscending
		}
		return PhaseBottom
	case PhaseAscending:
		if avgElbow >= upThreshold {
			return PhaseUp
		}
		if avgElbow < bottomThreshold {
			return PhaseBottom
		}
		return PhaseAscending
	default:
		return PhaseUp
	}
}

func bandedFeedback(name string, value float64, band score.Band, correction score.Correction) score.FeedbackItem {
	itemScore := score.ItemScore(value, band)
	return score.FeedbackItem{
		Name:       name,
		Level:      score.ClassifyLevel(itemScore),
		Value:      value,
		Ideal:      [2]float64{band.IdealMin, band.IdealMax},
		Acceptable: [2]float64{band.AcceptableMin, band.AcceptableMax},
		Correction: correction,
		Message:    name,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
