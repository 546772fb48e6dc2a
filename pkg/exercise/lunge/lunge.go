// Package lunge implements the lunge exercise analyzer (spec §4.6.2): front
// and back leg detection, knee/hip/torso/knee-over-toe angles, and a phase
// state machine analogous to the squat's.
package lunge

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
	"github.com/kanoo-op/postureai/pkg/subanalyzers"
)

// Phase is the lunge-specific stage of a repetition.
type Phase string

const (
	PhaseStanding   Phase = "standing"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

// Generic maps a lunge Phase onto the rep-segmenter's generic quadruple.
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
	standingThreshold = 160.0
	bottomThreshold   = 100.0
	// zTolerance is the front-leg detection tolerance: ankles within this
	// z-distance of each other are considered equidistant from the camera,
	// falling back to x-separation (spec §7 Open Question: any monotone
	// tie-break rule is acceptable so long as "unknown" stays reserved for
	// near-symmetric stances — this implementation breaks ties on whichever
	// ankle is further forward/back in x, and only reports unknown when both
	// z and x are within tolerance of each other).
	zTolerance = 0.02
	xTolerance = 0.02
)

// FrontLeg names which leg is forward in the lunge stance.
type FrontLeg string

const (
	FrontLeft    FrontLeg = "left"
	FrontRight   FrontLeg = "right"
	FrontUnknown FrontLeg = "unknown"
)

const (
	chanFrontKnee smoothing.Channel = "front_knee"
	chanBackKnee  smoothing.Channel = "back_knee"
	chanFrontHip  smoothing.Channel = "front_hip"
	chanBackHip   smoothing.Channel = "back_hip"
	chanTorso     smoothing.Channel = "torso"
)

var (
	frontKneeBand = score.Band{IdealMin: 85, IdealMax: 100, AcceptableMin: 75, AcceptableMax: 110}
	backKneeBand  = score.Band{IdealMin: 85, IdealMax: 105, AcceptableMin: 70, AcceptableMax: 120}
	torsoBand     = score.Band{IdealMin: 0, IdealMax: 15, AcceptableMin: 0, AcceptableMax: 25}
)

const (
	weightFrontKnee  = 0.30
	weightBackKnee   = 0.20
	weightTorso      = 0.20
	weightKneeToe    = 0.15
	weightSymmetry   = 0.15
)

// State is the opaque per-session state threaded through Analyze.
type State struct {
	Phase            Phase
	RepCount         uint32
	BottomReached    bool
	Smoothers        *smoothing.Set
	DepthConfig      depth.Config
	DepthCalibration depth.Calibration
	KneeAlignment    subanalyzers.KneeAlignmentState
	Coordination     subanalyzers.CoordinationState
	LastTimestampMs  uint64
	HasLastTimestamp bool
}

// NewState constructs the initial analyzer state for a lunge session.
func NewState(smoothingCfg smoothing.Config, depthCfg depth.Config) State {
	return State{
		Phase:         PhaseStanding,
		Smoothers:     smoothing.NewSet(smoothingCfg),
		DepthConfig:   depthCfg,
		KneeAlignment: subanalyzers.NewKneeAlignmentState(),
		Coordination:  subanalyzers.NewCoordinationState(),
	}
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	clone := s
	clone.Smoothers = s.Smoothers.Clone()
	clone.KneeAlignment = s.KneeAlignment.Clone()
	clone.Coordination = s.Coordination.Clone()
	return clone
}

func toPoint(f landmark.Frame, idx landmark.Index) geometry.Point {
	kp := f.At(idx)
	return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
}

// detectFrontLeg picks the leg whose ankle is closer to the camera
// (smaller z); falls back to whichever ankle is further forward in x when
// both ankles are within zTolerance of each other, and reports
// FrontUnknown when the stance is near-symmetric in both axes.
func detectFrontLeg(lAnkle, rAnkle geometry.Point) FrontLeg {
	if math.Abs(lAnkle.Z-rAnkle.Z) > zTolerance {
		if lAnkle.Z < rAnkle.Z {
			return FrontLeft
		}
		return FrontRight
	}
	if math.Abs(lAnkle.X-rAnkle.X) > xTolerance {
		if lAnkle.X < rAnkle.X {
			return FrontLeft
		}
		return FrontRight
	}
	return FrontUnknown
}

// Analyze computes one frame's lunge assessment.
func Analyze(f landmark.Frame, state State, timestampMs uint64) (exercise.Result, State) {
	newState := state.Clone()

	if !f.AllValid(landmark.RequiredForExercise...) {
		return exercise.UnrecognizedResult(string(state.Phase), state.Phase.Generic(), state.RepCount,
			"front_knee_angle", "back_knee_angle", "torso_lean", "knee_over_toe"), newState
	}

	lHip, rHip := toPoint(f, landmark.LeftHip), toPoint(f, landmark.RightHip)
	lKnee, rKnee := toPoint(f, landmark.LeftKnee), toPoint(f, landmark.RightKnee)
	lAnkle, rAnkle := toPoint(f, landmark.LeftAnkle), toPoint(f, landmark.RightAnkle)
	lShoulder, rShoulder := toPoint(f, landmark.LeftShoulder), toPoint(f, landmark.RightShoulder)

	front := detectFrontLeg(lAnkle, rAnkle)

	var frontHipRaw, frontKneeRaw, backHipRaw, backKneeRaw float64
	var frontAnkle geometry.Point
	switch front {
	case FrontRight:
		frontKneeRaw = geometry.Angle3(rHip, rKnee, rAnkle)
		frontHipRaw = geometry.Angle3(rShoulder, rHip, rKnee)
		backKneeRaw = geometry.Angle3(lHip, lKnee, lAnkle)
		backHipRaw = geometry.Angle3(lShoulder, lHip, lKnee)
		frontAnkle = rAnkle
	default: // FrontLeft or FrontUnknown: default to left as front for measurement purposes
		frontKneeRaw = geometry.Angle3(lHip, lKnee, lAnkle)
		frontHipRaw = geometry.Angle3(lShoulder, lHip, lKnee)
		backKneeRaw = geometry.Angle3(rHip, rKnee, rAnkle)
		backHipRaw = geometry.Angle3(rShoulder, rHip, rKnee)
		frontAnkle = lAnkle
	}

	hipMid := geometry.Midpoint(lHip, rHip)
	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	rawTorso := geometry.AngleWithVertical(hipMid, shoulderMid)

	perspective := depth.CalculatePerspectiveFactor(f, newState.DepthCalibration.BaselineDepth, newState.DepthConfig)
	correctedFrontKnee := depth.ApplyPerspectiveCorrection(frontKneeRaw, perspective.Factor, depth.AngleKneeFlexion)
	correctedBackKnee := depth.ApplyPerspectiveCorrection(backKneeRaw, perspective.Factor, depth.AngleKneeFlexion)
	correctedFrontHip := depth.ApplyPerspectiveCorrection(frontHipRaw, perspective.Factor, depth.AngleHipFlexion)
	correctedBackHip := depth.ApplyPerspectiveCorrection(backHipRaw, perspective.Factor, depth.AngleHipFlexion)
	correctedTorso := depth.ApplyPerspectiveCorrection(rawTorso, perspective.Factor, depth.AngleTorsoInclination)

	smoothed := newState.Smoothers.SmoothAll(map[smoothing.Channel]float64{
		chanFrontKnee: correctedFrontKnee,
		chanBackKnee:  correctedBackKnee,
		chanFrontHip:  correctedFrontHip,
		chanBackHip:   correctedBackHip,
		chanTorso:     correctedTorso,
	})

	frontKnee := smoothed[chanFrontKnee].SmoothedValue
	backKnee := smoothed[chanBackKnee].SmoothedValue
	frontHip := smoothed[chanFrontHip].SmoothedValue
	backHip := smoothed[chanBackHip].SmoothedValue
	torso := smoothed[chanTorso].SmoothedValue

	newState.Phase = nextPhase(state.Phase, frontKnee)
	repCompleted := false
	if newState.Phase == PhaseBottom {
		newState.BottomReached = true
	}
	if state.Phase == PhaseAscending && newState.Phase == PhaseStanding && state.BottomReached {
		repCompleted = true
		newState.RepCount++
		newState.BottomReached = false
	}

	footLength := 0.1
	if f.AllValid(landmark.LeftFootIndex) && front != FrontRight {
		footLength = geometry.Distance2(frontAnkle, toPoint(f, landmark.LeftFootIndex))
	} else if f.AllValid(landmark.RightFootIndex) {
		footLength = geometry.Distance2(frontAnkle, toPoint(f, landmark.RightFootIndex))
	}
	if footLength <= 0 {
		footLength = 0.1
	}
	// Horizontal distance from knee to ankle (proxy for toe), normalized by
	// foot length and expressed as a percent deviation from directly over.
	var frontKneePoint geometry.Point
	if front == FrontRight {
		frontKneePoint = rKnee
	} else {
		frontKneePoint = lKnee
	}
	kneeOverToeDistance := math.Abs(frontKneePoint.X-frontAnkle.X) / footLength * 100
	kneeOverToeBand := score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20}

	isStandingPhase := newState.Phase == PhaseStanding
	kneeResult := subanalyzers.AnalyzeKneeAlignment3D(f, newState.KneeAlignment, isStandingPhase, isStandingPhase)
	newState.KneeAlignment = kneeResult.NewState

	dtMs := 0.0
	if newState.HasLastTimestamp && timestampMs > newState.LastTimestampMs {
		dtMs = float64(timestampMs - newState.LastTimestampMs)
	}
	newState.LastTimestampMs = timestampMs
	newState.HasLastTimestamp = true

	coordResult := subanalyzers.AnalyzeCoordination(frontKnee, backKnee, frontHip, backHip, torso, dtMs, newState.Coordination, subanalyzers.LungeOptimalRatio)
	newState.Coordination = coordResult.NewState

	frontKneeScore := score.ItemScore(frontKnee, frontKneeBand)
	backKneeScore := score.ItemScore(backKnee, backKneeBand)
	torsoScore := score.ItemScore(torso, torsoBand)
	kneeToeScore := score.ItemScore(kneeOverToeDistance, kneeOverToeBand)
	symmetryScore := geometry.SymmetryScore(frontKnee, backKnee)

	composite := score.Composite(
		score.Weighted{Score: frontKneeScore, Weight: weightFrontKnee},
		score.Weighted{Score: backKneeScore, Weight: weightBackKnee},
		score.Weighted{Score: torsoScore, Weight: weightTorso},
		score.Weighted{Score: kneeToeScore, Weight: weightKneeToe},
		score.Weighted{Score: symmetryScore, Weight: weightSymmetry},
	)

	feedback := []score.FeedbackItem{
		bandedFeedback("front_knee_angle", frontKnee, frontKneeBand, score.CorrectionNone),
		bandedFeedback("back_knee_angle", backKnee, backKneeBand, score.CorrectionNone),
		bandedFeedback("torso_lean", torso, torsoBand, score.CorrectionStraighten),
		bandedFeedback("knee_over_toe", kneeOverToeDistance, kneeOverToeBand, score.CorrectionBackward),
		kneeResult.Feedback,
		coordResult.Feedback,
	}
	if newState.Phase == PhaseBottom || newState.Phase == PhaseAscending {
		feedback = append(feedback, hipFlexorFeedback(backHip))
	}

	return exercise.Result{
		Score:        composite,
		Feedback:     feedback,
		Phase:        string(newState.Phase),
		GenericPhase: newState.Phase.Generic(),
		RepCompleted: repCompleted,
		RepCount:     newState.RepCount,
		RawAngles: map[string]float64{
			"front_knee": frontKnee, "back_knee": backKnee,
			"front_hip": frontHip, "back_hip": backHip,
			"torso": torso, "knee_over_toe": kneeOverToeDistance,
		},
	}, newState
}

func hipFlexorFeedback(backHip float64) score.FeedbackItem {
	band := score.Band{IdealMin: 160, IdealMax: 190, AcceptableMin: 145, AcceptableMax: 200}
	itemScore := score.ItemScore(backHip, band)
	return score.FeedbackItem{
		Name:       "hip_flexor_tightness",
		Level:      score.ClassifyLevel(itemScore),
		Value:      backHip,
		Ideal:      [2]float64{band.IdealMin, band.IdealMax},
		Acceptable: [2]float64{band.AcceptableMin, band.AcceptableMax},
		Correction: score.CorrectionForward,
		Message:    "hip_flexor_tightness",
	}
}

func nextPhase(prev Phase, frontKnee float64) Phase {
	switch prev {
	case PhaseStanding:
		if frontKnee < standingThreshold-exercise.Hysteresis {
			return PhaseDescending
		}
		return PhaseStanding
	case PhaseDescending:
		if frontKnee < bottomThreshold {
			return PhaseBottom
		}
		if frontKnee >= standingThreshold {
			return PhaseStanding
		}
		return PhaseDescending
	case PhaseBottom:
		if frontKnee > bottomThreshold+exercise.Hysteresis {
			return PhaseAscending
		}
		return PhaseBottom
	case PhaseAscending:
		if frontKnee >= standingThreshold {
			return PhaseStanding
		}
		if frontKnee < bottomThreshold {
			return PhaseBottom
		}
		return PhaseAscending
	default:
		return PhaseStanding
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
