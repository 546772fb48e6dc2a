// Package squat implements the squat exercise analyzer (spec §4.6.1): knee,
// hip, torso, and ankle angles composed with the knee-alignment and
// coordination sub-analyzers into a phase state machine and composite score.
package squat

import (
	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
	"github.com/kanoo-op/postureai/pkg/subanalyzers"
)

// Phase is the squat-specific stage of a repetition.
type Phase string

const (
	PhaseStanding   Phase = "standing"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

// Generic maps a squat Phase onto the rep-segmenter's generic quadruple.
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
	bottomThreshold   = 110.0
)

const (
	chanLeftKnee   smoothing.Channel = "left_knee"
	chanRightKnee  smoothing.Channel = "right_knee"
	chanLeftHip    smoothing.Channel = "left_hip"
	chanRightHip   smoothing.Channel = "right_hip"
	chanTorso      smoothing.Channel = "torso"
	chanLeftAnkle  smoothing.Channel = "left_ankle"
	chanRightAnkle smoothing.Channel = "right_ankle"
)

// Bands holds the ideal/acceptable bands for every squat feedback item
// (spec §4.6.1).
var (
	kneeBand   = score.Band{IdealMin: 80, IdealMax: 100, AcceptableMin: 70, AcceptableMax: 110}
	hipBand    = score.Band{IdealMin: 70, IdealMax: 110, AcceptableMin: 55, AcceptableMax: 130}
	torsoBand  = score.Band{IdealMin: 0, IdealMax: 35, AcceptableMin: 0, AcceptableMax: 45}
	valgusBand = score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20}
)

// Composite weights, sum=1: knee 0.30, hip 0.25, torso 0.20, valgus 0.10,
// bilateral symmetry 0.15 (knee+hip symmetry averaged).
const (
	weightKnee     = 0.30
	weightHip      = 0.25
	weightTorso    = 0.20
	weightValgus   = 0.10
	weightSymmetry = 0.15
)

// State is the opaque per-session state threaded through Analyze.
type State struct {
	Phase            Phase
	RepCount         uint32
	BottomReached    bool
	LastKneeAngle    float64
	Smoothers        *smoothing.Set
	DepthConfig      depth.Config
	DepthCalibration depth.Calibration
	KneeAlignment    subanalyzers.KneeAlignmentState
	Coordination     subanalyzers.CoordinationState
	LastTimestampMs  uint64
	HasLastTimestamp bool
}

// NewState constructs the initial analyzer state for a squat session.
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

// Analyze computes one frame's squat assessment: primary angles (smoothed
// and depth-corrected), knee-alignment and coordination sub-analyzers, the
// phase/rep state machine, and the composite score. timestampMs is used
// only for the coordination analyzer's joint-timing lag; a zero or
// out-of-order value yields a zero dt (spec §5).
func Analyze(f landmark.Frame, state State, timestampMs uint64) (exercise.Result, State) {
	newState := state.Clone()

	if !f.AllValid(landmark.RequiredForExercise...) {
		return exercise.UnrecognizedResult(string(state.Phase), state.Phase.Generic(), state.RepCount,
			"knee_angle", "hip_angle", "torso_lean"), newState
	}

	lHip, rHip := toPoint(f, landmark.LeftHip), toPoint(f, landmark.RightHip)
	lKnee, rKnee := toPoint(f, landmark.LeftKnee), toPoint(f, landmark.RightKnee)
	lAnkle, rAnkle := toPoint(f, landmark.LeftAnkle), toPoint(f, landmark.RightAnkle)
	lShoulder, rShoulder := toPoint(f, landmark.LeftShoulder), toPoint(f, landmark.RightShoulder)

	rawLeftKnee := geometry.Angle3(lHip, lKnee, lAnkle)
	rawRightKnee := geometry.Angle3(rHip, rKnee, rAnkle)
	rawLeftHip := geometry.Angle3(lShoulder, lHip, lKnee)
	rawRightHip := geometry.Angle3(rShoulder, rHip, rKnee)

	hipMid := geometry.Midpoint(lHip, rHip)
	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	rawTorso := geometry.AngleWithVertical(hipMid, shoulderMid)

	var rawLeftAnkle, rawRightAnkle float64
	if f.AllValid(landmark.LeftFootIndex) {
		rawLeftAnkle = geometry.Angle3(lKnee, lAnkle, toPoint(f, landmark.LeftFootIndex))
	}
	if f.AllValid(landmark.RightFootIndex) {
		rawRightAnkle = geometry.Angle3(rKnee, rAnkle, toPoint(f, landmark.RightFootIndex))
	}

	heelRise := false
	if f.AllValid(landmark.LeftHeel, landmark.LeftFootIndex) {
		heel := toPoint(f, landmark.LeftHeel)
		toe := toPoint(f, landmark.LeftFootIndex)
		if toe.Y-heel.Y > 0.03 {
			heelRise = true
		}
	}

	perspective := depth.CalculatePerspectiveFactor(f, newState.DepthCalibration.BaselineDepth, newState.DepthConfig)
	correctedLeftKnee := depth.ApplyPerspectiveCorrection(rawLeftKnee, perspective.Factor, depth.AngleKneeFlexion)
	correctedRightKnee := depth.ApplyPerspectiveCorrection(rawRightKnee, perspective.Factor, depth.AngleKneeFlexion)
	correctedLeftHip := depth.ApplyPerspectiveCorrection(rawLeftHip, perspective.Factor, depth.AngleHipFlexion)
	correctedRightHip := depth.ApplyPerspectiveCorrection(rawRightHip, perspective.Factor, depth.AngleHipFlexion)
	correctedTorso := depth.ApplyPerspectiveCorrection(rawTorso, perspective.Factor, depth.AngleTorsoInclination)

	smoothed := newState.Smoothers.SmoothAll(map[smoothing.Channel]float64{
		chanLeftKnee:  correctedLeftKnee,
		chanRightKnee: correctedRightKnee,
		chanLeftHip:   correctedLeftHip,
		chanRightHip:  correctedRightHip,
		chanTorso:     correctedTorso,
	})

	leftKnee := smoothed[chanLeftKnee].SmoothedValue
	rightKnee := smoothed[chanRightKnee].SmoothedValue
	leftHip := smoothed[chanLeftHip].SmoothedValue
	rightHip := smoothed[chanRightHip].SmoothedValue
	torso := smoothed[chanTorso].SmoothedValue

	avgKnee := (leftKnee + rightKnee) / 2
	avgHip := (leftHip + rightHip) / 2

	newState.Phase = nextPhase(state.Phase, avgKnee)
	repCompleted := false
	if newState.Phase == PhaseBottom {
		newState.BottomReached = true
	}
	if state.Phase == PhaseAscending && newState.Phase == PhaseStanding && state.BottomReached {
		repCompleted = true
		newState.RepCount++
		newState.BottomReached = false
	}
	newState.LastKneeAngle = avgKnee

	isStandingPhase := newState.Phase == PhaseStanding
	kneeResult := subanalyzers.AnalyzeKneeAlignment3D(f, newState.KneeAlignment, isStandingPhase, isStandingPhase)
	newState.KneeAlignment = kneeResult.NewState

	dtMs := 0.0
	if newState.HasLastTimestamp && timestampMs > newState.LastTimestampMs {
		dtMs = float64(timestampMs - newState.LastTimestampMs)
	}
	newState.LastTimestampMs = timestampMs
	newState.HasLastTimestamp = true

	coordResult := subanalyzers.AnalyzeCoordination(leftKnee, rightKnee, leftHip, rightHip, torso, dtMs, newState.Coordination, subanalyzers.SquatOptimalRatio)
	newState.Coordination = coordResult.NewState

	kneeScore := score.ItemScore(avgKnee, kneeBand)
	hipScore := score.ItemScore(avgHip, hipBand)
	torsoScore := score.ItemScore(torso, torsoBand)
	valgusValue := maxFloat(kneeResult.Left.DeviationAngle, kneeResult.Right.DeviationAngle)
	valgusScore := score.ItemScore(valgusValue, valgusBand)

	kneeSymmetry := geometry.SymmetryScore(leftKnee, rightKnee)
	hipSymmetry := geometry.SymmetryScore(leftHip, rightHip)
	symmetryScore := (kneeSymmetry + hipSymmetry) / 2

	composite := score.Composite(
		score.Weighted{Score: kneeScore, Weight: weightKnee},
		score.Weighted{Score: hipScore, Weight: weightHip},
		score.Weighted{Score: torsoScore, Weight: weightTorso},
		score.Weighted{Score: valgusScore, Weight: weightValgus},
		score.Weighted{Score: symmetryScore, Weight: weightSymmetry},
	)

	feedback := []score.FeedbackItem{
		bandedFeedback("knee_angle", avgKnee, kneeBand, score.CorrectionNone),
		bandedFeedback("hip_angle", avgHip, hipBand, score.CorrectionNone),
		bandedFeedback("torso_lean", torso, torsoBand, score.CorrectionStraighten),
		kneeResult.Feedback,
		coordResult.Feedback,
	}
	if heelRise {
		feedback = append(feedback, score.FeedbackItem{
			Name:       "heel_rise",
			Level:      score.LevelWarning,
			Value:      1,
			Correction: score.CorrectionDown,
			Message:    "heel_rise",
		})
	}

	return exercise.Result{
		Score:        composite,
		Feedback:     feedback,
		Phase:        string(newState.Phase),
		GenericPhase: newState.Phase.Generic(),
		RepCompleted: repCompleted,
		RepCount:     newState.RepCount,
		RawAngles: map[string]float64{
			"left_knee_raw": rawLeftKnee, "right_knee_raw": rawRightKnee,
			"left_knee": leftKnee, "right_knee": rightKnee,
			"left_hip": leftHip, "right_hip": rightHip,
			"torso": torso, "left_ankle": rawLeftAnkle, "right_ankle": rawRightAnkle,
			"knee_valgus": valgusValue,
		},
	}, newState
}

func nextPhase(prev Phase, avgKnee float64) Phase {
	switch prev {
	case PhaseStanding:
		if avgKnee < standingThreshold-exercise.Hysteresis {
			return PhaseDescending
		}
		return PhaseStanding
	case PhaseDescending:
		if avgKnee < bottomThreshold {
			return PhaseBottom
		}
		if avgKnee >= standingThreshold {
			return PhaseStanding
		}
		return PhaseDescending
	case PhaseBottom:
		if avgKnee > bottomThreshold+exercise.Hysteresis {
			return PhaseAscending
		}
		return PhaseBottom
	case PhaseAscending:
		if avgKnee >= standingThreshold {
			return PhaseStanding
		}
		if avgKnee < bottomThreshold {
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

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
