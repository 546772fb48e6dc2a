// Package deadlift implements the deadlift exercise analyzer (spec
// §4.6.3): hip-hinge, knee, spine, and bar-path angles composed with
// spine-curvature, neck, torso-rotation, hip-hinge-quality, and pelvic-tilt
// sub-analyzers into a setup/lift/lockout/descent phase state machine.
package deadlift

import (
	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
	"github.com/kanoo-op/postureai/pkg/subanalyzers"
)

// Phase is the deadlift-specific stage of a repetition.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseLift    Phase = "lift"
	PhaseLockout Phase = "lockout"
	PhaseDescent Phase = "descent"
)

// Generic maps a deadlift Phase onto the rep-segmenter's generic quadruple
// (spec §4.9: setup->standing, lockout->standing, lift->ascending,
// descent->descending).
func (p Phase) Generic() exercise.GenericPhase {
	switch p {
	case PhaseLift:
		return exercise.GenericAscending
	case PhaseDescent:
		return exercise.GenericDescending
	default:
		return exercise.GenericStanding
	}
}

const (
	lockoutThreshold = 155.0
	setupThreshold   = 120.0
)

const (
	chanLeftHinge  smoothing.Channel = "left_hip_hinge"
	chanRightHinge smoothing.Channel = "right_hip_hinge"
	chanLeftKnee   smoothing.Channel = "left_knee"
	chanRightKnee  smoothing.Channel = "right_knee"
	chanSpine      smoothing.Channel = "spine"
	chanUpperSpine smoothing.Channel = "upper_spine"
	chanLowerSpine smoothing.Channel = "lower_spine"
)

var (
	hipHingeBand = score.Band{IdealMin: 75, IdealMax: 100, AcceptableMin: 65, AcceptableMax: 115}
	kneeBand     = score.Band{IdealMin: 140, IdealMax: 165, AcceptableMin: 125, AcceptableMax: 175}
	spineBand    = score.Band{IdealMin: 0, IdealMax: 25, AcceptableMin: 0, AcceptableMax: 40}
	barPathBand  = score.Band{IdealMin: 0, IdealMax: 5, AcceptableMin: 0, AcceptableMax: 12}
)

const (
	weightHipHinge       = 0.20
	weightSpineAlignment = 0.08
	weightSpineCurvature = 0.10
	weightKnee           = 0.13
	weightBarPath        = 0.09
	weightSymmetry       = 0.13
	weightNeck           = 0.06
	weightTorsoRotation  = 0.07
	weightHingeQuality   = 0.07
	weightPelvicTilt     = 0.07

	lumbarWeight   = 0.60
	thoracicWeight = 0.40

	// spineStrictnessDuringLift tightens the spine band by 20% while the
	// lift phase is active (spec §4.6.3).
	spineStrictnessDuringLift = 0.8
)

// State is the opaque per-session state threaded through Analyze.
type State struct {
	Phase            Phase
	RepCount         uint32
	LockoutReached   bool
	LastHipHinge     float64
	HasLastHipHinge  bool
	Smoothers        *smoothing.Set
	DepthConfig      depth.Config
	DepthCalibration depth.Calibration
	Pelvis           subanalyzers.PelvisState
	HingeQuality     subanalyzers.HingeQualityState
	KneeAlignment    subanalyzers.KneeAlignmentState
	LastTimestampMs  uint64
	HasLastTimestamp bool
}

// NewState constructs the initial analyzer state for a deadlift session.
func NewState(smoothingCfg smoothing.Config, depthCfg depth.Config) State {
	return State{
		Phase:         PhaseSetup,
		Smoothers:     smoothing.NewSet(smoothingCfg),
		DepthConfig:   depthCfg,
		Pelvis:        subanalyzers.NewPelvisState(),
		HingeQuality:  subanalyzers.NewHingeQualityState(),
		KneeAlignment: subanalyzers.NewKneeAlignmentState(),
	}
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	clone := s
	clone.Smoothers = s.Smoothers.Clone()
	clone.Pelvis = s.Pelvis.Clone()
	clone.HingeQuality = s.HingeQuality.Clone()
	clone.KneeAlignment = s.KneeAlignment.Clone()
	return clone
}

func toPoint(f landmark.Frame, idx landmark.Index) geometry.Point {
	kp := f.At(idx)
	return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
}

// Analyze computes one frame's deadlift assessment.
func Analyze(f landmark.Frame, state State, timestampMs uint64) (exercise.Result, State) {
	newState := state.Clone()

	required := append([]landmark.Index{landmark.LeftWrist, landmark.RightWrist}, landmark.RequiredForExercise...)
	if !f.AllValid(required...) {
		return exercise.UnrecognizedResult(string(state.Phase), state.Phase.Generic(), state.RepCount,
			"hip_hinge_angle", "knee_angle", "spine_alignment", "lumbar_curvature", "thoracic_curvature", "bar_path"), newState
	}

	lHip, rHip := toPoint(f, landmark.LeftHip), toPoint(f, landmark.RightHip)
	lKnee, rKnee := toPoint(f, landmark.LeftKnee), toPoint(f, landmark.RightKnee)
	lAnkle, rAnkle := toPoint(f, landmark.LeftAnkle), toPoint(f, landmark.RightAnkle)
	lShoulder, rShoulder := toPoint(f, landmark.LeftShoulder), toPoint(f, landmark.RightShoulder)
	lWrist, rWrist := toPoint(f, landmark.LeftWrist), toPoint(f, landmark.RightWrist)

	rawLeftHinge := geometry.Angle3(lShoulder, lHip, lKnee)
	rawRightHinge := geometry.Angle3(rShoulder, rHip, rKnee)
	rawLeftKnee := geometry.Angle3(lHip, lKnee, lAnkle)
	rawRightKnee := geometry.Angle3(rHip, rKnee, rAnkle)

	hipMid := geometry.Midpoint(lHip, rHip)
	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	midSpine := geometry.Lerp(hipMid, shoulderMid, 0.6) // 0.4*hip + 0.6*shoulder

	rawSpine := geometry.AngleWithVertical(hipMid, shoulderMid)
	rawUpperSpine := geometry.AngleWithVertical(midSpine, shoulderMid)
	rawLowerSpine := geometry.AngleWithVertical(hipMid, midSpine)

	torsoLength := geometry.Distance3(hipMid, shoulderMid)
	wristMid := geometry.Midpoint(lWrist, rWrist)
	var barPathPercent float64
	if torsoLength > 0 {
		barPathPercent = geometry.PointToLineDistance(wristMid, hipMid, shoulderMid) / torsoLength * 100
	}

	perspective := depth.CalculatePerspectiveFactor(f, newState.DepthCalibration.BaselineDepth, newState.DepthConfig)
	correctedLeftHinge := depth.ApplyPerspectiveCorrection(rawLeftHinge, perspective.Factor, depth.AngleHipFlexion)
	correctedRightHinge := depth.ApplyPerspectiveCorrection(rawRightHinge, perspective.Factor, depth.AngleHipFlexion)
	correctedLeftKnee := depth.ApplyPerspectiveCorrection(rawLeftKnee, perspective.Factor, depth.AngleKneeFlexion)
	correctedRightKnee := depth.ApplyPerspectiveCorrection(rawRightKnee, perspective.Factor, depth.AngleKneeFlexion)
	correctedSpine := depth.ApplyPerspectiveCorrection(rawSpine, perspective.Factor, depth.AngleTorsoInclination)
	correctedUpperSpine := depth.ApplyPerspectiveCorrection(rawUpperSpine, perspective.Factor, depth.AngleTorsoInclination)
	correctedLowerSpine := depth.ApplyPerspectiveCorrection(rawLowerSpine, perspective.Factor, depth.AngleTorsoInclination)

	smoothed := newState.Smoothers.SmoothAll(map[smoothing.Channel]float64{
		chanLeftHinge:  correctedLeftHinge,
		chanRightHinge: correctedRightHinge,
		chanLeftKnee:   correctedLeftKnee,
		chanRightKnee:  correctedRightKnee,
		chanSpine:      correctedSpine,
		chanUpperSpine: correctedUpperSpine,
		chanLowerSpine: correctedLowerSpine,
	})

	leftHinge := smoothed[chanLeftHinge].SmoothedValue
	rightHinge := smoothed[chanRightHinge].SmoothedValue
	leftKnee := smoothed[chanLeftKnee].SmoothedValue
	rightKnee := smoothed[chanRightKnee].SmoothedValue
	spine := smoothed[chanSpine].SmoothedValue
	upperSpine := smoothed[chanUpperSpine].SmoothedValue
	lowerSpine := smoothed[chanLowerSpine].SmoothedValue

	avgHinge := (leftHinge + rightHinge) / 2
	avgKnee := (leftKnee + rightKnee) / 2

	lastHinge := avgHinge
	if newState.HasLastHipHinge {
		lastHinge = newState.LastHipHinge
	}
	newState.Phase = nextPhase(state.Phase, avgHinge, lastHinge)
	newState.LastHipHinge = avgHinge
	newState.HasLastHipHinge = true

	repCompleted := false
	if state.Phase == PhaseLift && newState.Phase == PhaseLockout && !state.LockoutReached {
		repCompleted = true
		newState.RepCount++
		newState.LockoutReached = true
	}
	if newState.Phase == PhaseSetup {
		newState.LockoutReached = false
	}

	inLiftPhase := newState.Phase == PhaseLift

	spineBandEffective := spineBand
	if inLiftPhase {
		spineBandEffective.IdealMax *= spineStrictnessDuringLift
		spineBandEffective.AcceptableMax *= spineStrictnessDuringLift
	}

	lumbarScore := score.ItemScore(lowerSpine, spineBandEffective)
	thoracicScore := score.ItemScore(upperSpine, spineBandEffective)
	spineCurvatureScore := lumbarWeight*lumbarScore + thoracicWeight*thoracicScore

	spineAlignmentScore := score.ItemScore(spine, spineBandEffective)
	hipHingeScore := score.ItemScore(avgHinge, hipHingeBand)
	kneeScore := score.ItemScore(avgKnee, kneeBand)
	barPathScore := score.ItemScore(barPathPercent, barPathBand)

	kneeSymmetry := geometry.SymmetryScore(leftKnee, rightKnee)
	hingeSymmetry := geometry.SymmetryScore(leftHinge, rightHinge)
	symmetryScore := (kneeSymmetry + hingeSymmetry) / 2

	isStandingPhase := newState.Phase == PhaseSetup
	kneeResult := subanalyzers.AnalyzeKneeAlignment3D(f, newState.KneeAlignment, isStandingPhase, isStandingPhase)
	newState.KneeAlignment = kneeResult.NewState

	neckBand := score.Band{IdealMin: -10, IdealMax: 10, AcceptableMin: -20, AcceptableMax: 20}
	neckResult := subanalyzers.AnalyzeNeck(f, subanalyzers.NeckBands{
		Angle:          neckBand,
		ForwardPosture: score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20},
	})
	neckScore := float64(score.MissingItemScore)
	if neckResult.Valid {
		neckScore = score.ItemScore(neckResult.Angle, neckBand)
	}

	torsoRotationResult := subanalyzers.AnalyzeTorsoRotation(f, 15, 8, inLiftPhase)

	newState.LastTimestampMs = timestampMs
	newState.HasLastTimestamp = true

	hingeResult := subanalyzers.AnalyzeHipHingeQuality(avgHinge, avgKnee, newState.HingeQuality, inLiftPhase)
	newState.HingeQuality = hingeResult.NewState
	hingeQualityBand := score.Band{IdealMin: 1.5, IdealMax: 3.0, AcceptableMin: 1.0, AcceptableMax: 4.0}
	hingeQualityScore := score.ItemScore(hingeResult.HipDominantRatio, hingeQualityBand)

	anteriorBand := score.Band{IdealMin: -5, IdealMax: 15, AcceptableMin: -15, AcceptableMax: 25}
	lateralBand := score.Band{IdealMin: -3, IdealMax: 3, AcceptableMin: -8, AcceptableMax: 8}
	stabilityBand := score.Band{IdealMin: 80, IdealMax: 100, AcceptableMin: 60, AcceptableMax: 100}
	pelvisResult := subanalyzers.AnalyzePelvicTilt(f, newState.Pelvis, anteriorBand, lateralBand, stabilityBand)
	newState.Pelvis = pelvisResult.NewState
	pelvicTiltScore := float64(score.MissingItemScore)
	if pelvisResult.Valid {
		pelvicTiltScore = (score.ItemScore(pelvisResult.AnteriorTilt, anteriorBand) +
			score.ItemScore(pelvisResult.LateralTilt, lateralBand) +
			score.ItemScore(pelvisResult.StabilityScore, stabilityBand)) / 3
	}

	composite := score.Composite(
		score.Weighted{Score: hipHingeScore, Weight: weightHipHinge},
		score.Weighted{Score: spineAlignmentScore, Weight: weightSpineAlignment},
		score.Weighted{Score: spineCurvatureScore, Weight: weightSpineCurvature},
		score.Weighted{Score: kneeScore, Weight: weightKnee},
		score.Weighted{Score: barPathScore, Weight: weightBarPath},
		score.Weighted{Score: symmetryScore, Weight: weightSymmetry},
		score.Weighted{Score: neckScore, Weight: weightNeck},
		score.Weighted{Score: torsoRotationResult.CompoundScore, Weight: weightTorsoRotation},
		score.Weighted{Score: hingeQualityScore, Weight: weightHingeQuality},
		score.Weighted{Score: pelvicTiltScore, Weight: weightPelvicTilt},
	)

	feedback := []score.FeedbackItem{
		bandedFeedback("hip_hinge_angle", avgHinge, hipHingeBand, score.CorrectionNone),
		bandedFeedback("knee_angle", avgKnee, kneeBand, score.CorrectionNone),
		bandedFeedback("spine_alignment", spine, spineBandEffective, score.CorrectionStraighten),
		bandedFeedback("lumbar_curvature", lowerSpine, spineBandEffective, score.CorrectionStraighten),
		bandedFeedback("thoracic_curvature", upperSpine, spineBandEffective, score.CorrectionStraighten),
		bandedFeedback("bar_path", barPathPercent, barPathBand, score.CorrectionBackward),
		neckResult.Feedback,
		torsoRotationResult.Feedback,
		hingeResult.Feedback,
		pelvisResult.Anterior, pelvisResult.Lateral, pelvisResult.Stability,
		kneeResult.Feedback,
	}

	return exercise.Result{
		Score:        composite,
		Feedback:     feedback,
		Phase:        string(newState.Phase),
		GenericPhase: newState.Phase.Generic(),
		RepCompleted: repCompleted,
		RepCount:     newState.RepCount,
		RawAngles: map[string]float64{
			"left_hip_hinge": leftHinge, "right_hip_hinge": rightHinge,
			"left_knee": leftKnee, "right_knee": rightKnee,
			"spine": spine, "upper_spine": upperSpine, "lower_spine": lowerSpine,
			"bar_path_percent": barPathPercent,
		},
	}, newState
}

func nextPhase(prev Phase, avgHinge, lastHinge float64) Phase {
	delta := avgHinge - lastHinge
	switch {
	case avgHinge > lockoutThreshold:
		return PhaseLockout
	case avgHinge < setupThreshold:
		return PhaseSetup
	case delta > exercise.Hysteresis:
		return PhaseLift
	case delta < -exercise.Hysteresis:
		return PhaseDescent
	default:
		return prev
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
