// Package plank implements the plank exercise analyzer (spec §4.6.5): an
// isometric hold with no phase state machine, instead accumulating valid
// hold time between frames.
package plank

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

const validHoldScoreThreshold = 60

const (
	chanBodyAlignment smoothing.Channel = "body_alignment"
)

var (
	bodyAlignmentBand  = score.Band{IdealMin: 0, IdealMax: 8, AcceptableMin: 0, AcceptableMax: 15}
	hipPositionBand    = score.Band{IdealMin: -5, IdealMax: 5, AcceptableMin: -12, AcceptableMax: 12}
	shoulderAlignBand  = score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20}
	neckBand           = score.Band{IdealMin: -15, IdealMax: 15, AcceptableMin: -25, AcceptableMax: 25}
	neckForwardBand    = score.Band{IdealMin: 0, IdealMax: 10, AcceptableMin: 0, AcceptableMax: 20}
)

const (
	weightBodyAlignment = 0.40
	weightHipPosition   = 0.25
	weightShoulderAlign = 0.15
	weightNeck          = 0.20
)

// State is the opaque per-session state threaded through Analyze. Unlike
// the rep-based exercises, a plank has no phase machine: CurrentHoldTime
// resets to zero whenever a frame fails validity, while TotalHoldTime only
// ever accumulates.
type State struct {
	Smoothers         *smoothing.Set
	DepthConfig       depth.Config
	DepthCalibration  depth.Calibration
	CurrentHoldTimeMs uint64
	TotalHoldTimeMs   uint64
	LastTimestampMs   uint64
	HasLastTimestamp  bool
}

// NewState constructs the initial analyzer state for a plank session.
func NewState(smoothingCfg smoothing.Config, depthCfg depth.Config) State {
	return State{
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
	landmark.LeftHip, landmark.RightHip,
	landmark.LeftAnkle, landmark.RightAnkle,
	landmark.LeftWrist, landmark.RightWrist,
	landmark.LeftEar, landmark.RightEar,
}

// Result extends the common exercise.Result with the two hold-time
// accumulators a plank session reports per frame.
type Result struct {
	exercise.Result
	CurrentHoldTimeMs uint64
	TotalHoldTimeMs   uint64
}

// Analyze computes one frame's plank assessment and updates hold time.
// timestampMs is required (spec §6): hold time accumulates from the delta
// between consecutive valid timestamps, not a fixed per-frame duration.
func Analyze(f landmark.Frame, state State, timestampMs uint64) (Result, State) {
	newState := state.Clone()

	if !f.AllValid(required...) {
		newState.CurrentHoldTimeMs = 0
		newState.LastTimestampMs = timestampMs
		newState.HasLastTimestamp = true
		base := exercise.UnrecognizedResult("hold", exercise.GenericStanding, 0,
			"body_alignment", "hip_position", "shoulder_alignment", "neck_alignment")
		return Result{
			Result:            base,
			CurrentHoldTimeMs: newState.CurrentHoldTimeMs,
			TotalHoldTimeMs:   newState.TotalHoldTimeMs,
		}, newState
	}

	lShoulder, rShoulder := toPoint(f, landmark.LeftShoulder), toPoint(f, landmark.RightShoulder)
	lHip, rHip := toPoint(f, landmark.LeftHip), toPoint(f, landmark.RightHip)
	lAnkle, rAnkle := toPoint(f, landmark.LeftAnkle), toPoint(f, landmark.RightAnkle)
	lWrist, rWrist := toPoint(f, landmark.LeftWrist), toPoint(f, landmark.RightWrist)

	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	hipMid := geometry.Midpoint(lHip, rHip)
	ankleMid := geometry.Midpoint(lAnkle, rAnkle)
	wristMid := geometry.Midpoint(lWrist, rWrist)

	bodyAlignmentDeviation := 180 - geometry.Angle3(shoulderMid, hipMid, ankleMid)

	hipPositionPercent := 0.0
	torsoLen := geometry.Distance2(shoulderMid, ankleMid)
	if ankleMid.X != shoulderMid.X && torsoLen > 0 {
		t := (hipMid.X - shoulderMid.X) / (ankleMid.X - shoulderMid.X)
		idealY := shoulderMid.Y + t*(ankleMid.Y-shoulderMid.Y)
		hipPositionPercent = (hipMid.Y - idealY) / torsoLen * 100
	}

	shoulderAlignPercent := 0.0
	if torsoLen > 0 {
		shoulderAlignPercent = math.Abs(wristMid.X-shoulderMid.X) / torsoLen * 100
	}

	perspective := depth.CalculatePerspectiveFactor(f, newState.DepthCalibration.BaselineDepth, newState.DepthConfig)
	correctedAlignment := depth.ApplyPerspectiveCorrection(bodyAlignmentDeviation, perspective.Factor, depth.AngleTorsoInclination)

	smoothed := newState.Smoothers.SmoothAll(map[smoothing.Channel]float64{
		chanBodyAlignment: correctedAlignment,
	})
	alignment := smoothed[chanBodyAlignment].SmoothedValue

	neckResult := subanalyzers.AnalyzeNeck(f, subanalyzers.NeckBands{
		Angle:          neckBand,
		ForwardPosture: neckForwardBand,
	})
	neckScore := float64(score.MissingItemScore)
	if neckResult.Valid {
		neckScore = score.ItemScore(neckResult.Angle, neckBand)
	}

	bodyAlignmentScore := score.ItemScore(math.Abs(alignment), bodyAlignmentBand)
	hipPositionScore := score.ItemScore(hipPositionPercent, hipPositionBand)
	shoulderAlignScore := score.ItemScore(shoulderAlignPercent, shoulderAlignBand)

	composite := score.Composite(
		score.Weighted{Score: bodyAlignmentScore, Weight: weightBodyAlignment},
		score.Weighted{Score: hipPositionScore, Weight: weightHipPosition},
		score.Weighted{Score: shoulderAlignScore, Weight: weightShoulderAlign},
		score.Weighted{Score: neckScore, Weight: weightNeck},
	)

	if newState.HasLastTimestamp && timestampMs > newState.LastTimestampMs && composite >= validHoldScoreThreshold {
		delta := timestampMs - newState.LastTimestampMs
		newState.CurrentHoldTimeMs += delta
		newState.TotalHoldTimeMs += delta
	} else if composite < validHoldScoreThreshold {
		newState.CurrentHoldTimeMs = 0
	}
	newState.LastTimestampMs = timestampMs
	newState.HasLastTimestamp = true

	hipCorrection := score.CorrectionNone
	if hipPositionPercent > 0 {
		hipCorrection = score.CorrectionUp
	} else if hipPositionPercent < 0 {
		hipCorrection = score.CorrectionDown
	}

	feedback := []score.FeedbackItem{
		bandedFeedback("body_alignment", math.Abs(alignment), bodyAlignmentBand, score.CorrectionStraighten),
		{
			Name:       "hip_position",
			Level:      score.ClassifyLevel(hipPositionScore),
			Value:      hipPositionPercent,
			Ideal:      [2]float64{hipPositionBand.IdealMin, hipPositionBand.IdealMax},
			Acceptable: [2]float64{hipPositionBand.AcceptableMin, hipPositionBand.AcceptableMax},
			Correction: hipCorrection,
			Message:    "hip_position",
		},
		bandedFeedback("shoulder_alignment", shoulderAlignPercent, shoulderAlignBand, score.CorrectionNone),
		neckResult.Feedback,
	}

	base := exercise.Result{
		Score:        composite,
		Feedback:     feedback,
		Phase:        "hold",
		GenericPhase: exercise.GenericStanding,
		RepCompleted: false,
		RepCount:     0,
		RawAngles: map[string]float64{
			"body_alignment": alignment, "hip_position": hipPositionPercent,
			"shoulder_alignment": shoulderAlignPercent,
		},
	}

	return Result{
		Result:            base,
		CurrentHoldTimeMs: newState.CurrentHoldTimeMs,
		TotalHoldTimeMs:   newState.TotalHoldTimeMs,
	}, newState
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
