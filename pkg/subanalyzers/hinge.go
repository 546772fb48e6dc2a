package subanalyzers

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/ringbuffer"
	"github.com/kanoo-op/postureai/pkg/score"
)

const hingeHistoryWindow = 3

// InitiationPattern classifies which joint led the start of a lift.
type InitiationPattern string

const (
	InitiationUnknown      InitiationPattern = "unknown"
	InitiationHipFirst     InitiationPattern = "hip_first"
	InitiationKneeFirst    InitiationPattern = "knee_first"
	InitiationSimultaneous InitiationPattern = "simultaneous"
)

// hingeDelta is one frame's hip/knee-angle deltas, with the frame counter
// they were observed at (used to find which crossed the initiation threshold
// first within a short window).
type hingeDelta struct {
	hip, knee float64
	frameIdx  int
}

// HingeQualityState is the bounded hip/knee delta history the hinge-quality
// analyzer maintains (spec §4.5, deadlift's "hip-hinge quality").
type HingeQualityState struct {
	history  *ringbuffer.RingBuffer[hingeDelta]
	frameIdx int
	lastHip  float64
	lastKnee float64
	hasLast  bool
}

// NewHingeQualityState creates empty hinge-quality state.
func NewHingeQualityState() HingeQualityState {
	return HingeQualityState{history: ringbuffer.New[hingeDelta](30)}
}

// Clone returns an independent copy.
func (s HingeQualityState) Clone() HingeQualityState {
	return HingeQualityState{
		history:  s.history.Clone(),
		frameIdx: s.frameIdx,
		lastHip:  s.lastHip,
		lastKnee: s.lastKnee,
		hasLast:  s.hasLast,
	}
}

// HingeQualityResult is the output of AnalyzeHipHingeQuality.
type HingeQualityResult struct {
	HipDominantRatio float64
	SquatStyle       bool
	Initiation       InitiationPattern
	Feedback         score.FeedbackItem
	NewState         HingeQualityState
}

const initiationDeltaThreshold = 2.0 // degrees/frame

// AnalyzeHipHingeQuality tracks per-frame deltas of average hip angle and
// average knee angle, computing a hip-dominant ratio and, during the lift
// phase, classifying which joint initiated the movement. avgHipAngle and
// avgKneeAngle are the current frame's averaged left/right angles;
// inLiftPhase gates initiation classification.
func AnalyzeHipHingeQuality(avgHipAngle, avgKneeAngle float64, state HingeQualityState, inLiftPhase bool) HingeQualityResult {
	newState := state.Clone()

	var deltaHip, deltaKnee float64
	if newState.hasLast {
		deltaHip = avgHipAngle - newState.lastHip
		deltaKnee = avgKneeAngle - newState.lastKnee
	}
	newState.lastHip = avgHipAngle
	newState.lastKnee = avgKneeAngle
	newState.hasLast = true
	newState.frameIdx++

	newState.history.Push(hingeDelta{hip: deltaHip, knee: deltaKnee, frameIdx: newState.frameIdx})

	const epsilon = 0.5
	ratio := math.Abs(deltaHip) / math.Max(math.Abs(deltaKnee), epsilon)

	squatStyle := false
	if avgKneeAngle < 140 && deltaHip != 0 {
		kneeToHip := math.Abs(deltaKnee) / math.Abs(deltaHip)
		if kneeToHip > 0.8 {
			squatStyle = true
		}
	}

	initiation := InitiationUnknown
	if inLiftPhase {
		initiation = classifyInitiation(newState.history.Items())
	}

	idealBand := score.Band{IdealMin: 1.5, IdealMax: 3.0, AcceptableMin: 1.0, AcceptableMax: 4.0}
	itemScore := score.ItemScore(ratio, idealBand)
	level := score.ClassifyLevel(itemScore)
	if squatStyle {
		level = escalate(level)
	}

	return HingeQualityResult{
		HipDominantRatio: ratio,
		SquatStyle:       squatStyle,
		Initiation:       initiation,
		NewState:         newState,
		Feedback: score.FeedbackItem{
			Name:       "hip_hinge_quality",
			Level:      level,
			Value:      ratio,
			Ideal:      [2]float64{idealBand.IdealMin, idealBand.IdealMax},
			Acceptable: [2]float64{idealBand.AcceptableMin, idealBand.AcceptableMax},
			Correction: score.CorrectionNone,
			Message:    "hip_hinge_quality",
		},
	}
}

// classifyInitiation looks at the most recent 3-frame window for which of
// hip or knee delta first crossed the initiation threshold.
func classifyInitiation(history []hingeDelta) InitiationPattern {
	n := len(history)
	if n == 0 {
		return InitiationUnknown
	}
	start := 0
	if n > hingeHistoryWindow {
		start = n - hingeHistoryWindow
	}
	window := history[start:]

	hipCrossedAt, kneeCrossedAt := -1, -1
	for i, d := range window {
		if hipCrossedAt == -1 && math.Abs(d.hip) >= initiationDeltaThreshold {
			hipCrossedAt = i
		}
		if kneeCrossedAt == -1 && math.Abs(d.knee) >= initiationDeltaThreshold {
			kneeCrossedAt = i
		}
	}

	switch {
	case hipCrossedAt == -1 && kneeCrossedAt == -1:
		return InitiationUnknown
	case hipCrossedAt != -1 && kneeCrossedAt == -1:
		return InitiationHipFirst
	case kneeCrossedAt != -1 && hipCrossedAt == -1:
		return InitiationKneeFirst
	case hipCrossedAt < kneeCrossedAt:
		return InitiationHipFirst
	case kneeCrossedAt < hipCrossedAt:
		return InitiationKneeFirst
	default:
		return InitiationSimultaneous
	}
}
