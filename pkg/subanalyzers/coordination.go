package subanalyzers

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/ringbuffer"
	"github.com/kanoo-op/postureai/pkg/score"
)

const coordinationHistoryWindow = 30

// CoordinationPattern classifies which joint is driving the movement.
type CoordinationPattern string

const (
	PatternSynchronized      CoordinationPattern = "synchronized"
	PatternKneeDominant      CoordinationPattern = "knee_dominant"
	PatternHipDominant       CoordinationPattern = "hip_dominant"
	PatternTorsoCompensating CoordinationPattern = "torso_compensating"
)

// OptimalRatio is the exercise-specific knee-to-hip ratio band used to
// score coordination (spec §4.5: squat ~0.85-1.15, deadlift ~0.6-0.9,
// lunge ~0.7-1.3).
type OptimalRatio struct {
	Min, Max float64
}

var (
	SquatOptimalRatio    = OptimalRatio{Min: 0.85, Max: 1.15}
	DeadliftOptimalRatio = OptimalRatio{Min: 0.6, Max: 0.9}
	LungeOptimalRatio    = OptimalRatio{Min: 0.7, Max: 1.3}
)

type jointSample struct {
	left, right, torso float64
}

// CoordinationState is the bounded per-side angle/velocity history the
// coordination analyzer needs to derive timing lead/lag and bilateral
// asymmetry.
type CoordinationState struct {
	knee    *ringbuffer.RingBuffer[jointSample]
	hip     *ringbuffer.RingBuffer[jointSample]
	lastKnee, lastHip jointSample
	hasLast bool
}

// NewCoordinationState creates empty coordination state.
func NewCoordinationState() CoordinationState {
	return CoordinationState{
		knee: ringbuffer.New[jointSample](coordinationHistoryWindow),
		hip:  ringbuffer.New[jointSample](coordinationHistoryWindow),
	}
}

// Clone returns an independent copy.
func (s CoordinationState) Clone() CoordinationState {
	return CoordinationState{
		knee:     s.knee.Clone(),
		hip:      s.hip.Clone(),
		lastKnee: s.lastKnee,
		lastHip:  s.lastHip,
		hasLast:  s.hasLast,
	}
}

// CoordinationResult is the output of AnalyzeCoordination.
type CoordinationResult struct {
	KneeToHipRatio    float64
	LeadingJoint       string
	LagMs              float64
	Pattern            CoordinationPattern
	PatternConfidence  float64
	CoordinationScore  float64
	BilateralLeft      float64
	BilateralRight     float64
	Asymmetry          float64
	Feedback           score.FeedbackItem
	NewState           CoordinationState
}

// AnalyzeCoordination derives knee/hip/torso timing and bilateral symmetry
// from per-frame angle samples. Angles are degrees; dtMs is the elapsed
// time since the previous frame (used to compute per-joint velocities for
// leader detection). optimal bands the knee-to-hip ratio.
func AnalyzeCoordination(kneeLeft, kneeRight, hipLeft, hipRight, torsoAngle float64, dtMs float64, state CoordinationState, optimal OptimalRatio) CoordinationResult {
	newState := state.Clone()

	kneeSample := jointSample{left: kneeLeft, right: kneeRight, torso: torsoAngle}
	hipSample := jointSample{left: hipLeft, right: hipRight, torso: torsoAngle}

	var kneeVelocity, hipVelocity float64
	if newState.hasLast && dtMs > 0 {
		kneeAvgDelta := ((kneeLeft - newState.lastKnee.left) + (kneeRight - newState.lastKnee.right)) / 2
		hipAvgDelta := ((hipLeft - newState.lastHip.left) + (hipRight - newState.lastHip.right)) / 2
		kneeVelocity = kneeAvgDelta / dtMs * 1000
		hipVelocity = hipAvgDelta / dtMs * 1000
	}
	newState.lastKnee = kneeSample
	newState.lastHip = hipSample
	newState.hasLast = true

	newState.knee.Push(kneeSample)
	newState.hip.Push(hipSample)

	kneeAvg := (kneeLeft + kneeRight) / 2
	hipAvg := (hipLeft + hipRight) / 2

	const epsilon = 1.0
	ratio := math.Abs(kneeAvg) / math.Max(math.Abs(hipAvg), epsilon)
	if hipAvg == 0 && kneeAvg == 0 {
		ratio = 1.0
	}

	leadingJoint := "none"
	var lagMs float64
	const velocityThreshold = 5.0 // deg/s
	switch {
	case math.Abs(kneeVelocity) > velocityThreshold && math.Abs(hipVelocity) <= velocityThreshold:
		leadingJoint = "knee"
		lagMs = dtMs
	case math.Abs(hipVelocity) > velocityThreshold && math.Abs(kneeVelocity) <= velocityThreshold:
		leadingJoint = "hip"
		lagMs = dtMs
	case math.Abs(kneeVelocity) > velocityThreshold && math.Abs(hipVelocity) > velocityThreshold:
		leadingJoint = "simultaneous"
	}

	torsoCompensating := torsoAngle > 15
	pattern := classifyPattern(ratio, optimal, leadingJoint, torsoCompensating)
	patternConfidence := patternConfidenceFor(pattern, ratio, optimal)

	ratioBand := score.Band{IdealMin: optimal.Min, IdealMax: optimal.Max, AcceptableMin: optimal.Min - 0.25, AcceptableMax: optimal.Max + 0.25}
	coordinationScore := score.ItemScore(ratio, ratioBand)
	if torsoCompensating {
		coordinationScore = math.Max(0, coordinationScore-15)
	}

	bilateralLeft := math.Abs(kneeLeft-hipLeft) / math.Max(math.Abs(hipLeft), epsilon)
	bilateralRight := math.Abs(kneeRight-hipRight) / math.Max(math.Abs(hipRight), epsilon)
	asymmetry := math.Abs(bilateralLeft - bilateralRight)

	level := score.ClassifyLevel(coordinationScore)

	return CoordinationResult{
		KneeToHipRatio:    ratio,
		LeadingJoint:      leadingJoint,
		LagMs:             lagMs,
		Pattern:           pattern,
		PatternConfidence: patternConfidence,
		CoordinationScore: coordinationScore,
		BilateralLeft:     bilateralLeft,
		BilateralRight:    bilateralRight,
		Asymmetry:         asymmetry,
		NewState:          newState,
		Feedback: score.FeedbackItem{
			Name:       "coordination",
			Level:      level,
			Value:      coordinationScore,
			Ideal:      [2]float64{90, 100},
			Acceptable: [2]float64{70, 100},
			Correction: score.CorrectionNone,
			Message:    "coordination",
		},
	}
}

func classifyPattern(ratio float64, optimal OptimalRatio, leadingJoint string, torsoCompensating bool) CoordinationPattern {
	if torsoCompensating {
		return PatternTorsoCompensating
	}
	switch {
	case ratio > optimal.Max:
		return PatternKneeDominant
	case ratio < optimal.Min:
		return PatternHipDominant
	case leadingJoint == "knee":
		return PatternKneeDominant
	case leadingJoint == "hip":
		return PatternHipDominant
	default:
		return PatternSynchronized
	}
}

func patternConfidenceFor(pattern CoordinationPattern, ratio float64, optimal OptimalRatio) float64 {
	mid := (optimal.Min + optimal.Max) / 2
	span := (optimal.Max - optimal.Min) / 2
	if span <= 0 {
		span = 0.1
	}
	distance := math.Abs(ratio-mid) / span
	switch pattern {
	case PatternSynchronized:
		return math.Max(0.5, 1-distance*0.5)
	default:
		return math.Min(1.0, 0.5+distance*0.25)
	}
}
