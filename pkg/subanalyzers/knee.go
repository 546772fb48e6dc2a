package subanalyzers

import (
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
)

// KneeDeviation classifies the direction a knee deviates from the
// hip-ankle line.
type KneeDeviation string

const (
	KneeNeutral KneeDeviation = "neutral"
	KneeValgus  KneeDeviation = "valgus" // knee collapses toward centerline
	KneeVarus   KneeDeviation = "varus"  // knee bows away from centerline
)

// Side names which leg a per-leg measurement belongs to.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// KneeAlignmentState is the per-leg rolling peak and calibrated standing
// baseline the dynamic-valgus measurement needs.
type KneeAlignmentState struct {
	PeakDeviation     map[Side]float64
	StandingBaseline  map[Side]float64
	BaselineCaptured  bool
}

// NewKneeAlignmentState creates an empty state.
func NewKneeAlignmentState() KneeAlignmentState {
	return KneeAlignmentState{
		PeakDeviation:    map[Side]float64{SideLeft: 0, SideRight: 0},
		StandingBaseline: map[Side]float64{SideLeft: 0, SideRight: 0},
	}
}

// Clone returns an independent copy.
func (s KneeAlignmentState) Clone() KneeAlignmentState {
	clone := KneeAlignmentState{
		PeakDeviation:    make(map[Side]float64, len(s.PeakDeviation)),
		StandingBaseline: make(map[Side]float64, len(s.StandingBaseline)),
		BaselineCaptured: s.BaselineCaptured,
	}
	for k, v := range s.PeakDeviation {
		clone.PeakDeviation[k] = v
	}
	for k, v := range s.StandingBaseline {
		clone.StandingBaseline[k] = v
	}
	return clone
}

// PerLegKneeResult holds one leg's classification.
type PerLegKneeResult struct {
	DeviationAngle float64
	Classification KneeDeviation
	PeakDeviation  float64
	DynamicValgus  float64
}

// KneeAlignmentResult is the output of AnalyzeKneeAlignment3D.
type KneeAlignmentResult struct {
	Left, Right PerLegKneeResult
	Feedback    score.FeedbackItem
	NewState    KneeAlignmentState
	Valid       bool
}

// AnalyzeKneeAlignment3D classifies valgus/varus deviation for each leg
// from how far the knee's x position strays from the hip-ankle midline,
// normalized by leg length. isStandingPhase resets the per-rep peak;
// captureBaseline records the current deviation as the session's standing
// baseline exactly once.
func AnalyzeKneeAlignment3D(f landmark.Frame, state KneeAlignmentState, isStandingPhase, captureBaseline bool) KneeAlignmentResult {
	required := []landmark.Index{
		landmark.LeftHip, landmark.RightHip,
		landmark.LeftKnee, landmark.RightKnee,
		landmark.LeftAnkle, landmark.RightAnkle,
	}
	newState := state.Clone()
	if !f.AllValid(required...) {
		return KneeAlignmentResult{Feedback: invalidFeedback("knee_alignment"), NewState: newState}
	}

	toPoint := func(idx landmark.Index) geometry.Point {
		kp := f.At(idx)
		return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
	}

	left := analyzeLeg(SideLeft, toPoint(landmark.LeftHip), toPoint(landmark.LeftKnee), toPoint(landmark.LeftAnkle))
	right := analyzeLeg(SideRight, toPoint(landmark.RightHip), toPoint(landmark.RightKnee), toPoint(landmark.RightAnkle))

	if isStandingPhase {
		newState.PeakDeviation[SideLeft] = 0
		newState.PeakDeviation[SideRight] = 0
	}
	if left.DeviationAngle > newState.PeakDeviation[SideLeft] {
		newState.PeakDeviation[SideLeft] = left.DeviationAngle
	}
	if right.DeviationAngle > newState.PeakDeviation[SideRight] {
		newState.PeakDeviation[SideRight] = right.DeviationAngle
	}
	left.PeakDeviation = newState.PeakDeviation[SideLeft]
	right.PeakDeviation = newState.PeakDeviation[SideRight]

	if captureBaseline && !newState.BaselineCaptured {
		newState.StandingBaseline[SideLeft] = left.DeviationAngle
		newState.StandingBaseline[SideRight] = right.DeviationAngle
		newState.BaselineCaptured = true
	}
	left.DynamicValgus = left.DeviationAngle - newState.StandingBaseline[SideLeft]
	right.DynamicValgus = right.DeviationAngle - newState.StandingBaseline[SideRight]

	worst := left.DeviationAngle
	if right.DeviationAngle > worst {
		worst = right.DeviationAngle
	}
	level := classifyKneeLevel(worst)

	correction := score.CorrectionNone
	if left.Classification == KneeValgus || right.Classification == KneeValgus {
		correction = score.CorrectionOutward
	} else if left.Classification == KneeVarus || right.Classification == KneeVarus {
		correction = score.CorrectionInward
	}

	return KneeAlignmentResult{
		Left:     left,
		Right:    right,
		Valid:    true,
		NewState: newState,
		Feedback: score.FeedbackItem{
			Name:       "knee_alignment",
			Level:      level,
			Value:      worst,
			Ideal:      [2]float64{0, 5},
			Acceptable: [2]float64{0, 10},
			Correction: correction,
			Message:    "knee_alignment",
		},
	}
}

// analyzeLeg classifies one leg's frontal-plane knee deviation. midX is the
// midpoint of hip and ankle along x — the knee's expected neutral position.
// Per spec §4.5: if the knee's x lies between the hip and that midpoint
// (i.e. has moved toward the body centerline relative to its neutral
// position), it's valgus; on the opposite side, varus.
func analyzeLeg(side Side, hip, knee, ankle geometry.Point) PerLegKneeResult {
	legLength := geometry.Distance2(hip, ankle)
	midX := (hip.X + ankle.X) / 2

	// Signed so that, for either leg, a positive value means "moved toward
	// the centerline from midX" — for the left leg the centerline is in
	// the +x direction, for the right leg it's -x.
	raw := knee.X - midX
	signedTowardCenter := raw
	if side == SideRight {
		signedTowardCenter = -raw
	}

	var angleDeviation float64
	if legLength > 0 {
		angleDeviation = absFloat(raw) / legLength * 90
	}

	classification := KneeNeutral
	if angleDeviation > 5 {
		if signedTowardCenter > 0 {
			classification = KneeValgus
		} else {
			classification = KneeVarus
		}
	}

	return PerLegKneeResult{
		DeviationAngle: angleDeviation,
		Classification: classification,
	}
}

func classifyKneeLevel(deviation float64) score.Level {
	switch {
	case deviation <= 5:
		return score.LevelGood
	case deviation <= 10:
		return score.LevelWarning
	default:
		return score.LevelError
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
