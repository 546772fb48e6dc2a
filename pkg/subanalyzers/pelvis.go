package subanalyzers

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/ringbuffer"
	"github.com/kanoo-op/postureai/pkg/score"
)

const pelvicHistoryWindow = 30

// PelvisState is the rolling history the stability sub-score needs. Threaded
// explicitly by the owning exercise's AnalyzerState.
type PelvisState struct {
	history *ringbuffer.RingBuffer[float64]
}

// NewPelvisState creates an empty rolling-window state.
func NewPelvisState() PelvisState {
	return PelvisState{history: ringbuffer.New[float64](pelvicHistoryWindow)}
}

// Clone returns an independent copy.
func (s PelvisState) Clone() PelvisState {
	return PelvisState{history: s.history.Clone()}
}

// PelvicTiltResult is the output of AnalyzePelvicTilt.
type PelvicTiltResult struct {
	AnteriorTilt   float64
	LateralTilt    float64
	StabilityScore float64
	Anterior       score.FeedbackItem
	Lateral        score.FeedbackItem
	Stability      score.FeedbackItem
	NewState       PelvisState
	Valid          bool
}

// AnalyzePelvicTilt computes anterior tilt (hip-to-shoulder line projected
// into the sagittal plane, relative to vertical), lateral tilt (hip height
// asymmetry normalized by hip width), and a stability score from the
// standard deviation of anterior tilt over a rolling window.
func AnalyzePelvicTilt(f landmark.Frame, state PelvisState, anteriorBand, lateralBand, stabilityBand score.Band) PelvicTiltResult {
	required := []landmark.Index{
		landmark.LeftShoulder, landmark.RightShoulder,
		landmark.LeftHip, landmark.RightHip,
	}
	newState := state.Clone()
	if !f.AllValid(required...) {
		return PelvicTiltResult{
			Anterior:  invalidFeedback("pelvic_tilt_anterior"),
			Lateral:   invalidFeedback("pelvic_tilt_lateral"),
			Stability: invalidFeedback("pelvic_tilt_stability"),
			NewState:  newState,
		}
	}

	toPoint := func(idx landmark.Index) geometry.Point {
		kp := f.At(idx)
		return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
	}

	lShoulder := toPoint(landmark.LeftShoulder)
	rShoulder := toPoint(landmark.RightShoulder)
	lHip := toPoint(landmark.LeftHip)
	rHip := toPoint(landmark.RightHip)

	shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
	hipMid := geometry.Midpoint(lHip, rHip)

	// Sagittal plane: drop x, keep y/z.
	sagittalHip := geometry.ProjectYZ(hipMid)
	sagittalShoulder := geometry.ProjectYZ(shoulderMid)
	// Reads 0 for a perfectly vertical torso and grows as the torso leans.
	anterior := geometry.AngleWithVertical(sagittalHip, sagittalShoulder)

	hipWidth := geometry.Distance2(lHip, rHip)
	var lateral float64
	if hipWidth > 0 {
		heightDiff := rHip.Y - lHip.Y
		lateral = math.Atan(heightDiff/hipWidth) * 180 / math.Pi
	}

	newState.history.Push(anterior)
	stability := 100.0
	items := newState.history.Items()
	if len(items) >= 2 {
		stability = 100 - 2*stdDev(items)
		stability = clamp01to100(stability)
	}

	anteriorItemScore := score.ItemScore(anterior, anteriorBand)
	lateralItemScore := score.ItemScore(lateral, lateralBand)
	stabilityItemScore := score.ItemScore(stability, stabilityBand)

	return PelvicTiltResult{
		AnteriorTilt:   anterior,
		LateralTilt:    lateral,
		StabilityScore: stability,
		Valid:          true,
		NewState:       newState,
		Anterior: score.FeedbackItem{
			Name:       "pelvic_tilt_anterior",
			Level:      score.ClassifyLevel(anteriorItemScore),
			Value:      anterior,
			Ideal:      [2]float64{anteriorBand.IdealMin, anteriorBand.IdealMax},
			Acceptable: [2]float64{anteriorBand.AcceptableMin, anteriorBand.AcceptableMax},
			Correction: correctionForSign(anterior),
			Message:    "pelvic_tilt_anterior",
		},
		Lateral: score.FeedbackItem{
			Name:       "pelvic_tilt_lateral",
			Level:      score.ClassifyLevel(lateralItemScore),
			Value:      lateral,
			Ideal:      [2]float64{lateralBand.IdealMin, lateralBand.IdealMax},
			Acceptable: [2]float64{lateralBand.AcceptableMin, lateralBand.AcceptableMax},
			Correction: score.CorrectionNone,
			Message:    "pelvic_tilt_lateral",
		},
		Stability: score.FeedbackItem{
			Name:       "pelvic_tilt_stability",
			Level:      score.ClassifyLevel(stabilityItemScore),
			Value:      stability,
			Ideal:      [2]float64{stabilityBand.IdealMin, stabilityBand.IdealMax},
			Acceptable: [2]float64{stabilityBand.AcceptableMin, stabilityBand.AcceptableMax},
			Correction: score.CorrectionNone,
			Message:    "pelvic_tilt_stability",
		},
	}
}

func correctionForSign(v float64) score.Correction {
	if v > 0 {
		return score.CorrectionBackward
	}
	if v < 0 {
		return score.CorrectionForward
	}
	return score.CorrectionNone
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
