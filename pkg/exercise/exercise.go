// Package exercise holds the types shared by every per-exercise analyzer
// in pkg/exercise/{squat,lunge,deadlift,pushup,plank}: the generic phase
// quadruple the rep analyzer segments on, and the per-frame result shape
// every analyze<Exercise> call returns (spec §3, §4.6).
package exercise

import "github.com/kanoo-op/postureai/pkg/score"

// GenericPhase is the four-phase quadruple every exercise-specific phase
// maps onto, used by the L5 rep segmenter (spec §4.9).
type GenericPhase string

const (
	GenericStanding   GenericPhase = "standing"
	GenericDescending GenericPhase = "descending"
	GenericBottom     GenericPhase = "bottom"
	GenericAscending  GenericPhase = "ascending"
)

// Result is the per-frame output common to every exercise analyzer: a
// composite score, the feedback items that produced it, the exercise's own
// phase label (as a string, since each exercise package defines its own
// Phase enum) mapped to a GenericPhase for batch use, and diagnostics.
type Result struct {
	Score        int
	Feedback     []score.FeedbackItem
	Phase        string
	GenericPhase GenericPhase
	RepCompleted bool
	RepCount     uint32
	RawAngles    map[string]float64
}

// PoseUnrecognized is the distinguished score value reserved for frames
// whose required keypoints are invalid (spec §3 invariant: "0 is reserved
// for pose not reliably recognized").
const PoseUnrecognized = 0

// UnrecognizedResult builds the degraded result for an invalid pose: zero
// score, no phase change, no rep, and a warning feedback item on every
// channel this exercise would otherwise report (spec §3, §8: "A landmark
// frame with every score = 0.49 yields score 0 and warning-level feedback
// on every channel").
func UnrecognizedResult(previousPhase string, previousGeneric GenericPhase, repCount uint32, channels ...string) Result {
	feedback := make([]score.FeedbackItem, len(channels))
	for i, name := range channels {
		feedback[i] = channelUnrecognizedFeedback(name)
	}
	return Result{
		Score:        PoseUnrecognized,
		Feedback:     feedback,
		Phase:        previousPhase,
		GenericPhase: previousGeneric,
		RepCompleted: false,
		RepCount:     repCount,
		RawAngles:    map[string]float64{},
	}
}

func channelUnrecognizedFeedback(name string) score.FeedbackItem {
	return score.FeedbackItem{
		Name:       name,
		Level:      score.LevelWarning,
		Correction: score.CorrectionNone,
		Message:    name + "_unrecognized",
	}
}

// Hysteresis is the default band-crossing margin used by every phase state
// machine to avoid flicker at a threshold (spec §4.6.1: "Hysteresis ±5° on
// threshold crossings").
const Hysteresis = 5.0
