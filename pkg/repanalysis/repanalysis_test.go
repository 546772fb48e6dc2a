package repanalysis

import (
	"math"
	"testing"

	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/landmark"
)

func phaseBlock(phase exercise.GenericPhase, count int, startIdx int, startMs uint64) ([]FrameRecord, int, uint64) {
	records := make([]FrameRecord, count)
	idx := startIdx
	ts := startMs
	for i := 0; i < count; i++ {
		records[i] = FrameRecord{FrameIndex: idx, TimestampMs: ts, Score: 80, GenericPhase: phase}
		idx++
		ts += 33
	}
	return records, idx, ts
}

// TestSegmentRepsTwoCycles implements spec scenario S6: standing x5,
// descending x10, bottom x5, ascending x10, repeated twice (plus a final
// standing frame to close the second rep), at 33ms spacing. Expected:
// exactly 2 reps segmented.
func TestSegmentRepsTwoCycles(t *testing.T) {
	var all []FrameRecord
	idx := 0
	var ts uint64

	for cycle := 0; cycle < 2; cycle++ {
		var block []FrameRecord
		block, idx, ts = phaseBlock(exercise.GenericStanding, 5, idx, ts)
		all = append(all, block...)
		block, idx, ts = phaseBlock(exercise.GenericDescending, 10, idx, ts)
		all = append(all, block...)
		block, idx, ts = phaseBlock(exercise.GenericBottom, 5, idx, ts)
		all = append(all, block...)
		block, idx, ts = phaseBlock(exercise.GenericAscending, 10, idx, ts)
		all = append(all, block...)
	}
	final, _, _ := phaseBlock(exercise.GenericStanding, 1, idx, ts)
	all = append(all, final...)

	boundaries := segmentReps(all, defaultMinRepDurationMs, defaultMaxRepDurationMs)

	if len(boundaries) != 2 {
		t.Fatalf("expected exactly 2 reps, got %d", len(boundaries))
	}
}

func squatLikeFrame(kneeY float64) landmark.Frame {
	var f landmark.Frame
	for i := range f {
		f[i] = landmark.Point{Score: 0.9}
	}
	f[landmark.LeftShoulder] = landmark.Point{X: 0.45, Y: 0.2, Score: 0.9}
	f[landmark.RightShoulder] = landmark.Point{X: 0.55, Y: 0.2, Score: 0.9}
	f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.5, Score: 0.9}
	f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.5, Score: 0.9}
	f[landmark.LeftKnee] = landmark.Point{X: 0.45, Y: kneeY, Score: 0.9}
	f[landmark.RightKnee] = landmark.Point{X: 0.55, Y: kneeY, Score: 0.9}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.45, Y: 0.95, Score: 0.9}
	f[landmark.RightAnkle] = landmark.Point{X: 0.55, Y: 0.95, Score: 0.9}
	return f
}

func TestDetectExerciseTypeVerticalKneeRange(t *testing.T) {
	frames := []landmark.Frame{
		squatLikeFrame(0.75),
		squatLikeFrame(0.65),
		squatLikeFrame(0.55),
	}
	result := DetectExerciseType(frames)
	if result.Type == ExerciseUnknown {
		t.Error("expected a vertical-orientation exercise to be detected, got unknown")
	}
	if result.Votes[ExercisePushup] != 0 {
		t.Errorf("expected no pushup votes for a vertical-body clip, got %v", result.Votes[ExercisePushup])
	}
}

func TestComputeConsistencyEmptyReps(t *testing.T) {
	c := computeConsistency(nil)
	if c.Trend != "stable" {
		t.Errorf("expected stable trend for no reps, got %v", c.Trend)
	}
	if c.OverallConsistency != 100 {
		t.Errorf("expected overall consistency 100 for no reps, got %d", c.OverallConsistency)
	}
}

func TestComputeConsistencyTrend(t *testing.T) {
	reps := []RepResult{
		{Index: 0, Score: 60, DurationMs: 800},
		{Index: 1, Score: 75, DurationMs: 800},
		{Index: 2, Score: 90, DurationMs: 800},
	}
	c := computeConsistency(reps)
	if c.BestRepIndex != 2 {
		t.Errorf("expected best rep index 2, got %d", c.BestRepIndex)
	}
	if c.WorstRepIndex != 0 {
		t.Errorf("expected worst rep index 0, got %d", c.WorstRepIndex)
	}
	if len(c.PerRep) != 3 {
		t.Errorf("expected 3 per-rep comparisons, got %d", len(c.PerRep))
	}
}

func TestComputeConsistencyOverallConsistencyFormula(t *testing.T) {
	reps := []RepResult{
		{Index: 0, Score: 60, DurationMs: 800},
		{Index: 1, Score: 75, DurationMs: 800},
		{Index: 2, Score: 90, DurationMs: 800},
	}
	c := computeConsistency(reps)
	want := int(math.Round(100 - 2*c.ScoreStdDev))
	if want < 0 {
		want = 0
	}
	if c.OverallConsistency != want {
		t.Errorf("expected overall consistency %d (100-2*%.2f), got %d", want, c.ScoreStdDev, c.OverallConsistency)
	}
}

func TestTopIssuesLimitsToFive(t *testing.T) {
	counts := map[string]int{"a": 5, "b": 4, "c": 3, "d": 2, "e": 1, "f": 6}
	top := topIssues(counts, 5)
	if len(top) != 5 {
		t.Fatalf("expected 5 issues, got %d", len(top))
	}
	if top[0] != "f" {
		t.Errorf("expected highest-count issue first, got %v", top[0])
	}
}
