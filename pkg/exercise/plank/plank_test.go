package plank

import (
	"testing"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
)

func goodPlankFrame() landmark.Frame {
	var f landmark.Frame
	f[landmark.LeftShoulder] = landmark.Point{X: 0.3, Y: 0.48, Score: 0.9}
	f[landmark.RightShoulder] = landmark.Point{X: 0.3, Y: 0.52, Score: 0.9}
	f[landmark.LeftHip] = landmark.Point{X: 0.5, Y: 0.48, Score: 0.9}
	f[landmark.RightHip] = landmark.Point{X: 0.5, Y: 0.52, Score: 0.9}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.7, Y: 0.48, Score: 0.9}
	f[landmark.RightAnkle] = landmark.Point{X: 0.7, Y: 0.52, Score: 0.9}
	f[landmark.LeftWrist] = landmark.Point{X: 0.3, Y: 0.43, Score: 0.9}
	f[landmark.RightWrist] = landmark.Point{X: 0.3, Y: 0.57, Score: 0.9}
	f[landmark.LeftEar] = landmark.Point{X: 0.28, Y: 0.47, Score: 0.9}
	f[landmark.RightEar] = landmark.Point{X: 0.28, Y: 0.53, Score: 0.9}
	return f
}

// TestPlankHoldTimeAccumulation implements spec scenario S5: a valid frame
// at t=0 then t=1000ms accumulates ~1.0s of hold time; an invalid frame at
// t=1500ms resets currentHoldTime to zero while totalHoldTime is retained.
func TestPlankHoldTimeAccumulation(t *testing.T) {
	state := NewState(smoothing.DefaultConfig(), depth.DefaultConfig())
	good := goodPlankFrame()

	_, state = Analyze(good, state, 0)
	result, state := Analyze(good, state, 1000)

	if result.CurrentHoldTimeMs != 1000 {
		t.Errorf("expected currentHoldTime=1000ms after two valid frames 1000ms apart, got %d", result.CurrentHoldTimeMs)
	}
	if result.TotalHoldTimeMs != 1000 {
		t.Errorf("expected totalHoldTime=1000ms, got %d", result.TotalHoldTimeMs)
	}

	var invalid landmark.Frame
	result2, state := Analyze(invalid, state, 1500)

	if result2.CurrentHoldTimeMs != 0 {
		t.Errorf("expected currentHoldTime reset to 0 on an invalid frame, got %d", result2.CurrentHoldTimeMs)
	}
	if result2.TotalHoldTimeMs != 1000 {
		t.Errorf("expected totalHoldTime to retain prior accumulation, got %d", result2.TotalHoldTimeMs)
	}
	_ = state
}

func TestPlankCompositeScoreInRange(t *testing.T) {
	state := NewState(smoothing.DefaultConfig(), depth.DefaultConfig())
	f := goodPlankFrame()
	result, _ := Analyze(f, state, 0)
	if result.Score < 0 || result.Score > 100 {
		t.Errorf("expected composite score in [0,100], got %v", result.Score)
	}
}

func TestPlankInvalidPoseZeroScore(t *testing.T) {
	state := NewState(smoothing.DefaultConfig(), depth.DefaultConfig())
	var f landmark.Frame
	result, _ := Analyze(f, state, 0)
	if result.Score != 0 {
		t.Errorf("expected zero score for unrecognized pose, got %v", result.Score)
	}
	if len(result.Feedback) == 0 {
		t.Fatal("expected warning feedback on every channel, got none")
	}
	for _, fb := range result.Feedback {
		if fb.Level != score.LevelWarning {
			t.Errorf("expected warning-level feedback for channel %q, got %v", fb.Name, fb.Level)
		}
	}
}
