package deadlift

import (
	"testing"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
)

func lockoutFrame() landmark.Frame {
	var f landmark.Frame
	for i := range f {
		f[i] = landmark.Point{Score: 0.9}
	}
	f[landmark.LeftShoulder] = landmark.Point{X: 0.45, Y: 0.15, Score: 0.9}
	f[landmark.RightShoulder] = landmark.Point{X: 0.55, Y: 0.15, Score: 0.9}
	f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.5, Score: 0.9}
	f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.5, Score: 0.9}
	f[landmark.LeftKnee] = landmark.Point{X: 0.45, Y: 0.75, Score: 0.9}
	f[landmark.RightKnee] = landmark.Point{X: 0.55, Y: 0.75, Score: 0.9}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.45, Y: 0.95, Score: 0.9}
	f[landmark.RightAnkle] = landmark.Point{X: 0.55, Y: 0.95, Score: 0.9}
	f[landmark.LeftWrist] = landmark.Point{X: 0.45, Y: 0.55, Score: 0.9}
	f[landmark.RightWrist] = landmark.Point{X: 0.55, Y: 0.55, Score: 0.9}
	f[landmark.LeftEar] = landmark.Point{X: 0.45, Y: 0.12, Score: 0.9}
	f[landmark.RightEar] = landmark.Point{X: 0.55, Y: 0.12, Score: 0.9}
	return f
}

// TestDeadliftLockoutFromLift implements spec scenario S2: prior state
// {previousPhase: lift, lockoutReached: false}, a frame whose hip-hinge
// angle computes >= 155 degrees. Expected: phase=lockout, repCompleted=true,
// new state's lockoutReached=true and repCount=prior+1.
func TestDeadliftLockoutFromLift(t *testing.T) {
	state := NewState(smoothing.DefaultConfig(), depth.DefaultConfig())
	state.Phase = PhaseLift
	state.LockoutReached = false
	state.RepCount = 2
	state.LastHipHinge = 140
	state.HasLastHipHinge = true

	f := lockoutFrame()
	result, newState := Analyze(f, state, 1000)

	if result.Phase != "lockout" {
		t.Errorf("expected phase=lockout, got %v (hinge angle approx)", result.Phase)
	}
	if !result.RepCompleted {
		t.Error("expected repCompleted=true on lift->lockout transition")
	}
	if !newState.LockoutReached {
		t.Error("expected lockoutReached=true in new state")
	}
	if newState.RepCount != 3 {
		t.Errorf("expected repCount=3 (prior+1), got %d", newState.RepCount)
	}
}

func TestDeadliftInvalidPose(t *testing.T) {
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

func TestDeadliftCompositeScoreInRange(t *testing.T) {
	state := NewState(smoothing.DefaultConfig(), depth.DefaultConfig())
	f := lockoutFrame()
	result, _ := Analyze(f, state, 0)
	if result.Score < 0 || result.Score > 100 {
		t.Errorf("expected composite score in [0,100], got %v", result.Score)
	}
}
