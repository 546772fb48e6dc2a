package depth

import (
	"testing"

	"github.com/kanoo-op/postureai/pkg/landmark"
)

func frameWithZ(z float64, score float64) landmark.Frame {
	var f landmark.Frame
	for i := range f {
		f[i] = landmark.Point{X: 0.5, Y: 0.5, Z: z, Score: score}
	}
	return f
}

func TestCalculateDepthConfidenceZeroZVariance(t *testing.T) {
	f := frameWithZ(0, 0.9)
	conf := CalculateDepthConfidence(f, 0)
	if !conf.IsReliable {
		// zero variance with full valid joints and decent score should be reliable
		t.Errorf("expected reliable confidence for zero-variance depth, got %+v", conf)
	}
	if conf.Variance != 0 {
		t.Errorf("expected zero variance, got %v", conf.Variance)
	}
}

func TestCalculateDepthConfidenceInsufficientJoints(t *testing.T) {
	var f landmark.Frame
	for i := range f {
		f[i] = landmark.Point{Score: 0.9} // all z=0 but scores too low where needed
	}
	// Make only 2 of the key joints valid.
	f[landmark.LeftShoulder] = landmark.Point{Score: 0.9}
	f[landmark.RightShoulder] = landmark.Point{Score: 0.9}
	for _, idx := range []landmark.Index{landmark.LeftHip, landmark.RightHip, landmark.LeftKnee, landmark.RightKnee} {
		f[idx] = landmark.Point{Score: 0.1}
	}
	conf := CalculateDepthConfidence(f, 0)
	if conf.IsReliable || conf.Score != 0 {
		t.Errorf("expected unreliable zero-score confidence with <3 valid joints, got %+v", conf)
	}
}

func TestPerspectiveFactorUnreliableIsOne(t *testing.T) {
	f := frameWithZ(0, 0.1) // low score -> insufficient valid joints
	pf := CalculatePerspectiveFactor(f, 0.5, DefaultConfig())
	if pf.Factor != 1.0 {
		t.Errorf("expected factor 1.0 when unreliable, got %v", pf.Factor)
	}
}

func TestPerspectiveFactorClamped(t *testing.T) {
	f := frameWithZ(0.01, 0.95)
	pf := CalculatePerspectiveFactor(f, 10.0, DefaultConfig())
	if pf.Factor < DefaultConfig().MinCorrectionFactor || pf.Factor > DefaultConfig().MaxCorrectionFactor {
		t.Errorf("factor %v out of configured clamp range", pf.Factor)
	}
}

func TestApplyPerspectiveCorrectionIdentity(t *testing.T) {
	for _, at := range []AngleType{AngleKneeFlexion, AngleHipFlexion, AngleTorsoInclination, AngleAnkle} {
		for _, v := range []float64{0, 45, 90, 180} {
			got := ApplyPerspectiveCorrection(v, 1.0, at)
			if got != v {
				t.Errorf("ApplyPerspectiveCorrection(%v, 1.0, %v) = %v, want %v", v, at, got, v)
			}
		}
	}
}

func TestSmootherFirstSampleUnchanged(t *testing.T) {
	s := NewSmoother(0.3)
	if got := s.Update(5); got != 5 {
		t.Errorf("first sample = %v, want 5", got)
	}
}

func TestIsTPoseAllZeroZ(t *testing.T) {
	// Arms horizontal: shoulders and wrists at same y, axis vertical.
	var f landmark.Frame
	for i := range f {
		f[i] = landmark.Point{Score: 0.9}
	}
	f[landmark.LeftShoulder] = landmark.Point{X: 0.4, Y: 0.3, Score: 0.9}
	f[landmark.RightShoulder] = landmark.Point{X: 0.6, Y: 0.3, Score: 0.9}
	f[landmark.LeftElbow] = landmark.Point{X: 0.2, Y: 0.3, Score: 0.9}
	f[landmark.RightElbow] = landmark.Point{X: 0.8, Y: 0.3, Score: 0.9}
	f[landmark.LeftWrist] = landmark.Point{X: 0.0, Y: 0.3, Score: 0.9}
	f[landmark.RightWrist] = landmark.Point{X: 1.0, Y: 0.3, Score: 0.9}
	f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.6, Score: 0.9}
	f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.6, Score: 0.9}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.45, Y: 0.9, Score: 0.9}
	f[landmark.RightAnkle] = landmark.Point{X: 0.55, Y: 0.9, Score: 0.9}

	if !IsTPose(f) {
		t.Error("expected T-pose to be detected")
	}
}

func TestPerformCalibrationNoOpWhenNotTPose(t *testing.T) {
	var f landmark.Frame // all zero/invalid
	prev := Calibration{BaselineDepth: 0.3, Calibrated: true}
	got := PerformCalibration(f, prev)
	if got != prev {
		t.Errorf("expected calibration unchanged when not in T-pose, got %+v", got)
	}
}
