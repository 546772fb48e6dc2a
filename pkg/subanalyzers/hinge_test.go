package subanalyzers

import "testing"

func TestHingeQualityFirstFrameNoDelta(t *testing.T) {
	state := NewHingeQualityState()
	result := AnalyzeHipHingeQuality(160, 170, state, false)
	if result.HipDominantRatio != 0 {
		t.Errorf("expected zero ratio with no prior frame, got %v", result.HipDominantRatio)
	}
	if result.Initiation != InitiationUnknown {
		t.Errorf("expected unknown initiation outside lift phase, got %v", result.Initiation)
	}
}

func TestHingeQualityIdealRatio(t *testing.T) {
	state := NewHingeQualityState()
	// Hip moves 6 degrees, knee moves 2: ratio 3.0, within ideal band.
	result := AnalyzeHipHingeQuality(160, 170, state, false)
	result = AnalyzeHipHingeQuality(154, 168, result.NewState, false)
	if result.Feedback.Level != "good" {
		t.Errorf("expected good level for ideal hip-dominant ratio, got %v (ratio=%v)", result.Feedback.Level, result.HipDominantRatio)
	}
}

func TestHingeQualitySquatStyleFlagged(t *testing.T) {
	state := NewHingeQualityState()
	result := AnalyzeHipHingeQuality(160, 170, state, false)
	// Knee bends strongly (<140) and knee delta dominates hip delta.
	result = AnalyzeHipHingeQuality(158, 130, result.NewState, false)
	if !result.SquatStyle {
		t.Error("expected squat-style flag when knee leads under 140 degrees")
	}
}

func TestHingeQualityInitiationHipFirst(t *testing.T) {
	state := NewHingeQualityState()
	result := AnalyzeHipHingeQuality(170, 170, state, true)
	result = AnalyzeHipHingeQuality(165, 169, result.NewState, true) // hip delta 5 crosses, knee delta 1 does not
	if result.Initiation != InitiationHipFirst {
		t.Errorf("expected hip-first initiation, got %v", result.Initiation)
	}
}

func TestHingeQualityInitiationUnknownOutsideLift(t *testing.T) {
	state := NewHingeQualityState()
	result := AnalyzeHipHingeQuality(170, 170, state, false)
	result = AnalyzeHipHingeQuality(165, 169, result.NewState, false)
	if result.Initiation != InitiationUnknown {
		t.Errorf("expected unknown initiation when not in lift phase, got %v", result.Initiation)
	}
}

func TestHingeQualityCloneIndependence(t *testing.T) {
	state := NewHingeQualityState()
	result := AnalyzeHipHingeQuality(160, 170, state, false)
	clone := result.NewState.Clone()
	_ = AnalyzeHipHingeQuality(140, 168, clone, false)
	if result.NewState.lastHip != 160 {
		t.Error("expected original state unaffected by mutation of its clone")
	}
}
