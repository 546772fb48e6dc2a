package tempo

import (
	"testing"

	"github.com/kanoo-op/postureai/pkg/score"
)

func TestClassifyMovementQuality(t *testing.T) {
	cases := []struct {
		velocity float64
		want     MovementQuality
	}{
		{0, QualityControlled},
		{60, QualityControlled},
		{90, QualityModerate},
		{120, QualityModerate},
		{150, QualityRushed},
	}
	for _, c := range cases {
		if got := ClassifyMovementQuality(c.velocity); got != c.want {
			t.Errorf("ClassifyMovementQuality(%v) = %v, want %v", c.velocity, got, c.want)
		}
	}
}

func TestClassifyVelocityCategory(t *testing.T) {
	band := VelocityBand{Min: 20, Max: 80}
	if got := ClassifyVelocityCategory(10, band); got != VelocityLow {
		t.Errorf("expected low, got %v", got)
	}
	if got := ClassifyVelocityCategory(50, band); got != VelocityOptimal {
		t.Errorf("expected optimal, got %v", got)
	}
	if got := ClassifyVelocityCategory(100, band); got != VelocityHigh {
		t.Errorf("expected high, got %v", got)
	}
}

func TestThresholdMultiplier(t *testing.T) {
	if got := ThresholdMultiplier(QualityControlled, PhaseEccentric); got != 0.8 {
		t.Errorf("expected 0.8 strict multiplier, got %v", got)
	}
	if got := ThresholdMultiplier(QualityRushed, PhaseConcentric); got != 1.2 {
		t.Errorf("expected 1.2 lenient multiplier, got %v", got)
	}
	if got := ThresholdMultiplier(QualityModerate, PhaseIsometric); got != 1.0 {
		t.Errorf("expected neutral multiplier, got %v", got)
	}
}

func TestRiskCorrelationNeverEscalatesGood(t *testing.T) {
	result := RiskCorrelation(score.LevelGood, ContextHighVelocity, 200)
	if result.Level != score.LevelGood {
		t.Errorf("expected good to never escalate, got %v", result.Level)
	}
}

func TestRiskCorrelationEscalatesOnHighVelocityContext(t *testing.T) {
	result := RiskCorrelation(score.LevelWarning, ContextHighVelocity, 50)
	if result.Level != score.LevelError {
		t.Errorf("expected escalation to error, got %v", result.Level)
	}
	if result.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8 for context-triggered escalation, got %v", result.Confidence)
	}
}

func TestRiskCorrelationEscalatesOnHardVelocityRule(t *testing.T) {
	result := RiskCorrelation(score.LevelWarning, ContextNormal, 150)
	if result.Level != score.LevelError {
		t.Errorf("expected escalation to error, got %v", result.Level)
	}
	if result.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95 for hard-rule escalation, got %v", result.Confidence)
	}
}

func TestRiskCorrelationNoEscalationWithoutTrigger(t *testing.T) {
	result := RiskCorrelation(score.LevelWarning, ContextNormal, 50)
	if result.Level != score.LevelWarning {
		t.Errorf("expected no escalation, got %v", result.Level)
	}
}

func TestAssess(t *testing.T) {
	velocities := map[string]float64{"knee": 40, "hip": 80}
	bands := map[string]VelocityBand{"knee": {Min: 10, Max: 50}, "hip": {Min: 10, Max: 50}}
	assessment := Assess(velocities, bands, PhaseConcentric, score.LevelWarning, ContextNormal)

	if assessment.MeanAngularVelocity != 60 {
		t.Errorf("expected mean velocity 60, got %v", assessment.MeanAngularVelocity)
	}
	if assessment.Quality != QualityControlled {
		t.Errorf("expected controlled quality at mean 60, got %v", assessment.Quality)
	}
	if assessment.VelocityCategories["knee"] != VelocityOptimal {
		t.Errorf("expected knee optimal, got %v", assessment.VelocityCategories["knee"])
	}
	if assessment.VelocityCategories["hip"] != VelocityHigh {
		t.Errorf("expected hip high, got %v", assessment.VelocityCategories["hip"])
	}
}
