package velocity

import "testing"

func TestCalculateAngularVelocityNonPositiveDt(t *testing.T) {
	if got := CalculateAngularVelocity(10, 20, 0); got != 0 {
		t.Errorf("dt=0 -> %v, want 0", got)
	}
	if got := CalculateAngularVelocity(10, 20, -5); got != 0 {
		t.Errorf("dt<0 -> %v, want 0", got)
	}
}

func TestCalculateAngularVelocityMagnitude(t *testing.T) {
	got := CalculateAngularVelocity(0, 90, 1000)
	if got != 90 {
		t.Errorf("got %v, want 90 deg/s", got)
	}
}

func TestSmoothAngularVelocitySeedsOnFirstCall(t *testing.T) {
	got := SmoothAngularVelocity(0, false, 42)
	if got != 42 {
		t.Errorf("first call = %v, want 42", got)
	}
}

func TestPredictStationarySignal(t *testing.T) {
	// Scenario S4: stationary leftKnee=90 for 10 samples at 33ms spacing
	// starting at t=1000, then an 11th call at t=1330.
	e := NewEngine(DefaultConfig())
	ts := 1000.0
	for i := 0; i < 10; i++ {
		e.Predict(map[Channel]float64{"leftKnee": 90}, ts)
		ts += 33
	}
	result := e.Predict(map[Channel]float64{"leftKnee": 90}, ts)

	pred := result.Predictions["leftKnee"]
	if pred.PredictedValue < 89 || pred.PredictedValue > 91 {
		t.Errorf("predicted value = %v, want ~90", pred.PredictedValue)
	}
	if len(result.ThresholdCrossings) != 0 {
		t.Errorf("expected no threshold crossings with no configured band, got %v", result.ThresholdCrossings)
	}
	if !pred.IsReliable {
		t.Error("expected prediction to be reliable after 10 samples")
	}
	if pred.Confidence <= 0.5 {
		t.Errorf("expected confidence > 0.5, got %v", pred.Confidence)
	}
}

func TestPredictInsufficientHistoryIsUnreliable(t *testing.T) {
	e := NewEngine(DefaultConfig())
	result := e.Predict(map[Channel]float64{"leftKnee": 90}, 1000)
	pred := result.Predictions["leftKnee"]
	if pred.IsReliable {
		t.Error("expected unreliable prediction on first sample")
	}
}

func TestPredictThresholdCrossingHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForPrediction = 2
	cfg.HysteresisMs = 100
	cfg.CriticalBands = map[Channel]CriticalBand{"knee": {Min: 0, Max: 100}}
	e := NewEngine(cfg)

	// Rapidly increasing angle so the predicted value overshoots the band.
	e.Predict(map[Channel]float64{"knee": 90}, 0)
	result := e.Predict(map[Channel]float64{"knee": 150}, 10)
	if len(result.ThresholdCrossings) != 0 {
		t.Error("expected crossing to be suppressed before hysteresis window elapses")
	}

	result = e.Predict(map[Channel]float64{"knee": 200}, 150)
	if len(result.ThresholdCrossings) == 0 {
		t.Error("expected crossing to be reported once the hysteresis window elapses")
	}
}

func TestEngineCloneIndependence(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Predict(map[Channel]float64{"knee": 90}, 0)
	clone := e.Clone()
	clone.Predict(map[Channel]float64{"knee": 95}, 33)

	// Original must not observe the clone's extra sample.
	origLen := e.historyFor("knee").Len()
	cloneLen := clone.historyFor("knee").Len()
	if cloneLen <= origLen {
		t.Errorf("expected clone history to grow independently: orig=%d clone=%d", origLen, cloneLen)
	}
}
