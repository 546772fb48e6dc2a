package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Smoothing.WindowSize != 10 {
		t.Errorf("expected WindowSize 10, got %d", cfg.Smoothing.WindowSize)
	}
	if cfg.Smoothing.Responsiveness != 0.4 {
		t.Errorf("expected Responsiveness 0.4, got %f", cfg.Smoothing.Responsiveness)
	}
	if cfg.Depth.MinConfidenceThreshold != 0.5 {
		t.Errorf("expected MinConfidenceThreshold 0.5, got %f", cfg.Depth.MinConfidenceThreshold)
	}
	if cfg.Prediction.LookAheadMs != 150 {
		t.Errorf("expected LookAheadMs 150, got %f", cfg.Prediction.LookAheadMs)
	}
	if !cfg.RepAnalysis.SmoothingEnabled {
		t.Error("expected RepAnalysis.SmoothingEnabled to be true")
	}
	if cfg.RepAnalysis.MinRepDurationMs != 400 {
		t.Errorf("expected MinRepDurationMs 400, got %d", cfg.RepAnalysis.MinRepDurationMs)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("unexpected error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for non-existent file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
[smoothing]
window_size = 15
responsiveness = 0.6
outlier_threshold = 2.5

[depth]
min_confidence_threshold = 0.6
min_correction_factor = 0.85
max_correction_factor = 1.15

[prediction]
look_ahead_ms = 200
min_samples_for_prediction = 6
history_window = 40
hysteresis_ms = 120

[rep_analysis]
min_rep_duration_ms = 500
max_rep_duration_ms = 6000
smoothing_enabled = false
skip_failed_frames = false
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Smoothing.WindowSize != 15 {
		t.Errorf("expected WindowSize 15, got %d", cfg.Smoothing.WindowSize)
	}
	if cfg.Depth.MinConfidenceThreshold != 0.6 {
		t.Errorf("expected MinConfidenceThreshold 0.6, got %f", cfg.Depth.MinConfidenceThreshold)
	}
	if cfg.Prediction.LookAheadMs != 200 {
		t.Errorf("expected LookAheadMs 200, got %f", cfg.Prediction.LookAheadMs)
	}
	if cfg.RepAnalysis.SmoothingEnabled {
		t.Error("expected RepAnalysis.SmoothingEnabled to be false")
	}
	if cfg.RepAnalysis.MinRepDurationMs != 500 {
		t.Errorf("expected MinRepDurationMs 500, got %d", cfg.RepAnalysis.MinRepDurationMs)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidate_InvalidWindowSize(t *testing.T) {
	cfg := Default()
	cfg.Smoothing.WindowSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid window size")
	}
}

func TestValidate_InvalidResponsiveness(t *testing.T) {
	cfg := Default()
	cfg.Smoothing.Responsiveness = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for responsiveness > 1")
	}
}

func TestValidate_InvalidDepthCorrectionFactors(t *testing.T) {
	cfg := Default()
	cfg.Depth.MinCorrectionFactor = 1.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min correction factor > 1")
	}

	cfg = Default()
	cfg.Depth.MaxCorrectionFactor = 0.9
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max correction factor < 1")
	}
}

func TestValidate_InvalidPredictionHistoryWindow(t *testing.T) {
	cfg := Default()
	cfg.Prediction.MinSamplesForPrediction = 10
	cfg.Prediction.HistoryWindow = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when history window is smaller than min samples")
	}
}

func TestValidate_InvalidRepDurationBounds(t *testing.T) {
	cfg := Default()
	cfg.RepAnalysis.MinRepDurationMs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero min rep duration")
	}

	cfg = Default()
	cfg.RepAnalysis.MaxRepDurationMs = 100
	cfg.RepAnalysis.MinRepDurationMs = 400
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when max duration is below min duration")
	}
}

func TestToSmoothingAndDepth(t *testing.T) {
	cfg := Default()
	sm := cfg.ToSmoothing()
	if sm.WindowSize != cfg.Smoothing.WindowSize {
		t.Errorf("expected converted WindowSize to match, got %d", sm.WindowSize)
	}
	d := cfg.ToDepth()
	if d.MinConfidenceThreshold != cfg.Depth.MinConfidenceThreshold {
		t.Errorf("expected converted MinConfidenceThreshold to match, got %f", d.MinConfidenceThreshold)
	}
}
