// Package config provides TOML configuration loading for postureai.
//
// The configuration file supports the following structure:
//
//	[smoothing]
//	window_size = 10
//	responsiveness = 0.4
//	outlier_threshold = 3.0
//
//	[depth]
//	min_confidence_threshold = 0.5
//	min_correction_factor = 0.8
//	max_correction_factor = 1.2
//
//	[prediction]
//	look_ahead_ms = 150
//	min_samples_for_prediction = 5
//	history_window = 30
//	hysteresis_ms = 100
//
//	[rep_analysis]
//	min_rep_duration_ms = 400
//	max_rep_duration_ms = 8000
//	smoothing_enabled = true
//	skip_failed_frames = true
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Prediction look-ahead: %vms\n", cfg.Prediction.LookAheadMs)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/repanalysis"
	"github.com/kanoo-op/postureai/pkg/smoothing"
	"github.com/kanoo-op/postureai/pkg/velocity"
)

// Config represents the complete configuration for postureai.
type Config struct {
	Smoothing   SmoothingConfig   `toml:"smoothing"`
	Depth       DepthConfig       `toml:"depth"`
	Prediction  PredictionConfig  `toml:"prediction"`
	RepAnalysis RepAnalysisConfig `toml:"rep_analysis"`
}

// SmoothingConfig holds per-channel angle smoother parameters (spec §4.2).
type SmoothingConfig struct {
	// WindowSize is the number of recent raw samples kept for outlier
	// detection (default: 10).
	WindowSize int `toml:"window_size"`
	// Responsiveness (alpha) weights the new sample in the EMA update,
	// in (0,1] (default: 0.4).
	Responsiveness float64 `toml:"responsiveness"`
	// OutlierThreshold is the number of standard deviations a new sample
	// may deviate from the recent window mean before rejection (default: 3.0).
	OutlierThreshold float64 `toml:"outlier_threshold"`
}

// DepthConfig holds perspective-correction parameters (spec §4.3).
type DepthConfig struct {
	// MinConfidenceThreshold is the minimum depth-confidence score
	// required to apply perspective correction, in [0,1] (default: 0.5).
	MinConfidenceThreshold float64 `toml:"min_confidence_threshold"`
	// MinCorrectionFactor clamps the smallest perspective factor applied
	// (default: 0.8, must be <= 1).
	MinCorrectionFactor float64 `toml:"min_correction_factor"`
	// MaxCorrectionFactor clamps the largest perspective factor applied
	// (default: 1.2, must be >= 1).
	MaxCorrectionFactor float64 `toml:"max_correction_factor"`
}

// PredictionConfig holds angle-prediction engine parameters (spec §4.4).
type PredictionConfig struct {
	// LookAheadMs is the horizon the prediction engine projects forward,
	// in milliseconds (default: 150).
	LookAheadMs float64 `toml:"look_ahead_ms"`
	// MinSamplesForPrediction is the minimum history length before a
	// prediction is considered reliable (default: 5, must be >= 2).
	MinSamplesForPrediction int `toml:"min_samples_for_prediction"`
	// HistoryWindow is the number of samples retained per channel
	// (default: 30, must be >= MinSamplesForPrediction).
	HistoryWindow int `toml:"history_window"`
	// HysteresisMs is the minimum continuous duration a predicted
	// threshold crossing must persist before it is reported (default: 100).
	HysteresisMs float64 `toml:"hysteresis_ms"`
}

// RepAnalysisConfig holds batch video rep-analyzer parameters (spec §4.9).
type RepAnalysisConfig struct {
	// MinRepDurationMs is the shortest elapsed time a segmented rep may
	// span to be counted (default: 400).
	MinRepDurationMs uint64 `toml:"min_rep_duration_ms"`
	// MaxRepDurationMs is the longest elapsed time a segmented rep may
	// span before it is dropped (default: 8000).
	MaxRepDurationMs uint64 `toml:"max_rep_duration_ms"`
	// SmoothingEnabled is carried into repanalysis.RepAnalysisConfig
	// (default: true). The batch analyzer does not read it: every exercise
	// analyzer smooths its angle channels whatever its value.
	SmoothingEnabled bool `toml:"smoothing_enabled"`
	// SkipFailedFrames drops frames that fail the exercise's required
	// keypoint validity check instead of emitting a degraded result for
	// them (default: true).
	SkipFailedFrames bool `toml:"skip_failed_frames"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Smoothing: SmoothingConfig{
			WindowSize:       10,
			Responsiveness:   0.4,
			OutlierThreshold: 3.0,
		},
		Depth: DepthConfig{
			MinConfidenceThreshold: 0.5,
			MinCorrectionFactor:    0.8,
			MaxCorrectionFactor:    1.2,
		},
		Prediction: PredictionConfig{
			LookAheadMs:             150,
			MinSamplesForPrediction: 5,
			HistoryWindow:           30,
			HysteresisMs:            100,
		},
		RepAnalysis: RepAnalysisConfig{
			MinRepDurationMs: 400,
			MaxRepDurationMs: 8000,
			SmoothingEnabled: true,
			SkipFailedFrames: true,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Smoothing.WindowSize <= 0 {
		return fmt.Errorf("smoothing window size must be positive, got %d", c.Smoothing.WindowSize)
	}
	if c.Smoothing.Responsiveness <= 0 || c.Smoothing.Responsiveness > 1 {
		return fmt.Errorf("smoothing responsiveness must be in (0,1], got %f", c.Smoothing.Responsiveness)
	}
	if c.Smoothing.OutlierThreshold <= 0 {
		return fmt.Errorf("smoothing outlier threshold must be positive, got %f", c.Smoothing.OutlierThreshold)
	}
	if c.Depth.MinConfidenceThreshold < 0 || c.Depth.MinConfidenceThreshold > 1 {
		return fmt.Errorf("depth min confidence threshold must be in [0,1], got %f", c.Depth.MinConfidenceThreshold)
	}
	if c.Depth.MinCorrectionFactor > 1 {
		return fmt.Errorf("depth min correction factor must be <= 1, got %f", c.Depth.MinCorrectionFactor)
	}
	if c.Depth.MaxCorrectionFactor < 1 {
		return fmt.Errorf("depth max correction factor must be >= 1, got %f", c.Depth.MaxCorrectionFactor)
	}
	if c.Prediction.LookAheadMs <= 0 {
		return fmt.Errorf("prediction look-ahead must be positive, got %f", c.Prediction.LookAheadMs)
	}
	if c.Prediction.MinSamplesForPrediction < 2 {
		return fmt.Errorf("prediction min samples must be >= 2, got %d", c.Prediction.MinSamplesForPrediction)
	}
	if c.Prediction.HistoryWindow < c.Prediction.MinSamplesForPrediction {
		return fmt.Errorf("prediction history window (%d) must be >= min samples (%d)", c.Prediction.HistoryWindow, c.Prediction.MinSamplesForPrediction)
	}
	if c.Prediction.HysteresisMs < 0 {
		return fmt.Errorf("prediction hysteresis must be non-negative, got %f", c.Prediction.HysteresisMs)
	}
	if c.RepAnalysis.MinRepDurationMs == 0 {
		return fmt.Errorf("rep analysis min duration must be positive, got %d", c.RepAnalysis.MinRepDurationMs)
	}
	if c.RepAnalysis.MaxRepDurationMs < c.RepAnalysis.MinRepDurationMs {
		return fmt.Errorf("rep analysis max duration (%d) must be >= min duration (%d)", c.RepAnalysis.MaxRepDurationMs, c.RepAnalysis.MinRepDurationMs)
	}
	return nil
}

// ToSmoothing converts the TOML-loaded settings to the pkg/smoothing Config
// shape consumed by the analyzers.
func (c *Config) ToSmoothing() smoothing.Config {
	return smoothing.Config{
		WindowSize:       c.Smoothing.WindowSize,
		Responsiveness:   c.Smoothing.Responsiveness,
		OutlierThreshold: c.Smoothing.OutlierThreshold,
	}
}

// ToDepth converts the TOML-loaded settings to the pkg/depth Config shape
// consumed by the analyzers.
func (c *Config) ToDepth() depth.Config {
	return depth.Config{
		MinConfidenceThreshold: c.Depth.MinConfidenceThreshold,
		MinCorrectionFactor:    c.Depth.MinCorrectionFactor,
		MaxCorrectionFactor:    c.Depth.MaxCorrectionFactor,
	}
}

// ToVelocity converts the TOML-loaded settings to the pkg/velocity Config
// shape consumed by the angle-prediction engine.
func (c *Config) ToVelocity() velocity.Config {
	return velocity.Config{
		LookAheadMs:             c.Prediction.LookAheadMs,
		MinSamplesForPrediction: c.Prediction.MinSamplesForPrediction,
		HistoryWindow:           c.Prediction.HistoryWindow,
		HysteresisMs:            c.Prediction.HysteresisMs,
		CriticalBands:           map[velocity.Channel]velocity.CriticalBand{},
	}
}

// ToRepAnalysis converts the TOML-loaded settings to the pkg/repanalysis
// RepAnalysisConfig shape consumed by the batch analyzer. ExerciseType and
// PhaseWeights are left unset for the caller to fill in, since they are not
// expressible in this file-level configuration.
func (c *Config) ToRepAnalysis() repanalysis.RepAnalysisConfig {
	return repanalysis.RepAnalysisConfig{
		MinRepDurationMs: c.RepAnalysis.MinRepDurationMs,
		MaxRepDurationMs: c.RepAnalysis.MaxRepDurationMs,
		SmoothingEnabled: c.RepAnalysis.SmoothingEnabled,
		SkipFailedFrames: c.RepAnalysis.SkipFailedFrames,
		SmoothingConfig:  c.ToSmoothing(),
		DepthConfig:      c.ToDepth(),
	}
}
