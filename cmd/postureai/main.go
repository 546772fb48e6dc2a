// Package main provides the CLI wrapper for postureai's batch rep analyzer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kanoo-op/postureai/internal/config"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/repanalysis"
)

var version = "0.1.0"

// inputPoint is the JSON shape of one landmark in an input frame.
type inputPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Score float64 `json:"score"`
}

// inputFrame is the JSON shape of one captured frame: a timestamp and the
// 33 landmarks in the documented topology order.
type inputFrame struct {
	TimestampMs uint64       `json:"timestamp_ms"`
	Landmarks   []inputPoint `json:"landmarks"`
}

// inputDocument is the top-level JSON shape read from -frames.
type inputDocument struct {
	ExerciseType string       `json:"exercise_type"`
	Frames       []inputFrame `json:"frames"`
}

func main() {
	framesPath := flag.String("frames", "", "Path to a JSON file of captured landmark frames (required)")
	configPath := flag.String("config", "", "Path to TOML configuration file")
	exerciseOverride := flag.String("exercise", "", "Exercise type override (squat, lunge, deadlift, pushup, plank)")
	showVersion := flag.Bool("version", false, "Show version information")
	verbose := flag.Bool("verbose", false, "Print per-rep detail in addition to the summary")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "postureai - batch exercise-form rep analysis\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -frames frames.json [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("postureai version %s\n", version)
		os.Exit(0)
	}

	if *framesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	doc, err := readFrames(*framesPath)
	if err != nil {
		log.Fatalf("Failed to read frames file: %v", err)
	}

	frames := make([]repanalysis.FrameInput, len(doc.Frames))
	for i, f := range doc.Frames {
		frames[i] = repanalysis.FrameInput{
			Frame:       toLandmarkFrame(f.Landmarks),
			TimestampMs: f.TimestampMs,
		}
	}

	repCfg := cfg.ToRepAnalysis()
	exerciseType := *exerciseOverride
	if exerciseType == "" {
		exerciseType = doc.ExerciseType
	}
	repCfg.ExerciseType = repanalysis.ExerciseType(exerciseType)

	if *verbose {
		log.Printf("Analyzing %d frames (exercise=%q, min_rep=%dms, max_rep=%dms)",
			len(frames), exerciseType, repCfg.MinRepDurationMs, repCfg.MaxRepDurationMs)
	}

	result := repanalysis.AnalyzeVideoReps(frames, repCfg)

	fmt.Printf("Session %s: exercise=%s (detection confidence %.2f)\n",
		result.SessionID, result.ExerciseType, result.DetectionConfidence)
	fmt.Printf("Reps detected: %d\n", len(result.Reps))
	fmt.Printf("Score consistency: overall=%d stddev=%.1f trend=%s best_rep=%d worst_rep=%d\n",
		result.Consistency.OverallConsistency, result.Consistency.ScoreStdDev, result.Consistency.Trend,
		result.Consistency.BestRepIndex, result.Consistency.WorstRepIndex)

	if *verbose {
		for _, rep := range result.Reps {
			fmt.Printf("  rep %d: score=%d duration=%dms issues=%v\n",
				rep.Index, rep.Score, rep.DurationMs, rep.PrimaryIssues)
		}
	}
}

func readFrames(path string) (*inputDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frames file: %w", err)
	}
	var doc inputDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing frames JSON: %w", err)
	}
	return &doc, nil
}

func toLandmarkFrame(points []inputPoint) landmark.Frame {
	var f landmark.Frame
	for i := 0; i < len(points) && i < int(landmark.NumLandmarks); i++ {
		f[i] = landmark.Point{X: points[i].X, Y: points[i].Y, Z: points[i].Z, Score: points[i].Score}
	}
	return f
}
