// Package repanalysis implements the batch video rep analyzer (spec §4.9,
// L5): exercise-type detection, per-frame analysis, rep segmentation,
// phase-weighted scoring, and cross-rep consistency metrics.
package repanalysis

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kanoo-op/postureai/pkg/depth"
	"github.com/kanoo-op/postureai/pkg/exercise"
	"github.com/kanoo-op/postureai/pkg/exercise/deadlift"
	"github.com/kanoo-op/postureai/pkg/exercise/lunge"
	"github.com/kanoo-op/postureai/pkg/exercise/plank"
	"github.com/kanoo-op/postureai/pkg/exercise/pushup"
	"github.com/kanoo-op/postureai/pkg/exercise/squat"
	"github.com/kanoo-op/postureai/pkg/geometry"
	"github.com/kanoo-op/postureai/pkg/landmark"
	"github.com/kanoo-op/postureai/pkg/score"
	"github.com/kanoo-op/postureai/pkg/smoothing"
)

// ExerciseType names one of the five supported exercises, or unknown when
// the auto-detection heuristic cannot confidently decide.
type ExerciseType string

const (
	ExerciseSquat    ExerciseType = "squat"
	ExerciseLunge    ExerciseType = "lunge"
	ExerciseDeadlift ExerciseType = "deadlift"
	ExercisePushup   ExerciseType = "pushup"
	ExercisePlank    ExerciseType = "plank"
	ExerciseUnknown  ExerciseType = "unknown"
)

// defaultPhaseWeights gives the per-generic-phase weighting used to combine
// a rep's phase-average scores into its overall score (spec §4.9 step 5),
// keyed by exercise type. Order within each entry is
// standing/descending/bottom/ascending.
var defaultPhaseWeights = map[ExerciseType]map[exercise.GenericPhase]float64{
	ExerciseSquat:    {exercise.GenericStanding: 0.1, exercise.GenericDescending: 0.2, exercise.GenericBottom: 0.5, exercise.GenericAscending: 0.2},
	ExerciseLunge:    {exercise.GenericStanding: 0.1, exercise.GenericDescending: 0.2, exercise.GenericBottom: 0.5, exercise.GenericAscending: 0.2},
	ExerciseDeadlift: {exercise.GenericStanding: 0.15, exercise.GenericDescending: 0.2, exercise.GenericBottom: 0.45, exercise.GenericAscending: 0.2},
	ExercisePushup:   {exercise.GenericStanding: 0.1, exercise.GenericDescending: 0.25, exercise.GenericBottom: 0.4, exercise.GenericAscending: 0.25},
	ExercisePlank:    {exercise.GenericStanding: 1.0, exercise.GenericDescending: 0, exercise.GenericBottom: 0, exercise.GenericAscending: 0},
}

// FrameInput is one input frame to the batch analyzer: a landmark frame
// with its capture timestamp. Frame may be the zero Frame for a dropped
// detection; AllValid will correctly report it invalid downstream.
type FrameInput struct {
	Frame       landmark.Frame
	TimestampMs uint64
}

// DetectionResult is the output of DetectExerciseType: the chosen type, an
// overall confidence in [0,1], and the per-exercise vote tally that
// produced it (spec §4.9 step 1, supplemented for diagnostics; the
// individual signals' contributions are not broken out).
type DetectionResult struct {
	Type       ExerciseType
	Confidence float64
	Votes      map[ExerciseType]float64
}

// DetectExerciseType runs the heuristic classifier over all frames: body
// orientation, knee/elbow angle range, forward lean, and hip-to-ankle
// x-ratio each cast a vote for a candidate exercise family; the type with
// the most votes wins, with confidence the winner's vote share.
func DetectExerciseType(frames []landmark.Frame) DetectionResult {
	votes := map[ExerciseType]float64{
		ExerciseSquat: 0, ExerciseLunge: 0, ExerciseDeadlift: 0,
		ExercisePushup: 0, ExercisePlank: 0,
	}

	var kneeAngles, elbowAngles []float64
	var verticalVotes, horizontalVotes int
	var forwardLeanVotes int
	var hipAnkleRatioOutsideVotes int

	for _, f := range frames {
		if !f.AllValid(landmark.RequiredForExercise...) {
			continue
		}
		toPoint := func(idx landmark.Index) geometry.Point {
			kp := f.At(idx)
			return geometry.Point{X: kp.X, Y: kp.Y, Z: kp.Z}
		}

		lShoulder, rShoulder := toPoint(landmark.LeftShoulder), toPoint(landmark.RightShoulder)
		lHip, rHip := toPoint(landmark.LeftHip), toPoint(landmark.RightHip)
		lKnee, rKnee := toPoint(landmark.LeftKnee), toPoint(landmark.RightKnee)
		lAnkle, rAnkle := toPoint(landmark.LeftAnkle), toPoint(landmark.RightAnkle)

		shoulderMid := geometry.Midpoint(lShoulder, rShoulder)
		hipMid := geometry.Midpoint(lHip, rHip)
		ankleMid := geometry.Midpoint(lAnkle, rAnkle)

		verticalDelta := math.Abs(shoulderMid.Y - hipMid.Y)
		if verticalDelta > 0.15 {
			verticalVotes++
		} else {
			horizontalVotes++
		}

		if shoulderMid.Y-hipMid.Y > 0.1 {
			forwardLeanVotes++
		}

		kneeAngles = append(kneeAngles, geometry.Angle3(hipMid, lKnee, ankleMid), geometry.Angle3(hipMid, rKnee, ankleMid))

		if f.AllValid(landmark.LeftElbow, landmark.RightElbow, landmark.LeftWrist, landmark.RightWrist) {
			lElbow, rElbow := toPoint(landmark.LeftElbow), toPoint(landmark.RightElbow)
			lWrist, rWrist := toPoint(landmark.LeftWrist), toPoint(landmark.RightWrist)
			elbowAngles = append(elbowAngles, geometry.Angle3(lShoulder, lElbow, lWrist), geometry.Angle3(rShoulder, rElbow, rWrist))
		}

		hipWidth := math.Abs(rHip.X - lHip.X)
		ankleWidth := math.Abs(rAnkle.X - lAnkle.X)
		if ankleWidth > 0 {
			ratio := hipWidth / ankleWidth
			if ratio < 0.7 || ratio > 1.4 {
				hipAnkleRatioOutsideVotes++
			}
		}
	}

	kneeRange := rangeOf(kneeAngles)
	elbowRange := rangeOf(elbowAngles)

	if verticalVotes > horizontalVotes {
		if kneeRange > 30 {
			votes[ExerciseSquat] += 1
			votes[ExerciseLunge] += 1
			votes[ExerciseDeadlift] += 1
		}
		if forwardLeanVotes > 0 {
			votes[ExerciseDeadlift] += 1
		}
		if hipAnkleRatioOutsideVotes > 0 {
			votes[ExerciseLunge] += 2
		}
		if votes[ExerciseLunge] <= votes[ExerciseSquat] && votes[ExerciseLunge] <= votes[ExerciseDeadlift] {
			votes[ExerciseSquat] += 0.5
		}
	} else {
		if elbowRange > 40 {
			votes[ExercisePushup] += 2
		} else {
			votes[ExercisePlank] += 2
		}
	}

	best := ExerciseUnknown
	bestVotes := 0.0
	var total float64
	for t, v := range votes {
		total += v
		if v > bestVotes {
			bestVotes = v
			best = t
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = bestVotes / total
	}
	if bestVotes == 0 {
		best = ExerciseUnknown
	}

	return DetectionResult{Type: best, Confidence: confidence, Votes: votes}
}

func rangeOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

// RepAnalysisConfig tunes a batch rep-analysis run. ExerciseType may be
// left empty to trigger auto-detection. PhaseWeights defaults per
// ExerciseType when nil. Validated at construction time via Validate: zero
// MinRepDurationMs/MaxRepDurationMs fall back to the package defaults, and
// supplied PhaseWeights must be non-negative and sum to ~1.0.
type RepAnalysisConfig struct {
	ExerciseType     ExerciseType
	PhaseWeights     map[exercise.GenericPhase]float64
	MinRepDurationMs uint64
	MaxRepDurationMs uint64
	SmoothingEnabled bool
	SkipFailedFrames bool
	SmoothingConfig  smoothing.Config
	DepthConfig      depth.Config
	SessionID        string
}

const (
	defaultMinRepDurationMs = 400
	defaultMaxRepDurationMs = 8000
)

// DefaultConfig returns the package's recommended batch-analysis
// parameters, with exercise type left for auto-detection.
func DefaultConfig() RepAnalysisConfig {
	return RepAnalysisConfig{
		MinRepDurationMs: defaultMinRepDurationMs,
		MaxRepDurationMs: defaultMaxRepDurationMs,
		SmoothingEnabled: true,
		SkipFailedFrames: true,
		SmoothingConfig:  smoothing.DefaultConfig(),
		DepthConfig:      depth.DefaultConfig(),
	}
}

// Validate checks invariants on a populated config, filling in unset
// fields from DefaultConfig. Returns an error if supplied PhaseWeights are
// negative or do not sum to ~1.0.
func (c *RepAnalysisConfig) Validate() error {
	def := DefaultConfig()
	if c.MinRepDurationMs == 0 {
		c.MinRepDurationMs = def.MinRepDurationMs
	}
	if c.MaxRepDurationMs == 0 {
		c.MaxRepDurationMs = def.MaxRepDurationMs
	}
	if c.SmoothingConfig == (smoothing.Config{}) {
		c.SmoothingConfig = def.SmoothingConfig
	}
	if c.DepthConfig == (depth.Config{}) {
		c.DepthConfig = def.DepthConfig
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.PhaseWeights != nil {
		var sum float64
		for phase, w := range c.PhaseWeights {
			if w < 0 {
				return &ValidationError{Field: "PhaseWeights", Phase: phase, Reason: "negative weight"}
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-6 {
			return &ValidationError{Field: "PhaseWeights", Reason: "weights must sum to 1.0"}
		}
	}
	return nil
}

// ValidationError reports an invalid RepAnalysisConfig field.
type ValidationError struct {
	Field  string
	Phase  exercise.GenericPhase
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Phase != "" {
		return "repanalysis: invalid " + e.Field + " for phase " + string(e.Phase) + ": " + e.Reason
	}
	return "repanalysis: invalid " + e.Field + ": " + e.Reason
}

// FrameRecord is one analyzed frame within a VideoRepAnalysisResult.
type FrameRecord struct {
	FrameIndex   int
	TimestampMs  uint64
	Score        int
	GenericPhase exercise.GenericPhase
	RepCompleted bool
	Feedback     []score.FeedbackItem
}

// RepResult is one segmented, phase-weighted repetition.
type RepResult struct {
	Index           int
	StartFrameIndex int
	EndFrameIndex   int
	DurationMs      uint64
	Score           int
	WorstFrameIndex int
	PrimaryIssues   []string
	PhaseScores     map[exercise.GenericPhase]float64
}

// RepComparison is one rep's deviation from the session mean, in standard
// deviations, plus its direction relative to the previous rep.
type RepComparison struct {
	Index            int
	DeviationStdDevs float64
	Direction        string // "up", "down", "same"
}

// ConsistencyMetrics summarizes cross-rep quality and timing consistency
// (spec §4.9 step 6). OverallConsistency is the single headline number
// (spec §8 invariant #10: overallConsistency = max(0, round(100 − 2·scoreStdDev))).
type ConsistencyMetrics struct {
	OverallConsistency   int
	ScoreStdDev          float64
	DurationStdDev       float64
	Trend                string // "stable", "improving", "declining", "fluctuating"
	BestRepIndex         int
	WorstRepIndex        int
	PerRep               []RepComparison
	SlopePerRep          float64
	SlopeConfidenceWidth float64
}

// VideoRepAnalysisResult is the full output of AnalyzeVideoReps.
type VideoRepAnalysisResult struct {
	SessionID           string
	ExerciseType        ExerciseType
	DetectionConfidence float64
	Frames              []FrameRecord
	Reps                []RepResult
	Consistency         ConsistencyMetrics
}

// stepFunc analyzes one frame against a closed-over, internally threaded
// per-exercise analyzer state and returns the common exercise.Result shape.
type stepFunc func(f landmark.Frame, timestampMs uint64) exercise.Result

func newStepFunc(t ExerciseType, smoothingCfg smoothing.Config, depthCfg depth.Config) stepFunc {
	switch t {
	case ExerciseSquat:
		st := squat.NewState(smoothingCfg, depthCfg)
		return func(f landmark.Frame, ts uint64) exercise.Result {
			var res exercise.Result
			res, st = squat.Analyze(f, st, ts)
			return res
		}
	case ExerciseLunge:
		st := lunge.NewState(smoothingCfg, depthCfg)
		return func(f landmark.Frame, ts uint64) exercise.Result {
			var res exercise.Result
			res, st = lunge.Analyze(f, st, ts)
			return res
		}
	case ExerciseDeadlift:
		st := deadlift.NewState(smoothingCfg, depthCfg)
		return func(f landmark.Frame, ts uint64) exercise.Result {
			var res exercise.Result
			res, st = deadlift.Analyze(f, st, ts)
			return res
		}
	case ExercisePushup:
		st := pushup.NewState(smoothingCfg, depthCfg)
		return func(f landmark.Frame, ts uint64) exercise.Result {
			var res exercise.Result
			res, st = pushup.Analyze(f, st, ts)
			return res
		}
	case ExercisePlank:
		st := plank.NewState(smoothingCfg, depthCfg)
		return func(f landmark.Frame, ts uint64) exercise.Result {
			var res plank.Result
			res, st = plank.Analyze(f, st, ts)
			return res.Result
		}
	default:
		return func(landmark.Frame, uint64) exercise.Result {
			return exercise.Result{}
		}
	}
}

// genericPhaseFromSpecific returns the generic phase the analyzer already
// put in exercise.Result.GenericPhase; the mapping from exercise-specific
// labels (setup/lockout -> standing, lift -> ascending, descent ->
// descending, up -> standing) is done by each analyzer's own Generic()
// method, not here. It lets the rep segmenter work uniformly off
// exercise.Result.GenericPhase.
func genericPhaseFromSpecific(r exercise.Result) exercise.GenericPhase {
	return r.GenericPhase
}

// AnalyzeVideoReps runs the full L5 pipeline: exercise-type detection (if
// not configured), per-frame analysis, rep segmentation, phase-weighted
// scoring, and cross-rep consistency metrics.
func AnalyzeVideoReps(frames []FrameInput, cfg RepAnalysisConfig) VideoRepAnalysisResult {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultConfig()
	}

	exerciseType := cfg.ExerciseType
	detectionConfidence := 1.0
	if exerciseType == "" {
		poses := make([]landmark.Frame, len(frames))
		for i, f := range frames {
			poses[i] = f.Frame
		}
		detection := DetectExerciseType(poses)
		exerciseType = detection.Type
		detectionConfidence = detection.Confidence
	}

	phaseWeights := cfg.PhaseWeights
	if phaseWeights == nil {
		phaseWeights = defaultPhaseWeights[exerciseType]
	}

	step := newStepFunc(exerciseType, cfg.SmoothingConfig, cfg.DepthConfig)

	records := make([]FrameRecord, 0, len(frames))
	for i, fi := range frames {
		if cfg.SkipFailedFrames && !fi.Frame.AllValid(landmark.RequiredForExercise...) {
			continue
		}
		result := step(fi.Frame, fi.TimestampMs)
		records = append(records, FrameRecord{
			FrameIndex:   i,
			TimestampMs:  fi.TimestampMs,
			Score:        result.Score,
			GenericPhase: genericPhaseFromSpecific(result),
			RepCompleted: result.RepCompleted,
			Feedback:     result.Feedback,
		})
	}

	boundaries := segmentReps(records, cfg.MinRepDurationMs, cfg.MaxRepDurationMs)
	reps := make([]RepResult, 0, len(boundaries))
	for i, b := range boundaries {
		reps = append(reps, scoreRep(i, b, records, phaseWeights))
	}

	consistency := computeConsistency(reps)

	return VideoRepAnalysisResult{
		SessionID:           cfg.SessionID,
		ExerciseType:        exerciseType,
		DetectionConfidence: detectionConfidence,
		Frames:              records,
		Reps:                reps,
		Consistency:         consistency,
	}
}

type repBoundary struct {
	startIdx, endIdx int
}

// segmentReps implements spec §4.9 step 4: a rep begins on the first
// standing->descending transition, completing when a later frame reports
// RepCompleted or a standing phase is reached after a bottom was observed,
// provided the elapsed time lies within [minMs,maxMs]. Reps exceeding
// maxMs are dropped.
func segmentReps(records []FrameRecord, minMs, maxMs uint64) []repBoundary {
	var boundaries []repBoundary
	inRep := false
	sawBottom := false
	startIdx := 0

	for i, r := range records {
		prevPhase := exercise.GenericStanding
		if i > 0 {
			prevPhase = records[i-1].GenericPhase
		}

		if !inRep && prevPhase == exercise.GenericStanding && r.GenericPhase == exercise.GenericDescending {
			inRep = true
			sawBottom = false
			startIdx = i
		}

		if inRep {
			if r.GenericPhase == exercise.GenericBottom {
				sawBottom = true
			}
			completed := r.RepCompleted || (sawBottom && r.GenericPhase == exercise.GenericStanding)
			if completed {
				duration := records[i].TimestampMs - records[startIdx].TimestampMs
				if duration >= minMs && duration <= maxMs {
					boundaries = append(boundaries, repBoundary{startIdx: startIdx, endIdx: i})
				}
				inRep = false
			}
		}
	}

	return boundaries
}

// scoreRep implements spec §4.9 step 5: group the rep's frames by generic
// phase, average scores within each phase, combine via the configured
// phase weights, identify the worst-scoring frame, and aggregate feedback
// into the top-5 most frequent primary issues.
func scoreRep(index int, b repBoundary, records []FrameRecord, phaseWeights map[exercise.GenericPhase]float64) RepResult {
	phaseScores := map[exercise.GenericPhase][]int{}
	worstFrameIndex := b.startIdx
	worstScore := records[b.startIdx].Score
	issueCounts := map[string]int{}

	for i := b.startIdx; i <= b.endIdx; i++ {
		r := records[i]
		phaseScores[r.GenericPhase] = append(phaseScores[r.GenericPhase], r.Score)
		if r.Score < worstScore {
			worstScore = r.Score
			worstFrameIndex = i
		}
		for _, fb := range r.Feedback {
			if fb.Level != score.LevelGood {
				issueCounts[fb.Name]++
			}
		}
	}

	phaseAverages := map[exercise.GenericPhase]float64{}
	for phase, scores := range phaseScores {
		phaseAverages[phase] = meanInt(scores)
	}

	var weightedSum, totalWeight float64
	for phase, avg := range phaseAverages {
		w := phaseWeights[phase]
		weightedSum += avg * w
		totalWeight += w
	}
	overall := 0
	if totalWeight > 0 {
		overall = int(math.Round(weightedSum / totalWeight))
	}

	return RepResult{
		Index:           index,
		StartFrameIndex: records[b.startIdx].FrameIndex,
		EndFrameIndex:   records[b.endIdx].FrameIndex,
		DurationMs:      records[b.endIdx].TimestampMs - records[b.startIdx].TimestampMs,
		Score:           overall,
		WorstFrameIndex: records[worstFrameIndex].FrameIndex,
		PrimaryIssues:   topIssues(issueCounts, 5),
		PhaseScores:     phaseAverages,
	}
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func topIssues(counts map[string]int, n int) []string {
	type kv struct {
		name  string
		count int
	}
	items := make([]kv, 0, len(counts))
	for name, count := range counts {
		items = append(items, kv{name, count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].name < items[j].name
	})
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

// computeConsistency implements spec §4.9 step 6: cross-rep score and
// duration standard deviations, a linear-regression trend over rep
// scores, best/worst rep indices, and a per-rep deviation comparison.
func computeConsistency(reps []RepResult) ConsistencyMetrics {
	if len(reps) == 0 {
		return ConsistencyMetrics{OverallConsistency: 100, Trend: "stable"}
	}

	scores := make([]float64, len(reps))
	durations := make([]float64, len(reps))
	indices := make([]float64, len(reps))
	for i, r := range reps {
		scores[i] = float64(r.Score)
		durations[i] = float64(r.DurationMs)
		indices[i] = float64(i)
	}

	scoreMean := stat.Mean(scores, nil)
	scoreStdDev := stat.StdDev(scores, nil)
	durationStdDev := stat.StdDev(durations, nil)

	var slope, slopeConfidenceWidth float64
	if len(reps) >= 2 {
		_, slope = stat.LinearRegression(indices, scores, nil, false)
		slopeConfidenceWidth = regressionResidualWidth(indices, scores, slope, scoreMean)
	}

	trend := classifyTrend(slope, scoreStdDev)

	bestIdx, worstIdx := 0, 0
	for i, r := range reps {
		if r.Score > reps[bestIdx].Score {
			bestIdx = i
		}
		if r.Score < reps[worstIdx].Score {
			worstIdx = i
		}
	}

	perRep := make([]RepComparison, len(reps))
	for i, r := range reps {
		deviation := 0.0
		if scoreStdDev > 0 {
			deviation = (float64(r.Score) - scoreMean) / scoreStdDev
		}
		direction := "same"
		if i > 0 {
			switch {
			case r.Score > reps[i-1].Score:
				direction = "up"
			case r.Score < reps[i-1].Score:
				direction = "down"
			}
		}
		perRep[i] = RepComparison{Index: i, DeviationStdDevs: deviation, Direction: direction}
	}

	overallConsistency := int(math.Round(100 - 2*scoreStdDev))
	if overallConsistency < 0 {
		overallConsistency = 0
	}

	return ConsistencyMetrics{
		OverallConsistency:   overallConsistency,
		ScoreStdDev:          scoreStdDev,
		DurationStdDev:       durationStdDev,
		Trend:                trend,
		BestRepIndex:         bestIdx,
		WorstRepIndex:        worstIdx,
		PerRep:               perRep,
		SlopePerRep:          slope,
		SlopeConfidenceWidth: slopeConfidenceWidth,
	}
}

func classifyTrend(slope, scoreStdDev float64) string {
	switch {
	case scoreStdDev > 15:
		return "fluctuating"
	case slope > 2:
		return "improving"
	case slope < -2:
		return "declining"
	case math.Abs(slope) < 1:
		return "stable"
	default:
		return "fluctuating"
	}
}

// regressionResidualWidth derives a confidence-interval width for the
// rep-score slope from the regression's residual spread, a natural
// companion metric from the same stat.LinearRegression call.
func regressionResidualWidth(xs, ys []float64, slope, yMean float64) float64 {
	n := len(xs)
	if n < 3 {
		return 0
	}
	xMean := stat.Mean(xs, nil)
	var ssRes, ssX float64
	for i := range xs {
		predicted := yMean + slope*(xs[i]-xMean)
		residual := ys[i] - predicted
		ssRes += residual * residual
		ssX += (xs[i] - xMean) * (xs[i] - xMean)
	}
	if ssX == 0 {
		return 0
	}
	variance := ssRes / float64(n-2)
	return 1.96 * math.Sqrt(variance/ssX)
}
