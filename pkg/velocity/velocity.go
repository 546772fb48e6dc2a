// Package velocity implements angular-velocity integration and
// look-ahead angle prediction with threshold-crossing alerts (spec §4.4).
package velocity

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/ringbuffer"
)

// CalculateAngularVelocity returns |curr - prev| * 1000 / dtMs in deg/s.
// Returns 0 when dtMs <= 0 (non-monotonic or duplicate timestamps, spec §5
// and §7 — this is not an error, the condition is absorbed as zero dt).
func CalculateAngularVelocity(prev, curr float64, dtMs float64) float64 {
	if dtMs <= 0 {
		return 0
	}
	return math.Abs(curr-prev) * 1000 / dtMs
}

// SmoothAngularVelocity applies an EMA with alpha=0.3 to a raw velocity
// sample given the previous smoothed velocity. The first call (prev==0,
// initialized=false) seeds the state with raw.
func SmoothAngularVelocity(prevSmoothed float64, initialized bool, raw float64) float64 {
	const alpha = 0.3
	if !initialized {
		return raw
	}
	return alpha*raw + (1-alpha)*prevSmoothed
}

// Channel names one tracked joint-angle stream for the prediction engine.
type Channel string

// sample is one (timestamp, angle) observation kept in a channel's history.
type sample struct {
	timestampMs float64
	angle       float64
}

// CriticalBand is the band a channel's predicted value is checked against
// for a threshold-crossing alert.
type CriticalBand struct {
	Min, Max float64
}

// Config tunes the prediction engine. Validated at construction time:
// LookAheadMs > 0, MinSamplesForPrediction >= 2, HysteresisMs >= 0,
// HistoryWindow >= MinSamplesForPrediction.
type Config struct {
	LookAheadMs             float64
	MinSamplesForPrediction int
	HistoryWindow           int
	HysteresisMs            float64
	CriticalBands           map[Channel]CriticalBand
}

// DefaultConfig returns the package's recommended parameters.
func DefaultConfig() Config {
	return Config{
		LookAheadMs:             150,
		MinSamplesForPrediction: 5,
		HistoryWindow:           30,
		HysteresisMs:            100,
		CriticalBands:           map[Channel]CriticalBand{},
	}
}

// RiskLevel classifies the overall prediction outlook across all channels.
type RiskLevel string

const (
	RiskGood    RiskLevel = "good"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// ChannelPrediction is the per-channel output of a Predict call.
type ChannelPrediction struct {
	PredictedValue  float64
	AngularVelocity float64
	Confidence      float64
	IsReliable      bool
}

// Crossing reports that a channel's predicted value will cross its
// configured critical band within the look-ahead window.
type Crossing struct {
	Channel Channel
	Since   float64 // timestamp the crossing condition first appeared
}

// Result is the output of a single Predict call.
type Result struct {
	Predictions        map[Channel]ChannelPrediction
	ThresholdCrossings []Crossing
	OverallRiskLevel   RiskLevel
}

// pendingCrossing tracks how long a channel has continuously predicted a
// crossing, to implement the hysteresis requirement.
type pendingCrossing struct {
	since       float64
	lastSeenAt  float64
}

// Engine is the stateful AnglePredictionEngine. Construct with NewEngine;
// state is threaded explicitly via Clone, never shared between sessions.
type Engine struct {
	cfg          Config
	history      map[Channel]*ringbuffer.RingBuffer[sample]
	pending      map[Channel]pendingCrossing
	lastVelocity map[Channel]float64
}

// NewEngine creates a new AnglePredictionEngine with the given config.
func NewEngine(cfg Config) *Engine {
	if cfg.LookAheadMs <= 0 {
		cfg.LookAheadMs = DefaultConfig().LookAheadMs
	}
	if cfg.MinSamplesForPrediction < 2 {
		cfg.MinSamplesForPrediction = DefaultConfig().MinSamplesForPrediction
	}
	if cfg.HistoryWindow < cfg.MinSamplesForPrediction {
		cfg.HistoryWindow = cfg.MinSamplesForPrediction * 3
	}
	if cfg.CriticalBands == nil {
		cfg.CriticalBands = map[Channel]CriticalBand{}
	}
	return &Engine{
		cfg:          cfg,
		history:      make(map[Channel]*ringbuffer.RingBuffer[sample]),
		pending:      make(map[Channel]pendingCrossing),
		lastVelocity: make(map[Channel]float64),
	}
}

// Clone returns an independent copy of the engine's state.
func (e *Engine) Clone() *Engine {
	if e == nil {
		return nil
	}
	clone := &Engine{
		cfg:          e.cfg,
		history:      make(map[Channel]*ringbuffer.RingBuffer[sample], len(e.history)),
		pending:      make(map[Channel]pendingCrossing, len(e.pending)),
		lastVelocity: make(map[Channel]float64, len(e.lastVelocity)),
	}
	for ch, buf := range e.history {
		clone.history[ch] = buf.Clone()
	}
	for ch, p := range e.pending {
		clone.pending[ch] = p
	}
	for ch, v := range e.lastVelocity {
		clone.lastVelocity[ch] = v
	}
	return clone
}

// Reset clears all channel history and pending crossings.
func (e *Engine) Reset() {
	e.history = make(map[Channel]*ringbuffer.RingBuffer[sample])
	e.pending = make(map[Channel]pendingCrossing)
	e.lastVelocity = make(map[Channel]float64)
}

func (e *Engine) historyFor(ch Channel) *ringbuffer.RingBuffer[sample] {
	buf, ok := e.history[ch]
	if !ok {
		buf = ringbuffer.New[sample](e.cfg.HistoryWindow)
		e.history[ch] = buf
	}
	return buf
}

// Predict feeds the current angles for one frame through the engine,
// returning per-channel predictions, any threshold crossings surviving the
// hysteresis window, and the overall risk level.
func (e *Engine) Predict(angles map[Channel]float64, timestampMs float64) Result {
	predictions := make(map[Channel]ChannelPrediction, len(angles))
	var crossings []Crossing
	worstRisk := RiskGood

	for ch, angle := range angles {
		buf := e.historyFor(ch)
		buf.Push(sample{timestampMs: timestampMs, angle: angle})

		items := buf.Items()
		n := len(items)

		var angularVelocity float64
		if n >= 2 {
			prev := items[n-2]
			dt := items[n-1].timestampMs - prev.timestampMs
			angularVelocity = CalculateAngularVelocity(prev.angle, items[n-1].angle, dt)
		}
		prevSmoothed, hadVelocity := e.lastVelocity[ch]
		smoothedVelocity := SmoothAngularVelocity(prevSmoothed, hadVelocity, angularVelocity)
		e.lastVelocity[ch] = smoothedVelocity

		confidence := predictionConfidence(n, e.cfg.MinSamplesForPrediction)
		reliable := n >= e.cfg.MinSamplesForPrediction

		var predictedValue float64
		if n >= 2 {
			last := items[n-1]
			prev := items[n-2]
			dt := last.timestampMs - prev.timestampMs
			slope := 0.0
			if dt > 0 {
				slope = (last.angle - prev.angle) / dt
			}
			predictedValue = last.angle + slope*e.cfg.LookAheadMs
		} else {
			predictedValue = angle
		}

		predictions[ch] = ChannelPrediction{
			PredictedValue:  predictedValue,
			AngularVelocity: smoothedVelocity,
			Confidence:      confidence,
			IsReliable:      reliable,
		}

		band, hasBand := e.cfg.CriticalBands[ch]
		willCross := hasBand && (predictedValue < band.Min || predictedValue > band.Max)

		if willCross {
			p, exists := e.pending[ch]
			if !exists {
				p = pendingCrossing{since: timestampMs}
			}
			p.lastSeenAt = timestampMs
			e.pending[ch] = p

			if timestampMs-p.since >= e.cfg.HysteresisMs {
				crossings = append(crossings, Crossing{Channel: ch, Since: p.since})
				if worstRisk != RiskDanger {
					worstRisk = RiskWarning
				}
			}
		} else {
			delete(e.pending, ch)
		}

		if smoothedVelocity > 120 {
			worstRisk = RiskDanger
		}
	}

	return Result{
		Predictions:        predictions,
		ThresholdCrossings: crossings,
		OverallRiskLevel:   worstRisk,
	}
}

// predictionConfidence rises with history length, saturating at 1.0 once
// minSamples is reached (spec §4.4, §7 InsufficientHistory).
func predictionConfidence(n, minSamples int) float64 {
	if minSamples <= 0 {
		minSamples = 1
	}
	if n >= minSamples {
		return 1.0
	}
	return float64(n) / float64(minSamples)
}
