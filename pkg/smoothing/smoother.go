// Package smoothing implements per-channel exponential smoothing of angle
// streams with outlier rejection (spec §4.2). An AngleSmoother is kept as an
// explicit value: it is never mutated in place by analyzers, only via its
// own Update method, and analyzer state threads its value through.
package smoothing

import (
	"math"

	"github.com/kanoo-op/postureai/pkg/ringbuffer"
)

// Config tunes one channel's smoother. Responsiveness must be in (0,1],
// WindowSize >= 1, OutlierThreshold > 0 — validated at construction time by
// internal/config, never at runtime (spec §7).
type Config struct {
	// WindowSize is the number of recent raw samples kept for outlier
	// detection.
	WindowSize int
	// Responsiveness (alpha) weights the new sample in the EMA update.
	Responsiveness float64
	// OutlierThreshold is the number of standard deviations a new sample
	// may deviate from the recent window mean before being rejected.
	OutlierThreshold float64
}

// DefaultConfig returns the package's recommended smoothing parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:       10,
		Responsiveness:   0.4,
		OutlierThreshold: 3.0,
	}
}

// Sample is one smoothed output: the smoothed value, and whether the raw
// input that produced it was rejected as an outlier.
type Sample struct {
	SmoothedValue float64
	IsOutlier     bool
}

// AngleSmoother holds one channel's smoothing state. The zero value is not
// usable; construct with New.
type AngleSmoother struct {
	cfg         Config
	prev        float64
	initialized bool
	window      *ringbuffer.RingBuffer[float64]
}

// New creates an AngleSmoother for a single channel.
func New(cfg Config) *AngleSmoother {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	if cfg.Responsiveness <= 0 || cfg.Responsiveness > 1 {
		cfg.Responsiveness = 0.4
	}
	if cfg.OutlierThreshold <= 0 {
		cfg.OutlierThreshold = 3.0
	}
	return &AngleSmoother{
		cfg:    cfg,
		window: ringbuffer.New[float64](cfg.WindowSize),
	}
}

// Clone returns an independent copy, so analyzer state can be threaded by
// value without aliasing the window buffer.
func (s *AngleSmoother) Clone() *AngleSmoother {
	if s == nil {
		return nil
	}
	return &AngleSmoother{
		cfg:         s.cfg,
		prev:        s.prev,
		initialized: s.initialized,
		window:      s.window.Clone(),
	}
}

func windowMeanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(len(values)))
	return mean, stddev
}

// Update feeds one raw sample through the smoother. The first sample on a
// fresh smoother seeds the state and is returned unchanged (spec §3, §8
// invariant 5). Samples that deviate from the recent window by more than
// OutlierThreshold standard deviations are replaced with the previous
// smoothed value (not incorporated into the EMA) and flagged IsOutlier.
// The outlier check starts once the window holds at least three samples.
func (s *AngleSmoother) Update(raw float64) Sample {
	if !s.initialized {
		s.prev = raw
		s.initialized = true
		s.window.Push(raw)
		return Sample{SmoothedValue: raw, IsOutlier: false}
	}

	items := s.window.Items()
	mean, stddev := windowMeanStdDev(items)
	isOutlier := false
	effective := raw
	if len(items) >= 3 && math.Abs(raw-mean) > s.cfg.OutlierThreshold*stddev {
		isOutlier = true
		effective = s.prev
	}

	s.window.Push(raw)

	smoothed := s.cfg.Responsiveness*effective + (1-s.cfg.Responsiveness)*s.prev
	s.prev = smoothed

	return Sample{SmoothedValue: smoothed, IsOutlier: isOutlier}
}

// Value returns the current smoothed state without feeding a new sample.
func (s *AngleSmoother) Value() float64 {
	return s.prev
}

// Reset clears the smoother back to its unseeded state.
func (s *AngleSmoother) Reset() {
	s.prev = 0
	s.initialized = false
	s.window.Reset()
}

// Channel names one entry in a Set. Each exercise analyzer defines its own
// small enum of channel names (e.g. "left_knee", "torso") and uses them as
// Channel values.
type Channel string

// Set maps a fixed enum of channel names to per-channel smoothers, exposing
// SmoothAll as a one-call convenience over a batch of raw angles (spec §4.2).
type Set struct {
	cfg      Config
	smoothers map[Channel]*AngleSmoother
}

// NewSet creates an empty smoother set; channels are created lazily on
// first use so exercises do not need to enumerate them up front.
func NewSet(cfg Config) *Set {
	return &Set{
		cfg:       cfg,
		smoothers: make(map[Channel]*AngleSmoother),
	}
}

// Clone returns an independent copy of the set and all its channel state.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	clone := &Set{
		cfg:       s.cfg,
		smoothers: make(map[Channel]*AngleSmoother, len(s.smoothers)),
	}
	for ch, sm := range s.smoothers {
		clone.smoothers[ch] = sm.Clone()
	}
	return clone
}

func (s *Set) get(ch Channel) *AngleSmoother {
	sm, ok := s.smoothers[ch]
	if !ok {
		sm = New(s.cfg)
		s.smoothers[ch] = sm
	}
	return sm
}

// Smooth feeds a single channel's raw sample through its smoother,
// creating the channel's smoother on first use.
func (s *Set) Smooth(ch Channel, raw float64) Sample {
	return s.get(ch).Update(raw)
}

// SmoothAll applies per-channel smoothers to every entry of raw in one
// call, returning a map of channel -> Sample.
func (s *Set) SmoothAll(raw map[Channel]float64) map[Channel]Sample {
	out := make(map[Channel]Sample, len(raw))
	for ch, v := range raw {
		out[ch] = s.Smooth(ch, v)
	}
	return out
}
