package audio

import (
	"math"
	"time"
)

// LevelEvent is the payload of the host-facing audio_level_update event
// (spec.md §6). Db is 20*log10(rms), floored at -96 for silence.
type LevelEvent struct {
	RMS  float64
	Peak float64
	DB   float64
	At   time.Time
}

// LevelMonitor computes RMS/peak from incoming float32 frames and rate-limits
// emission of LevelEvent to at most maxPerSecond per second. The RMS formula
// mirrors the teacher's RMSVAD.calculateRMS (pkg/orchestrator/vad.go),
// generalized from int16 PCM bytes to float32 samples since the capture
// callback (§4.1) already works in float space.
type LevelMonitor struct {
	maxPerSecond int
	minInterval  time.Duration
	lastEmit     time.Time
	peak         float64
}

// NewLevelMonitor builds a monitor rate-limited to maxPerSecond events/sec.
// maxPerSecond <= 0 defaults to 20, the spec's default cap.
func NewLevelMonitor(maxPerSecond int) *LevelMonitor {
	if maxPerSecond <= 0 {
		maxPerSecond = 20
	}
	return &LevelMonitor{
		maxPerSecond: maxPerSecond,
		minInterval:  time.Second / time.Duration(maxPerSecond),
	}
}

// Observe processes one frame and returns (event, true) if rate limiting
// allows emission this call, or (zero, false) if the event should be
// suppressed to respect maxPerSecond.
func (m *LevelMonitor) Observe(frame []float32, now time.Time) (LevelEvent, bool) {
	var sumSq float64
	var peak float64
	for _, s := range frame {
		v := float64(s)
		abs := v
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
		sumSq += v * v
	}
	rms := 0.0
	if len(frame) > 0 {
		rms = math.Sqrt(sumSq / float64(len(frame)))
	}
	if peak > m.peak {
		m.peak = peak
	}

	if !m.lastEmit.IsZero() && now.Sub(m.lastEmit) < m.minInterval {
		return LevelEvent{}, false
	}
	m.lastEmit = now

	db := -96.0
	if rms > 0 {
		db = 20 * math.Log10(rms)
		if db < -96 {
			db = -96
		}
	}

	ev := LevelEvent{RMS: rms, Peak: m.peak, DB: db, At: now}
	m.peak = 0
	return ev, true
}
