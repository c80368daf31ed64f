package audio

import (
	"testing"
	"time"
)

func TestLevelMonitorRateLimited(t *testing.T) {
	m := NewLevelMonitor(20) // one event per 50ms
	now := time.Now()

	_, ok := m.Observe([]float32{0.5, -0.5}, now)
	if !ok {
		t.Fatalf("expected first observation to emit")
	}

	_, ok = m.Observe([]float32{0.5, -0.5}, now.Add(10*time.Millisecond))
	if ok {
		t.Fatalf("expected second observation within window to be suppressed")
	}

	ev, ok := m.Observe([]float32{0.5, -0.5}, now.Add(60*time.Millisecond))
	if !ok {
		t.Fatalf("expected observation after window to emit")
	}
	if ev.RMS <= 0 {
		t.Fatalf("expected non-zero rms, got %f", ev.RMS)
	}
}

func TestDownmixIdentityForMono(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := downmix(in, 1)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mono downmix must be identity, got %v", out)
		}
	}
}

func TestDownmixStereoAverage(t *testing.T) {
	in := []float32{1.0, 0.0, 0.5, 0.5}
	out := downmix(in, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("unexpected downmix result: %v", out)
	}
}
