package chunker

import (
	"testing"
	"time"
)

// sliceSource is an in-memory Source fake that returns all its samples on
// the first Available/Read call, like a ring buffer that has been fully
// drained into it ahead of time.
type sliceSource struct {
	data []float32
	read bool
}

func (s *sliceSource) Available() int {
	if s.read {
		return 0
	}
	return len(s.data)
}

func (s *sliceSource) Read(out []float32) int {
	if s.read {
		return 0
	}
	n := copy(out, s.data)
	s.read = true
	return n
}

func makeSeconds(n float64, rate int) []float32 {
	total := int(n * float64(rate))
	out := make([]float32, total)
	for i := range out {
		out[i] = 0.1
	}
	return out
}

func TestChunkerHappyPath90Seconds(t *testing.T) {
	cfg := DefaultConfig()
	src := &sliceSource{data: makeSeconds(90, cfg.SourceSampleRate)}
	seq := 0
	c := New(src, "sess-1", cfg, func() string { seq++; return "chunk" })

	chunks := c.Poll()
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks from Poll, got %d", len(chunks))
	}
	wantStarts := []time.Duration{0, 25 * time.Second, 50 * time.Second}
	for i, ch := range chunks {
		if ch.StartTime != wantStarts[i] {
			t.Errorf("chunk %d: expected start %v, got %v", i, wantStarts[i], ch.StartTime)
		}
		if ch.Sequence != i {
			t.Errorf("chunk %d: expected sequence %d, got %d", i, i, ch.Sequence)
		}
	}

	trailing := c.Flush()
	if trailing == nil {
		t.Fatalf("expected a trailing chunk above the minimum threshold")
	}
	if trailing.StartTime != 75*time.Second {
		t.Errorf("expected trailing chunk to start at 75s, got %v", trailing.StartTime)
	}
}

func TestChunkerTrailingBelowThresholdDropped(t *testing.T) {
	cfg := DefaultConfig()
	// With no overlap the cursor advances a full 30s, so 32 seconds gives one
	// 30s chunk and a 2s residual (< 5s minimum). With the default 5s overlap
	// the residual would be 7s, which is above the threshold.
	cfg.OverlapSeconds = 0
	src := &sliceSource{data: makeSeconds(32, cfg.SourceSampleRate)}
	c := New(src, "sess-1", cfg, func() string { return "x" })

	chunks := c.Poll()
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if c.Flush() != nil {
		t.Fatalf("expected no trailing chunk below minimum threshold")
	}
}

func TestChunkerSequenceMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	src := &sliceSource{data: makeSeconds(90, cfg.SourceSampleRate)}
	c := New(src, "sess-1", cfg, func() string { return "x" })

	chunks := c.Poll()
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Sequence <= chunks[i-1].Sequence {
			t.Fatalf("sequence not strictly increasing: %v", chunks)
		}
		if chunks[i].StartTime < chunks[i-1].StartTime {
			t.Fatalf("start time not non-decreasing: %v", chunks)
		}
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeSeconds(1, cfg.SourceSampleRate)
	a := Preprocess(raw, cfg)
	b := Preprocess(raw, cfg)
	if len(a) != len(b) {
		t.Fatalf("length mismatch between runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("preprocessing is not deterministic at index %d", i)
		}
	}
}

func TestNormalizeAllZeroIsIdentity(t *testing.T) {
	in := []float32{0, 0, 0}
	out := Normalize(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("normalize of all-zero must be identity, got %v", out)
		}
	}
}

func TestResampleIdentityWhenRatesMatch(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("resample at equal rates must be identity, got %v", out)
		}
	}
}
