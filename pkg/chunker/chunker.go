// Package chunker implements C2: it drains a capture ring buffer into
// fixed-size, overlapping AudioChunks and preprocesses each chunk into the
// deterministic mono 16kHz form the ASR hosts expect (spec.md §4.2).
package chunker

import (
	"time"
)

// Config holds the chunking policy. Defaults match spec.md §4.2.
type Config struct {
	ChunkSeconds       float64 `yaml:"chunk_seconds"`
	OverlapSeconds     float64 `yaml:"overlap_seconds"`
	MinTrailingSeconds float64 `yaml:"min_trailing_seconds"`
	SourceSampleRate   int     `yaml:"source_sample_rate"`
	TargetSampleRate   int     `yaml:"target_sample_rate"`
	Normalize          bool    `yaml:"normalize"`
	HighPassFilter     bool    `yaml:"high_pass_filter"`
	FixedInputSamples  int     `yaml:"fixed_input_samples"` // 0 disables pad/truncate
}

// DefaultConfig matches spec.md §4.2: 30s chunks, 5s overlap, 5s trailing
// minimum, 16kHz target.
func DefaultConfig() Config {
	return Config{
		ChunkSeconds:       30,
		OverlapSeconds:     5,
		MinTrailingSeconds: 5,
		SourceSampleRate:   44100,
		TargetSampleRate:   16000,
		Normalize:          true,
		HighPassFilter:     false,
	}
}

// Stride returns the configured stride (chunk size minus overlap).
func (c Config) Stride() float64 { return c.ChunkSeconds - c.OverlapSeconds }

// Chunk is the C2 output unit (spec.md §3 AudioChunk).
type Chunk struct {
	ChunkID   string
	SessionID string
	Data      []float32 // preprocessed mono 16kHz samples
	StartTime time.Duration
	EndTime   time.Duration
	Sequence  int
}

// Source is anything the chunker can drain samples from — satisfied by
// *pkg/audio.RingBuffer in production and by a slice-backed fake in tests.
type Source interface {
	Read(out []float32) int
	Available() int
}

// Chunker drains a Source at the configured stride and emits preprocessed
// AudioChunks. It is not safe for concurrent use by multiple goroutines —
// one chunker per session, per spec.md §3's single-consumer ring buffer
// invariant.
type Chunker struct {
	cfg       Config
	sessionID string
	source    Source

	residual []float32 // samples read but not yet consumed into a chunk
	cursor   time.Duration
	seq      int

	idGen func() string
}

// New builds a Chunker over source for sessionID. idGen generates chunk IDs
// (injected so tests are deterministic); production callers pass
// uuid.NewString.
func New(source Source, sessionID string, cfg Config, idGen func() string) *Chunker {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	return &Chunker{cfg: cfg, sessionID: sessionID, source: source, idGen: idGen}
}

// Poll drains whatever is currently available from the source and returns
// any chunks that are now ready. Callers invoke this on a ticking schedule
// (the pipeline worker) rather than the chunker blocking internally, keeping
// the chunker itself synchronous and easy to test.
func (c *Chunker) Poll() []Chunk {
	n := c.source.Available()
	if n == 0 {
		return nil
	}
	buf := make([]float32, n)
	got := c.source.Read(buf)
	c.residual = append(c.residual, buf[:got]...)

	chunkSamples := int(c.cfg.ChunkSeconds * float64(c.cfg.SourceSampleRate))
	strideSamples := int(c.cfg.Stride() * float64(c.cfg.SourceSampleRate))
	if strideSamples <= 0 {
		strideSamples = chunkSamples
	}

	var out []Chunk
	for len(c.residual) >= chunkSamples {
		raw := c.residual[:chunkSamples]
		out = append(out, c.emit(raw))

		if strideSamples >= len(c.residual) {
			c.residual = nil
		} else {
			c.residual = append([]float32(nil), c.residual[strideSamples:]...)
		}
		c.cursor += time.Duration(strideSamples) * time.Second / time.Duration(c.cfg.SourceSampleRate)
	}
	return out
}

// Flush emits a final short chunk containing any residual audio, if and only
// if its length exceeds MinTrailingSeconds (spec.md §4.2). Call once at
// session termination.
func (c *Chunker) Flush() *Chunk {
	minSamples := int(c.cfg.MinTrailingSeconds * float64(c.cfg.SourceSampleRate))
	if len(c.residual) <= minSamples {
		return nil
	}
	raw := c.residual
	c.residual = nil
	ch := c.emit(raw)
	return &ch
}

func (c *Chunker) emit(raw []float32) Chunk {
	start := c.cursor
	duration := time.Duration(len(raw)) * time.Second / time.Duration(c.cfg.SourceSampleRate)
	end := start + duration

	data := Preprocess(raw, c.cfg)

	ch := Chunk{
		ChunkID:   c.idGen(),
		SessionID: c.sessionID,
		Data:      data,
		StartTime: start,
		EndTime:   end,
		Sequence:  c.seq,
	}
	c.seq++
	return ch
}
