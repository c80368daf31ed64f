// Package asrlocal implements C3: a pool of lazily loaded local ASR model
// sessions that transcribes audio chunks and gates low-confidence results
// for remote fallback (spec.md §4.3).
package asrlocal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scribeflow/meetcore/internal/logging"
)

// Config holds the host's tunables. Defaults match spec.md §4.3.
type Config struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	CallDeadline        time.Duration `yaml:"call_deadline"`
	LanguageDetectSecs  float64       `yaml:"language_detect_seconds"`
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		CallDeadline:        3 * time.Second,
		LanguageDetectSecs:  10,
	}
}

// Result is a single model invocation's output.
type Result struct {
	Text             string
	Confidence       float64
	ProcessingTimeMs int64
	Tokens           []string
	DetectedLanguage string
}

// Model is one loaded local ASR model session. Implementations talk to
// whatever local inference runtime is available (a whisper.cpp server
// process, an ONNX runtime session, etc.) — the host only needs this
// uniform surface.
type Model interface {
	Infer(ctx context.Context, samples []float32, sampleRate int, languageHint string) (Result, error)
	Unload() error
}

// ModelLoader constructs a Model session for a given identifier on first use.
type ModelLoader func(modelID string) (Model, error)

// Outcome discriminates the three possible process() results from
// spec.md §4.3: a confident transcription, a low-confidence one the caller
// should consider falling back on, or an error.
type Outcome int

const (
	OutcomeConfident Outcome = iota
	OutcomeLowConfidence
	OutcomeError
)

// ProcessResult bundles the outcome with the underlying Result (still
// attached even when low-confidence, per spec.md §4.3) and any error.
type ProcessResult struct {
	Outcome Outcome
	Result  Result
	Err     error
}

// Host owns a pool of loaded Model sessions keyed by model identifier.
type Host struct {
	cfg    Config
	loader ModelLoader
	logger logging.Logger

	mu      sync.Mutex
	loaded  map[string]Model
	def     string
	fixedLanguages map[string]string // sessionID -> detected language, fixed after first detection pass
}

// New builds a Host. defaultModel is loaded lazily on first Process call.
func New(loader ModelLoader, defaultModel string, cfg Config, logger logging.Logger) *Host {
	return &Host{
		cfg:            cfg,
		loader:         loader,
		logger:         logging.OrDefault(logger),
		loaded:         make(map[string]Model),
		def:            defaultModel,
		fixedLanguages: make(map[string]string),
	}
}

// getOrLoad returns the cached Model for id, loading it on first use.
func (h *Host) getOrLoad(id string) (Model, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.loaded[id]; ok {
		return m, nil
	}
	m, err := h.loader(id)
	if err != nil {
		return nil, errors.Join(ErrModelNotAvailable, err)
	}
	h.loaded[id] = m
	return m, nil
}

// Unload explicitly evicts a loaded model.
func (h *Host) Unload(id string) error {
	h.mu.Lock()
	m, ok := h.loaded[id]
	if ok {
		delete(h.loaded, id)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return m.Unload()
}

// SwitchDefault ensures the new model is loaded before changing the default
// pointer (spec.md §4.3) — if loading fails, the previous default is kept.
func (h *Host) SwitchDefault(id string) error {
	if _, err := h.getOrLoad(id); err != nil {
		return err
	}
	h.mu.Lock()
	h.def = id
	h.mu.Unlock()
	return nil
}

// Process runs inference for one chunk against modelID (or the default, if
// empty), honoring deadline. A confidence below cfg.ConfidenceThreshold
// yields OutcomeLowConfidence with the Result still populated so the caller
// (the pipeline) can decide whether to fall back to a remote provider.
func (h *Host) Process(ctx context.Context, modelID string, sessionID string, samples []float32, sampleRate int, autoDetectLanguage bool) ProcessResult {
	h.mu.Lock()
	id := modelID
	if id == "" {
		id = h.def
	}
	h.mu.Unlock()
	if id == "" {
		return ProcessResult{Outcome: OutcomeError, Err: ErrNoModel}
	}

	model, err := h.getOrLoad(id)
	if err != nil {
		return ProcessResult{Outcome: OutcomeError, Err: err}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if h.cfg.CallDeadline > 0 {
		callCtx, cancel = context.WithTimeout(ctx, h.cfg.CallDeadline)
		defer cancel()
	}

	langHint := h.fixedLanguageFor(sessionID)

	start := time.Now()
	res, err := model.Infer(callCtx, samples, sampleRate, langHint)
	res.ProcessingTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ProcessResult{Outcome: OutcomeError, Err: ErrTimeout}
		}
		return ProcessResult{Outcome: OutcomeError, Err: err}
	}

	if autoDetectLanguage && langHint == "" {
		h.fixLanguage(sessionID, res.DetectedLanguage)
	}

	if res.Confidence < h.cfg.ConfidenceThreshold {
		h.logger.Debug("low confidence transcription", "session", sessionID, "confidence", res.Confidence)
		return ProcessResult{Outcome: OutcomeLowConfidence, Result: res}
	}
	return ProcessResult{Outcome: OutcomeConfident, Result: res}
}

func (h *Host) fixedLanguageFor(sessionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fixedLanguages[sessionID]
}

func (h *Host) fixLanguage(sessionID, lang string) {
	if lang == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fixedLanguages[sessionID]; !ok {
		h.fixedLanguages[sessionID] = lang
	}
}

// ClearSession drops any fixed-language state held for a finished session.
func (h *Host) ClearSession(sessionID string) {
	h.mu.Lock()
	delete(h.fixedLanguages, sessionID)
	h.mu.Unlock()
}
