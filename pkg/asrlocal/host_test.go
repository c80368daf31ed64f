package asrlocal

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeModel struct {
	result     Result
	err        error
	loadCalls  int
	unloaded   bool
	delay      time.Duration
}

func (f *fakeModel) Infer(ctx context.Context, samples []float32, sampleRate int, languageHint string) (Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeModel) Unload() error {
	f.unloaded = true
	return nil
}

func newLoader(models map[string]*fakeModel) ModelLoader {
	loadCount := map[string]int{}
	return func(id string) (Model, error) {
		m, ok := models[id]
		if !ok {
			return nil, errors.New("no such model")
		}
		loadCount[id]++
		m.loadCalls = loadCount[id]
		return m, nil
	}
}

func TestHostConfidentResult(t *testing.T) {
	m := &fakeModel{result: Result{Text: "hello world", Confidence: 0.95}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	pr := h.Process(context.Background(), "", "sess-1", make([]float32, 1600), 16000, false)
	if pr.Outcome != OutcomeConfident {
		t.Fatalf("expected confident outcome, got %v (err=%v)", pr.Outcome, pr.Err)
	}
	if pr.Result.Text != "hello world" {
		t.Fatalf("unexpected text: %q", pr.Result.Text)
	}
}

func TestHostLowConfidenceStillReturnsResult(t *testing.T) {
	m := &fakeModel{result: Result{Text: "uh maybe", Confidence: 0.4}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	pr := h.Process(context.Background(), "", "sess-1", make([]float32, 1600), 16000, false)
	if pr.Outcome != OutcomeLowConfidence {
		t.Fatalf("expected low confidence outcome, got %v", pr.Outcome)
	}
	if pr.Result.Text != "uh maybe" {
		t.Fatalf("low confidence result must still carry the transcription text")
	}
}

func TestHostNoDefaultModelConfigured(t *testing.T) {
	h := New(newLoader(nil), "", DefaultConfig(), nil)
	pr := h.Process(context.Background(), "", "sess-1", nil, 16000, false)
	if pr.Outcome != OutcomeError || !errors.Is(pr.Err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got outcome=%v err=%v", pr.Outcome, pr.Err)
	}
}

func TestHostTimeoutSurfacesErrTimeout(t *testing.T) {
	m := &fakeModel{delay: 50 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.CallDeadline = 5 * time.Millisecond
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", cfg, nil)

	pr := h.Process(context.Background(), "", "sess-1", nil, 16000, false)
	if pr.Outcome != OutcomeError || !errors.Is(pr.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got outcome=%v err=%v", pr.Outcome, pr.Err)
	}
}

func TestHostModelLoadedLazilyAndCached(t *testing.T) {
	m := &fakeModel{result: Result{Text: "x", Confidence: 0.9}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	h.Process(context.Background(), "", "sess-1", nil, 16000, false)
	h.Process(context.Background(), "", "sess-1", nil, 16000, false)

	if m.loadCalls != 1 {
		t.Fatalf("expected model to be loaded exactly once, loader invoked %d times", m.loadCalls)
	}
}

func TestHostSwitchDefaultKeepsPreviousOnLoadFailure(t *testing.T) {
	m := &fakeModel{result: Result{Text: "x", Confidence: 0.9}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	if err := h.SwitchDefault("missing"); err == nil {
		t.Fatalf("expected error switching to an unloadable model")
	}

	pr := h.Process(context.Background(), "", "sess-1", nil, 16000, false)
	if pr.Outcome != OutcomeConfident {
		t.Fatalf("expected default model to remain usable after failed switch, got %v", pr.Outcome)
	}
}

func TestHostUnload(t *testing.T) {
	m := &fakeModel{result: Result{Text: "x", Confidence: 0.9}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	h.Process(context.Background(), "", "sess-1", nil, 16000, false)
	if err := h.Unload("base"); err != nil {
		t.Fatalf("unexpected error unloading: %v", err)
	}
	if !m.unloaded {
		t.Fatalf("expected underlying model Unload to be called")
	}
}

func TestHostLanguageFixedAfterFirstDetection(t *testing.T) {
	m := &fakeModel{result: Result{Text: "bonjour", Confidence: 0.9, DetectedLanguage: "fr"}}
	h := New(newLoader(map[string]*fakeModel{"base": m}), "base", DefaultConfig(), nil)

	h.Process(context.Background(), "", "sess-1", nil, 16000, true)
	if got := h.fixedLanguageFor("sess-1"); got != "fr" {
		t.Fatalf("expected language fixed to fr, got %q", got)
	}

	h.ClearSession("sess-1")
	if got := h.fixedLanguageFor("sess-1"); got != "" {
		t.Fatalf("expected language cleared after ClearSession, got %q", got)
	}
}
