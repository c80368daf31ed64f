package asrremote

import (
	"context"
	"fmt"
	"time"

	"github.com/scribeflow/meetcore/pkg/dispatch"
)

// Provider is the uniform surface every remote transcription backend
// implements (spec.md §4.4).
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, sampleRate int, languageHint string) (string, error)
	EstimateCost(duration time.Duration) (float64, error)
	HealthCheck(ctx context.Context) error
}

// TranscribeOp is the dispatch.Operation carrying one fallback-ASR request.
// It is shared across all providers the dispatcher iterates.
type TranscribeOp struct {
	Samples      []float32
	SampleRate   int
	LanguageHint string
	Duration     time.Duration
	CallDeadline time.Duration
}

func (t *TranscribeOp) Deadline() time.Duration { return t.CallDeadline }

// dispatchAdapter wraps a Provider so it also satisfies dispatch.Provider,
// translating the generic Operation/interface{} surface into TranscribeOp
// and a plain string result.
type dispatchAdapter struct {
	Provider
}

// AsDispatchProvider wraps p so it can be registered with a
// pkg/dispatch.Dispatcher.
func AsDispatchProvider(p Provider) dispatch.Provider {
	return dispatchAdapter{Provider: p}
}

func (a dispatchAdapter) EstimateCost(op dispatch.Operation) (float64, error) {
	t, ok := op.(*TranscribeOp)
	if !ok {
		return 0, fmt.Errorf("asrremote: unexpected operation type %T", op)
	}
	return a.Provider.EstimateCost(t.Duration)
}

func (a dispatchAdapter) Execute(ctx context.Context, op dispatch.Operation) (interface{}, error) {
	t, ok := op.(*TranscribeOp)
	if !ok {
		return nil, fmt.Errorf("asrremote: unexpected operation type %T", op)
	}
	return a.Provider.Transcribe(ctx, t.Samples, t.SampleRate, t.LanguageHint)
}
