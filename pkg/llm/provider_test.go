package llm

import (
	"context"
	"testing"
	"time"

	"github.com/scribeflow/meetcore/pkg/dispatch"
)

type fakeProvider struct {
	name string
	text string
	cost float64
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Complete(ctx context.Context, messages []Message, maxTokens int) (Completion, error) {
	return Completion{Content: f.text, Model: f.name + "-model"}, nil
}
func (f *fakeProvider) EstimateCost(promptTokensEst int) (float64, error) { return f.cost, nil }
func (f *fakeProvider) HealthCheck(ctx context.Context) error             { return nil }

func TestAsDispatchProviderAdaptsOperation(t *testing.T) {
	fp := &fakeProvider{name: "fake", text: "summary", cost: 0.03}
	dp := AsDispatchProvider(fp)

	op := &CompletionOp{Messages: []Message{{Role: "user", Content: "x"}}, PromptTokensEst: 100, CallDeadline: time.Second}

	cost, err := dp.EstimateCost(op)
	if err != nil || cost != 0.03 {
		t.Fatalf("unexpected cost=%v err=%v", cost, err)
	}

	result, err := dp.Execute(context.Background(), op)
	if err != nil {
		t.Fatalf("unexpected err=%v", err)
	}
	comp, ok := result.(Completion)
	if !ok || comp.Content != "summary" {
		t.Fatalf("unexpected result=%v", result)
	}
}

type fakeOpDeadline struct{}

func (fakeOpDeadline) Deadline() time.Duration { return time.Second }

func TestAsDispatchProviderRejectsWrongOperationType(t *testing.T) {
	dp := AsDispatchProvider(&fakeProvider{name: "fake"})
	var op dispatch.Operation = fakeOpDeadline{}
	if _, err := dp.EstimateCost(op); err == nil {
		t.Fatalf("expected an error for a mismatched operation type")
	}
}
