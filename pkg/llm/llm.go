// Package llm implements the completion half of the provider stack: four
// chat-completion backends (Groq, OpenAI, Anthropic, Google) behind a
// uniform interface, each also usable as a pkg/dispatch.Provider so the
// dispatcher can arbitrate among them for summarization (spec.md §4.6).
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/scribeflow/meetcore/pkg/dispatch"
)

// Message is one turn in a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is one provider response. Token counts are parsed from the
// provider's usage block; a provider that omits usage reports zeros.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is implemented by every completion backend. maxTokens bounds
// the generated output; zero leaves the bound at the provider's default.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message, maxTokens int) (Completion, error)
	EstimateCost(promptTokensEst int) (float64, error)
	HealthCheck(ctx context.Context) error
}

// CompletionOp is the dispatch.Operation carrying one summarization request.
type CompletionOp struct {
	Messages        []Message
	MaxOutputTokens int
	PromptTokensEst int
	CallDeadline    time.Duration
}

func (c *CompletionOp) Deadline() time.Duration { return c.CallDeadline }

type dispatchAdapter struct {
	Provider
}

// AsDispatchProvider wraps p so it can be registered with a
// pkg/dispatch.Dispatcher. Execute's result value is a Completion.
func AsDispatchProvider(p Provider) dispatch.Provider {
	return dispatchAdapter{Provider: p}
}

func (a dispatchAdapter) EstimateCost(op dispatch.Operation) (float64, error) {
	c, ok := op.(*CompletionOp)
	if !ok {
		return 0, fmt.Errorf("llm: unexpected operation type %T", op)
	}
	return a.Provider.EstimateCost(c.PromptTokensEst)
}

func (a dispatchAdapter) Execute(ctx context.Context, op dispatch.Operation) (interface{}, error) {
	c, ok := op.(*CompletionOp)
	if !ok {
		return nil, fmt.Errorf("llm: unexpected operation type %T", op)
	}
	return a.Provider.Complete(ctx, c.Messages, c.MaxOutputTokens)
}
