package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicLLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			Model     string              `json:"model"`
			Messages  []map[string]string `json:"messages"`
			System    string              `json:"system,omitempty"`
			MaxTokens int                 `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.System != "system instructions" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.MaxTokens != 1024 {
			// max_tokens is mandatory; 0 must be replaced by the default.
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Write([]byte(`{
			"model": "claude-3",
			"content": [{"text": "hello from anthropic"}],
			"usage": {"input_tokens": 30, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	l := NewAnthropicLLM("test-key", "claude-3")
	l.url = server.URL

	messages := []Message{
		{Role: "system", Content: "system instructions"},
		{Role: "user", Content: "hi"},
	}

	resp, err := l.Complete(context.Background(), messages, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from anthropic" {
		t.Errorf("expected 'hello from anthropic', got %q", resp.Content)
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 8 {
		t.Errorf("unexpected usage: %d in, %d out", resp.InputTokens, resp.OutputTokens)
	}
}
