package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqLLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req["max_tokens"] != float64(500) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{
			"model": "llama3-70b",
			"choices": [{"message": {"content": "hello from groq"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	}))
	defer server.Close()

	l := NewGroqLLM("test-key", "llama3-70b")
	l.url = server.URL

	resp, err := l.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from groq" {
		t.Errorf("expected 'hello from groq', got %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("unexpected usage: %d in, %d out", resp.InputTokens, resp.OutputTokens)
	}
	if l.Name() != "groq" {
		t.Errorf("expected groq, got %q", l.Name())
	}
}
