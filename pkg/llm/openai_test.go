package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAILLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"model": "gpt-4o-2024-08-06",
			"choices": [{"message": {"content": "hello from openai"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 6}
		}`))
	}))
	defer server.Close()

	l := NewOpenAILLM("test-key", "")
	l.url = server.URL

	resp, err := l.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from openai" {
		t.Errorf("expected 'hello from openai', got %q", resp.Content)
	}
	if resp.Model != "gpt-4o-2024-08-06" {
		t.Errorf("expected model from the response body, got %q", resp.Model)
	}
	if resp.InputTokens != 20 || resp.OutputTokens != 6 {
		t.Errorf("unexpected usage: %d in, %d out", resp.InputTokens, resp.OutputTokens)
	}
	if l.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", l.Name())
	}
}

func TestOpenAILLMNoChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	l := NewOpenAILLM("test-key", "")
	l.url = server.URL

	if _, err := l.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0); err == nil {
		t.Fatalf("expected an error when no choices are returned")
	}
}
