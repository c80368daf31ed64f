package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleLLMComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "key=test-key") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "hello from google"}]}}],
			"usageMetadata": {"promptTokenCount": 15, "candidatesTokenCount": 5}
		}`))
	}))
	defer server.Close()

	l := NewGoogleLLM("test-key", "gemini")
	l.url = server.URL

	resp, err := l.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from google" {
		t.Errorf("expected 'hello from google', got %q", resp.Content)
	}
	if resp.Model != "gemini" {
		t.Errorf("expected configured model name, got %q", resp.Model)
	}
	if resp.InputTokens != 15 || resp.OutputTokens != 5 {
		t.Errorf("unexpected usage: %d in, %d out", resp.InputTokens, resp.OutputTokens)
	}
}
