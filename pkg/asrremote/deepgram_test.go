package asrremote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramProviderTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Results struct {
				Channels []struct {
					Alternatives []struct {
						Transcript string `json:"transcript"`
					} `json:"alternatives"`
				} `json:"channels"`
			} `json:"results"`
		}{}
		resp.Results.Channels = []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		}{{Alternatives: []struct {
			Transcript string `json:"transcript"`
		}{{Transcript: "deepgram transcription"}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewDeepgramProvider("test-key")
	p.url = server.URL

	text, err := p.Transcribe(context.Background(), []float32{0.1}, 16000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "deepgram transcription" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestDeepgramProviderEmptyAlternativesReturnsEmptyString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer server.Close()

	p := NewDeepgramProvider("test-key")
	p.url = server.URL

	text, err := p.Transcribe(context.Background(), []float32{0.1}, 16000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript, got %q", text)
	}
}
