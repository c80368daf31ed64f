package asrlocal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/scribeflow/meetcore/pkg/audio"
)

// WhisperServerModel talks to a local whisper.cpp server instance (the
// whisper-server binary, POST /inference) for a single model identifier.
// Loading is lazy: no connection is opened until the first Infer call.
type WhisperServerModel struct {
	serverURL  string
	modelID    string
	httpClient *http.Client
}

// NewWhisperServerModel builds a Model bound to modelID against a
// whisper.cpp server at serverURL (e.g. "http://localhost:8081").
func NewWhisperServerModel(serverURL, modelID string) *WhisperServerModel {
	return &WhisperServerModel{
		serverURL:  serverURL,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// whisperResponse models whisper.cpp's /inference JSON shape, including the
// optional segment-level log-probabilities used to derive a confidence score
// (whisper.cpp itself reports no single scalar confidence).
type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// Infer encodes samples as a 16-bit WAV and posts it to the server's
// /inference endpoint as multipart form data.
func (m *WhisperServerModel) Infer(ctx context.Context, samples []float32, sampleRate int, languageHint string) (Result, error) {
	wav := audio.FloatsToWAV(samples, sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, fmt.Errorf("asrlocal: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return Result{}, fmt.Errorf("asrlocal: write wav data: %w", err)
	}
	if languageHint != "" {
		if err := mw.WriteField("language", languageHint); err != nil {
			return Result{}, fmt.Errorf("asrlocal: write language field: %w", err)
		}
	}
	if m.modelID != "" {
		if err := mw.WriteField("model", m.modelID); err != nil {
			return Result{}, fmt.Errorf("asrlocal: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("asrlocal: write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("asrlocal: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.serverURL+"/inference", &body)
	if err != nil {
		return Result{}, fmt.Errorf("asrlocal: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("asrlocal: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("asrlocal: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("asrlocal: read response body: %w", err)
	}

	var wr whisperResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return Result{}, fmt.Errorf("asrlocal: parse JSON response: %w", err)
	}

	tokens := make([]string, 0, len(wr.Segments))
	confidence := 1.0
	if len(wr.Segments) > 0 {
		var sumLogprob float64
		for _, seg := range wr.Segments {
			tokens = append(tokens, seg.Text)
			sumLogprob += seg.AvgLogprob
		}
		avg := sumLogprob / float64(len(wr.Segments))
		confidence = math.Exp(avg) // avg_logprob is a log-probability; exp() maps it back to (0,1]
		if confidence > 1 {
			confidence = 1
		}
	}

	return Result{
		Text:             wr.Text,
		Confidence:       confidence,
		Tokens:           tokens,
		DetectedLanguage: wr.Language,
	}, nil
}

// Unload is a no-op: the server process, not this client, owns model memory.
// whisper.cpp server has no per-request unload API.
func (m *WhisperServerModel) Unload() error { return nil }
