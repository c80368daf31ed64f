package asrremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/scribeflow/meetcore/pkg/audio"
)

// openaiUSDPerMinute is OpenAI's published whisper-1 transcription rate.
const openaiUSDPerMinute = 0.006

// OpenAIProvider transcribes via OpenAI's /v1/audio/transcriptions endpoint.
type OpenAIProvider struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
	retry      RetryConfig
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      DefaultRetryConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) EstimateCost(duration time.Duration) (float64, error) {
	return duration.Minutes() * openaiUSDPerMinute, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, samples []float32, sampleRate int, languageHint string) (string, error) {
	wav := audio.FloatsToWAV(samples, sampleRate)
	return doWithRetry(ctx, p.retry, func(ctx context.Context) (string, *http.Response, error) {
		return p.transcribeOnce(ctx, wav, languageHint)
	})
}

func (p *OpenAIProvider) transcribeOnce(ctx context.Context, wav []byte, languageHint string) (string, *http.Response, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", p.model); err != nil {
		return "", nil, nonRetryable(err)
	}
	if languageHint != "" {
		if err := writer.WriteField("language", languageHint); err != nil {
			return "", nil, nonRetryable(err)
		}
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", nil, nonRetryable(err)
	}
	if err := writer.Close(); err != nil {
		return "", nil, nonRetryable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("openai stt error (status %d): %s", resp.StatusCode, string(data))
		if !retryableStatus(resp.StatusCode) {
			return "", resp, nonRetryable(err)
		}
		return "", resp, err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", resp, nonRetryable(err)
	}
	return result.Text, resp, nil
}
