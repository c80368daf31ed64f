package asrremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scribeflow/meetcore/pkg/audio"
)

// assemblyaiUSDPerMinute is AssemblyAI's published best-tier async rate.
const assemblyaiUSDPerMinute = 0.0062

// AssemblyAIProvider transcribes via AssemblyAI's async upload→submit→poll
// API (spec.md §4.4): upload the audio, submit a transcription job, then
// poll until the job completes or errors.
type AssemblyAIProvider struct {
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	pollEvery  time.Duration
}

func NewAssemblyAIProvider(apiKey string) *AssemblyAIProvider {
	return &AssemblyAIProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      DefaultRetryConfig(),
		pollEvery:  500 * time.Millisecond,
	}
}

func (p *AssemblyAIProvider) Name() string { return "assemblyai" }

func (p *AssemblyAIProvider) EstimateCost(duration time.Duration) (float64, error) {
	return duration.Minutes() * assemblyaiUSDPerMinute, nil
}

func (p *AssemblyAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.assemblyai.com/v2/transcript?limit=1", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assemblyai: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (p *AssemblyAIProvider) Transcribe(ctx context.Context, samples []float32, sampleRate int, languageHint string) (string, error) {
	wav := audio.FloatsToWAV(samples, sampleRate)

	uploadURL, err := doWithRetry(ctx, p.retry, func(ctx context.Context) (string, *http.Response, error) {
		return p.upload(ctx, wav)
	})
	if err != nil {
		return "", err
	}

	transcriptID, err := doWithRetry(ctx, p.retry, func(ctx context.Context) (string, *http.Response, error) {
		return p.submit(ctx, uploadURL, languageHint)
	})
	if err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollEvery):
			text, status, err := p.getTranscript(ctx, transcriptID)
			if err != nil {
				return "", err
			}
			if status == "completed" {
				return text, nil
			}
			if status == "error" {
				return "", fmt.Errorf("assemblyai: transcription job failed")
			}
		}
	}
}

func (p *AssemblyAIProvider) upload(ctx context.Context, wav []byte) (string, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/upload", bytes.NewReader(wav))
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("assemblyai upload error (status %d): %s", resp.StatusCode, string(data))
		if !retryableStatus(resp.StatusCode) {
			return "", resp, nonRetryable(err)
		}
		return "", resp, err
	}

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", resp, nonRetryable(err)
	}
	return result.UploadURL, resp, nil
}

func (p *AssemblyAIProvider) submit(ctx context.Context, uploadURL, languageHint string) (string, *http.Response, error) {
	payload := map[string]interface{}{"audio_url": uploadURL}
	if languageHint != "" {
		payload["language_code"] = languageHint
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, nonRetryable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.assemblyai.com/v2/transcript", bytes.NewReader(data))
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("assemblyai submit error (status %d): %s", resp.StatusCode, string(body))
		if !retryableStatus(resp.StatusCode) {
			return "", resp, nonRetryable(err)
		}
		return "", resp, err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", resp, nonRetryable(err)
	}
	return result.ID, resp, nil
}

func (p *AssemblyAIProvider) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.assemblyai.com/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Text, result.Status, nil
}
