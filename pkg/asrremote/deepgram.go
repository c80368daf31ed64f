package asrremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/scribeflow/meetcore/pkg/audio"
)

// deepgramUSDPerMinute is Deepgram's published nova-2 pay-as-you-go rate.
const deepgramUSDPerMinute = 0.0043

// DeepgramProvider transcribes via Deepgram's prerecorded /v1/listen
// endpoint, sending the WAV container directly as the request body.
type DeepgramProvider struct {
	apiKey     string
	url        string
	httpClient *http.Client
	retry      RetryConfig
}

func NewDeepgramProvider(apiKey string) *DeepgramProvider {
	return &DeepgramProvider{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      DefaultRetryConfig(),
	}
}

func (p *DeepgramProvider) Name() string { return "deepgram" }

func (p *DeepgramProvider) EstimateCost(duration time.Duration) (float64, error) {
	return duration.Minutes() * deepgramUSDPerMinute, nil
}

func (p *DeepgramProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.deepgram.com/v1/projects", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deepgram: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, samples []float32, sampleRate int, languageHint string) (string, error) {
	wav := audio.FloatsToWAV(samples, sampleRate)
	return doWithRetry(ctx, p.retry, func(ctx context.Context) (string, *http.Response, error) {
		return p.transcribeOnce(ctx, wav, languageHint)
	})
}

func (p *DeepgramProvider) transcribeOnce(ctx context.Context, wav []byte, languageHint string) (string, *http.Response, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if languageHint != "" {
		params.Set("language", languageHint)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(wav))
	if err != nil {
		return "", nil, nonRetryable(err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(data))
		if !retryableStatus(resp.StatusCode) {
			return "", resp, nonRetryable(err)
		}
		return "", resp, err
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", resp, nonRetryable(err)
	}
	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", resp, nil
	}
	return result.Results.Channels[0].Alternatives[0].Transcript, resp, nil
}
