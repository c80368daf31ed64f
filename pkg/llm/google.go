package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// googleUSDPerThousandTokens is a blended gemini-1.5-flash input rate.
const googleUSDPerThousandTokens = 0.000075

type GoogleLLM struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewGoogleLLM(apiKey, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey:     apiKey,
		url:        "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (l *GoogleLLM) Name() string { return "google" }

func (l *GoogleLLM) EstimateCost(promptTokensEst int) (float64, error) {
	return float64(promptTokensEst) / 1000 * googleUSDPerThousandTokens, nil
}

func (l *GoogleLLM) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://generativelanguage.googleapis.com/v1beta/models?key="+l.apiKey, nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (l *GoogleLLM) Complete(ctx context.Context, messages []Message, maxTokens int) (Completion, error) {
	type googlePart struct {
		Text string `json:"text"`
	}
	type googleMessage struct {
		Role  string       `json:"role"`
		Parts []googlePart `json:"parts"`
	}

	var googleMessages []googleMessage
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			role = "user"
		}
		if role == "assistant" {
			role = "model"
		}
		googleMessages = append(googleMessages, googleMessage{
			Role:  role,
			Parts: []googlePart{{Text: m.Content}},
		})
	}

	payload := map[string]interface{}{"contents": googleMessages}
	if maxTokens > 0 {
		payload["generationConfig"] = map[string]interface{}{"maxOutputTokens": maxTokens}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return Completion{}, fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Completion{}, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return Completion{}, fmt.Errorf("no response from google llm")
	}
	return Completion{
		Content:      result.Candidates[0].Content.Parts[0].Text,
		Model:        l.model,
		InputTokens:  result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
	}, nil
}
