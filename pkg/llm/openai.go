package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// openaiUSDPerThousandTokens is a blended gpt-4o estimate used for cost
// gating; actual billing reconciles from the provider's usage dashboard.
const openaiUSDPerThousandTokens = 0.005

type OpenAILLM struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewOpenAILLM(apiKey, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/chat/completions",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (l *OpenAILLM) Name() string { return "openai" }

func (l *OpenAILLM) EstimateCost(promptTokensEst int) (float64, error) {
	return float64(promptTokensEst) / 1000 * openaiUSDPerThousandTokens, nil
}

func (l *OpenAILLM) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (l *OpenAILLM) Complete(ctx context.Context, messages []Message, maxTokens int) (Completion, error) {
	payload := map[string]interface{}{
		"model":    l.model,
		"messages": messages,
	}
	if maxTokens > 0 {
		payload["max_tokens"] = maxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return Completion{}, fmt.Errorf("openai llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Completion{}, err
	}
	if len(result.Choices) == 0 {
		return Completion{}, fmt.Errorf("no choices returned from openai")
	}
	model := result.Model
	if model == "" {
		model = l.model
	}
	return Completion{
		Content:      result.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}, nil
}
