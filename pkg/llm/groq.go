package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// groqUSDPerThousandTokens is a blended llama3-70b rate on Groq's token
// pricing, used for cost gating.
const groqUSDPerThousandTokens = 0.00059

type GroqLLM struct {
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewGroqLLM(apiKey, model string) *GroqLLM {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return &GroqLLM{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/chat/completions",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (l *GroqLLM) Name() string { return "groq" }

func (l *GroqLLM) EstimateCost(promptTokensEst int) (float64, error) {
	return float64(promptTokensEst) / 1000 * groqUSDPerThousandTokens, nil
}

func (l *GroqLLM) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.groq.com/openai/v1/models", nil)
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
		return fmt.Errorf("groq: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (l *GroqLLM) Complete(ctx context.Context, messages []Message, maxTokens int) (Completion, error) {
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
		return Completion{}, fmt.Errorf("groq llm error (status %d): %v", resp.StatusCode, errResp)
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
		return Completion{}, fmt.Errorf("no choices returned from groq")
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
