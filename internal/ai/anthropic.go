package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	anthropicBaseURL          = "https://api.anthropic.com/v1"
	anthropicMessagesEndpoint = "/messages"
	anthropicDefaultModel     = "claude-haiku-4-5"
	anthropicVersion          = "2023-06-01"
)

type anthropicGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewAnthropicGenerator returns a Generator backed by the Anthropic messages API.
func NewAnthropicGenerator(apiKey, model string, timeout time.Duration) Generator {
	if model == "" {
		model = anthropicDefaultModel
	}
	return &anthropicGenerator{
		client:  &http.Client{Timeout: timeout},
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *anthropicGenerator) GenerateJSON(ctx context.Context, prompt string) ([]byte, error) {
	if a.apiKey == "" {
		return nil, errors.New("anthropic API key is not configured")
	}
	requestBody := map[string]interface{}{
		"model":       a.model,
		"max_tokens":  1024,
		"temperature": 0,
		"system":      "Respond with a single JSON object and nothing else.",
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	body, err := postJSON(ctx, a.client, a.baseURL+anthropicMessagesEndpoint, headers, requestBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return stripCodeFence([]byte(block.Text)), nil
		}
	}
	return nil, errors.New("anthropic response has no text content")
}
