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
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel = "gemini-2.0-flash"
)

type geminiGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewGeminiGenerator returns a Generator backed by the Gemini generateContent API.
func NewGeminiGenerator(apiKey, model string, timeout time.Duration) Generator {
	if model == "" {
		model = geminiDefaultModel
	}
	return &geminiGenerator{
		client:  &http.Client{Timeout: timeout},
		baseURL: geminiBaseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (g *geminiGenerator) GenerateJSON(ctx context.Context, prompt string) ([]byte, error) {
	if g.apiKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"temperature":      0,
		},
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	body, err := postJSON(ctx, g.client, url, map[string]string{"x-goog-api-key": g.apiKey}, requestBody)
	if err != nil {
		return nil, fmt.Errorf("gemini generateContent: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini response has no content")
	}
	return stripCodeFence([]byte(resp.Candidates[0].Content.Parts[0].Text)), nil
}
