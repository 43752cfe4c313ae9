// Package ai holds the two language-model backed stages of email detection:
// classifying raw email text and categorizing a detected service.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrClassificationFailed = errors.New("classification failed")
	ErrCategorizationFailed = errors.New("categorization failed")
)

// Generator is the external language-model capability: a prompt goes in and
// a JSON document comes out, or the call fails.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) ([]byte, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f GeneratorFunc) GenerateJSON(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

// stripCodeFence removes a surrounding markdown code fence, which models
// sometimes add despite being asked for bare JSON.
func stripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// postJSON sends body to url and returns the response body of a 200 reply.
// Provider error messages are surfaced when the body carries one.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) ([]byte, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp apiError
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("provider error (HTTP %d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("provider error: HTTP %d", resp.StatusCode)
	}
	return respBody, nil
}

// NewGenerator returns the Generator for provider ("gemini" or "anthropic").
// An empty model selects the provider default.
func NewGenerator(provider, apiKey, model string, timeout time.Duration) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for %q", provider)
	}
	switch strings.ToLower(provider) {
	case "", "gemini":
		return NewGeminiGenerator(apiKey, model, timeout), nil
	case "anthropic":
		return NewAnthropicGenerator(apiKey, model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown language model provider %q", provider)
	}
}
