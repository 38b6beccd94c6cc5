// Package narrative produces the human-readable summary attached to an
// intelligence record. A text-generation service writes the narrative when
// one is configured; a deterministic template over the structured
// extraction data is the fallback, and that path never fails as long as
// the structured data itself is present.
package narrative

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

// Provider is the text-generation capability used for deep narratives.
type Provider interface {
	// Generate produces a completion for the given prompt. An empty
	// result without error is treated as a synthesis failure by callers.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the provider identifier for diagnostics.
	Name() string
}

// ErrUnconfigured is returned by NewProvider when no service is set up;
// callers fall back to the template synthesizer.
var ErrUnconfigured = errors.New("no text-generation service configured")

// ProviderConfig holds configuration for the text-generation service.
type ProviderConfig struct {
	BaseURL string        // OpenAI-compatible API root (empty disables synthesis)
	APIKey  string        // Bearer token (optional for local services)
	Model   string        // Model identifier
	Timeout time.Duration // Per-request timeout (default 60s)
}

// NewProvider creates a Provider from config. Returns ErrUnconfigured
// when BaseURL is empty.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, ErrUnconfigured
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &openAIProvider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// openAIProvider talks to any OpenAI-compatible completion API.
type openAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func (p *openAIProvider) Name() string { return "openai-compatible" }

func (p *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("text-generation service returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// MockProvider returns canned output. Used in tests and the fetch CLI's
// --mock-llm mode.
type MockProvider struct {
	Output string
	Err    error
	// Prompts records every prompt received, for assertions.
	Prompts []string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Output, m.Err
}
