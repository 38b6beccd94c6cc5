package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewProviderUnconfigured(t *testing.T) {
	_, err := NewProvider(ProviderConfig{})
	if err != ErrUnconfigured {
		t.Errorf("expected ErrUnconfigured, got %v", err)
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "serde is a serialization framework."}},
			},
		})
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	out, err := p.Generate(context.Background(), "describe serde")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "serde is a serialization framework." {
		t.Errorf("unexpected output %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotModel != "gpt-4o-mini" {
		t.Errorf("unexpected model %q", gotModel)
	}
}

func TestOpenAIProviderUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := p.Generate(context.Background(), "prompt"); err == nil {
		t.Error("expected error from 503 response")
	}
}
