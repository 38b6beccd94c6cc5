package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/httputil"
)

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "crateintel-test" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Write([]byte(`{"name":"serde"}`))
	}))
	defer server.Close()

	c := NewClient(cache.NewNullCache(), "test:", time.Hour, map[string]string{"User-Agent": "crateintel-test"})

	var out struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}
	if out.Name != "serde" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(cache.NewNullCache(), "test:", time.Hour, nil)

	var out any
	err := c.GetJSON(context.Background(), server.URL, &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJSON() = %v, want ErrNotFound", err)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := checkStatus(http.StatusOK); err != nil {
		t.Errorf("200 = %v, want nil", err)
	}
	if err := checkStatus(http.StatusNotFound); !errors.Is(err, ErrNotFound) {
		t.Errorf("404 = %v, want ErrNotFound", err)
	}
	// 5xx must be retryable, 4xx must not.
	if err := checkStatus(http.StatusBadGateway); !httputil.IsRetryable(err) {
		t.Errorf("502 = %v, want retryable", err)
	}
	if err := checkStatus(http.StatusForbidden); httputil.IsRetryable(err) {
		t.Errorf("403 = %v, want non-retryable", err)
	}
	if err := checkStatus(http.StatusForbidden); !errors.Is(err, ErrNetwork) {
		t.Errorf("403 = %v, want ErrNetwork", err)
	}
}

func TestClient_CachedHit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"version":"1.0.0"}`))
	}))
	defer server.Close()

	c := NewClient(cache.NewMemoryCache(), "test:", time.Hour, nil)

	type resp struct {
		Version string `json:"version"`
	}

	fetch := func(v *resp) error {
		return c.Cached(context.Background(), "serde", false, v, func() error {
			return c.GetJSON(context.Background(), server.URL, v)
		})
	}

	var first, second resp
	if err := fetch(&first); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := fetch(&second); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (second should hit cache)", calls.Load())
	}
	if second.Version != "1.0.0" {
		t.Errorf("cached Version = %q", second.Version)
	}
}

func TestClient_CachedRefreshBypasses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(cache.NewMemoryCache(), "test:", time.Hour, nil)

	var v map[string]any
	for range 2 {
		err := c.Cached(context.Background(), "k", true, &v, func() error {
			return c.GetJSON(context.Background(), server.URL, &v)
		})
		if err != nil {
			t.Fatalf("Cached: %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2 with refresh=true", calls.Load())
	}
}

func TestClient_GetHTMLCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c := NewClient(cache.NewMemoryCache(), "test:", time.Hour, nil)

	for range 2 {
		if _, err := c.GetHTML(context.Background(), server.URL); err != nil {
			t.Fatalf("GetHTML: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}
