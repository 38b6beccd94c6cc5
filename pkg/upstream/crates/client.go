// Package crates provides access to the crates.io package registry API.
package crates

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/upstream"
)

// DefaultBaseURL is the production crates.io API root.
const DefaultBaseURL = "https://crates.io/api/v1"

// CrateInfo holds registry metadata for a Rust crate.
//
// The Version field contains the max_version (latest stable or highest
// version). Zero values: all string fields are empty, Downloads is 0.
// A Downloads value of 0 is valid for newly published crates.
// This struct is safe for concurrent reads after construction.
type CrateInfo struct {
	Name        string `json:"name"`        // Crate name (e.g., "serde", never empty in valid info)
	Version     string `json:"version"`     // Latest version (e.g., "1.0.193", never empty in valid info)
	Description string `json:"description"` // Crate description (may be empty)
	License     string `json:"license"`     // License identifier(s) (may be empty or "MIT OR Apache-2.0")
	Repository  string `json:"repository"`  // Repository URL (may be empty)
	HomePage    string `json:"homepage"`    // Homepage URL (may be empty)
	Downloads   int    `json:"downloads"`   // Total download count across all versions
}

// Dependency is one entry from the structured dependency listing API.
type Dependency struct {
	CrateID  string `json:"crate_id"` // Dependency crate name
	Req      string `json:"req"`      // Version requirement (e.g., "^1.0")
	Kind     string `json:"kind"`     // "normal", "dev", or "build"
	Optional bool   `json:"optional"` // Feature-gated dependency
}

// SearchResult is one row of a registry search.
type SearchResult struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Downloads   int    `json:"downloads"`
}

// Client provides access to the crates.io package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
//
// Note: crates.io requires a User-Agent header; this client sets one
// automatically.
type Client struct {
	*upstream.Client
	baseURL string
}

// NewClient creates a crates.io client with the given cache backend.
//
// Parameters:
//   - backend: cache backend for API response caching (use cache.NewNullCache() for no caching)
//   - cacheTTL: how long responses are cached (typical: 1-24 hours)
//
// The client includes a User-Agent header as required by crates.io API policy.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	headers := map[string]string{
		"User-Agent": "crateintel/1.0 (https://github.com/matzehuels/crateintel)",
	}
	return &Client{
		Client:  upstream.NewClient(backend, "crates:", cacheTTL, headers),
		baseURL: DefaultBaseURL,
	}
}

// SetBaseURL overrides the API root. Intended for tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// FetchCrate retrieves metadata for a Rust crate from crates.io.
//
// The crate parameter is case-sensitive and must match the published crate
// name exactly. If refresh is true, the cache is bypassed and a fresh API
// call is made.
//
// Returns:
//   - CrateInfo populated with metadata on success
//   - [upstream.ErrNotFound] if the crate doesn't exist
//   - [upstream.ErrNetwork] for HTTP failures (timeout, 5xx, etc.)
func (c *Client) FetchCrate(ctx context.Context, crate string, refresh bool) (*CrateInfo, error) {
	var info CrateInfo
	err := c.Cached(ctx, crate, refresh, &info, func() error {
		return c.fetch(ctx, crate, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, crate string, info *CrateInfo) error {
	var data crateResponse
	if err := c.GetJSON(ctx, fmt.Sprintf("%s/crates/%s", c.baseURL, crate), &data); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return fmt.Errorf("%w: crate %s", err, crate)
		}
		return err
	}

	*info = CrateInfo{
		Name:        data.Crate.Name,
		Version:     data.Crate.MaxVersion,
		Description: data.Crate.Description,
		License:     data.Crate.License,
		Repository:  data.Crate.Repository,
		HomePage:    data.Crate.HomePage,
		Downloads:   data.Crate.Downloads,
	}
	return nil
}

// ResolveVersion maps "latest" (or an empty version) to the registry's
// reported max version for the crate. Concrete versions pass through
// untouched without a registry call.
func (c *Client) ResolveVersion(ctx context.Context, crate, version string, refresh bool) (string, error) {
	if version != "" && version != "latest" {
		return version, nil
	}
	info, err := c.FetchCrate(ctx, crate, refresh)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

// FetchDependencies retrieves the structured dependency listing for a
// specific crate version. All kinds are returned; callers filter.
func (c *Client) FetchDependencies(ctx context.Context, crate, version string) ([]Dependency, error) {
	key := fmt.Sprintf("%s/%s/deps", crate, version)

	var deps []Dependency
	err := c.Cached(ctx, key, false, &deps, func() error {
		var data depsResponse
		url := fmt.Sprintf("%s/crates/%s/%s/dependencies", c.baseURL, crate, version)
		if err := c.GetJSON(ctx, url, &data); err != nil {
			return err
		}
		deps = data.Dependencies
		return nil
	})
	return deps, err
}

// Search queries the registry full-text search. limit is clamped to the
// registry's 1..100 page size range.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	limit = min(max(limit, 1), 100)

	var data searchResponse
	u := fmt.Sprintf("%s/crates?q=%s&per_page=%d", c.baseURL, url.QueryEscape(query), limit)
	if err := c.GetJSON(ctx, u, &data); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(data.Crates))
	for _, cr := range data.Crates {
		results = append(results, SearchResult{
			Name:        cr.Name,
			Version:     cr.MaxVersion,
			Description: cr.Description,
			Downloads:   cr.Downloads,
		})
	}
	return results, nil
}

// Ping checks registry reachability. Used by the debug endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var data searchResponse
	return c.GetJSON(ctx, fmt.Sprintf("%s/crates?per_page=1", c.baseURL), &data)
}

type crateResponse struct {
	Crate struct {
		Name        string `json:"name"`
		MaxVersion  string `json:"max_version"`
		Description string `json:"description"`
		License     string `json:"license"`
		Repository  string `json:"repository"`
		HomePage    string `json:"homepage"`
		Downloads   int    `json:"downloads"`
	} `json:"crate"`
}

type depsResponse struct {
	Dependencies []Dependency `json:"dependencies"`
}

type searchResponse struct {
	Crates []struct {
		Name        string `json:"name"`
		MaxVersion  string `json:"max_version"`
		Description string `json:"description"`
		Downloads   int    `json:"downloads"`
	} `json:"crates"`
}
