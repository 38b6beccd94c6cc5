// Package docsrs implements the docsource.Source capability against the
// docs.rs documentation host.
//
// docs.rs renders one fixed page layout; every parser in this package is
// coupled to that layout on purpose, and nothing outside this package
// should be. The crawler, dependency extractor, and example extractor all
// work from rendered HTML with heuristic, fallback-laden parsing: a page
// that fails to parse degrades the result, it does not fail the request.
package docsrs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/upstream"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
)

// DefaultBaseURL is the production docs.rs root.
const DefaultBaseURL = "https://docs.rs"

// DefaultFetchDelay is the pause between consecutive page fetches during a
// crawl, to avoid hammering the host. Traversal is strictly sequential.
const DefaultFetchDelay = 150 * time.Millisecond

// Source implements docsource.Source for the docs.rs page layout.
// The registry client serves as the final fallback for dependency data
// when the rendered page is unreachable.
type Source struct {
	client     *upstream.Client
	registry   *crates.Client
	baseURL    string
	fetchDelay time.Duration

	// Crawl budgets. Depth is bounded regardless of how deep the remote
	// listing claims to go; files bound the total fetch count.
	maxDepth int
	maxFiles int
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL points the source at a different host root. Intended for tests.
func WithBaseURL(base string) Option {
	return func(s *Source) { s.baseURL = strings.TrimSuffix(base, "/") }
}

// WithFetchDelay overrides the inter-fetch throttle delay.
func WithFetchDelay(d time.Duration) Option {
	return func(s *Source) { s.fetchDelay = d }
}

// WithCrawlBudget overrides the recursion depth cap and total file budget.
func WithCrawlBudget(maxDepth, maxFiles int) Option {
	return func(s *Source) {
		if maxDepth > 0 {
			s.maxDepth = maxDepth
		}
		if maxFiles > 0 {
			s.maxFiles = maxFiles
		}
	}
}

// New creates a docs.rs source backed by the given cache and registry
// client. Pages are cached for cacheTTL.
func New(backend cache.Cache, registry *crates.Client, cacheTTL time.Duration, opts ...Option) *Source {
	headers := map[string]string{
		"User-Agent": "crateintel/1.0 (https://github.com/matzehuels/crateintel)",
	}
	s := &Source{
		client:     upstream.NewClient(backend, "docsrs:", cacheTTL, headers),
		registry:   registry,
		baseURL:    DefaultBaseURL,
		fetchDelay: DefaultFetchDelay,
		maxDepth:   8,
		maxFiles:   200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// throttle sleeps the inter-fetch delay, returning early on cancellation.
func (s *Source) throttle(ctx context.Context) error {
	if s.fetchDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.fetchDelay):
		return nil
	}
}

// sourceURL builds a source-view URL for a path within the crate.
// An empty path addresses the root listing; directory paths must end
// with "/".
func (s *Source) sourceURL(name, version, path string) string {
	return fmt.Sprintf("%s/crate/%s/%s/source/%s", s.baseURL, name, version, path)
}

// crateURL builds the crate overview page URL (dependency sidebar lives here).
func (s *Source) crateURL(name, version string) string {
	return fmt.Sprintf("%s/crate/%s/%s", s.baseURL, name, version)
}

// rustdocURL builds the rendered rustdoc URL for the crate root, plus an
// optional trailing page (e.g. "struct.Value.html").
func (s *Source) rustdocURL(name, version, page string) string {
	ident := strings.ReplaceAll(name, "-", "_")
	return fmt.Sprintf("%s/%s/%s/%s/%s", s.baseURL, name, version, ident, page)
}

// Manifest fetches the crate's Cargo.toml from the source view.
func (s *Source) Manifest(ctx context.Context, name, version string) (string, error) {
	page, err := s.client.GetHTML(ctx, s.sourceURL(name, version, "Cargo.toml"))
	if err != nil {
		return "", err
	}
	return extractSourceText(page)
}

// Ping checks host reachability. Used by the debug endpoint.
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.client.GetHTML(ctx, s.baseURL+"/about")
	return err
}

var _ docsource.Source = (*Source)(nil)
