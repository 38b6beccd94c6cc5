// Package docsource defines the capability surface the extraction pipeline
// expects from a documentation host, together with the data types those
// operations produce.
//
// Parsing a rendered documentation site is inherently coupled to one
// concrete page layout. This package isolates that fragility: the pipeline
// depends only on the [Source] interface, and each upstream layout gets its
// own implementation (currently docs.rs, see the docsrs subpackage of
// pkg/upstream). Post-processing invariants that hold regardless of layout
// (dependency dedup, example ranking) live here so every implementation
// shares them.
package docsource

import "context"

// Source is the capability a documentation host implementation provides.
// All operations are read-only against the upstream and safe for
// concurrent use.
type Source interface {
	// CrawlTree walks the published source view of a crate version and
	// returns its file contents and metadata.
	CrawlTree(ctx context.Context, name, version string) (*SourceTreeBundle, error)

	// Dependencies scrapes the dependency listing for a crate version.
	Dependencies(ctx context.Context, name, version string) (*DependencyGraph, error)

	// Examples extracts candidate usage examples from rendered docs.
	Examples(ctx context.Context, name, version string) ([]UsageExample, error)

	// Manifest fetches the crate manifest (Cargo.toml) text, if published.
	Manifest(ctx context.Context, name, version string) (string, error)

	// Ping checks host reachability. Used by the debug endpoint.
	Ping(ctx context.Context) error
}
