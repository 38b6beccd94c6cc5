package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/intel"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
	"github.com/matzehuels/crateintel/pkg/upstream/docsrs"
)

// fetchCacheTTL bounds how long upstream responses fetched by the CLI
// stay reusable across invocations.
const fetchCacheTTL = time.Hour

// newFetchCmd creates the fetch command, a one-off extraction without the
// server, store, or authentication in the way.
func newFetchCmd() *cobra.Command {
	var (
		crateVersion string
		depthName    string
		withDeps     bool
		withExamples bool
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <crate>",
		Short: "Extract one crate intelligence record and print it as JSON",
		Long: `Extract one crate intelligence record and print it as JSON.

The record is built the same way the API builds it, but written to stdout
instead of a store. Narratives always use the deterministic template;
the LLM synthesis step is a server concern.

Examples:
  crateintel fetch serde
  crateintel fetch tokio --version 1.38.0 --depth full --deps --examples
  crateintel fetch rayon --depth deep --no-cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			name := args[0]

			depth, err := intel.ParseDepth(depthName)
			if err != nil {
				return err
			}

			backend := fetchCache(noCache)
			registry := crates.NewClient(backend, fetchCacheTTL)
			source := docsrs.New(backend, registry, fetchCacheTTL)
			orch := intel.NewOrchestrator(registry, source, nil, logger)

			p := newProgress(logger)
			rec, err := orch.Extract(ctx, name, crateVersion, depth, intel.Options{
				Dependencies: withDeps,
				Examples:     withExamples,
			})
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Extracted %s@%s", rec.Base().Name, rec.Base().Version))

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	cmd.Flags().StringVar(&crateVersion, "version", "", "crate version (default: latest)")
	cmd.Flags().StringVar(&depthName, "depth", "basic", "extraction depth: basic, full, or deep")
	cmd.Flags().BoolVar(&withDeps, "deps", false, "include the dependency graph (full depth)")
	cmd.Flags().BoolVar(&withExamples, "examples", false, "include usage examples (full depth)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the upstream response cache")

	return cmd
}

// fetchCache returns the CLI's upstream cache: the shared file cache, or
// a null cache when disabled or the cache directory is unavailable.
func fetchCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return c
}
