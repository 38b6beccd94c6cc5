package docsrs

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/matzehuels/crateintel/pkg/docsource"
)

// CrawlTree walks a crate version's published source view and returns its
// file contents and metadata.
//
// Two traversals run in sequence: a curated, non-recursive pass over the
// package root that fetches only source, config, and documentation files,
// then a depth-first recursive walk rooted at src/. Each subtree is
// crawled as a pure call returning its own bundle, merged by the caller.
//
// Failure policy: a single file or subdirectory that fails to fetch or
// parse is skipped and traversal continues; only an unreachable root
// listing aborts the crawl. Fetches are throttled and strictly
// sequential.
func (s *Source) CrawlTree(ctx context.Context, name, version string) (*docsource.SourceTreeBundle, error) {
	rootPage, err := s.client.GetHTML(ctx, s.sourceURL(name, version, ""))
	if err != nil {
		return nil, fmt.Errorf("source view unreachable for %s@%s: %w", name, version, err)
	}
	entries, err := parseListing(rootPage)
	if err != nil {
		return nil, fmt.Errorf("source view unparseable for %s@%s: %w", name, version, err)
	}

	bundle := docsource.NewSourceTreeBundle()
	budget := s.maxFiles

	for _, entry := range entries {
		if entry.isDir || budget <= 0 {
			continue
		}
		switch docsource.ClassifyFile(entry.name) {
		case docsource.FileSource, docsource.FileConfig, docsource.FileDocumentation:
		default:
			continue
		}
		content, err := s.fetchFile(ctx, name, version, entry.name)
		if err != nil {
			if ctx.Err() != nil {
				return bundle, ctx.Err()
			}
			log.Debug("skipping root file", "crate", name, "path", entry.name, "err", err)
			continue
		}
		bundle.AddFile(entry.name, content)
		budget--
	}

	sub, err := s.crawlDir(ctx, name, version, "src/", 0, &budget)
	if err != nil {
		if ctx.Err() != nil {
			return bundle, ctx.Err()
		}
		log.Debug("skipping src tree", "crate", name, "err", err)
		return bundle, nil
	}
	bundle.Merge(sub)
	return bundle, nil
}

// crawlDir fetches one directory listing and recurses depth-first into its
// subdirectories, returning the bundle for this subtree. Recursion is
// hard-capped at the configured maximum depth regardless of what the
// remote listing claims; the remote structure is acyclic by construction,
// so the cap guards depth, not cycles.
func (s *Source) crawlDir(ctx context.Context, name, version, dir string, depth int, budget *int) (*docsource.SourceTreeBundle, error) {
	bundle := docsource.NewSourceTreeBundle()
	if depth >= s.maxDepth || *budget <= 0 {
		return bundle, nil
	}

	if err := s.throttle(ctx); err != nil {
		return bundle, err
	}
	page, err := s.client.GetHTML(ctx, s.sourceURL(name, version, dir))
	if err != nil {
		return nil, err
	}
	entries, err := parseListing(page)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if *budget <= 0 {
			break
		}
		if ctx.Err() != nil {
			return bundle, ctx.Err()
		}

		if entry.isDir {
			sub, err := s.crawlDir(ctx, name, version, dir+entry.name+"/", depth+1, budget)
			if err != nil {
				log.Debug("skipping subdirectory", "crate", name, "path", dir+entry.name, "err", err)
				continue
			}
			bundle.Merge(sub)
			continue
		}

		content, err := s.fetchFile(ctx, name, version, dir+entry.name)
		if err != nil {
			log.Debug("skipping file", "crate", name, "path", dir+entry.name, "err", err)
			continue
		}
		bundle.AddFile(dir+entry.name, content)
		*budget--
	}
	return bundle, nil
}

func (s *Source) fetchFile(ctx context.Context, name, version, path string) (string, error) {
	if err := s.throttle(ctx); err != nil {
		return "", err
	}
	page, err := s.client.GetHTML(ctx, s.sourceURL(name, version, path))
	if err != nil {
		return "", err
	}
	return extractSourceText(page)
}
