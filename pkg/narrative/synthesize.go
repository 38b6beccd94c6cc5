package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/matzehuels/crateintel/pkg/docsource"
)

// Input bundles everything gathered about a crate that the narrative can
// draw from. Tree, Deps, and Examples are optional; the template degrades
// to whatever is present.
type Input struct {
	Name        string
	Version     string
	Description string
	License     string
	Downloads   int
	Manifest    string
	Tree        *docsource.SourceTreeBundle
	Deps        *docsource.DependencyGraph
	Examples    []docsource.UsageExample
}

// Synthesizer turns extraction output into narrative text.
type Synthesizer struct {
	provider Provider // nil means template-only
}

// NewSynthesizer creates a Synthesizer. A nil provider is valid and
// selects the deterministic template for every call.
func NewSynthesizer(provider Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize produces narrative text for in. The text-generation service
// is tried first when configured; if it is unavailable, errors, or
// returns no content, the deterministic template takes over. Synthesize
// never returns an error: the template path always produces text.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) string {
	if s.provider != nil {
		text, err := s.provider.Generate(ctx, buildPrompt(in))
		if text = strings.TrimSpace(text); err == nil && text != "" {
			return text
		}
		if err != nil {
			log.Debug("narrative synthesis failed, using template", "crate", in.Name, "provider", s.provider.Name(), "err", err)
		}
	}
	return Template(in)
}

// sample sizes for prompt construction.
const (
	promptMaxFiles        = 5
	promptMaxFileBytes    = 2000
	promptMaxExamples     = 3
	promptManifestExcerpt = 1500
)

// buildPrompt assembles a single prompt from the structured data: crate
// metadata, a sample of source files, the dependency summary, example
// snippets, and a manifest excerpt.
func buildPrompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a concise technical overview of the Rust crate %q version %s.\n\n", in.Name, in.Version)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	if in.License != "" {
		fmt.Fprintf(&b, "License: %s\n", in.License)
	}
	fmt.Fprintf(&b, "Total downloads: %d\n", in.Downloads)

	if in.Deps != nil && in.Deps.TotalCount > 0 {
		b.WriteString("\nDependencies:\n")
		for _, d := range in.Deps.Entries {
			fmt.Fprintf(&b, "- %s %s (%s)\n", d.Name, d.Req, d.Kind)
		}
	}

	if in.Tree != nil && len(in.Tree.Files) > 0 {
		fmt.Fprintf(&b, "\nSource tree: %d files, %d lines.\n", in.Tree.Stats.TotalFiles, in.Tree.Stats.TotalLines)
		b.WriteString("Sampled files:\n")
		for _, path := range sampleFiles(in.Tree, promptMaxFiles) {
			content := in.Tree.Files[path]
			if len(content) > promptMaxFileBytes {
				content = content[:promptMaxFileBytes]
			}
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", path, content)
		}
	}

	for i, ex := range in.Examples {
		if i == promptMaxExamples {
			break
		}
		fmt.Fprintf(&b, "\nExample (%s):\n%s\n", ex.Source, ex.Code)
	}

	if in.Manifest != "" {
		excerpt := in.Manifest
		if len(excerpt) > promptManifestExcerpt {
			excerpt = excerpt[:promptManifestExcerpt]
		}
		fmt.Fprintf(&b, "\nManifest excerpt:\n%s\n", excerpt)
	}

	b.WriteString("\nCover the crate's purpose, its main modules and types, notable features, and how it is typically used.")
	return b.String()
}

// sampleFiles picks a stable, source-first sample of tree paths.
func sampleFiles(tree *docsource.SourceTreeBundle, n int) []string {
	paths := make([]string, 0, len(tree.Files))
	for p := range tree.Files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		si := tree.Meta[paths[i]].Type == docsource.FileSource
		sj := tree.Meta[paths[j]].Type == docsource.FileSource
		if si != sj {
			return si
		}
		return paths[i] < paths[j]
	})
	if len(paths) > n {
		paths = paths[:n]
	}
	return paths
}
