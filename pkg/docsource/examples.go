package docsource

import (
	"sort"
	"strings"
)

// ExampleSource categorizes where a usage example was found.
type ExampleSource string

const (
	// SourceMainDoc: a code block on the crate's main documentation page.
	SourceMainDoc ExampleSource = "main-doc"
	// SourceExamplesSection: a block found by walking forward from an
	// "Examples"/"Usage" heading.
	SourceExamplesSection ExampleSource = "examples-section"
	// SourceMethodDoc: a block from a conventionally named secondary page
	// (a primary type or constructor page).
	SourceMethodDoc ExampleSource = "method-doc"
)

// UsageExample is one candidate usage snippet.
type UsageExample struct {
	Code        string        `json:"code"`
	Description string        `json:"description"`
	Source      ExampleSource `json:"source"`
	Language    string        `json:"language"`
}

// MaxExamples caps the example list length.
const MaxExamples = 8

// RankExamples deduplicates, orders, and caps candidate examples:
// heading-derived (examples-section) entries sort before all others;
// within equal priority longer snippets sort first; near-identical
// snippets (same leading non-blank lines) collapse to one; the result is
// truncated to [MaxExamples].
func RankExamples(candidates []UsageExample) []UsageExample {
	deduped := make([]UsageExample, 0, len(candidates))
	seen := make(map[string]bool)
	for _, ex := range candidates {
		key := snippetKey(ex.Code)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, ex)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		pi, pj := examplePriority(deduped[i]), examplePriority(deduped[j])
		if pi != pj {
			return pi < pj
		}
		return len(deduped[i].Code) > len(deduped[j].Code)
	})

	if len(deduped) > MaxExamples {
		deduped = deduped[:MaxExamples]
	}
	return deduped
}

func examplePriority(ex UsageExample) int {
	if ex.Source == SourceExamplesSection {
		return 0
	}
	return 1
}

// snippetKey fingerprints a snippet by its first few non-blank lines so
// trivial whitespace or trailing differences dedupe.
func snippetKey(code string) string {
	var kept []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, "\n")
}
