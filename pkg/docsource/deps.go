package docsource

import "regexp"

// DependencyKind distinguishes runtime, development, and build dependencies.
type DependencyKind string

const (
	KindNormal DependencyKind = "normal"
	KindDev    DependencyKind = "dev"
	KindBuild  DependencyKind = "build"
)

// Provenance identifies which extraction strategy produced a dependency
// graph. Carried on every result for debuggability and testing.
type Provenance string

const (
	// ProvenanceSection: parsed from the labeled dependencies section of
	// the documentation page.
	ProvenanceSection Provenance = "section"
	// ProvenanceLinks: recovered from sidebar link scanning when the
	// labeled section was absent or empty.
	ProvenanceLinks Provenance = "links"
	// ProvenanceRegistryAPI: fetched from the registry's structured
	// dependency API because the page itself was unreachable.
	ProvenanceRegistryAPI Provenance = "registry-api"
)

// DependencyEntry is one edge of a crate's dependency graph.
type DependencyEntry struct {
	Name     string         `json:"name"`
	Req      string         `json:"req"`      // Version requirement string (e.g., "^1.0")
	Optional bool           `json:"optional"` // Feature-gated
	Kind     DependencyKind `json:"kind"`
}

// DependencyGraph is a deduplicated dependency listing with counts and
// the strategy that produced it.
type DependencyGraph struct {
	Entries      []DependencyEntry `json:"entries"`
	TotalCount   int               `json:"total_count"`
	RuntimeCount int               `json:"runtime_count"`
	Provenance   Provenance        `json:"provenance"`
}

// MaxDependencies caps the entries kept in a graph regardless of how many
// the upstream page lists.
const MaxDependencies = 25

var (
	depNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	depReqRe  = regexp.MustCompile(`^[\^~><=*.,+0-9A-Za-z\s-]+$`)
)

// ValidDependency reports whether an entry has a well-formed name and a
// non-empty, well-formed version requirement, and is not a self-reference.
func ValidDependency(e DependencyEntry, self string) bool {
	if e.Name == self {
		return false
	}
	if !depNameRe.MatchString(e.Name) {
		return false
	}
	return e.Req != "" && depReqRe.MatchString(e.Req)
}

// NewDependencyGraph normalizes raw entries into a graph: invalid entries
// are rejected, duplicates on (name, kind) collapse to the first
// occurrence, and the result is capped at [MaxDependencies]. The self
// parameter excludes self-references.
func NewDependencyGraph(entries []DependencyEntry, self string, provenance Provenance) *DependencyGraph {
	type depKey struct {
		name string
		kind DependencyKind
	}
	seen := make(map[depKey]bool)

	kept := make([]DependencyEntry, 0, len(entries))
	runtime := 0
	for _, e := range entries {
		if !ValidDependency(e, self) {
			continue
		}
		k := depKey{e.Name, e.Kind}
		if seen[k] {
			continue
		}
		seen[k] = true

		kept = append(kept, e)
		if e.Kind == KindNormal {
			runtime++
		}
		if len(kept) == MaxDependencies {
			break
		}
	}

	return &DependencyGraph{
		Entries:      kept,
		TotalCount:   len(kept),
		RuntimeCount: runtime,
		Provenance:   provenance,
	}
}
