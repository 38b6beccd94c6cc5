package narrative

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/matzehuels/crateintel/pkg/docsource"
)

var (
	pubStructRe = regexp.MustCompile(`(?m)^\s*pub\s+struct\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pubEnumRe   = regexp.MustCompile(`(?m)^\s*pub\s+enum\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pubTraitRe  = regexp.MustCompile(`(?m)^\s*pub\s+trait\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// Template assembles the deterministic narrative from structured data.
// It produces readable prose covering modules, public data types, traits,
// features, dependencies, examples, and source statistics - whatever
// subset of those is present in the input.
func Template(in Input) string {
	var sections []string

	intro := fmt.Sprintf("%s %s is a Rust crate", in.Name, in.Version)
	if in.Description != "" {
		intro += ": " + strings.TrimRight(in.Description, ".") + "."
	} else {
		intro += "."
	}
	if in.Downloads > 0 {
		intro += fmt.Sprintf(" It has been downloaded %s times from crates.io.", humanCount(in.Downloads))
	}
	if in.License != "" {
		intro += fmt.Sprintf(" It is licensed under %s.", in.License)
	}
	sections = append(sections, intro)

	if in.Tree != nil {
		if mods := modules(in.Tree); len(mods) > 0 {
			sections = append(sections, "Modules: "+strings.Join(mods, ", ")+".")
		}
		structs := collect(in.Tree, pubStructRe)
		enums := collect(in.Tree, pubEnumRe)
		if len(structs)+len(enums) > 0 {
			sections = append(sections, "Public data types include "+joinLimited(append(structs, enums...), 12)+".")
		}
		if traits := collect(in.Tree, pubTraitRe); len(traits) > 0 {
			sections = append(sections, "Traits: "+joinLimited(traits, 8)+".")
		}
	}

	if feats := features(in.Manifest); len(feats) > 0 {
		sections = append(sections, "Cargo features: "+strings.Join(feats, ", ")+".")
	}

	if in.Deps != nil && in.Deps.TotalCount > 0 {
		var names []string
		for _, d := range in.Deps.Entries {
			if d.Kind == docsource.KindNormal {
				names = append(names, d.Name)
			}
		}
		sections = append(sections, fmt.Sprintf("It declares %d dependencies (%d runtime): %s.",
			in.Deps.TotalCount, in.Deps.RuntimeCount, joinLimited(names, 10)))
	}

	if n := len(in.Examples); n > 0 {
		plural := "s"
		if n == 1 {
			plural = ""
		}
		sections = append(sections, fmt.Sprintf("The documentation provides %d usage example%s.", n, plural))
	}

	if in.Tree != nil && in.Tree.Stats.TotalFiles > 0 {
		sections = append(sections, fmt.Sprintf("The published source comprises %d files totalling %d lines (%d source files).",
			in.Tree.Stats.TotalFiles, in.Tree.Stats.TotalLines, in.Tree.Stats.ByType[docsource.FileSource]))
	}

	return strings.Join(sections, " ")
}

// modules derives the crate's module list from src/ layout: top-level
// .rs files and mod.rs directories.
func modules(tree *docsource.SourceTreeBundle) []string {
	seen := make(map[string]bool)
	for p := range tree.Files {
		if !strings.HasPrefix(p, "src/") {
			continue
		}
		rest := strings.TrimPrefix(p, "src/")
		switch {
		case strings.HasSuffix(rest, "/mod.rs"):
			seen[strings.TrimSuffix(rest, "/mod.rs")] = true
		case !strings.Contains(rest, "/") && strings.HasSuffix(rest, ".rs"):
			name := strings.TrimSuffix(rest, ".rs")
			if name != "lib" && name != "main" {
				seen[name] = true
			}
		}
	}
	return sorted(seen)
}

// collect runs a declaration regex over every source file in the tree.
func collect(tree *docsource.SourceTreeBundle, re *regexp.Regexp) []string {
	seen := make(map[string]bool)
	for p, content := range tree.Files {
		if path.Ext(p) != ".rs" {
			continue
		}
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			seen[m[1]] = true
		}
	}
	return sorted(seen)
}

// features parses the [features] table out of the manifest.
func features(manifest string) []string {
	if manifest == "" {
		return nil
	}
	var parsed struct {
		Features map[string][]string `toml:"features"`
	}
	if err := toml.Unmarshal([]byte(manifest), &parsed); err != nil {
		return nil
	}
	seen := make(map[string]bool, len(parsed.Features))
	for name := range parsed.Features {
		seen[name] = true
	}
	return sorted(seen)
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func joinLimited(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:n], ", ") + fmt.Sprintf(" and %d more", len(items)-n)
}

func humanCount(n int) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1f billion", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f million", float64(n)/1_000_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
