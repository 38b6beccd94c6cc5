package docsrs

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/matzehuels/crateintel/pkg/docsource"
)

// depLinkRe matches the display text of a dependency link: a crate name
// followed by a version requirement ("serde_derive ^1.0", "libc >= 0.2").
var depLinkRe = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9_-]*)\s+([\^~><=*][^\s].*?|\d[^\s]*)\s*$`)

// Dependencies extracts the dependency graph for a crate version.
//
// Three strategies, in order:
//  1. the labeled dependencies section of the crate page,
//  2. sidebar link scanning on the same page when the section is absent
//     or yields nothing,
//  3. the registry's structured dependency API when the page fetch itself
//     fails (runtime entries only).
//
// The result always carries a provenance tag naming the strategy used.
func (s *Source) Dependencies(ctx context.Context, name, version string) (*docsource.DependencyGraph, error) {
	page, err := s.client.GetHTML(ctx, s.crateURL(name, version))
	if err != nil {
		log.Debug("dependency page unreachable, falling back to registry", "crate", name, "err", err)
		return s.dependenciesFromRegistry(ctx, name, version)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return s.dependenciesFromRegistry(ctx, name, version)
	}

	if entries := depsFromSection(doc); len(entries) > 0 {
		return docsource.NewDependencyGraph(entries, name, docsource.ProvenanceSection), nil
	}
	entries := depsFromLinks(doc, name)
	return docsource.NewDependencyGraph(entries, name, docsource.ProvenanceLinks), nil
}

// depsFromSection parses the labeled dependencies section: a sidebar
// heading reading "Dependencies" followed by its list items, each a link
// whose text is "name version-req" with the kind readable from inline
// decoration.
func depsFromSection(doc *goquery.Document) []docsource.DependencyEntry {
	var entries []docsource.DependencyEntry

	doc.Find("li.pure-menu-heading, .menu-heading, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(heading.Text()), "dependencies") {
			return true
		}
		heading.NextUntil("li.pure-menu-heading, .menu-heading, h3, h4").Each(func(_ int, item *goquery.Selection) {
			link := item.Find("a").First()
			if link.Length() == 0 {
				return
			}
			if entry, ok := parseDepLink(link); ok {
				entries = append(entries, entry)
			}
		})
		return false
	})
	return entries
}

// depsFromLinks scans every sidebar-style link on the page and keeps those
// whose target path pattern marks a dependency, excluding the crate's own
// pages.
func depsFromLinks(doc *goquery.Document, self string) []docsource.DependencyEntry {
	var entries []docsource.DependencyEntry
	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.HasPrefix(href, "/crate/") && !strings.Contains(href, "docs.rs/crate/") {
			return
		}
		if strings.Contains(href, "/crate/"+self+"/") || strings.HasSuffix(href, "/crate/"+self) {
			return
		}
		if entry, ok := parseDepLink(link); ok {
			entries = append(entries, entry)
		}
	})
	return entries
}

// parseDepLink reads one dependency link: name and version requirement
// from the text, kind and optional flag from inline decoration.
func parseDepLink(link *goquery.Selection) (docsource.DependencyEntry, bool) {
	decoration := link.Find("i, .kind, .label").Text()

	text := link.Clone()
	text.Find("i, .kind, .label").Remove()

	m := depLinkRe.FindStringSubmatch(text.Text())
	if m == nil {
		return docsource.DependencyEntry{}, false
	}

	return docsource.DependencyEntry{
		Name:     m[1],
		Req:      strings.TrimSpace(m[2]),
		Optional: strings.Contains(decoration, "optional"),
		Kind:     parseDepKind(decoration),
	}, true
}

func parseDepKind(decoration string) docsource.DependencyKind {
	switch {
	case strings.Contains(decoration, "dev"):
		return docsource.KindDev
	case strings.Contains(decoration, "build"):
		return docsource.KindBuild
	default:
		return docsource.KindNormal
	}
}

// dependenciesFromRegistry is the final fallback: the structured registry
// API, keeping only runtime-kind entries.
func (s *Source) dependenciesFromRegistry(ctx context.Context, name, version string) (*docsource.DependencyGraph, error) {
	deps, err := s.registry.FetchDependencies(ctx, name, version)
	if err != nil {
		return nil, err
	}

	var entries []docsource.DependencyEntry
	for _, d := range deps {
		if d.Kind != "normal" {
			continue
		}
		entries = append(entries, docsource.DependencyEntry{
			Name:     d.CrateID,
			Req:      d.Req,
			Optional: d.Optional,
			Kind:     docsource.KindNormal,
		})
	}
	return docsource.NewDependencyGraph(entries, name, docsource.ProvenanceRegistryAPI), nil
}
