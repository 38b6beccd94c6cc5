package docsrs

import (
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractSourceText pulls the plain text of a file out of a source-view
// page. docs.rs wraps file content in a highlighted <pre> inside the
// source code container; selectors are tried from most to least specific
// so layout drift degrades to the generic case instead of failing.
// Syntax-highlighting markup is stripped, HTML entities are decoded, and
// line endings are normalized to "\n".
func extractSourceText(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse source page: %w", err)
	}

	for _, sel := range []string{"#source-code pre", "div.source-code pre", "pre.rust", "pre"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		// Line-number gutters render as a nested element; drop them so
		// only the code survives Text().
		node.Find(".line-numbers, .src-line-numbers, td.line-numbers").Remove()
		return normalizeLineEndings(node.Text()), nil
	}
	return "", fmt.Errorf("no source container in page")
}

// listingEntry is one row of a directory-listing page.
type listingEntry struct {
	name  string
	isDir bool
}

// parseListing extracts the entries of a source-view directory listing.
// Entries are classified as files or directories using filename/extension
// and marker heuristics: a trailing slash (in the link target or the
// display text), a folder icon, or an extensionless name that isn't a
// well-known root file.
func parseListing(page string) ([]listingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	container := doc.Find(".package-page-container, .source-view, body").First()

	var entries []listingEntry
	seen := make(map[string]bool)
	container.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		name := strings.TrimSpace(link.Text())
		if name == "" || name == ".." || strings.HasPrefix(name, "..") {
			return
		}
		// Navigation links (breadcrumbs, menus) point outside the listing.
		if strings.HasPrefix(href, "http") || strings.HasPrefix(href, "/crate/") || strings.HasPrefix(href, "#") {
			return
		}

		dir := classifyListingEntry(link, href, name)
		name = strings.TrimSuffix(name, "/")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, listingEntry{name: name, isDir: dir})
	})
	return entries, nil
}

func classifyListingEntry(link *goquery.Selection, href, name string) bool {
	if strings.HasSuffix(href, "/") || strings.HasSuffix(name, "/") {
		return true
	}
	if icon := link.Find("i, svg").First(); icon.Length() > 0 {
		if class, ok := icon.Attr("class"); ok && strings.Contains(class, "folder") {
			return true
		}
	}
	// Extensionless entries are directories unless they're conventional
	// root files.
	if path.Ext(name) == "" && !wellKnownFile(name) {
		return true
	}
	return false
}

func wellKnownFile(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range []string{"LICENSE", "COPYING", "README", "CHANGELOG", "AUTHORS", "NOTICE", "MAKEFILE"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
