package docsrs

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/matzehuels/crateintel/pkg/docsource"
)

const (
	// minExampleLen filters out trivial fragments on the main doc scan.
	minExampleLen = 40
	// minSectionLen is the relaxed threshold for heading-derived blocks.
	minSectionLen = 10
	// maxSiblingWalk bounds how far past an "Examples" heading the scan
	// looks for the next code block.
	maxSiblingWalk = 6
)

var exampleHeadingRe = regexp.MustCompile(`(?i)\bexamples?\b|\busage\b`)

// secondaryPages are conventionally named rustdoc pages probed for
// supplementary examples beyond the crate root page.
var secondaryPages = []string{"struct.Client.html", "struct.Builder.html", "fn.new.html"}

// Examples extracts candidate usage examples from the crate's rendered
// documentation.
//
// Three scans feed one ranked list: code blocks on the main page that
// carry a lexical usage signal, blocks reached by walking forward from
// "Examples"/"Usage" headings with a relaxed filter, and blocks from a
// small fixed set of conventionally named secondary pages. Page fetch
// failures skip that scan rather than failing the extraction.
func (s *Source) Examples(ctx context.Context, name, version string) ([]docsource.UsageExample, error) {
	var candidates []docsource.UsageExample

	page, err := s.client.GetHTML(ctx, s.rustdocURL(name, version, ""))
	if err != nil {
		log.Debug("main doc page unreachable", "crate", name, "err", err)
	} else if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		// Heading-derived candidates first: when the same snippet shows up
		// in both scans, dedup keeps the higher-priority occurrence.
		candidates = append(candidates, headingExamples(doc)...)
		candidates = append(candidates, mainDocExamples(doc)...)
	}

	for _, pageName := range secondaryPages {
		if err := s.throttle(ctx); err != nil {
			break
		}
		page, err := s.client.GetHTML(ctx, s.rustdocURL(name, version, pageName))
		if err != nil {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
		if err != nil {
			continue
		}
		for _, ex := range mainDocExamples(doc) {
			ex.Source = docsource.SourceMethodDoc
			ex.Description = strings.TrimSuffix(pageName, ".html")
			candidates = append(candidates, ex)
		}
	}

	return docsource.RankExamples(candidates), nil
}

// mainDocExamples keeps code blocks that are long enough and contain at
// least one lexical signal of real usage.
func mainDocExamples(doc *goquery.Document) []docsource.UsageExample {
	var examples []docsource.UsageExample
	doc.Find("div.docblock pre, pre.rust, pre code").Each(func(_ int, block *goquery.Selection) {
		code := normalizeLineEndings(strings.TrimRight(block.Text(), "\n"))
		if len(code) < minExampleLen || !hasUsageSignal(code) {
			return
		}
		examples = append(examples, docsource.UsageExample{
			Code:     code,
			Source:   docsource.SourceMainDoc,
			Language: "rust",
		})
	})
	return examples
}

// headingExamples scans headings matching "example"/"usage" and walks a
// bounded number of sibling nodes forward looking for the next code
// block, with a relaxed content filter.
func headingExamples(doc *goquery.Document) []docsource.UsageExample {
	var examples []docsource.UsageExample
	doc.Find("h1, h2, h3, h4").Each(func(_ int, heading *goquery.Selection) {
		title := strings.TrimSpace(heading.Text())
		if !exampleHeadingRe.MatchString(title) {
			return
		}

		sibling := heading.Next()
		for step := 0; step < maxSiblingWalk && sibling.Length() > 0; step++ {
			block := sibling
			if !sibling.Is("pre") {
				block = sibling.Find("pre").First()
			}
			if block.Length() > 0 {
				code := normalizeLineEndings(strings.TrimRight(block.Text(), "\n"))
				if len(code) >= minSectionLen {
					examples = append(examples, docsource.UsageExample{
						Code:        code,
						Description: title,
						Source:      docsource.SourceExamplesSection,
						Language:    "rust",
					})
				}
				return
			}
			sibling = sibling.Next()
		}
	})
	return examples
}

// hasUsageSignal reports whether code looks like a real usage snippet:
// an import-like statement, a namespaced call, a recognizable entry
// point, or attribute syntax.
func hasUsageSignal(code string) bool {
	return strings.Contains(code, "use ") ||
		strings.Contains(code, "::") ||
		strings.Contains(code, "fn main") ||
		strings.Contains(code, "#[")
}
