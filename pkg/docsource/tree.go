package docsource

import (
	"path"
	"strings"
)

// FileType classifies a crawled file by its role in the package.
type FileType string

// File classifications used in per-file metadata and aggregate stats.
const (
	FileSource        FileType = "source"
	FileConfig        FileType = "config"
	FileDocumentation FileType = "documentation"
	FileLicense       FileType = "license"
	FileText          FileType = "text"
	FileUnknown       FileType = "unknown"
)

// FileMeta holds per-file metadata gathered during a crawl.
type FileMeta struct {
	Size  int      `json:"size"`  // Content length in bytes
	Lines int      `json:"lines"` // Newline-delimited line count
	Type  FileType `json:"type"`
}

// TreeStats aggregates a crawled tree.
type TreeStats struct {
	TotalFiles int              `json:"total_files"`
	TotalBytes int              `json:"total_bytes"`
	TotalLines int              `json:"total_lines"`
	ByType     map[FileType]int `json:"by_type"`
}

// SourceTreeBundle is the result of crawling a crate's published source
// view: path-keyed file contents plus per-file metadata and summary
// counts. Bundles are built incrementally by merging subtree results and
// must be treated as immutable once returned from the crawler.
type SourceTreeBundle struct {
	Files map[string]string   `json:"files"`
	Meta  map[string]FileMeta `json:"meta"`
	Stats TreeStats           `json:"stats"`
}

// NewSourceTreeBundle returns an empty bundle ready for merging.
func NewSourceTreeBundle() *SourceTreeBundle {
	return &SourceTreeBundle{
		Files: make(map[string]string),
		Meta:  make(map[string]FileMeta),
		Stats: TreeStats{ByType: make(map[FileType]int)},
	}
}

// AddFile records one file's content and derived metadata.
func (b *SourceTreeBundle) AddFile(p, content string) {
	ft := ClassifyFile(p)
	lines := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lines++
	}

	b.Files[p] = content
	b.Meta[p] = FileMeta{Size: len(content), Lines: lines, Type: ft}
	b.Stats.TotalFiles++
	b.Stats.TotalBytes += len(content)
	b.Stats.TotalLines += lines
	b.Stats.ByType[ft]++
}

// Merge folds other into b. Paths already present in b win; a parent
// listing is crawled before its subtrees, so earlier entries are
// authoritative.
func (b *SourceTreeBundle) Merge(other *SourceTreeBundle) {
	if other == nil {
		return
	}
	for p, content := range other.Files {
		if _, exists := b.Files[p]; exists {
			continue
		}
		meta := other.Meta[p]
		b.Files[p] = content
		b.Meta[p] = meta
		b.Stats.TotalFiles++
		b.Stats.TotalBytes += meta.Size
		b.Stats.TotalLines += meta.Lines
		b.Stats.ByType[meta.Type]++
	}
}

// ClassifyFile maps a path to its FileType using extension and well-known
// filename heuristics.
func ClassifyFile(p string) FileType {
	base := strings.ToLower(path.Base(p))

	switch {
	case strings.HasPrefix(base, "license"), strings.HasPrefix(base, "copying"):
		return FileLicense
	case base == "readme", base == "changelog":
		return FileDocumentation
	}

	switch path.Ext(base) {
	case ".rs":
		return FileSource
	case ".toml", ".json", ".yaml", ".yml", ".lock":
		return FileConfig
	case ".md", ".rst":
		return FileDocumentation
	case ".txt":
		return FileText
	default:
		return FileUnknown
	}
}
