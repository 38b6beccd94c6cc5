package store

import (
	"time"

	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/intel"
)

// recordDoc is the flat persistence shape shared by both backends. The
// depth-tagged record types are flattened on write and reconstructed on
// read; sections absent from the record's tier stay zero. Tree files are
// stored as (path, content) pairs because paths contain dots.
type recordDoc struct {
	Name        string `bson:"name" json:"name"`
	Version     string `bson:"version" json:"version"`
	Depth       string `bson:"depth" json:"depth"`
	Description string `bson:"description" json:"description"`
	License     string `bson:"license,omitempty" json:"license,omitempty"`
	Repository  string `bson:"repository,omitempty" json:"repository,omitempty"`
	Downloads   int    `bson:"downloads" json:"downloads"`
	Manifest    string `bson:"manifest,omitempty" json:"manifest,omitempty"`
	Narrative   string `bson:"narrative" json:"narrative"`

	ExtractionMS    int64     `bson:"extraction_ms" json:"extraction_ms"`
	ExpiresAt       time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
	LastRequestedAt time.Time `bson:"last_requested_at" json:"last_requested_at"`
	RequestCount    int64     `bson:"request_count" json:"request_count"`

	Dependencies *docsource.DependencyGraph `bson:"dependencies,omitempty" json:"dependencies,omitempty"`
	Examples     []docsource.UsageExample   `bson:"examples,omitempty" json:"examples,omitempty"`
	TreeFiles    []treeFileDoc              `bson:"tree_files,omitempty" json:"tree_files,omitempty"`
	TreeStats    *docsource.TreeStats       `bson:"tree_stats,omitempty" json:"tree_stats,omitempty"`
}

type treeFileDoc struct {
	Path    string             `bson:"path" json:"path"`
	Content string             `bson:"content" json:"content"`
	Meta    docsource.FileMeta `bson:"meta" json:"meta"`
}

func toDoc(rec intel.Record) *recordDoc {
	b := rec.Base()
	doc := &recordDoc{
		Name:            b.Name,
		Version:         b.Version,
		Depth:           string(rec.Depth()),
		Description:     b.Description,
		License:         b.License,
		Repository:      b.Repository,
		Downloads:       b.Downloads,
		Manifest:        b.Manifest,
		Narrative:       b.Narrative,
		ExtractionMS:    b.ExtractionMS,
		ExpiresAt:       b.ExpiresAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		LastRequestedAt: b.LastRequestedAt,
		RequestCount:    b.RequestCount,
	}

	switch r := rec.(type) {
	case *intel.FullRecord:
		doc.Dependencies = r.Dependencies
		doc.Examples = r.Examples
	case *intel.DeepRecord:
		doc.Dependencies = r.Dependencies
		doc.Examples = r.Examples
		if r.SourceTree != nil {
			doc.TreeStats = &r.SourceTree.Stats
			for path, content := range r.SourceTree.Files {
				doc.TreeFiles = append(doc.TreeFiles, treeFileDoc{
					Path:    path,
					Content: content,
					Meta:    r.SourceTree.Meta[path],
				})
			}
		}
	}
	return doc
}

func fromDoc(doc *recordDoc) intel.Record {
	base := intel.BaseRecord{
		Name:            doc.Name,
		Version:         doc.Version,
		DepthTier:       intel.DepthTier(doc.Depth),
		Description:     doc.Description,
		License:         doc.License,
		Repository:      doc.Repository,
		Downloads:       doc.Downloads,
		Manifest:        doc.Manifest,
		Narrative:       doc.Narrative,
		ExtractionMS:    doc.ExtractionMS,
		ExpiresAt:       doc.ExpiresAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		LastRequestedAt: doc.LastRequestedAt,
		RequestCount:    doc.RequestCount,
	}

	switch intel.DepthTier(doc.Depth) {
	case intel.DepthFull:
		return &intel.FullRecord{
			BasicRecord:  intel.BasicRecord{BaseRecord: base},
			Dependencies: doc.Dependencies,
			Examples:     doc.Examples,
		}
	case intel.DepthDeep:
		deep := &intel.DeepRecord{
			FullRecord: intel.FullRecord{
				BasicRecord:  intel.BasicRecord{BaseRecord: base},
				Dependencies: doc.Dependencies,
				Examples:     doc.Examples,
			},
		}
		if doc.TreeStats != nil || len(doc.TreeFiles) > 0 {
			tree := docsource.NewSourceTreeBundle()
			for _, f := range doc.TreeFiles {
				tree.Files[f.Path] = f.Content
				tree.Meta[f.Path] = f.Meta
			}
			if doc.TreeStats != nil {
				tree.Stats = *doc.TreeStats
			}
			deep.SourceTree = tree
		}
		return deep
	default:
		return &intel.BasicRecord{BaseRecord: base}
	}
}
