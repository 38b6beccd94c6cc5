// Package intel assembles crate intelligence records. The Orchestrator
// composes the registry client, documentation source, and narrative
// synthesizer according to the requested extraction depth; the Service
// layers record caching and request coalescing on top.
package intel

import (
	"time"

	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/errors"
)

// DepthTier selects how much data an extraction gathers. Tiers are
// ordered: each is a strict superset of the one below it.
type DepthTier string

const (
	DepthBasic DepthTier = "basic"
	DepthFull  DepthTier = "full"
	DepthDeep  DepthTier = "deep"
)

// Level returns the tier's position in the ordering (basic=0, full=1,
// deep=2). Unknown tiers map to -1.
func (d DepthTier) Level() int {
	switch d {
	case DepthBasic:
		return 0
	case DepthFull:
		return 1
	case DepthDeep:
		return 2
	}
	return -1
}

// TTL returns how long a record of this depth stays fresh. Deeper tiers
// aggregate more volatile upstream content and so expire sooner.
func (d DepthTier) TTL() time.Duration {
	switch d {
	case DepthFull:
		return 12 * time.Hour
	case DepthDeep:
		return 6 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParseDepth validates a depth string. Empty defaults to basic.
func ParseDepth(s string) (DepthTier, error) {
	switch s {
	case "", string(DepthBasic):
		return DepthBasic, nil
	case string(DepthFull):
		return DepthFull, nil
	case string(DepthDeep):
		return DepthDeep, nil
	}
	return "", errors.New(errors.ErrCodeInvalidDepth, "invalid depth %q: must be one of basic, full, deep", s)
}

// Key identifies a cached record. Version must already be resolved to a
// concrete value so that "latest" requests for different releases never
// collide.
type Key struct {
	Name    string
	Version string
	Depth   DepthTier
}

func (k Key) String() string {
	return k.Name + "@" + k.Version + ":" + string(k.Depth)
}

// BaseRecord holds the fields common to every depth tier.
type BaseRecord struct {
	Name        string    `json:"name" bson:"name"`
	Version     string    `json:"version" bson:"version"`
	DepthTier   DepthTier `json:"extraction_depth" bson:"extraction_depth"`
	Description string    `json:"description" bson:"description"`
	License     string    `json:"license,omitempty" bson:"license,omitempty"`
	Repository  string    `json:"repository,omitempty" bson:"repository,omitempty"`
	Downloads   int       `json:"downloads" bson:"downloads"`
	Manifest    string    `json:"manifest,omitempty" bson:"manifest,omitempty"`
	Narrative   string    `json:"narrative" bson:"narrative"`

	ExtractionMS    int64     `json:"extraction_ms" bson:"extraction_ms"`
	ExpiresAt       time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
	LastRequestedAt time.Time `json:"last_requested_at" bson:"last_requested_at"`
	RequestCount    int64     `json:"request_count" bson:"request_count"`
}

// Record is implemented by the three depth-tagged record types.
type Record interface {
	Base() *BaseRecord
	Depth() DepthTier
}

// BasicRecord carries registry metadata, the manifest text, and a
// narrative.
type BasicRecord struct {
	BaseRecord
}

func (r *BasicRecord) Base() *BaseRecord { return &r.BaseRecord }
func (r *BasicRecord) Depth() DepthTier  { return DepthBasic }

// FullRecord extends BasicRecord with the dependency graph and usage
// examples. Either section may be nil when the caller opted out of it.
type FullRecord struct {
	BasicRecord
	Dependencies *docsource.DependencyGraph `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
	Examples     []docsource.UsageExample   `json:"examples,omitempty" bson:"examples,omitempty"`
}

func (r *FullRecord) Depth() DepthTier { return DepthFull }

// DeepRecord extends FullRecord with the crawled source tree.
type DeepRecord struct {
	FullRecord
	SourceTree *docsource.SourceTreeBundle `json:"source_tree,omitempty" bson:"source_tree,omitempty"`
}

func (r *DeepRecord) Depth() DepthTier { return DepthDeep }

// RecordKey returns the record's cache identity.
func RecordKey(r Record) Key {
	b := r.Base()
	return Key{Name: b.Name, Version: b.Version, Depth: r.Depth()}
}
