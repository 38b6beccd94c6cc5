package intel

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/errors"
	"github.com/matzehuels/crateintel/pkg/narrative"
	"github.com/matzehuels/crateintel/pkg/upstream"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
)

// StubVersion is the placeholder used when the registry is unreachable
// and the requested version cannot be resolved.
const StubVersion = "0.0.0"

// Options controls which optional sections an extraction gathers.
// Dependencies and Examples only apply at full depth and above; deep
// extractions always gather everything.
type Options struct {
	Dependencies bool
	Examples     bool
	// Fresh skips the cache read but not the write-back.
	Fresh bool
}

// Orchestrator composes the registry client, documentation source, and
// narrative synthesizer into a single extraction. It is stateless and
// safe for concurrent use.
type Orchestrator struct {
	registry *crates.Client
	source   docsource.Source
	synth    *narrative.Synthesizer
	logger   *log.Logger
}

// NewOrchestrator creates an orchestrator. If synth is nil a
// template-only synthesizer is used. If logger is nil the default
// logger is used.
func NewOrchestrator(registry *crates.Client, source docsource.Source, synth *narrative.Synthesizer, logger *log.Logger) *Orchestrator {
	if synth == nil {
		synth = narrative.NewSynthesizer(nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{registry: registry, source: source, synth: synth, logger: logger}
}

// Resolve maps "latest" (or empty) to the registry's current maximum
// version. Concrete versions pass through without a registry call.
func (o *Orchestrator) Resolve(ctx context.Context, name, version string, refresh bool) (string, error) {
	return o.registry.ResolveVersion(ctx, name, version, refresh)
}

// Extract builds an intelligence record for the crate at the requested
// depth. Upstream failures past the initial registry lookup degrade the
// record rather than failing it: a missing dependency page, a partially
// crawled tree, or an unreachable synthesis service each cost only
// their own section. The returned error is non-nil only when the crate
// does not exist or the context is done.
func (o *Orchestrator) Extract(ctx context.Context, name, version string, depth DepthTier, opts Options) (Record, error) {
	start := time.Now()

	info, err := o.registry.FetchCrate(ctx, name, opts.Fresh)
	if err != nil {
		if stderrors.Is(err, upstream.ErrNotFound) {
			return nil, errors.New(errors.ErrCodeCrateNotFound, "crate %q not found in registry", name)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("registry unavailable, using stub metadata", "crate", name, "err", err)
		info = &crates.CrateInfo{Name: name, Version: StubVersion}
	}

	resolved := version
	if resolved == "" || resolved == "latest" {
		resolved = info.Version
	}

	now := time.Now()
	base := BaseRecord{
		Name:            name,
		Version:         resolved,
		DepthTier:       depth,
		Description:     info.Description,
		License:         info.License,
		Repository:      info.Repository,
		Downloads:       info.Downloads,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastRequestedAt: now,
	}

	in := narrative.Input{
		Name:        name,
		Version:     resolved,
		Description: info.Description,
		License:     info.License,
		Downloads:   info.Downloads,
	}

	// The manifest belongs to every tier; a failed fetch costs only
	// this section.
	manifest, err := o.source.Manifest(ctx, name, resolved)
	if err != nil {
		o.logger.Warn("manifest fetch failed", "crate", name, "err", err)
	} else {
		base.Manifest = manifest
		in.Manifest = manifest
	}

	var rec Record
	switch depth {
	case DepthBasic:
		base.Narrative = narrative.Template(in)
		rec = &BasicRecord{BaseRecord: base}

	case DepthFull:
		full := &FullRecord{BasicRecord: BasicRecord{BaseRecord: base}}
		o.gatherFull(ctx, name, resolved, opts, full, &in)
		full.Narrative = narrative.Template(in)
		rec = full

	case DepthDeep:
		deep := &DeepRecord{FullRecord: FullRecord{BasicRecord: BasicRecord{BaseRecord: base}}}
		o.gatherFull(ctx, name, resolved, Options{Dependencies: true, Examples: true}, &deep.FullRecord, &in)
		o.gatherDeep(ctx, name, resolved, deep, &in)
		deep.Narrative = o.synth.Synthesize(ctx, in)
		rec = deep

	default:
		return nil, errors.New(errors.ErrCodeInvalidDepth, "invalid depth %q", depth)
	}

	b := rec.Base()
	b.ExtractionMS = time.Since(start).Milliseconds()
	b.ExpiresAt = time.Now().Add(depth.TTL())

	o.logger.Info("extraction complete",
		"crate", name,
		"version", resolved,
		"depth", depth,
		"duration", time.Since(start))
	return rec, nil
}

// gatherFull populates the dependency graph and examples sections,
// honoring the per-section option flags.
func (o *Orchestrator) gatherFull(ctx context.Context, name, version string, opts Options, rec *FullRecord, in *narrative.Input) {
	if opts.Dependencies {
		deps, err := o.source.Dependencies(ctx, name, version)
		if err != nil {
			o.logger.Warn("dependency extraction failed", "crate", name, "err", err)
		} else {
			rec.Dependencies = deps
			in.Deps = deps
		}
	}
	if opts.Examples {
		examples, err := o.source.Examples(ctx, name, version)
		if err != nil {
			o.logger.Warn("example extraction failed", "crate", name, "err", err)
		} else {
			rec.Examples = examples
			in.Examples = examples
		}
	}
}

// gatherDeep populates the source tree section.
func (o *Orchestrator) gatherDeep(ctx context.Context, name, version string, rec *DeepRecord, in *narrative.Input) {
	tree, err := o.source.CrawlTree(ctx, name, version)
	if err != nil {
		o.logger.Warn("source crawl failed", "crate", name, "err", err)
	} else {
		rec.SourceTree = tree
		in.Tree = tree
	}
}
