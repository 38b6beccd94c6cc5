package intel

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// RecordStore is the persistence surface the Service needs. Lookup must
// treat expired records as misses and may bump request statistics as a
// side effect of a hit.
type RecordStore interface {
	Lookup(ctx context.Context, key Key) (Record, bool, error)
	Upsert(ctx context.Context, rec Record) error
}

// Service layers record caching and in-flight coalescing on top of the
// Orchestrator. Concurrent misses for the same (name, version, depth,
// options) share a single extraction instead of racing on the write.
type Service struct {
	store  RecordStore
	orch   *Orchestrator
	logger *log.Logger
	flight singleflight.Group
}

// NewService creates a Service. If logger is nil the default logger is
// used.
func NewService(store RecordStore, orch *Orchestrator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, orch: orch, logger: logger}
}

// Get returns the intelligence record for a crate, serving from the
// store when a fresh enough record exists. The second return value
// reports whether the record came from the store. Fresh requests skip
// the store read but still write the new extraction back.
func (s *Service) Get(ctx context.Context, name, version string, depth DepthTier, opts Options) (Record, bool, error) {
	resolved, err := s.orch.Resolve(ctx, name, version, opts.Fresh)
	if err != nil {
		// Registry unreachable: fall back to whatever the caller gave us
		// so the stub extraction path still has a stable cache key.
		if version == "" || version == "latest" {
			resolved = StubVersion
		} else {
			resolved = version
		}
		s.logger.Debug("version resolution failed", "crate", name, "err", err)
	}

	key := Key{Name: name, Version: resolved, Depth: depth}
	if !opts.Fresh {
		rec, ok, err := s.store.Lookup(ctx, key)
		if err != nil {
			s.logger.Warn("record lookup failed", "key", key, "err", err)
		} else if ok {
			return rec, true, nil
		}
	}

	flightKey := fmt.Sprintf("%s|deps=%t|examples=%t", key, opts.Dependencies, opts.Examples)
	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		rec, err := s.orch.Extract(ctx, name, resolved, depth, opts)
		if err != nil {
			return nil, err
		}
		// A failed write does not fail the request: the extraction is
		// still returned, just not durably cached.
		if err := s.store.Upsert(ctx, rec); err != nil {
			s.logger.Warn("record persist failed", "key", key, "err", err)
		}
		return rec, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(Record), false, nil
}
