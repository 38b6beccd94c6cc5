// Package store persists intelligence records. Records are addressed by
// their natural key (name, version, depth); writes replace, never merge.
// A lookup only returns records whose expiry lies in the future and bumps
// the record's request statistics as a side effect.
package store

import (
	"context"

	"github.com/matzehuels/crateintel/pkg/intel"
)

// Store is the full persistence surface: the cache contract the intel
// service needs plus the aggregate queries the API serves.
type Store interface {
	intel.RecordStore

	// Popular returns up to limit records ordered by request count.
	Popular(ctx context.Context, limit int) ([]intel.Record, error)

	// Ping checks backend connectivity. Used by the debug endpoint.
	Ping(ctx context.Context) error

	Close() error
}
