// Package cache provides pluggable byte caches for upstream HTTP responses.
//
// The service fronts two slow upstreams (the crates.io API and the docs.rs
// page tree) with a cache keyed per client namespace. Backends:
//   - FileCache: directory of JSON entries, suitable for a single instance
//   - MemoryCache: process-local map, used in tests and the fetch CLI
//   - RedisCache: shared cache for multi-instance deployments
//   - NullCache: disables caching entirely
//
// This is the transport-level cache only; extracted intelligence records
// are persisted separately by the store package.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Cache stores raw response bytes under string keys with a TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value is false on a miss;
	// expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ErrCacheMiss is returned by helpers that treat a miss as an error.
var ErrCacheMiss = errors.New("cache miss")

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
