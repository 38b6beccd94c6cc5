package auth

import (
	"context"
	"sync"
)

// KeyStore persists API key records. Get returns a copy: callers never
// share the stored struct with the usage accounting path.
type KeyStore interface {
	Get(ctx context.Context, key string) (*APIKey, bool, error)
	Put(ctx context.Context, rec *APIKey) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*APIKey, error)

	// IncrementUsage adds n to the key's billed-call counter.
	IncrementUsage(ctx context.Context, key string, n int64) error
}

// MemoryKeyStore is an in-process KeyStore for tests and single-instance
// deployments.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]*APIKey)}
}

func (s *MemoryKeyStore) Get(ctx context.Context, key string) (*APIKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[key]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (s *MemoryKeyStore) Put(ctx context.Context, rec *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.keys[rec.Key] = &cp
	return nil
}

func (s *MemoryKeyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *MemoryKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*APIKey, 0, len(s.keys))
	for _, rec := range s.keys {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryKeyStore) IncrementUsage(ctx context.Context, key string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.keys[key]; ok {
		rec.Usage += n
	}
	return nil
}
