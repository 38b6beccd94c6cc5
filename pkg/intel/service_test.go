package intel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/crateintel/pkg/docsource"
)

// memStore is a minimal in-memory RecordStore for service tests.
type memStore struct {
	mu      sync.Mutex
	records map[Key]Record
	upserts int
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[Key]Record)}
}

func (s *memStore) Lookup(ctx context.Context, key Key) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || rec.Base().ExpiresAt.Before(time.Now()) {
		return nil, false, nil
	}
	rec.Base().RequestCount++
	rec.Base().LastRequestedAt = time.Now()
	return rec, true, nil
}

func (s *memStore) Upsert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failPut {
		return context.DeadlineExceeded
	}
	s.records[RecordKey(rec)] = rec
	return nil
}

func testService(t *testing.T, store RecordStore) *Service {
	t.Helper()
	server := registryServer(t)
	t.Cleanup(server.Close)
	orch := NewOrchestrator(testRegistry(t, server.URL), populatedSource(), nil, nil)
	return NewService(store, orch, nil)
}

func TestServiceMissThenHit(t *testing.T) {
	store := newMemStore()
	svc := testService(t, store)
	ctx := context.Background()

	rec, cached, err := svc.Get(ctx, "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cached {
		t.Error("first request should be a miss")
	}
	if rec.Base().Version != "2.1.0" {
		t.Errorf("expected resolved version, got %q", rec.Base().Version)
	}

	rec2, cached, err := svc.Get(ctx, "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !cached {
		t.Error("second request should hit the store")
	}
	if rec2.Base().RequestCount != 1 {
		t.Errorf("hit should bump request count, got %d", rec2.Base().RequestCount)
	}
	if rec2.Base().Narrative != rec.Base().Narrative {
		t.Error("cached content fields must be identical")
	}
}

func TestServiceFreshSkipsReadWritesBack(t *testing.T) {
	store := newMemStore()
	svc := testService(t, store)
	ctx := context.Background()

	if _, _, err := svc.Get(ctx, "widget", "latest", DepthBasic, Options{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	_, cached, err := svc.Get(ctx, "widget", "latest", DepthBasic, Options{Fresh: true})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cached {
		t.Error("fresh request must bypass the store read")
	}
	if store.upserts != 2 {
		t.Errorf("fresh request should still write back, got %d upserts", store.upserts)
	}
}

func TestServicePersistFailureStillReturns(t *testing.T) {
	store := newMemStore()
	store.failPut = true
	svc := testService(t, store)

	rec, cached, err := svc.Get(context.Background(), "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("persist failure must not fail the request: %v", err)
	}
	if cached || rec == nil {
		t.Error("expected a freshly extracted, uncached record")
	}
}

func TestServiceCoalescesConcurrentMisses(t *testing.T) {
	store := newMemStore()
	server := registryServer(t)
	defer server.Close()

	gate := make(chan struct{})
	blocking := &blockingSource{fakeSource: populatedSource(), gate: gate}

	orch := NewOrchestrator(testRegistry(t, server.URL), blocking, nil, nil)
	svc := NewService(store, orch, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Record, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, _, err := svc.Get(context.Background(), "widget", "2.1.0", DepthFull, Options{Dependencies: true})
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = rec
		}(i)
	}

	// Let all callers pile up on the in-flight extraction, then release.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := blocking.calls(); got != 1 {
		t.Errorf("expected 1 coalesced extraction, got %d", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Error("coalesced callers should share one result")
		}
	}
}

// blockingSource holds Dependencies calls until gate closes, counting them.
type blockingSource struct {
	*fakeSource
	gate <-chan struct{}
	mu   sync.Mutex
	n    int
}

func (b *blockingSource) Dependencies(ctx context.Context, name, version string) (*docsource.DependencyGraph, error) {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	<-b.gate
	return b.fakeSource.Dependencies(ctx, name, version)
}

func (b *blockingSource) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}
