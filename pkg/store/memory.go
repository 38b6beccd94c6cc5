package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matzehuels/crateintel/pkg/intel"
)

// Memory is an in-process Store. Suitable for tests and single-instance
// deployments without a database.
type Memory struct {
	mu   sync.RWMutex
	docs map[intel.Key]*recordDoc
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[intel.Key]*recordDoc)}
}

// Lookup returns the stored record if it exists and has not expired.
// On a hit it increments the request counter and last-requested time;
// content fields are never touched on the read path.
func (m *Memory) Lookup(ctx context.Context, key intel.Key) (intel.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[key]
	if !ok || !doc.ExpiresAt.After(time.Now()) {
		return nil, false, nil
	}
	doc.RequestCount++
	doc.LastRequestedAt = time.Now()
	return fromDoc(doc), true, nil
}

// Upsert replaces any record under the same natural key. There is no
// merge: the newest extraction fully supersedes the prior one.
func (m *Memory) Upsert(ctx context.Context, rec intel.Record) error {
	doc := toDoc(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[intel.RecordKey(rec)] = doc
	return nil
}

// Popular returns up to limit records ordered by request count, most
// requested first. Expired records are included: popularity is a usage
// statistic, not a freshness guarantee.
func (m *Memory) Popular(ctx context.Context, limit int) ([]intel.Record, error) {
	m.mu.RLock()
	docs := make([]*recordDoc, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].RequestCount != docs[j].RequestCount {
			return docs[i].RequestCount > docs[j].RequestCount
		}
		return docs[i].Name < docs[j].Name
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	records := make([]intel.Record, len(docs))
	for i, doc := range docs {
		records[i] = fromDoc(doc)
	}
	return records, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
