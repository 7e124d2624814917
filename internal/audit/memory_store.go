package audit

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory audit store for development and tests.
type MemoryStore struct {
	records []*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

// List returns matching records newest first.
func (m *MemoryStore) List(_ context.Context, f Filter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := f.limit()
	result := make([]*Record, 0)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		if f.matches(m.records[i]) {
			cp := *m.records[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}
