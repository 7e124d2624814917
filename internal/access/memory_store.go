package access

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory access request store.
type MemoryStore struct {
	requests map[string]*Request
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory access request store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*Request)}
}

func (m *MemoryStore) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) HasPending(_ context.Context, fileID, requesterID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.FileID == fileID && r.RequesterID == requesterID && r.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*Request, error) {
	return m.list(func(r *Request) bool { return r.OwnerID == ownerID }), nil
}

func (m *MemoryStore) ListByRequester(_ context.Context, requesterID string) ([]*Request, error) {
	return m.list(func(r *Request) bool { return r.RequesterID == requesterID }), nil
}

func (m *MemoryStore) list(match func(*Request) bool) []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Request, 0)
	for _, r := range m.requests {
		if match(r) {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
