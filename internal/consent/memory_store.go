package consent

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory user store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

// Get returns a copy of the user.
func (m *MemoryStore) Get(_ context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// List returns copies of every user ordered by id.
func (m *MemoryStore) List(_ context.Context) ([]*User, error) {
	m.mu.RLock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a user.
func (m *MemoryStore) Put(_ context.Context, user *User) error {
	cp := *user
	m.mu.Lock()
	m.users[user.ID] = &cp
	m.mu.Unlock()
	return nil
}

// SeedDemoUsers loads the demo directory: three users and an admin, all
// consenting, with region as their geo restriction.
func (m *MemoryStore) SeedDemoUsers(region string) {
	seed := []*User{
		{ID: "aditya123", Username: "Aditya Ankanath", Role: RoleUser},
		{ID: "ace277", Username: "Anirudh C", Role: RoleUser},
		{ID: "tulya343", Username: "Tulya Reddy", Role: RoleUser},
		{ID: "admin", Username: "System Admin", Role: RoleAdmin},
	}
	for _, u := range seed {
		u.Flags = AllGranted
		u.ExpiryDate = "2099-12-31"
		u.GeoRestriction = region
		_ = m.Put(context.Background(), u)
	}
}
