// Package restriction keeps the permanent partner -> blocked user ledger.
// Entries are only ever added.
package restriction

import (
	"sort"
	"sync"
)

// Ledger maps a partner id to the set of user ids it may no longer reach.
type Ledger struct {
	mu      sync.RWMutex
	blocked map[string]map[string]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{blocked: make(map[string]map[string]struct{})}
}

// Add records userID as blocked for partnerID and reports whether the pair
// was new. An empty userID still lists the partner, with no users.
func (l *Ledger) Add(partnerID, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	users, ok := l.blocked[partnerID]
	if !ok {
		users = make(map[string]struct{})
		l.blocked[partnerID] = users
	}
	if userID == "" {
		return false
	}
	if _, exists := users[userID]; exists {
		return false
	}
	users[userID] = struct{}{}
	return true
}

// IsRestricted reports whether userID is blocked for partnerID.
func (l *Ledger) IsRestricted(partnerID, userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.blocked[partnerID][userID]
	return ok
}

// Listed reports whether partnerID has a ledger entry at all.
func (l *Ledger) Listed(partnerID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.blocked[partnerID]
	return ok
}

// Users returns the sorted blocked users of partnerID.
func (l *Ledger) Users(partnerID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedKeys(l.blocked[partnerID])
}

// Snapshot returns a copy of the whole ledger with sorted user lists.
func (l *Ledger) Snapshot() map[string][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]string, len(l.blocked))
	for partner, users := range l.blocked {
		out[partner] = sortedKeys(users)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
