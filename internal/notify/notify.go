// Package notify keeps per-user notification inboxes.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/adityaadi07/datasentinel/internal/idgen"
)

// Kind classifies a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindThreat  Kind = "threat"
)

// Notification is one message addressed to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Sink receives every notification after it is stored.
type Sink func(ctx context.Context, n Notification)

// Inbox is an in-memory, append-only notification store.
type Inbox struct {
	mu    sync.RWMutex
	items []Notification
	sinks []Sink
	now   func() time.Time
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{now: time.Now}
}

// WithSink registers a sink. Call before first use.
func (i *Inbox) WithSink(s Sink) *Inbox {
	i.sinks = append(i.sinks, s)
	return i
}

// Notify stores a notification for userID and forwards it to the sinks.
func (i *Inbox) Notify(ctx context.Context, userID string, kind Kind, message string) Notification {
	n := Notification{
		ID:        idgen.New(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		Timestamp: i.now().UTC(),
	}
	i.mu.Lock()
	i.items = append(i.items, n)
	i.mu.Unlock()

	for _, s := range i.sinks {
		s(ctx, n)
	}
	return n
}

// List returns userID's notifications in arrival order, or every
// notification when userID is empty.
func (i *Inbox) List(userID string) []Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Notification, 0)
	for _, n := range i.items {
		if userID == "" || n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead marks userID's notifications read and returns how many changed.
func (i *Inbox) MarkRead(userID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	changed := 0
	for idx := range i.items {
		if i.items[idx].UserID == userID && !i.items[idx].Read {
			i.items[idx].Read = true
			changed++
		}
	}
	return changed
}

// Unread counts userID's unread notifications.
func (i *Inbox) Unread(userID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n := 0
	for _, item := range i.items {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n
}
