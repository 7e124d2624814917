// Package webhooks forwards security events to external services.
//
// Administrators register URLs for the events they care about: trap hits,
// blocked partners, deception activations and unauthorized file access.
// Payloads are signed with a per-subscription HMAC-SHA256 secret.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/retry"
	"github.com/adityaadi07/datasentinel/internal/security"
)

var ErrNotFound = errors.New("subscription not found")

// EventType represents the type of webhook event
type EventType string

const (
	EventTrapHit            EventType = "risk.trap_hit"
	EventPartnerBlocked     EventType = "risk.partner_blocked"
	EventDeceptionActivated EventType = "risk.deception_activated"
	EventUnauthorizedAccess EventType = "file.unauthorized_access"
)

// KnownEvents lists every event a subscription may name.
var KnownEvents = []EventType{EventTrapHit, EventPartnerBlocked, EventDeceptionActivated, EventUnauthorizedAccess}

// IsKnown reports whether t is a deliverable event type.
func (t EventType) IsKnown() bool {
	return slices.Contains(KnownEvents, t)
}

const (
	signatureHeader = "X-Sentinel-Signature"
	eventHeader     = "X-Sentinel-Event"
	timestampHeader = "X-Sentinel-Timestamp"

	deliveryAttempts  = 3
	deliveryBaseDelay = 500 * time.Millisecond
	deliveryTimeout   = 30 * time.Second
)

// Event represents a webhook event
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Subscription represents a webhook subscription
type Subscription struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Secret      string      `json:"-"` // HMAC signing key
	Events      []EventType `json:"events"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	LastSuccess *time.Time  `json:"last_success,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
}

// Wants reports whether the subscription should receive t.
func (s *Subscription) Wants(t EventType) bool {
	return s.Active && slices.Contains(s.Events, t)
}

// Store persists webhook subscriptions
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// Dispatcher sends webhook events
type Dispatcher struct {
	store        Store
	client       *http.Client
	urlValidator func(string) error
	wg           sync.WaitGroup
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		urlValidator: security.ValidateEndpointURL,
	}
}

// Dispatch sends an event to every active subscriber of its type. Delivery
// is asynchronous and outlives ctx's cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	subs, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	for _, sub := range subs {
		if !sub.Wants(event.Type) {
			continue
		}
		d.wg.Add(1)
		go func(sub *Subscription) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
			defer cancel()
			d.send(sendCtx, sub, event)
		}(sub)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, sub *Subscription, event *Event) {
	if err := d.urlValidator(sub.URL); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("blocked").Inc()
		d.updateError(ctx, sub, "url rejected: "+err.Error())
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.updateError(ctx, sub, "failed to marshal event")
		return
	}
	signature := ""
	if sub.Secret != "" {
		signature = d.sign(payload, sub.Secret)
	}

	err = retry.Do(ctx, deliveryAttempts, deliveryBaseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(eventHeader, string(event.Type))
		req.Header.Set(timestampHeader, fmt.Sprintf("%d", event.Timestamp.Unix()))
		if signature != "" {
			req.Header.Set(signatureHeader, signature)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("status %d", resp.StatusCode)
		default:
			return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
	})
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
		logging.L(ctx).Warn("webhook delivery failed", "subscription", sub.ID, "event", event.Type, "error", err)
		d.updateError(ctx, sub, err.Error())
		return
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	d.updateSuccess(ctx, sub)
}

func (d *Dispatcher) sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature header value against payload.
func Verify(payload []byte, secret, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (d *Dispatcher) updateSuccess(ctx context.Context, sub *Subscription) {
	current, err := d.store.Get(ctx, sub.ID)
	if err != nil {
		return
	}
	now := time.Now()
	current.LastSuccess = &now
	current.LastError = ""
	_ = d.store.Update(ctx, current)
}

func (d *Dispatcher) updateError(ctx context.Context, sub *Subscription, errMsg string) {
	current, err := d.store.Get(ctx, sub.ID)
	if err != nil {
		return
	}
	current.LastError = errMsg
	_ = d.store.Update(ctx, current)
}

// MemoryStore is an in-memory subscription store.
type MemoryStore struct {
	subs map[string]*Subscription
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[string]*Subscription),
	}
}

func cloneSub(s *Subscription) *Subscription {
	cp := *s
	cp.Events = slices.Clone(s.Events)
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sub, ok := m.subs[id]; ok {
		return cloneSub(sub), nil
	}
	return nil, ErrNotFound
}

// List returns every subscription ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		result = append(result, cloneSub(sub))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	m.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}
