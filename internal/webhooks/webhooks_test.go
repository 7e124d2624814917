package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/risk"
)

// noopValidator allows any URL (including loopback) for test servers.
func noopValidator(_ string) error { return nil }

func newTestDispatcher(store Store) *Dispatcher {
	d := NewDispatcher(store)
	d.urlValidator = noopValidator
	return d
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMemoryStore_CRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Subscription{
		ID: "wh_1", URL: "https://example.com/hook", Events: []EventType{EventTrapHit}, Active: true,
	}))

	got, err := store.Get(ctx, "wh_1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", got.URL)

	got.Events[0] = EventPartnerBlocked
	again, _ := store.Get(ctx, "wh_1")
	assert.Equal(t, EventTrapHit, again.Events[0], "store hands out copies")

	got.Active = false
	require.NoError(t, store.Update(ctx, got))
	got, _ = store.Get(ctx, "wh_1")
	assert.False(t, got.Active)

	require.NoError(t, store.Delete(ctx, "wh_1"))
	_, err = store.Get(ctx, "wh_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "wh_1"), ErrNotFound)
}

func TestSignAndVerify(t *testing.T) {
	d := newTestDispatcher(NewMemoryStore())
	payload := []byte(`{"type":"risk.trap_hit","data":{}}`)

	sig := d.sign(payload, "secret1")
	assert.True(t, Verify(payload, "secret1", sig))
	assert.False(t, Verify(payload, "secret2", sig))
	assert.NotEqual(t, sig, d.sign(payload, "secret2"))
}

func TestDispatch_SendsSignedToMatchingActiveSubscribers(t *testing.T) {
	store := NewMemoryStore()
	var (
		received atomic.Int32
		mu       sync.Mutex
		lastBody []byte
		lastSig  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastBody, lastSig = body, r.Header.Get(signatureHeader)
		mu.Unlock()
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	_ = store.Create(ctx, &Subscription{ID: "wh1", URL: server.URL, Secret: "s3cret", Events: []EventType{EventTrapHit}, Active: true})
	_ = store.Create(ctx, &Subscription{ID: "wh2", URL: server.URL, Events: []EventType{EventTrapHit}, Active: false})
	_ = store.Create(ctx, &Subscription{ID: "wh3", URL: server.URL, Events: []EventType{EventPartnerBlocked}, Active: true})

	d := newTestDispatcher(store)
	require.NoError(t, d.Dispatch(ctx, &Event{ID: "evt_1", Type: EventTrapHit, Timestamp: time.Now()}))
	d.Wait()

	assert.Equal(t, int32(1), received.Load())
	mu.Lock()
	assert.True(t, Verify(lastBody, "s3cret", lastSig))
	mu.Unlock()

	sub, _ := store.Get(ctx, "wh1")
	assert.NotNil(t, sub.LastSuccess)
	assert.Empty(t, sub.LastError)
}

func TestDispatch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := NewMemoryStore()
	_ = store.Create(context.Background(), &Subscription{ID: "wh1", URL: server.URL, Events: []EventType{EventTrapHit}, Active: true})

	d := newTestDispatcher(store)
	require.NoError(t, d.Dispatch(context.Background(), &Event{Type: EventTrapHit, Timestamp: time.Now()}))
	d.Wait()

	assert.Equal(t, int32(2), calls.Load())
	sub, _ := store.Get(context.Background(), "wh1")
	assert.NotNil(t, sub.LastSuccess)
}

func TestDispatch_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	store := NewMemoryStore()
	_ = store.Create(context.Background(), &Subscription{ID: "wh1", URL: server.URL, Events: []EventType{EventTrapHit}, Active: true})

	d := newTestDispatcher(store)
	require.NoError(t, d.Dispatch(context.Background(), &Event{Type: EventTrapHit, Timestamp: time.Now()}))
	d.Wait()

	assert.Equal(t, int32(1), calls.Load())
	sub, _ := store.Get(context.Background(), "wh1")
	assert.Contains(t, sub.LastError, "410")
}

func TestDispatch_URLRejectedAtDelivery(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Create(context.Background(), &Subscription{ID: "wh1", URL: "http://127.0.0.1:1/x", Events: []EventType{EventTrapHit}, Active: true})

	d := NewDispatcher(store)
	require.NoError(t, d.Dispatch(context.Background(), &Event{Type: EventTrapHit, Timestamp: time.Now()}))
	d.Wait()

	sub, _ := store.Get(context.Background(), "wh1")
	assert.Contains(t, sub.LastError, "url rejected")
}

func TestEmitter_ForwardsRiskEventsAndAlerts(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		types = append(types, r.Header.Get(eventHeader))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := NewMemoryStore()
	_ = store.Create(context.Background(), &Subscription{ID: "wh1", URL: server.URL, Events: KnownEvents, Active: true})
	d := newTestDispatcher(store)
	e := NewEmitter(d, quiet)

	engine := risk.NewEngine().WithObserver(e)
	_, err := engine.RecordAccess(context.Background(), "acme", risk.ReasonTrap, "u1")
	require.NoError(t, err)
	e.RecordFileAlert(context.Background(), alerts.FileAlert{Type: alerts.TypeUnauthorizedAccess, FileID: "file_001"})
	e.RecordFileAlert(context.Background(), alerts.FileAlert{Type: "info"})
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{
		string(EventTrapHit), string(EventDeceptionActivated), string(EventUnauthorizedAccess),
	}, types)
}

func TestEmitter_NilSafe(t *testing.T) {
	var e *Emitter
	e.ObserveRiskEvent(context.Background(), risk.Event{Kind: risk.EventTrapHit})
}

func setupRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(store)
	h.urlValidator = func(u string) error {
		if u == "http://internal" {
			return errors.New("private addresses are not allowed")
		}
		return nil
	}
	h.RegisterAdminRoutes(r.Group("/admin"))
	return r
}

func TestHandler_CRUD(t *testing.T) {
	store := NewMemoryStore()
	r := setupRouter(store)

	body, _ := json.Marshal(CreateWebhookRequest{URL: "https://hooks.example.com/x", Events: []string{"risk.trap_hit"}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/webhooks", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Webhook Subscription `json:"webhook"`
		Secret  string       `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Len(t, created.Secret, 64)
	assert.NotContains(t, w.Body.String(), `"Secret"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/webhooks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), created.Secret)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/webhooks/"+created.Webhook.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/webhooks/"+created.Webhook.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RejectsBadInput(t *testing.T) {
	r := setupRouter(NewMemoryStore())

	for _, req := range []CreateWebhookRequest{
		{URL: "http://internal", Events: []string{"risk.trap_hit"}},
		{URL: "https://hooks.example.com/x", Events: []string{"payment.received"}},
	} {
		body, _ := json.Marshal(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/webhooks", bytes.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}
