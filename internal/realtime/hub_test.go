package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/adityaadi07/datasentinel/internal/risk"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventTrapHit, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventTrapHit, EventPartnerBlocked},
	}}

	trapEvent := &Event{Type: EventTrapHit}
	blockedEvent := &Event{Type: EventPartnerBlocked}
	noteEvent := &Event{Type: EventNotification}

	if !h.shouldSend(client, trapEvent) {
		t.Error("Should receive trap_hit events")
	}
	if !h.shouldSend(client, blockedEvent) {
		t.Error("Should receive blocked events")
	}
	if h.shouldSend(client, noteEvent) {
		t.Error("Should NOT receive notification events")
	}
}

func TestShouldSend_PartnerFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PartnerIDs: []string{"acme"},
	}}

	matching := &Event{Type: EventTrapHit, PartnerID: "acme"}
	notMatching := &Event{Type: EventTrapHit, PartnerID: "globex"}
	noPartner := &Event{Type: EventNotification, UserID: "u1"}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on partner id")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated partners")
	}
	if h.shouldSend(client, noPartner) {
		t.Error("Partner filter should drop events without a partner")
	}
}

func TestShouldSend_UserFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{UserIDs: []string{"u1"}}}

	if !h.shouldSend(client, &Event{Type: EventNotification, UserID: "u1"}) {
		t.Error("Should match on user id")
	}
	if h.shouldSend(client, &Event{Type: EventNotification, UserID: "u2"}) {
		t.Error("Should NOT match other users")
	}
}

func TestShouldSend_MinScoreFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinScore: 80,
	}}

	high := &Event{Type: EventAccessRecorded, Score: 160}
	low := &Event{Type: EventAccessRecorded, Score: 10}
	alert := &Event{Type: EventFileAlert}

	if !h.shouldSend(client, high) {
		t.Error("Should receive high score event")
	}
	if h.shouldSend(client, low) {
		t.Error("Should NOT receive low score event")
	}
	if !h.shouldSend(client, alert) {
		t.Error("MinScore filter should only apply to risk events")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{}}

	if !h.shouldSend(client, &Event{Type: EventDeceptionActivated}) {
		t.Error("Empty subscription should match everything")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Broadcast an event
	h.Broadcast(&Event{Type: EventTrapHit, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{
		Type:      EventFileAlert,
		Timestamp: time.Now(),
		UserID:    "aditya123",
		Data:      map[string]any{"file_id": "file_001"},
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ObserveRiskEvent(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{PartnerIDs: []string{"acme"}},
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.ObserveRiskEvent(ctx, risk.Event{Kind: risk.EventDeceptionActivated, PartnerID: "acme", Score: 80})

	select {
	case msg := <-client.send:
		var got Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != EventDeceptionActivated || got.PartnerID != "acme" || got.Score != 80 {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for risk event")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants deception activations
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventDeceptionActivated}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a trap event (should be filtered out)
	h.Broadcast(&Event{Type: EventTrapHit, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive trap event")
	default:
		// Good - filtered out
	}

	// Send a deception event (should be received)
	h.Broadcast(&Event{Type: EventDeceptionActivated, Timestamp: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive deception event")
	}
}
