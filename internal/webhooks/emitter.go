package webhooks

import (
	"context"
	"log/slog"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/risk"
)

// Emitter turns risk events and file alerts into webhook events.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

func (e *Emitter) emit(ctx context.Context, ev *Event) {
	if e == nil || e.d == nil {
		return
	}
	ev.ID = idgen.WithPrefix("evt_")
	if err := e.d.Dispatch(ctx, ev); err != nil {
		e.logger.Warn("webhook emit failed", "event", ev.Type, "error", err)
	}
}

// ObserveRiskEvent forwards trap hits, blocks and deception activations.
func (e *Emitter) ObserveRiskEvent(ctx context.Context, ev risk.Event) {
	var t EventType
	switch ev.Kind {
	case risk.EventTrapHit:
		t = EventTrapHit
	case risk.EventPartnerBlocked:
		t = EventPartnerBlocked
	case risk.EventDeceptionActivated:
		t = EventDeceptionActivated
	default:
		return
	}
	e.emit(ctx, &Event{
		Type:      t,
		Timestamp: ev.Timestamp,
		Data: map[string]any{
			"partner_id": ev.PartnerID,
			"user_id":    ev.UserID,
			"score":      ev.Score,
			"trap_hits":  ev.TrapHits,
		},
	})
}

// RecordFileAlert forwards unauthorized access alerts. Its signature
// matches alerts.Sink.
func (e *Emitter) RecordFileAlert(ctx context.Context, a alerts.FileAlert) {
	if a.Type != alerts.TypeUnauthorizedAccess {
		return
	}
	e.emit(ctx, &Event{
		Type:      EventUnauthorizedAccess,
		Timestamp: a.Timestamp,
		Data: map[string]any{
			"alert_id":     a.ID,
			"file_id":      a.FileID,
			"owner_id":     a.OwnerID,
			"requester_id": a.RequesterID,
			"message":      a.Message,
		},
	})
}
