package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/risk"
)

const (
	defaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

// Recorder queues audit records and writes them to a Store from a single
// worker. A full queue drops the record rather than block the caller.
type Recorder struct {
	store  Store
	queue  chan *Record
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewRecorder creates a recorder over store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		queue:  make(chan *Record, defaultQueueSize),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled or Stop is called, then
// drains what is already queued. Call in a goroutine.
func (r *Recorder) Start(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case <-r.stop:
			r.drain()
			return
		case rec := <-r.queue:
			r.write(rec)
		}
	}
}

// Stop signals the write loop to drain and exit, and waits for it.
func (r *Recorder) Stop() {
	select {
	case r.stop <- struct{}{}:
		<-r.done
	case <-r.done:
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.Append(ctx, rec); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		r.logger.Warn("audit write failed", "kind", rec.Kind, "event", rec.Event, "error", err)
		return
	}
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
}

func (r *Recorder) enqueue(rec *Record) {
	select {
	case r.queue <- rec:
	default:
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		r.logger.Warn("audit queue full, dropping record", "kind", rec.Kind, "event", rec.Event)
	}
}

// ObserveRiskEvent mirrors a committed risk event.
func (r *Recorder) ObserveRiskEvent(_ context.Context, ev risk.Event) {
	detail, _ := json.Marshal(map[string]any{
		"reason":    ev.Reason,
		"delta":     ev.Delta,
		"trap_hits": ev.TrapHits,
	})
	r.enqueue(&Record{
		ID:        idgen.New(),
		Kind:      KindRiskEvent,
		Event:     string(ev.Kind),
		PartnerID: ev.PartnerID,
		UserID:    ev.UserID,
		Score:     ev.Score,
		Detail:    detail,
		CreatedAt: ev.Timestamp,
	})
}

// RecordFileAlert mirrors a file alert. Its signature matches alerts.Sink.
func (r *Recorder) RecordFileAlert(_ context.Context, a alerts.FileAlert) {
	detail, _ := json.Marshal(map[string]any{
		"owner_id": a.OwnerID,
		"message":  a.Message,
	})
	r.enqueue(&Record{
		ID:        idgen.New(),
		Kind:      KindFileAlert,
		Event:     a.Type,
		PartnerID: a.RequesterID,
		UserID:    a.OwnerID,
		FileID:    a.FileID,
		Detail:    detail,
		CreatedAt: a.Timestamp,
	})
}
