// Package audit mirrors security events into a durable store.
//
// The in-process risk state stays authoritative; the mirror only gives
// operators a queryable history that survives restarts. Records are queued
// by a Recorder and written off the request path.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Kind names what a Record describes.
type Kind string

const (
	KindRiskEvent Kind = "risk_event"
	KindFileAlert Kind = "file_alert"
)

// Record is one audit entry.
type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Event     string          `json:"event"`
	PartnerID string          `json:"partner_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	FileID    string          `json:"file_id,omitempty"`
	Score     int             `json:"score"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Kind      Kind
	PartnerID string
	Limit     int
}

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, r *Record) error
	List(ctx context.Context, f Filter) ([]*Record, error)
}

func (f Filter) matches(r *Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.PartnerID != "" && r.PartnerID != f.PartnerID {
		return false
	}
	return true
}

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}
