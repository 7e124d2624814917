// Package risk implements per-partner risk scoring and the trap response.
//
// Every partner access is classified into a reason and scored against a fixed
// table. Scores only grow. Trap hits are logged, three or more of them put the
// partner's users on the restriction ledger, and a score of 80 or more arms
// deception mode for the partner.
package risk

import (
	"context"
	"time"
)

// Reason classifies a single partner access.
type Reason string

const (
	ReasonTrap           Reason = "trap"
	ReasonLateAccess     Reason = "late_access"
	ReasonHighFrequency  Reason = "high_frequency"
	ReasonRegionMismatch Reason = "region_mismatch"
	ReasonOther          Reason = "other"
)

// Trait is a behavioural label attached to a profile. Traits are never removed.
type Trait string

const (
	TraitReckless  Trait = "reckless"
	TraitNocturnal Trait = "nocturnal"
	TraitBursty    Trait = "bursty"
	TraitStealthy  Trait = "stealthy"
)

// Scoring constants.
const (
	TrapDelta           = 80
	LateAccessDelta     = 10
	HighFrequencyDelta  = 10
	RegionMismatchDelta = 20

	// DeceptionThreshold is the score at which deception mode is armed.
	DeceptionThreshold = 80
	// RestrictionThreshold is the trap count at which users get restricted.
	RestrictionThreshold = 3

	// WindowDuration bounds the sliding access window.
	WindowDuration = 600 * time.Second
	// BurstWindowSize is exceeded by a bursty window.
	BurstWindowSize = 5
	// StealthWindowSize is exceeded by a stealthy (trap-free) window.
	StealthWindowSize = 10

	// Suspicious hours are [SuspiciousHourStart, SuspiciousHourEnd] UTC inclusive.
	SuspiciousHourStart = 0
	SuspiciousHourEnd   = 6

	// HoneytokenEndpoint is always classified as a trap.
	HoneytokenEndpoint = "/generate_honeytoken"
)

// Alert event names.
const (
	AlertDeceptionActivated = "deception_mode_activated"
	AlertBlocked            = "blocked_after_3_trap_hits"
)

// Delta returns the score increment for a reason. Unknown reasons score 0.
func (r Reason) Delta() int {
	switch r {
	case ReasonTrap:
		return TrapDelta
	case ReasonLateAccess:
		return LateAccessDelta
	case ReasonHighFrequency:
		return HighFrequencyDelta
	case ReasonRegionMismatch:
		return RegionMismatchDelta
	default:
		return 0
	}
}

// IsSuspiciousHour reports whether a UTC hour falls in the suspicious range.
func IsSuspiciousHour(hour int) bool {
	return hour >= SuspiciousHourStart && hour <= SuspiciousHourEnd
}

// Profile is a read-only snapshot of a partner's risk state.
type Profile struct {
	PartnerID   string      `json:"partner_id"`
	Score       int         `json:"score"`
	Traits      []Trait     `json:"traits"`
	TrapCount   int         `json:"trap_count"`
	Window      []time.Time `json:"access_window"`
	LastAccess  time.Time   `json:"last_access"`
	Deception   bool        `json:"deception_mode"`
	Restricted  []string    `json:"restricted_users"`
	FirstSeenAt time.Time   `json:"first_seen_at"`
}

// TrapEvent is one entry of the append-only trap log.
type TrapEvent struct {
	PartnerID string    `json:"partner_id"`
	UserID    string    `json:"user_id,omitempty"`
	Event     string    `json:"event"`
	TrapHits  int       `json:"trap_hits"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is one entry of the partner alert log.
type Alert struct {
	PartnerID string    `json:"partner_id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// EventKind names what an Event reports.
type EventKind string

const (
	EventAccessRecorded     EventKind = "access_recorded"
	EventTrapHit            EventKind = "trap_hit"
	EventDeceptionActivated EventKind = AlertDeceptionActivated
	EventPartnerBlocked     EventKind = AlertBlocked
)

// Event is published to observers after a RecordAccess call has committed.
type Event struct {
	Kind      EventKind `json:"kind"`
	PartnerID string    `json:"partner_id"`
	UserID    string    `json:"user_id,omitempty"`
	Reason    Reason    `json:"reason,omitempty"`
	Delta     int       `json:"delta"`
	Score     int       `json:"score"`
	TrapHits  int       `json:"trap_hits"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives committed risk events. Observers are called outside any
// partner lock, in order, on the recording goroutine; slow sinks should hand
// off to their own workers.
type Observer interface {
	ObserveRiskEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// ObserveRiskEvent calls f.
func (f ObserverFunc) ObserveRiskEvent(ctx context.Context, ev Event) { f(ctx, ev) }
