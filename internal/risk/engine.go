package risk

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adityaadi07/datasentinel/internal/deception"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/restriction"
	"github.com/adityaadi07/datasentinel/internal/traces"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// maxWindowSize caps the per-partner window. Only the >5 and >10
// comparisons read its length, so the cap never changes a decision.
const maxWindowSize = 1000

// Engine owns every partner's risk profile together with the trap log, the
// alert log, the restriction ledger and the deception machine. All mutations
// for one partner run under that partner's lock as a single unit.
type Engine struct {
	profiles     sync.Map // map[string]*partnerState
	deception    *deception.Machine
	restrictions *restriction.Ledger

	logMu   sync.RWMutex
	trapLog []TrapEvent
	alerts  []Alert

	observers []Observer
	now       func() time.Time
}

type partnerState struct {
	mu        sync.Mutex
	score     int
	traits    map[Trait]struct{}
	trapCount int
	window    []time.Time
	firstSeen time.Time
}

// NewEngine creates an engine with no partners.
func NewEngine() *Engine {
	return &Engine{
		deception:    deception.NewMachine(),
		restrictions: restriction.NewLedger(),
		now:          time.Now,
	}
}

// WithClock overrides the time source. Call before first use.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithObserver registers an observer for committed events. Call before first use.
func (e *Engine) WithObserver(o Observer) *Engine {
	e.observers = append(e.observers, o)
	return e
}

// RecordAccess applies one classified access to partnerID's profile and
// returns the new score. userID, when set, is the user restricted once the
// partner reaches the trap threshold.
func (e *Engine) RecordAccess(ctx context.Context, partnerID string, reason Reason, userID string) (int, error) {
	if strings.TrimSpace(partnerID) == "" {
		return 0, validation.Missing("partner_id")
	}
	ctx, span := traces.StartSpan(ctx, "risk.RecordAccess",
		traces.PartnerID(partnerID), traces.UserID(userID), traces.Reason(string(reason)))
	defer span.End()

	st := e.state(partnerID)
	st.mu.Lock()
	score, events := e.apply(st, partnerID, reason, userID)
	st.mu.Unlock()

	span.SetAttributes(traces.Score(score))
	e.publish(ctx, events)
	return score, nil
}

// ClassifyAccess derives a reason from the endpoint, the clock and the
// partner's window, then records it. When nothing is suspicious the current
// score is returned and nothing is recorded.
func (e *Engine) ClassifyAccess(ctx context.Context, partnerID, endpoint, userID string) (int, error) {
	if strings.TrimSpace(partnerID) == "" {
		return 0, validation.Missing("partner_id")
	}
	if endpoint == HoneytokenEndpoint {
		return e.RecordAccess(ctx, partnerID, ReasonTrap, userID)
	}
	if IsSuspiciousHour(e.now().UTC().Hour()) {
		return e.RecordAccess(ctx, partnerID, ReasonLateAccess, userID)
	}
	if e.windowSize(partnerID) > BurstWindowSize {
		return e.RecordAccess(ctx, partnerID, ReasonHighFrequency, userID)
	}
	return e.Score(partnerID), nil
}

// apply mutates st and returns the new score plus the events to publish.
// Caller must hold st.mu.
func (e *Engine) apply(st *partnerState, partnerID string, reason Reason, userID string) (int, []Event) {
	now := e.now().UTC()
	if st.firstSeen.IsZero() {
		st.firstSeen = now
	}

	st.window = pruneWindow(append(st.window, now), now)
	freq := len(st.window)

	delta := reason.Delta()
	events := make([]Event, 0, 4)
	var trait Trait

	switch reason {
	case ReasonTrap:
		st.trapCount++
		trait = TraitReckless
		e.appendTrap(TrapEvent{
			PartnerID: partnerID,
			UserID:    userID,
			Event:     string(EventTrapHit),
			TrapHits:  st.trapCount,
			Timestamp: now,
		})
		events = append(events, Event{Kind: EventTrapHit, TrapHits: st.trapCount})
		if st.trapCount >= RestrictionThreshold {
			if e.restrictions.Add(partnerID, userID) {
				metrics.RestrictionsTotal.Inc()
			}
			e.appendAlert(Alert{PartnerID: partnerID, Event: AlertBlocked, Timestamp: now})
			events = append(events, Event{Kind: EventPartnerBlocked, TrapHits: st.trapCount})
		}
	case ReasonLateAccess:
		if IsSuspiciousHour(now.Hour()) {
			trait = TraitNocturnal
		}
	case ReasonHighFrequency:
		if freq > BurstWindowSize {
			trait = TraitBursty
		}
	}

	st.score += delta
	if trait != "" {
		st.traits[trait] = struct{}{}
	}
	if freq > StealthWindowSize && st.trapCount == 0 {
		st.traits[TraitStealthy] = struct{}{}
	}

	if st.score >= DeceptionThreshold && e.deception.Activate(partnerID, now) {
		e.appendAlert(Alert{PartnerID: partnerID, Event: AlertDeceptionActivated, Timestamp: now})
		events = append(events, Event{Kind: EventDeceptionActivated, TrapHits: st.trapCount})
	}

	events = append(events, Event{Kind: EventAccessRecorded, TrapHits: st.trapCount})
	for i := range events {
		events[i].PartnerID = partnerID
		events[i].UserID = userID
		events[i].Reason = reason
		events[i].Delta = delta
		events[i].Score = st.score
		events[i].Timestamp = now
	}
	return st.score, events
}

// pruneWindow drops timestamps 600s or more older than now, keeping order.
func pruneWindow(window []time.Time, now time.Time) []time.Time {
	keep := 0
	for _, ts := range window {
		if now.Sub(ts) < WindowDuration {
			window[keep] = ts
			keep++
		}
	}
	window = window[:keep]
	if len(window) > maxWindowSize {
		window = append(window[:0:0], window[len(window)-maxWindowSize:]...)
	}
	return window
}

func (e *Engine) publish(ctx context.Context, events []Event) {
	logger := logging.L(logging.WithPartner(ctx, events[0].PartnerID))
	for _, ev := range events {
		switch ev.Kind {
		case EventAccessRecorded:
			metrics.RiskEventsTotal.WithLabelValues(reasonLabel(ev.Reason)).Inc()
			logger.Debug("risk access recorded", "reason", ev.Reason, "delta", ev.Delta, "score", ev.Score)
		case EventTrapHit:
			metrics.TrapHitsTotal.Inc()
			logger.Warn("trap hit", "user_id", ev.UserID, "trap_hits", ev.TrapHits, "score", ev.Score)
		case EventPartnerBlocked:
			logger.Warn("partner blocked after repeated trap hits", "user_id", ev.UserID, "trap_hits", ev.TrapHits)
		case EventDeceptionActivated:
			metrics.DeceptionActivationsTotal.Inc()
			logger.Warn("deception mode activated", "score", ev.Score)
		}
		for _, o := range e.observers {
			o.ObserveRiskEvent(ctx, ev)
		}
	}
}

func reasonLabel(r Reason) string {
	switch r {
	case ReasonTrap, ReasonLateAccess, ReasonHighFrequency, ReasonRegionMismatch:
		return string(r)
	default:
		return string(ReasonOther)
	}
}

func (e *Engine) state(partnerID string) *partnerState {
	if v, ok := e.profiles.Load(partnerID); ok {
		return v.(*partnerState)
	}
	v, loaded := e.profiles.LoadOrStore(partnerID, &partnerState{traits: make(map[Trait]struct{})})
	if !loaded {
		metrics.TrackedPartners.Inc()
	}
	return v.(*partnerState)
}

func (e *Engine) lookup(partnerID string) (*partnerState, bool) {
	v, ok := e.profiles.Load(partnerID)
	if !ok {
		return nil, false
	}
	return v.(*partnerState), true
}

func (e *Engine) windowSize(partnerID string) int {
	st, ok := e.lookup(partnerID)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.window)
}

func (e *Engine) appendTrap(ev TrapEvent) {
	e.logMu.Lock()
	e.trapLog = append(e.trapLog, ev)
	e.logMu.Unlock()
}

func (e *Engine) appendAlert(a Alert) {
	e.logMu.Lock()
	e.alerts = append(e.alerts, a)
	e.logMu.Unlock()
}

// Score returns partnerID's current score, 0 for unknown partners.
func (e *Engine) Score(partnerID string) int {
	st, ok := e.lookup(partnerID)
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.score
}

// Scores returns every tracked partner's score.
func (e *Engine) Scores() map[string]int {
	out := make(map[string]int)
	e.profiles.Range(func(k, v any) bool {
		st := v.(*partnerState)
		st.mu.Lock()
		out[k.(string)] = st.score
		st.mu.Unlock()
		return true
	})
	return out
}

// Profile returns a snapshot of partnerID's profile.
func (e *Engine) Profile(partnerID string) (*Profile, bool) {
	st, ok := e.lookup(partnerID)
	if !ok {
		return nil, false
	}
	st.mu.Lock()
	p := &Profile{
		PartnerID:   partnerID,
		Score:       st.score,
		Traits:      sortedTraits(st.traits),
		TrapCount:   st.trapCount,
		Window:      append([]time.Time(nil), st.window...),
		FirstSeenAt: st.firstSeen,
	}
	st.mu.Unlock()
	if n := len(p.Window); n > 0 {
		p.LastAccess = p.Window[n-1]
	}
	p.Deception = e.deception.IsArmed(partnerID)
	p.Restricted = e.restrictions.Users(partnerID)
	return p, true
}

// Profiles returns a snapshot of every tracked partner ordered by id.
func (e *Engine) Profiles() []*Profile {
	var ids []string
	e.profiles.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	out := make([]*Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := e.Profile(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Restrictions returns a copy of the restriction ledger.
func (e *Engine) Restrictions() map[string][]string {
	return e.restrictions.Snapshot()
}

// IsRestricted reports whether userID is blocked for partnerID.
func (e *Engine) IsRestricted(partnerID, userID string) bool {
	return e.restrictions.IsRestricted(partnerID, userID)
}

// DeceptionState returns partnerID's deception state.
func (e *Engine) DeceptionState(partnerID string) deception.State {
	return e.deception.State(partnerID)
}

// ArmedPartners returns every partner in deception mode.
func (e *Engine) ArmedPartners() []deception.State {
	return e.deception.Snapshot()
}

// TrapLog returns a copy of the trap log in append order.
func (e *Engine) TrapLog() []TrapEvent {
	e.logMu.RLock()
	defer e.logMu.RUnlock()
	return append([]TrapEvent(nil), e.trapLog...)
}

// Alerts returns a copy of the partner alert log in append order.
func (e *Engine) Alerts() []Alert {
	e.logMu.RLock()
	defer e.logMu.RUnlock()
	return append([]Alert(nil), e.alerts...)
}

func sortedTraits(set map[Trait]struct{}) []Trait {
	out := make([]Trait, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
