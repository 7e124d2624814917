// Package deception tracks which partners have been switched into deception
// mode. A partner is Unarmed until its risk score first crosses the deception
// threshold; Armed is terminal.
package deception

import (
	"sort"
	"sync"
	"time"
)

// EventActivated is the alert event emitted on the Unarmed -> Armed transition.
const EventActivated = "deception_mode_activated"

// State is a point-in-time view of one partner's deception mode.
type State struct {
	PartnerID string     `json:"partner_id"`
	Armed     bool       `json:"armed"`
	ArmedAt   *time.Time `json:"armed_at,omitempty"`
}

// Machine holds the deception state of every partner that has been armed.
// Partners never armed have no entry and report the zero State.
type Machine struct {
	mu    sync.RWMutex
	armed map[string]time.Time
}

// NewMachine returns a Machine with every partner unarmed.
func NewMachine() *Machine {
	return &Machine{armed: make(map[string]time.Time)}
}

// Activate arms partnerID at time at. It reports true only for the call that
// performed the transition; the caller emits EventActivated exactly then.
func (m *Machine) Activate(partnerID string, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.armed[partnerID]; ok {
		return false
	}
	m.armed[partnerID] = at
	return true
}

// State returns the current deception state of partnerID.
func (m *Machine) State(partnerID string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.armed[partnerID]
	if !ok {
		return State{PartnerID: partnerID}
	}
	return State{PartnerID: partnerID, Armed: true, ArmedAt: &at}
}

// IsArmed reports whether partnerID is in deception mode.
func (m *Machine) IsArmed(partnerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.armed[partnerID]
	return ok
}

// Snapshot returns every armed partner ordered by partner id.
func (m *Machine) Snapshot() []State {
	m.mu.RLock()
	out := make([]State, 0, len(m.armed))
	for id, at := range m.armed {
		at := at
		out = append(out, State{PartnerID: id, Armed: true, ArmedAt: &at})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PartnerID < out[j].PartnerID })
	return out
}
