// Package alerts records security alerts raised against files and the
// escalations users send to administrators.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/notify"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// TypeUnauthorizedAccess marks a denied access or a wrong honeytoken.
const TypeUnauthorizedAccess = "unauthorized_access"

// FileAlert is an alert addressed to a file's owner.
type FileAlert struct {
	ID          string    `json:"id"`
	FileID      string    `json:"file_id"`
	OwnerID     string    `json:"owner_id"`
	RequesterID string    `json:"requester_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
}

// Escalation is a user's request for administrator action on a partner.
type Escalation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PartnerID string    `json:"partner_id"`
	Reason    string    `json:"reason"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind notify.Kind, message string) notify.Notification
}

// Sink receives every alert after it is stored.
type Sink func(ctx context.Context, a FileAlert)

// Service stores file alerts and escalations in memory.
type Service struct {
	mu          sync.RWMutex
	alerts      []FileAlert
	escalations []Escalation

	notifier Notifier
	sinks    []Sink
	now      func() time.Time
}

// NewService creates an alert service that notifies owners through notifier.
func NewService(notifier Notifier) *Service {
	return &Service{notifier: notifier, now: time.Now}
}

// WithSink registers a sink. Call before first use.
func (s *Service) WithSink(sink Sink) *Service {
	s.sinks = append(s.sinks, sink)
	return s
}

// RecordAlert stores an alert and notifies the owner: unauthorized access
// arrives as a threat, anything else as info.
func (s *Service) RecordAlert(ctx context.Context, fileID, ownerID, requesterID, alertType, message string) FileAlert {
	a := FileAlert{
		ID:          idgen.New(),
		FileID:      fileID,
		OwnerID:     ownerID,
		RequesterID: requesterID,
		Type:        alertType,
		Message:     message,
		Timestamp:   s.now().UTC(),
	}
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()

	kind := notify.KindInfo
	if alertType == TypeUnauthorizedAccess {
		kind = notify.KindThreat
		metrics.UnauthorizedAlertsTotal.Inc()
	}
	s.notifier.Notify(ctx, ownerID, kind, message)

	for _, sink := range s.sinks {
		sink(ctx, a)
	}
	return a
}

// ForOwner returns the alerts addressed to ownerID in arrival order.
func (s *Service) ForOwner(ownerID string) []FileAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FileAlert, 0)
	for _, a := range s.alerts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out
}

// All returns every alert in arrival order.
func (s *Service) All() []FileAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FileAlert(nil), s.alerts...)
}

// MarkRead marks one of ownerID's alerts read. It reports whether the alert exists.
func (s *Service) MarkRead(ownerID, alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID && s.alerts[i].OwnerID == ownerID {
			s.alerts[i].Read = true
			return true
		}
	}
	return false
}

// Escalate records a user escalation for administrators.
func (s *Service) Escalate(_ context.Context, userID, partnerID, reason string) (Escalation, error) {
	if err := validation.RequireFields("user_id", userID, "partner_id", partnerID); err != nil {
		return Escalation{}, err
	}
	e := Escalation{
		ID:        idgen.New(),
		UserID:    userID,
		PartnerID: partnerID,
		Reason:    reason,
		Type:      "user_escalation",
		Timestamp: s.now().UTC(),
	}
	s.mu.Lock()
	s.escalations = append(s.escalations, e)
	s.mu.Unlock()
	return e, nil
}

// Escalations returns userID's escalations, or all when userID is empty.
func (s *Service) Escalations(userID string) []Escalation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Escalation, 0)
	for _, e := range s.escalations {
		if userID == "" || e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
