// Package access implements the request/approve/deny protocol that gates
// shared files, and the direct access path that springs the file trap.
//
// A request is pending until its owner approves or denies it; both outcomes
// are terminal. A requester holding the file's honeytoken skips the queue:
// the token is judged on the spot and either grants access or is scored as
// a trap hit. Every mutation of one file's share list or of the requests
// for that file runs under the file's lock.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/files"
	"github.com/adityaadi07/datasentinel/internal/honeytoken"
	"github.com/adityaadi07/datasentinel/internal/notify"
	"github.com/adityaadi07/datasentinel/internal/risk"
)

var (
	ErrNotFound         = errors.New("access request not found")
	ErrInvalidState     = errors.New("access request already processed")
	ErrAlreadyGranted   = errors.New("access already granted")
	ErrDuplicatePending = errors.New("request already pending")
	ErrAccessDenied     = errors.New("access denied")
	ErrInvalidDecision  = errors.New("decision must be approve or deny")
	ErrNotOwner         = errors.New("only the file owner can decide this request")
)

// DeniedError reports a denial that has already raised an alert and scored
// the requester. It unwraps to ErrAccessDenied.
type DeniedError struct {
	FileID      string
	OwnerID     string
	RequesterID string
	AlertID     string
	Reason      string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied to %s for %s: %s", e.FileID, e.RequesterID, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrAccessDenied }

// Status is the state of an access request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Decision is an owner's answer to a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// ParseDecision validates a decision string.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionDeny:
		return Decision(s), nil
	}
	return "", ErrInvalidDecision
}

// Request asks a file owner for access.
type Request struct {
	ID          string     `json:"id"`
	FileID      string     `json:"file_id"`
	Filename    string     `json:"filename"`
	OwnerID     string     `json:"owner_id"`
	RequesterID string     `json:"requester_id"`
	Message     string     `json:"message,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"timestamp"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// IsPending reports whether the request still awaits a decision.
func (r *Request) IsPending() bool { return r.Status == StatusPending }

// RequestInput is the input of RequestAccess.
type RequestInput struct {
	FileID      string `json:"file_id"`
	RequesterID string `json:"requester_id"`
	Message     string `json:"message"`
	Honeytoken  string `json:"honeytoken"`
	IP          string `json:"-"`
}

// Outcome is the result of RequestAccess: either a pending request or an
// immediate honeytoken grant.
type Outcome struct {
	Request *Request `json:"request,omitempty"`
	Granted bool     `json:"access"`
}

// Descriptor describes a granted direct access.
type Descriptor struct {
	File        *files.File `json:"file"`
	Method      string      `json:"method"`
	DownloadURL string      `json:"download_url"`
}

// PartnerFile is a file of another owner as seen by one user.
type PartnerFile struct {
	*files.File
	HasAccess      bool `json:"has_access"`
	PendingRequest bool `json:"pending_request"`
}

// OwnerFiles groups PartnerFiles by owner.
type OwnerFiles struct {
	OwnerID string        `json:"owner_id"`
	Files   []PartnerFile `json:"files"`
}

// Store persists access requests.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, r *Request) error
	HasPending(ctx context.Context, fileID, requesterID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Request, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*Request, error)
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind notify.Kind, message string) notify.Notification
}

// AlertSink records alerts addressed to file owners.
type AlertSink interface {
	RecordAlert(ctx context.Context, fileID, ownerID, requesterID, alertType, message string) alerts.FileAlert
}

// Scorer records classified partner accesses.
type Scorer interface {
	RecordAccess(ctx context.Context, partnerID string, reason risk.Reason, userID string) (int, error)
}

// TokenValidator judges presented honeytokens.
type TokenValidator interface {
	Validate(ctx context.Context, file *files.File, requesterID, presented, ip string) (honeytoken.Result, error)
}
