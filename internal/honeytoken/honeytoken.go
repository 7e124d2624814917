// Package honeytoken issues synthetic trap records and judges the honeytoken
// codes presented for files.
//
// A correct code grants access to the file and may be reused. A wrong code is
// treated as a trap: the file owner is alerted and the presenter is scored
// as a trap hit with the owner as the affected user.
package honeytoken

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/files"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/risk"
	"github.com/adityaadi07/datasentinel/internal/traces"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Result is the outcome of presenting a honeytoken for a file.
type Result int

const (
	Mismatch Result = iota
	Match
)

func (r Result) String() string {
	if r == Match {
		return "match"
	}
	return "mismatch"
}

// Token is a synthetic identity handed out as bait.
type Token struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	RecordID  string    `json:"record_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SyntheticRecord is a fabricated data subject served to partners in
// deception mode.
type SyntheticRecord struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Region   string `json:"region"`
	RecordID string `json:"record_id"`
}

// Consents answers consent questions.
type Consents interface {
	Require(ctx context.Context, userID string, kind consent.Kind) error
}

// SharedWith grants a user access to a file.
type SharedWith interface {
	AddSharedWith(ctx context.Context, fileID, userID string) (bool, error)
}

// AccessLog records grants.
type AccessLog interface {
	Append(ctx context.Context, entry files.AccessEntry) error
}

// AlertSink records alerts addressed to file owners.
type AlertSink interface {
	RecordAlert(ctx context.Context, fileID, ownerID, requesterID, alertType, message string) alerts.FileAlert
}

// Scorer records classified partner accesses.
type Scorer interface {
	RecordAccess(ctx context.Context, partnerID string, reason risk.Reason, userID string) (int, error)
}

// Controller issues and validates honeytokens.
type Controller struct {
	consents Consents
	files    SharedWith
	log      AccessLog
	alerts   AlertSink
	scorer   Scorer

	fakeMu sync.Mutex
	faker  *gofakeit.Faker
	now    func() time.Time
}

// NewController wires a controller to its collaborators.
func NewController(consents Consents, files SharedWith, log AccessLog, alerts AlertSink, scorer Scorer) *Controller {
	return &Controller{
		consents: consents,
		files:    files,
		log:      log,
		alerts:   alerts,
		scorer:   scorer,
		faker:    gofakeit.New(0),
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Issue fabricates a honeytoken record for userID. It has no risk effect;
// callers that serve it to a partner classify that access separately.
func (c *Controller) Issue(ctx context.Context, userID string) (*Token, error) {
	if err := validation.RequireFields("user_id", userID); err != nil {
		return nil, err
	}
	if err := c.consents.Require(ctx, userID, consent.KindHoneytoken); err != nil {
		return nil, err
	}

	c.fakeMu.Lock()
	name, email := c.faker.Name(), c.faker.Email()
	c.fakeMu.Unlock()

	metrics.HoneytokensIssuedTotal.Inc()
	return &Token{
		Name:      name,
		Email:     email,
		RecordID:  idgen.New(),
		UserID:    userID,
		Timestamp: c.now().UTC(),
	}, nil
}

// Synthetic fabricates n records to serve instead of real user data.
func (c *Controller) Synthetic(n int) []SyntheticRecord {
	out := make([]SyntheticRecord, 0, n)
	c.fakeMu.Lock()
	defer c.fakeMu.Unlock()
	for i := 0; i < n; i++ {
		out = append(out, SyntheticRecord{
			Name:     c.faker.Name(),
			Email:    c.faker.Email(),
			Phone:    c.faker.Phone(),
			Region:   c.faker.Country(),
			RecordID: idgen.New(),
		})
	}
	return out
}

// Validate judges presented against the file's honeytoken on behalf of
// requesterID. The caller serializes calls per file.
//
// Match adds the requester to the share list (idempotently) and logs a
// honeytoken grant. Mismatch alerts the owner, then scores the requester as
// a trap hit against the owner; the returned error is only set when one of
// those collaborators fails.
func (c *Controller) Validate(ctx context.Context, file *files.File, requesterID, presented, ip string) (Result, error) {
	ctx, span := traces.StartSpan(ctx, "honeytoken.Validate",
		traces.FileID(file.ID), traces.UserID(requesterID))
	defer span.End()

	if presented != "" && file.Honeytoken != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(file.Honeytoken)) == 1 {
		if _, err := c.files.AddSharedWith(ctx, file.ID, requesterID); err != nil {
			return Match, fmt.Errorf("grant honeytoken access: %w", err)
		}
		if err := c.log.Append(ctx, files.AccessEntry{
			FileID:     file.ID,
			Filename:   file.Filename,
			OwnerID:    file.OwnerID,
			AccessedBy: requesterID,
			Method:     files.MethodHoneytoken,
			IP:         ip,
			Timestamp:  c.now().UTC(),
		}); err != nil {
			return Match, fmt.Errorf("log honeytoken grant: %w", err)
		}
		metrics.HoneytokenValidationsTotal.WithLabelValues(Match.String()).Inc()
		logging.L(ctx).Info("honeytoken accepted", "file_id", file.ID, "requester_id", requesterID)
		return Match, nil
	}

	metrics.HoneytokenValidationsTotal.WithLabelValues(Mismatch.String()).Inc()
	c.alerts.RecordAlert(ctx, file.ID, file.OwnerID, requesterID, alerts.TypeUnauthorizedAccess,
		fmt.Sprintf("Invalid honeytoken attempt for %s by %s", file.Filename, requesterID))
	if _, err := c.scorer.RecordAccess(ctx, requesterID, risk.ReasonTrap, file.OwnerID); err != nil {
		return Mismatch, fmt.Errorf("score honeytoken mismatch: %w", err)
	}
	logging.L(ctx).Warn("honeytoken mismatch", "file_id", file.ID, "requester_id", requesterID, "owner_id", file.OwnerID)
	return Mismatch, nil
}
