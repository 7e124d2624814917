// Package partners serves partner requests for user data.
//
// Every requested user is appended to the access history. A user whose
// policy pins them to another region costs the partner a region_mismatch;
// a request with no mismatch is classified like any other partner access.
// Users restricted for the partner are withheld, and a partner in deception
// mode receives fabricated records in place of real ones.
package partners

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/deception"
	"github.com/adityaadi07/datasentinel/internal/honeytoken"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/risk"
	"github.com/adityaadi07/datasentinel/internal/traces"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// DataEndpoint is the endpoint name partner data requests are classified under.
const DataEndpoint = "/partner_request_data"

// MaxUsersPerRequest bounds one request's user list.
const MaxUsersPerRequest = 500

var ErrTooManyUsers = errors.New("too many requested users")

// DataRequest asks for a set of users' data.
type DataRequest struct {
	PartnerID string   `json:"partner_id"`
	Region    string   `json:"region"`
	Users     []string `json:"requested_users"`
	Purpose   string   `json:"purpose"`
	IP        string   `json:"-"`
}

// Record is one user record handed to a partner.
type Record struct {
	RecordID string `json:"record_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Region   string `json:"region,omitempty"`
}

// DataResponse is what a partner receives.
type DataResponse struct {
	PartnerID string   `json:"partner_id"`
	Users     []string `json:"users"`
	Withheld  []string `json:"withheld,omitempty"`
	Records   []Record `json:"records"`
}

// HistoryEntry records one user requested by one partner.
type HistoryEntry struct {
	PartnerID string    `json:"partner"`
	UserID    string    `json:"user"`
	Purpose   string    `json:"purpose,omitempty"`
	Region    string    `json:"region"`
	IP        string    `json:"ip,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Directory looks up user consent records.
type Directory interface {
	Get(ctx context.Context, userID string) (*consent.User, error)
}

// RiskEngine is the slice of the risk engine partner requests need.
type RiskEngine interface {
	RecordAccess(ctx context.Context, partnerID string, reason risk.Reason, userID string) (int, error)
	ClassifyAccess(ctx context.Context, partnerID, endpoint, userID string) (int, error)
	IsRestricted(partnerID, userID string) bool
	DeceptionState(partnerID string) deception.State
}

// Synthesizer fabricates records.
type Synthesizer interface {
	Synthetic(n int) []honeytoken.SyntheticRecord
}

// Service handles partner data requests.
type Service struct {
	directory Directory
	engine    RiskEngine
	synth     Synthesizer

	mu      sync.RWMutex
	history []HistoryEntry
	now     func() time.Time
}

// NewService creates a partner data service.
func NewService(directory Directory, engine RiskEngine, synth Synthesizer) *Service {
	return &Service{directory: directory, engine: engine, synth: synth, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RequestData serves one partner data request.
func (s *Service) RequestData(ctx context.Context, req DataRequest) (*DataResponse, error) {
	users := dedupe(req.Users)
	if err := validation.RequireFields("partner_id", req.PartnerID, "region", req.Region); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, validation.Missing("requested_users")
	}
	if len(users) > MaxUsersPerRequest {
		return nil, ErrTooManyUsers
	}
	checks := []func() *validation.ValidationError{validation.ValidID("partner_id", req.PartnerID)}
	for _, u := range users {
		checks = append(checks, validation.ValidID("requested_users", u))
	}
	if errs := validation.Validate(checks...); len(errs) > 0 {
		return nil, errs
	}

	ctx = logging.WithPartner(ctx, req.PartnerID)
	ctx, span := traces.StartSpan(ctx, "partners.RequestData", traces.PartnerID(req.PartnerID))
	defer span.End()

	now := s.now().UTC()
	s.mu.Lock()
	for _, u := range users {
		s.history = append(s.history, HistoryEntry{
			PartnerID: req.PartnerID,
			UserID:    u,
			Purpose:   req.Purpose,
			Region:    req.Region,
			IP:        req.IP,
			Timestamp: now,
		})
	}
	s.mu.Unlock()

	profiles := make(map[string]*consent.User, len(users))
	mismatches := 0
	for _, u := range users {
		user, err := s.directory.Get(ctx, u)
		if err != nil {
			if !errors.Is(err, consent.ErrUserNotFound) {
				return nil, err
			}
			continue
		}
		profiles[u] = user
		if user.GeoRestriction != "" && !strings.EqualFold(user.GeoRestriction, req.Region) {
			mismatches++
			if _, err := s.engine.RecordAccess(ctx, req.PartnerID, risk.ReasonRegionMismatch, u); err != nil {
				return nil, err
			}
		}
	}
	if mismatches == 0 {
		if _, err := s.engine.ClassifyAccess(ctx, req.PartnerID, DataEndpoint, ""); err != nil {
			return nil, err
		}
	}

	resp := &DataResponse{PartnerID: req.PartnerID, Users: make([]string, 0, len(users)), Records: []Record{}}
	for _, u := range users {
		if s.engine.IsRestricted(req.PartnerID, u) {
			resp.Withheld = append(resp.Withheld, u)
			continue
		}
		resp.Users = append(resp.Users, u)
	}

	if s.engine.DeceptionState(req.PartnerID).Armed {
		fakes := s.synth.Synthetic(len(resp.Users))
		for i, u := range resp.Users {
			resp.Records = append(resp.Records, Record{
				RecordID: fakes[i].RecordID,
				UserID:   u,
				Name:     fakes[i].Name,
				Email:    fakes[i].Email,
				Region:   fakes[i].Region,
			})
		}
		metrics.PartnerDataRequestsTotal.WithLabelValues("deceived").Inc()
		logging.L(ctx).Warn("served synthetic records to partner in deception mode", "records", len(resp.Records))
		return resp, nil
	}

	for _, u := range resp.Users {
		user, ok := profiles[u]
		if !ok {
			continue
		}
		resp.Records = append(resp.Records, Record{
			RecordID: idgen.New(),
			UserID:   u,
			Name:     user.Username,
			Region:   user.GeoRestriction,
		})
	}
	metrics.PartnerDataRequestsTotal.WithLabelValues("served").Inc()
	logging.L(ctx).Info("partner data request served",
		"users", len(resp.Users), "withheld", len(resp.Withheld), "region_mismatches", mismatches)
	return resp, nil
}

// BulkRequest serves several requests in order. The result is keyed by
// partner; a later request for the same partner replaces an earlier one.
// Invalid entries are skipped and reported in the error slice.
func (s *Service) BulkRequest(ctx context.Context, reqs []DataRequest) (map[string]*DataResponse, []error) {
	out := make(map[string]*DataResponse, len(reqs))
	var errs []error
	for _, req := range reqs {
		resp, err := s.RequestData(ctx, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[req.PartnerID] = resp
	}
	return out, errs
}

// History returns the access history, optionally filtered by partner and user.
func (s *Service) History(partnerID, userID string) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, 0)
	for _, h := range s.history {
		if partnerID != "" && h.PartnerID != partnerID {
			continue
		}
		if userID != "" && h.UserID != userID {
			continue
		}
		out = append(out, h)
	}
	return out
}

// PartnersOf returns the partners that have requested userID, sorted.
func (s *Service) PartnersOf(userID string) []string {
	seen := make(map[string]struct{})
	for _, h := range s.History("", userID) {
		seen[h.PartnerID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
