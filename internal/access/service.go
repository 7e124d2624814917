package access

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adityaadi07/datasentinel/internal/alerts"
	"github.com/adityaadi07/datasentinel/internal/files"
	"github.com/adityaadi07/datasentinel/internal/honeytoken"
	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/metrics"
	"github.com/adityaadi07/datasentinel/internal/notify"
	"github.com/adityaadi07/datasentinel/internal/risk"
	"github.com/adityaadi07/datasentinel/internal/syncutil"
	"github.com/adityaadi07/datasentinel/internal/traces"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Service implements the access protocol.
type Service struct {
	requests Store
	files    files.Store
	log      files.AccessLog
	notifier Notifier
	alerts   AlertSink
	scorer   Scorer
	tokens   TokenValidator

	fileLocks syncutil.ShardedMutex
	now       func() time.Time
}

// NewService wires the access protocol to its collaborators.
func NewService(requests Store, fileStore files.Store, log files.AccessLog, notifier Notifier,
	alertSink AlertSink, scorer Scorer, tokens TokenValidator) *Service {
	return &Service{
		requests: requests,
		files:    fileStore,
		log:      log,
		notifier: notifier,
		alerts:   alertSink,
		scorer:   scorer,
		tokens:   tokens,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type pendingNote struct {
	userID  string
	kind    notify.Kind
	message string
}

func (s *Service) send(ctx context.Context, notes ...pendingNote) {
	for _, n := range notes {
		s.notifier.Notify(ctx, n.userID, n.kind, n.message)
	}
}

// RequestAccess asks for access to a file. With a honeytoken the request is
// resolved immediately: a match grants access, a mismatch returns a
// *DeniedError after the owner has been alerted and the requester scored.
func (s *Service) RequestAccess(ctx context.Context, in RequestInput) (*Outcome, error) {
	if err := validation.RequireFields("file_id", in.FileID, "requester_id", in.RequesterID); err != nil {
		return nil, err
	}
	ctx, span := traces.StartSpan(ctx, "access.RequestAccess",
		traces.FileID(in.FileID), traces.UserID(in.RequesterID))
	defer span.End()

	unlock := s.fileLocks.Lock(in.FileID)
	file, err := s.files.Get(ctx, in.FileID)
	if err != nil {
		unlock()
		return nil, err
	}
	if file.IsSharedWith(in.RequesterID) {
		unlock()
		return nil, ErrAlreadyGranted
	}
	pending, err := s.requests.HasPending(ctx, in.FileID, in.RequesterID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("check pending requests: %w", err)
	}
	if pending {
		unlock()
		return nil, ErrDuplicatePending
	}

	if in.Honeytoken != "" {
		res, err := s.tokens.Validate(ctx, file, in.RequesterID, in.Honeytoken, in.IP)
		unlock()
		if err != nil {
			return nil, err
		}
		if res == honeytoken.Match {
			metrics.AccessRequestsTotal.WithLabelValues("granted").Inc()
			return &Outcome{Granted: true}, nil
		}
		metrics.AccessRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, &DeniedError{
			FileID:      file.ID,
			OwnerID:     file.OwnerID,
			RequesterID: in.RequesterID,
			Reason:      "invalid honeytoken",
		}
	}

	req := &Request{
		ID:          idgen.New(),
		FileID:      file.ID,
		Filename:    file.Filename,
		OwnerID:     file.OwnerID,
		RequesterID: in.RequesterID,
		Message:     in.Message,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	err = s.requests.Create(ctx, req)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("create access request: %w", err)
	}

	s.send(ctx, pendingNote{file.OwnerID, notify.KindInfo,
		fmt.Sprintf("Access request for %s from %s", file.Filename, in.RequesterID)})
	metrics.AccessRequestsTotal.WithLabelValues(string(StatusPending)).Inc()
	logging.L(ctx).Info("access requested", "request_id", req.ID, "file_id", file.ID, "requester_id", in.RequesterID)
	return &Outcome{Request: req}, nil
}

// Decide approves or denies a pending request. deciderID, when set, must be
// the file owner. A request that is no longer pending yields ErrInvalidState.
func (s *Service) Decide(ctx context.Context, requestID string, decision Decision, deciderID, ip string) (*Request, error) {
	if err := validation.RequireFields("request_id", requestID); err != nil {
		return nil, err
	}
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}
	ctx, span := traces.StartSpan(ctx, "access.Decide", traces.RequestID(requestID))
	defer span.End()

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock := s.fileLocks.Lock(req.FileID)
	req, err = s.requests.Get(ctx, requestID)
	if err != nil {
		unlock()
		return nil, err
	}
	if deciderID != "" && deciderID != req.OwnerID {
		unlock()
		return nil, ErrNotOwner
	}
	if !req.IsPending() {
		unlock()
		return nil, ErrInvalidState
	}

	now := s.now().UTC()
	var note pendingNote
	if decision == DecisionApprove {
		if _, err := s.files.AddSharedWith(ctx, req.FileID, req.RequesterID); err != nil {
			unlock()
			return nil, fmt.Errorf("grant access: %w", err)
		}
		if err := s.log.Append(ctx, files.AccessEntry{
			FileID:     req.FileID,
			Filename:   req.Filename,
			OwnerID:    req.OwnerID,
			AccessedBy: req.RequesterID,
			Method:     files.MethodApprovedRequest,
			IP:         ip,
			Timestamp:  now,
		}); err != nil {
			unlock()
			return nil, fmt.Errorf("log access grant: %w", err)
		}
		req.Status = StatusApproved
		note = pendingNote{req.RequesterID, notify.KindSuccess, fmt.Sprintf("Access approved for %s", req.Filename)}
	} else {
		req.Status = StatusDenied
		note = pendingNote{req.RequesterID, notify.KindWarning, fmt.Sprintf("Access denied for %s", req.Filename)}
	}
	req.ProcessedAt = &now
	err = s.requests.Update(ctx, req)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("update access request: %w", err)
	}

	s.send(ctx, note)
	metrics.AccessRequestsTotal.WithLabelValues(string(req.Status)).Inc()
	logging.L(ctx).Info("access request decided", "request_id", req.ID, "status", req.Status)
	return req, nil
}

// DirectAccess opens a file for userID. Owners and users on the share list
// get a descriptor and a log entry tagged method. Anyone else springs the
// trap: the owner is alerted, userID is scored as a trap hit against the
// owner, and a *DeniedError is returned.
func (s *Service) DirectAccess(ctx context.Context, fileID, userID, method, ip string) (*Descriptor, error) {
	if err := validation.RequireFields("file_id", fileID, "user_id", userID); err != nil {
		return nil, err
	}
	if method == "" {
		method = files.MethodLegitimate
	}
	ctx, span := traces.StartSpan(ctx, "access.DirectAccess", traces.FileID(fileID), traces.UserID(userID))
	defer span.End()

	unlock := s.fileLocks.Lock(fileID)
	defer unlock()

	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.CanAccess(userID) {
		if err := s.log.Append(ctx, files.AccessEntry{
			FileID:     file.ID,
			Filename:   file.Filename,
			OwnerID:    file.OwnerID,
			AccessedBy: userID,
			Method:     method,
			IP:         ip,
			Timestamp:  s.now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("log access: %w", err)
		}
		return &Descriptor{File: file, Method: method, DownloadURL: "/download/" + file.ID}, nil
	}

	msg := fmt.Sprintf("Unauthorized access attempt to %s by %s", file.Filename, userID)
	if method == files.MethodDownload {
		msg = fmt.Sprintf("Unauthorized download attempt for %s by %s", file.Filename, userID)
	}
	alert := s.alerts.RecordAlert(ctx, file.ID, file.OwnerID, userID, alerts.TypeUnauthorizedAccess, msg)
	if _, err := s.scorer.RecordAccess(ctx, userID, risk.ReasonTrap, file.OwnerID); err != nil {
		return nil, fmt.Errorf("score unauthorized access: %w", err)
	}
	logging.L(ctx).Warn("unauthorized file access", "file_id", file.ID, "user_id", userID, "owner_id", file.OwnerID)
	return nil, &DeniedError{
		FileID:      file.ID,
		OwnerID:     file.OwnerID,
		RequesterID: userID,
		AlertID:     alert.ID,
		Reason:      "not owner or shared",
	}
}

// ListRequests returns the requests addressed to ownerID, oldest first.
func (s *Service) ListRequests(ctx context.Context, ownerID string) ([]*Request, error) {
	if err := validation.RequireFields("user_id", ownerID); err != nil {
		return nil, err
	}
	return s.requests.ListByOwner(ctx, ownerID)
}

// SentRequests returns the requests made by requesterID, oldest first.
func (s *Service) SentRequests(ctx context.Context, requesterID string) ([]*Request, error) {
	if err := validation.RequireFields("user_id", requesterID); err != nil {
		return nil, err
	}
	return s.requests.ListByRequester(ctx, requesterID)
}

// PartnerFiles lists the files of every other owner as userID sees them.
func (s *Service) PartnerFiles(ctx context.Context, userID string) ([]OwnerFiles, error) {
	if err := validation.RequireFields("user_id", userID); err != nil {
		return nil, err
	}
	all, err := s.files.List(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := s.requests.ListByRequester(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]bool)
	for _, r := range sent {
		if r.IsPending() {
			pending[r.FileID] = true
		}
	}

	byOwner := make(map[string][]PartnerFile)
	for _, f := range all {
		if f.OwnerID == userID {
			continue
		}
		byOwner[f.OwnerID] = append(byOwner[f.OwnerID], PartnerFile{
			File:           f,
			HasAccess:      f.IsSharedWith(userID),
			PendingRequest: pending[f.ID],
		})
	}

	out := make([]OwnerFiles, 0, len(byOwner))
	for owner, list := range byOwner {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		out = append(out, OwnerFiles{OwnerID: owner, Files: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}
