package consent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adityaadi07/datasentinel/internal/syncutil"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Service answers consent questions and generates usage policies.
type Service struct {
	store         Store
	defaultRegion string
	locks         syncutil.ShardedMutex
	now           func() time.Time
}

// NewService creates a consent service. defaultRegion is the geo restriction
// reported for users without a policy.
func NewService(store Store, defaultRegion string) *Service {
	return &Service{store: store, defaultRegion: defaultRegion, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Flags returns a user's consents. Unknown users are treated as consenting.
func (s *Service) Flags(ctx context.Context, userID string) (Flags, error) {
	u, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return AllGranted, nil
	}
	if err != nil {
		return Flags{}, err
	}
	return u.Flags, nil
}

// Require returns ErrConsentDenied unless userID consents to kind.
func (s *Service) Require(ctx context.Context, userID string, kind Kind) error {
	flags, err := s.Flags(ctx, userID)
	if err != nil {
		return err
	}
	if !flags.Allows(kind) {
		return fmt.Errorf("%w for %s", ErrConsentDenied, kind)
	}
	return nil
}

// GeoRestriction returns the region a user's data is restricted to.
func (s *Service) GeoRestriction(ctx context.Context, userID string) string {
	u, err := s.store.Get(ctx, userID)
	if err != nil || u.GeoRestriction == "" {
		return s.defaultRegion
	}
	return u.GeoRestriction
}

// Get returns a user.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.store.Get(ctx, userID)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// UpdateConsent applies a partial update to a user's consents.
func (s *Service) UpdateConsent(ctx context.Context, userID string, upd Update) (*User, error) {
	if upd.ExpiryDate != nil {
		if _, err := time.Parse(time.DateOnly, *upd.ExpiryDate); err != nil {
			return nil, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD", ErrInvalidConsent)
		}
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Watermark != nil {
		u.Watermark = *upd.Watermark
	}
	if upd.Policy != nil {
		u.Policy = *upd.Policy
	}
	if upd.Honeytoken != nil {
		u.Honeytoken = *upd.Honeytoken
	}
	if upd.ExpiryDate != nil {
		u.ExpiryDate = *upd.ExpiryDate
	}
	if err := s.store.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GeneratePolicy builds a usage policy and stores its expiry and region on
// the user's record.
func (s *Service) GeneratePolicy(ctx context.Context, req PolicyRequest) (*Policy, error) {
	if err := validation.RequireFields("user_id", req.UserID, "purpose", req.Purpose, "region", req.Region); err != nil {
		return nil, err
	}
	if req.DaysValid == nil {
		return nil, validation.Missing("days_valid")
	}
	days := *req.DaysValid
	if days < 0 || days > maxDaysValid {
		return nil, ErrInvalidDays
	}
	if err := s.Require(ctx, req.UserID, KindPolicy); err != nil {
		return nil, err
	}

	policy := &Policy{
		Purpose:         req.Purpose,
		ExpiryDate:      FormatDate(s.now().AddDate(0, 0, days)),
		RetentionPolicy: RetentionStandard,
		GeoRestriction:  strings.ToUpper(strings.TrimSpace(req.Region)),
	}

	unlock := s.locks.Lock(req.UserID)
	defer unlock()
	u, err := s.store.Get(ctx, req.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return policy, nil
	}
	if err != nil {
		return nil, err
	}
	u.ExpiryDate = policy.ExpiryDate
	u.GeoRestriction = policy.GeoRestriction
	if err := s.store.Put(ctx, u); err != nil {
		return nil, err
	}
	return policy, nil
}
