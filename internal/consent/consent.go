// Package consent holds user records with their consent flags and the usage
// policies generated for them.
package consent

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrConsentDenied  = errors.New("consent denied")
	ErrInvalidDays    = errors.New("days_valid must be between 0 and 3650")
	ErrInvalidConsent = errors.New("invalid consent update")
)

// Kind names one consent flag.
type Kind string

const (
	KindWatermark  Kind = "watermark"
	KindPolicy     Kind = "policy"
	KindHoneytoken Kind = "honeytoken"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RetentionStandard is the retention policy attached to generated policies.
const RetentionStandard = "standard"

const maxDaysValid = 3650

// Flags are a user's per-feature consents.
type Flags struct {
	Watermark  bool `json:"watermark"`
	Policy     bool `json:"policy"`
	Honeytoken bool `json:"honeytoken"`
}

// Allows reports whether the flag for kind is set.
func (f Flags) Allows(kind Kind) bool {
	switch kind {
	case KindWatermark:
		return f.Watermark
	case KindPolicy:
		return f.Policy
	case KindHoneytoken:
		return f.Honeytoken
	default:
		return false
	}
}

// AllGranted is the consent assumed for users the store does not know.
var AllGranted = Flags{Watermark: true, Policy: true, Honeytoken: true}

// User is a data subject known to the sentinel.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Role           string `json:"role"`
	Flags
	ExpiryDate     string `json:"expiry_date"`
	GeoRestriction string `json:"geo_restriction"`
}

// Policy is a generated usage policy.
type Policy struct {
	Purpose         string `json:"purpose"`
	ExpiryDate      string `json:"expiry_date"`
	RetentionPolicy string `json:"retention_policy"`
	GeoRestriction  string `json:"geo_restriction"`
}

// PolicyRequest asks for a usage policy on behalf of a user.
type PolicyRequest struct {
	UserID    string `json:"user_id"`
	Purpose   string `json:"purpose"`
	DaysValid *int   `json:"days_valid"`
	Region    string `json:"region"`
}

// Update is a partial consent update. Nil fields are left unchanged.
type Update struct {
	Watermark  *bool   `json:"watermark,omitempty"`
	Policy     *bool   `json:"policy,omitempty"`
	Honeytoken *bool   `json:"honeytoken,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
}

// Store persists users.
type Store interface {
	Get(ctx context.Context, userID string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Put(ctx context.Context, user *User) error
}

// FormatDate renders a policy expiry date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
