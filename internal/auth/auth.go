// Package auth checks the shared secret every sentinel client presents.
//
// Authentication model:
//   - /health, /metrics and /login: no auth required
//   - everything else: X-API-Key must match the configured shared secret
//   - /admin: additionally X-Admin-Secret when an admin secret is configured
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
)

// Errors
var (
	ErrNoAPIKey      = errors.New("API key required")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Secret holds the digest of a shared secret. The raw value is not retained.
type Secret struct {
	digest [sha256.Size]byte
	empty  bool
}

// NewSecret wraps raw. An empty raw secret matches nothing.
func NewSecret(raw string) *Secret {
	return &Secret{digest: sha256.Sum256([]byte(raw)), empty: raw == ""}
}

// Configured reports whether a non-empty secret was set.
func (s *Secret) Configured() bool {
	return s != nil && !s.empty
}

// Check compares presented against the secret in constant time.
func (s *Secret) Check(presented string) error {
	if presented == "" {
		return ErrNoAPIKey
	}
	if !s.Configured() {
		return ErrInvalidAPIKey
	}
	d := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(d[:], s.digest[:]) != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}

// presentedKey extracts a key from an X-API-Key or Authorization header.
func presentedKey(apiKeyHeader, authorization string) string {
	if apiKeyHeader != "" {
		return strings.TrimSpace(apiKeyHeader)
	}
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		return strings.TrimSpace(authorization[7:])
	}
	return authorization
}
