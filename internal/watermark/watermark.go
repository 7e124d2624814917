// Package watermark derives per-partner fingerprints for shared records.
package watermark

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Delimiter separates the fingerprinted fields.
const Delimiter = "|"

// ErrDelimiterInField is returned when a field contains Delimiter, which
// would make two different inputs hash alike.
var ErrDelimiterInField = errors.New("field contains the watermark delimiter")

// Fingerprint returns the SHA-256 hex digest of partner|timestamp|user.
func Fingerprint(partnerID, timestamp, userID string) (string, error) {
	if err := validation.RequireFields("partner_id", partnerID, "user_id", userID, "timestamp", timestamp); err != nil {
		return "", err
	}
	for name, v := range map[string]string{"partner_id": partnerID, "timestamp": timestamp, "user_id": userID} {
		if strings.Contains(v, Delimiter) {
			return "", fmt.Errorf("%w: %s", ErrDelimiterInField, name)
		}
	}
	sum := sha256.Sum256([]byte(partnerID + Delimiter + timestamp + Delimiter + userID))
	return hex.EncodeToString(sum[:]), nil
}

// Watermark is a generated fingerprint with its inputs.
type Watermark struct {
	Watermark string `json:"watermark"`
	PartnerID string `json:"partner_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// Consents answers consent questions.
type Consents interface {
	Require(ctx context.Context, userID string, kind consent.Kind) error
}

// Service issues watermarks for consenting users.
type Service struct {
	consents Consents
}

// NewService creates a watermark service.
func NewService(consents Consents) *Service {
	return &Service{consents: consents}
}

// Generate fingerprints a record shared with partnerID.
func (s *Service) Generate(ctx context.Context, partnerID, userID, timestamp string) (*Watermark, error) {
	fp, err := Fingerprint(partnerID, timestamp, userID)
	if err != nil {
		return nil, err
	}
	if err := s.consents.Require(ctx, userID, consent.KindWatermark); err != nil {
		return nil, err
	}
	return &Watermark{Watermark: fp, PartnerID: partnerID, UserID: userID, Timestamp: timestamp}, nil
}
