package watermark

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

type stubConsents struct {
	denied map[string]bool
}

func (s stubConsents) Require(_ context.Context, userID string, kind consent.Kind) error {
	if s.denied[userID] {
		return fmt.Errorf("%w for %s", consent.ErrConsentDenied, kind)
	}
	return nil
}

func TestFingerprint_MatchesSHA256(t *testing.T) {
	got, err := Fingerprint("acme", "2024-01-01T00:00:00Z", "u1")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("acme|2024-01-01T00:00:00Z|u1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.Len(t, got, 64)

	again, _ := Fingerprint("acme", "2024-01-01T00:00:00Z", "u1")
	assert.Equal(t, got, again)
}

func TestFingerprint_RejectsDelimiter(t *testing.T) {
	// "a|b" + "c" and "a" + "b|c" would collide without the check.
	_, err := Fingerprint("a|b", "t", "c")
	assert.ErrorIs(t, err, ErrDelimiterInField)
	_, err = Fingerprint("a", "t", "b|c")
	assert.ErrorIs(t, err, ErrDelimiterInField)
}

func TestFingerprint_MissingField(t *testing.T) {
	_, err := Fingerprint("acme", "", "u1")
	assert.True(t, errors.Is(err, validation.ErrMissingField))
}

func TestService_ConsentDenied(t *testing.T) {
	svc := NewService(stubConsents{denied: map[string]bool{"u2": true}})

	wm, err := svc.Generate(context.Background(), "acme", "u1", "ts")
	require.NoError(t, err)
	assert.Equal(t, "acme", wm.PartnerID)

	_, err = svc.Generate(context.Background(), "acme", "u2", "ts")
	assert.ErrorIs(t, err, consent.ErrConsentDenied)
}

func TestHandler_Generate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(stubConsents{denied: map[string]bool{"u2": true}})).RegisterProtectedRoutes(r.Group(""))

	tests := []struct {
		body string
		code int
	}{
		{`{"partner_id":"acme","user_id":"u1","timestamp":"t"}`, http.StatusOK},
		{`{"partner_id":"acme","user_id":"u2","timestamp":"t"}`, http.StatusForbidden},
		{`{"partner_id":"acme","user_id":"u1"}`, http.StatusBadRequest},
		{`{"partner_id":"ac|me","user_id":"u1","timestamp":"t"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/generate_watermark", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.code, w.Code, tc.body)
	}
}
