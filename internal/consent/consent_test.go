package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/validation"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	store.SeedDemoUsers("IN")
	svc := NewService(store, "IN").WithClock(func() time.Time {
		return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	})
	return svc, store
}

func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestFlags_KnownAndUnknownUsers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	flags, err := svc.Flags(ctx, "aditya123")
	require.NoError(t, err)
	assert.Equal(t, AllGranted, flags)

	flags, err = svc.Flags(ctx, "stranger")
	require.NoError(t, err)
	assert.Equal(t, AllGranted, flags)
}

func TestRequire_DeniedAfterUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateConsent(ctx, "ace277", Update{Honeytoken: boolPtr(false)})
	require.NoError(t, err)

	err = svc.Require(ctx, "ace277", KindHoneytoken)
	assert.True(t, errors.Is(err, ErrConsentDenied))
	assert.NoError(t, svc.Require(ctx, "ace277", KindWatermark))
}

func TestUpdateConsent_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpdateConsent(ctx, "ghost", Update{Policy: boolPtr(false)})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.UpdateConsent(ctx, "ace277", Update{ExpiryDate: strPtr("next tuesday")})
	assert.ErrorIs(t, err, ErrInvalidConsent)
}

func TestGeneratePolicy_StoresExpiryAndRegion(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	policy, err := svc.GeneratePolicy(ctx, PolicyRequest{UserID: "tulya343", Purpose: "analytics", DaysValid: intPtr(30), Region: "eu"})
	require.NoError(t, err)
	assert.Equal(t, "analytics", policy.Purpose)
	assert.Equal(t, "2024-04-09", policy.ExpiryDate)
	assert.Equal(t, RetentionStandard, policy.RetentionPolicy)
	assert.Equal(t, "EU", policy.GeoRestriction)

	u, err := store.Get(ctx, "tulya343")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-09", u.ExpiryDate)
	assert.Equal(t, "EU", u.GeoRestriction)
	assert.Equal(t, "EU", svc.GeoRestriction(ctx, "tulya343"))
	assert.Equal(t, "IN", svc.GeoRestriction(ctx, "stranger"))
}

func TestGeneratePolicy_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.GeneratePolicy(ctx, PolicyRequest{UserID: "tulya343", Purpose: "x", Region: "IN"})
	var mfe *validation.MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "days_valid", mfe.Field)

	_, err = svc.GeneratePolicy(ctx, PolicyRequest{UserID: "tulya343", Purpose: "x", Region: "IN", DaysValid: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = svc.UpdateConsent(ctx, "tulya343", Update{Policy: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.GeneratePolicy(ctx, PolicyRequest{UserID: "tulya343", Purpose: "x", Region: "IN", DaysValid: intPtr(1)})
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	_, store := newTestService()
	ctx := context.Background()

	u, err := store.Get(ctx, "aditya123")
	require.NoError(t, err)
	u.Username = "mutated"

	again, _ := store.Get(ctx, "aditya123")
	assert.Equal(t, "Aditya Ankanath", again.Username)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, "ace277", users[0].ID)
}
