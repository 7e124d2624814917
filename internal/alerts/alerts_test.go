package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/notify"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

func TestRecordAlert_NotifiesOwner(t *testing.T) {
	inbox := notify.NewInbox()
	var sunk []FileAlert
	svc := NewService(inbox).WithSink(func(_ context.Context, a FileAlert) { sunk = append(sunk, a) })
	ctx := context.Background()

	a := svc.RecordAlert(ctx, "file_001", "aditya123", "ace277", TypeUnauthorizedAccess, "Unauthorized access attempt")
	assert.NotEmpty(t, a.ID)
	svc.RecordAlert(ctx, "file_003", "ace277", "tulya343", "access_requested", "Access request")

	require.Len(t, svc.ForOwner("aditya123"), 1)
	assert.Len(t, svc.All(), 2)
	assert.Len(t, sunk, 2)

	notes := inbox.List("aditya123")
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindThreat, notes[0].Kind)

	notes = inbox.List("ace277")
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindInfo, notes[0].Kind)
}

func TestMarkRead_OnlyOwner(t *testing.T) {
	svc := NewService(notify.NewInbox())
	a := svc.RecordAlert(context.Background(), "f", "owner", "r", TypeUnauthorizedAccess, "m")

	assert.False(t, svc.MarkRead("someone-else", a.ID))
	assert.True(t, svc.MarkRead("owner", a.ID))
	assert.True(t, svc.ForOwner("owner")[0].Read)
}

func TestEscalate(t *testing.T) {
	svc := NewService(notify.NewInbox())
	ctx := context.Background()

	_, err := svc.Escalate(ctx, "u1", "", "spam")
	assert.ErrorIs(t, err, validation.ErrMissingField)

	e, err := svc.Escalate(ctx, "u1", "acme", "too many requests")
	require.NoError(t, err)
	assert.Equal(t, "user_escalation", e.Type)
	assert.Len(t, svc.Escalations("u1"), 1)
	assert.Empty(t, svc.Escalations("u2"))
	assert.Len(t, svc.Escalations(""), 1)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(notify.NewInbox())
	svc.RecordAlert(context.Background(), "f", "owner", "r", TypeUnauthorizedAccess, "m")

	r := gin.New()
	h := NewHandler(svc)
	h.RegisterFileRoutes(r.Group(""))
	h.RegisterEscalationRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/file-alerts", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/file-alerts?user_id=owner", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/request_admin_action", strings.NewReader(`{"user_id":"u1","partner_id":"acme","reason":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts/u1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}
