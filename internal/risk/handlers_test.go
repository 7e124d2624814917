package risk

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(e).RegisterAdminRoutes(r.Group("/admin"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandler_RecordEventAndSummary(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)

	w, body := doJSON(t, r, http.MethodPost, "/admin/risk/events", RecordEventRequest{PartnerID: "acme", Reason: ReasonTrap, UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(80), body["score"])

	w, body = doJSON(t, r, http.MethodGet, "/admin/partner_activity_summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
	partners := body["partners"].([]any)
	first := partners[0].(map[string]any)
	assert.Equal(t, "acme", first["partner_id"])
	assert.Equal(t, true, first["deception_mode"])
}

func TestHandler_RecordEventMissingPartner(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)

	w, body := doJSON(t, r, http.MethodPost, "/admin/risk/events", RecordEventRequest{Reason: ReasonTrap})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_field", body["error"])
}

func TestHandler_GetPartner(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)

	w, _ := doJSON(t, r, http.MethodGet, "/admin/partners/acme", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	record(t, e, "acme", ReasonRegionMismatch, "")
	w, body := doJSON(t, r, http.MethodGet, "/admin/partners/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := body["profile"].(map[string]any)
	assert.Equal(t, float64(20), profile["score"])
}

func TestHandler_TrapLogsPaged(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)
	for i := 0; i < 3; i++ {
		record(t, e, "acme", ReasonTrap, "u1")
	}
	record(t, e, "other", ReasonTrap, "")

	w, body := doJSON(t, r, http.MethodGet, "/admin/trap_logs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, true, body["has_more"])

	w, body = doJSON(t, r, http.MethodGet, "/admin/trap_logs?partner_id=other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, _ = doJSON(t, r, http.MethodGet, "/admin/trap_logs?cursor=bogus!!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RestrictedAndDeception(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)
	for i := 0; i < 3; i++ {
		record(t, e, "acme", ReasonTrap, "u1")
	}

	w, body := doJSON(t, r, http.MethodGet, "/admin/restricted_partners_detailed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := body["restricted_partners"].([]any)
	require.Len(t, list, 1)
	entry := list[0].(map[string]any)
	assert.Equal(t, []any{"u1"}, entry["blocked_users"])

	w, body = doJSON(t, r, http.MethodGet, "/admin/deception/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["deception"].(map[string]any)["armed"])

	w, body = doJSON(t, r, http.MethodGet, "/admin/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestHandler_Classify(t *testing.T) {
	e, _ := newTestEngine(noon)
	r := setupRouter(e)

	w, body := doJSON(t, r, http.MethodPost, "/admin/risk/classify", ClassifyRequest{PartnerID: "acme", Endpoint: HoneytokenEndpoint})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(80), body["score"])
}
