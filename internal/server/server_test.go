package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaadi07/datasentinel/internal/audit"
	"github.com/adityaadi07/datasentinel/internal/config"
)

const testAPIKey = "sentinel-test-key"

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		Env:           "development",
		LogLevel:      "error",
		LogFormat:     "text",
		Profile:       config.ProfileFull,
		APIKey:        testAPIKey,
		RateLimitRPM:  100000,
		DefaultRegion: "IN",
		SeedDemoData:  true,
	}
}

var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestServer creates a started server over an in-memory audit store
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *audit.MemoryStore) {
	t.Helper()
	store := audit.NewMemoryStore()
	s, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditStore(store),
		WithClock(func() time.Time { return noon }),
	)
	require.NoError(t, err)
	s.drainDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		_ = s.Shutdown()
		cancel()
	})
	return s, store
}

type call struct {
	method  string
	path    string
	body    any
	partner string
	noKey   bool
	admin   string
}

func do(t *testing.T, s *Server, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if !c.noKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	if c.partner != "" {
		req.Header.Set("X-Partner-Id", c.partner)
	}
	if c.admin != "" {
		req.Header.Set("X-Admin-Secret", c.admin)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w, body := do(t, s, call{method: http.MethodGet, path: "/health", noKey: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "full", body["profile"])

	w, _ = do(t, s, call{method: http.MethodGet, path: "/health/live", noKey: true})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/health/ready", noKey: true})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, s, call{method: http.MethodGet, path: "/", noKey: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DataSentinel", body["name"])

	w, _ = do(t, s, call{method: http.MethodGet, path: "/metrics", noKey: true})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w, _ := do(t, s, call{method: http.MethodGet, path: "/health", noKey: true})
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w, body := do(t, s, call{method: http.MethodGet, path: "/users", noKey: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body["error"])

	w, _ = do(t, s, call{method: http.MethodGet, path: "/users"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/admin/trap_logs", noKey: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSecretEnforcedWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = "admin-secret-1"
	s, _ := newTestServer(t, cfg)

	w, _ := do(t, s, call{method: http.MethodGet, path: "/admin/partner_activity_summary"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/admin/partner_activity_summary", admin: "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/admin/partner_activity_summary", admin: "admin-secret-1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHoneytokenTrapFlow(t *testing.T) {
	s, store := newTestServer(t, testConfig())

	for i := 0; i < 3; i++ {
		w, body := do(t, s, call{method: http.MethodGet, path: "/generate_honeytoken?user_id=aditya123", partner: "acme"})
		require.Equal(t, http.StatusOK, w.Code, "issuance %d", i)
		assert.NotEmpty(t, body["email"])
	}

	w, body := do(t, s, call{method: http.MethodGet, path: "/admin/partners/acme"})
	require.Equal(t, http.StatusOK, w.Code)
	profile := body["profile"].(map[string]any)
	assert.Equal(t, float64(240), profile["score"])
	assert.Equal(t, float64(3), profile["trap_count"])
	assert.Equal(t, true, profile["deception_mode"])
	assert.Equal(t, []any{"aditya123"}, profile["restricted_users"])

	w, body = do(t, s, call{method: http.MethodGet, path: "/admin/alerts"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"], "one activation and one block")

	// The audit mirror is written asynchronously.
	assert.Eventually(t, func() bool {
		recs, err := store.List(context.Background(), audit.Filter{Kind: audit.KindRiskEvent, PartnerID: "acme"})
		return err == nil && len(recs) >= 3+1+1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPartnerDataServedSyntheticWhenArmed(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	req := map[string]any{"partner_id": "globex", "region": "IN", "requested_users": []string{"ace277"}, "purpose": "analytics"}
	w, body := do(t, s, call{method: http.MethodPost, path: "/partner_request_data", body: req})
	require.Equal(t, http.StatusOK, w.Code)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "Anirudh C", records[0].(map[string]any)["name"])

	// One trap arms deception; the next request gets fabricated records.
	w, _ = do(t, s, call{method: http.MethodGet, path: "/generate_honeytoken?user_id=ace277", partner: "globex"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, s, call{method: http.MethodPost, path: "/partner_request_data", body: req})
	require.Equal(t, http.StatusOK, w.Code)
	records = body["records"].([]any)
	require.Len(t, records, 1)
	assert.NotEqual(t, "Anirudh C", records[0].(map[string]any)["name"])
}

func TestUnauthorizedFileAccessFlow(t *testing.T) {
	s, store := newTestServer(t, testConfig())

	w, body := do(t, s, call{method: http.MethodPost, path: "/file/file_001/access", body: map[string]string{"user_id": "ace277"}})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access_denied", body["error"])

	w, body = do(t, s, call{method: http.MethodGet, path: "/file-alerts?user_id=aditya123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = do(t, s, call{method: http.MethodGet, path: "/user_notifications?user_id=aditya123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, body["count"], float64(1))

	// The requester is scored as the partner.
	w, body = do(t, s, call{method: http.MethodGet, path: "/admin/partners/ace277"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(80), body["profile"].(map[string]any)["score"])

	assert.Eventually(t, func() bool {
		recs, err := store.List(context.Background(), audit.Filter{Kind: audit.KindFileAlert})
		return err == nil && len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAccessRequestApproval(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w, body := do(t, s, call{method: http.MethodPost, path: "/request-access",
		body: map[string]string{"file_id": "file_003", "requester_id": "aditya123", "message": "please"}})
	require.Equal(t, http.StatusCreated, w.Code)
	reqID := body["request"].(map[string]any)["id"].(string)

	w, _ = do(t, s, call{method: http.MethodPost, path: "/approve-access",
		body: map[string]string{"request_id": reqID, "action": "approve"}})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/download/file_003?user_id=aditya123"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileMountsOnlyItsRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Profile = config.ProfilePartner
	s, _ := newTestServer(t, cfg)

	w, _ := do(t, s, call{method: http.MethodGet, path: "/files"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/generate_honeytoken?user_id=aditya123"})
	assert.Equal(t, http.StatusOK, w.Code)

	cfg = testConfig()
	cfg.Profile = config.ProfileFiles
	s, _ = newTestServer(t, cfg)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/generate_honeytoken?user_id=aditya123"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, call{method: http.MethodGet, path: "/files"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebSocketRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	w, _ := do(t, s, call{method: http.MethodGet, path: "/ws", noKey: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:%2A%2A%2A@db:5432/x", maskDSN("postgres://u:secret@db:5432/x"))
	assert.Equal(t, "***", maskDSN("://bad"))
}
