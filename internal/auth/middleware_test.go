package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/adityaadi07/datasentinel/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(headers map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c, w
}

func TestMiddleware_ValidKeySetsContext(t *testing.T) {
	c, _ := newContext(map[string]string{"X-API-Key": "sentinel-secret", PartnerHeader: "acme"})

	Middleware(NewSecret("sentinel-secret"))(c)

	assert.True(t, IsAuthenticated(c))
	assert.Equal(t, "acme", PartnerID(c))
	assert.Equal(t, "acme", logging.PartnerID(c.Request.Context()))
}

func TestMiddleware_BearerHeader(t *testing.T) {
	c, _ := newContext(map[string]string{"Authorization": "Bearer sentinel-secret"})
	Middleware(NewSecret("sentinel-secret"))(c)
	assert.True(t, IsAuthenticated(c))
}

func TestMiddleware_InvalidKeyDoesNotAbort(t *testing.T) {
	c, _ := newContext(map[string]string{"X-API-Key": "wrong"})
	Middleware(NewSecret("sentinel-secret"))(c)

	assert.False(t, IsAuthenticated(c))
	assert.False(t, c.IsAborted())
}

func TestRequireAuth(t *testing.T) {
	c, w := newContext(nil)
	RequireAuth()(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = newContext(nil)
	c.Set(ContextKeyAuthenticated, true)
	RequireAuth()(c)
	assert.False(t, c.IsAborted())
}

func TestRequireAdmin_NoAdminSecretConfigured(t *testing.T) {
	c, _ := newContext(nil)
	c.Set(ContextKeyAuthenticated, true)
	RequireAdmin(NewSecret(""))(c)
	assert.False(t, c.IsAborted())

	c, w := newContext(nil)
	RequireAdmin(NewSecret(""))(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_WithAdminSecret(t *testing.T) {
	admin := NewSecret("supersecret123")

	c, _ := newContext(map[string]string{"X-Admin-Secret": "supersecret123"})
	c.Set(ContextKeyAuthenticated, true)
	RequireAdmin(admin)(c)
	assert.False(t, c.IsAborted())

	c, w := newContext(map[string]string{"X-Admin-Secret": "wrongsecret"})
	c.Set(ContextKeyAuthenticated, true)
	RequireAdmin(admin)(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newContext(nil)
	c.Set(ContextKeyAuthenticated, true)
	RequireAdmin(admin)(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
