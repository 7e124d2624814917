package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/logging"
)

const (
	// ContextKeyAuthenticated marks a request that presented the shared secret
	ContextKeyAuthenticated = "authenticated"
	// ContextKeyPartnerID is the key for the calling partner, from X-Partner-Id
	ContextKeyPartnerID = "partnerID"

	// PartnerHeader names the calling partner.
	PartnerHeader = "X-Partner-Id"
)

// Middleware validates the shared secret and records the calling partner.
// It never aborts; pair it with RequireAuth.
func Middleware(secret *Secret) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := presentedKey(c.GetHeader("X-API-Key"), c.GetHeader("Authorization"))
		if key != "" && secret.Check(key) == nil {
			c.Set(ContextKeyAuthenticated, true)
		}
		if partner := strings.TrimSpace(c.GetHeader(PartnerHeader)); partner != "" {
			c.Set(ContextKeyPartnerID, partner)
			c.Request = c.Request.WithContext(logging.WithPartner(c.Request.Context(), partner))
		}
		c.Next()
	}
}

// RequireAuth middleware rejects requests without a valid shared secret
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include an 'X-API-Key' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin requires auth, and the admin secret in X-Admin-Secret when
// one is configured.
func RequireAdmin(adminSecret *Secret) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required.",
			})
			return
		}
		if adminSecret.Configured() {
			if err := adminSecret.Check(c.GetHeader("X-Admin-Secret")); err != nil {
				status := http.StatusForbidden
				if errors.Is(err, ErrNoAPIKey) {
					status = http.StatusUnauthorized
				}
				c.AbortWithStatusJSON(status, gin.H{
					"error":   "forbidden",
					"message": "Admin secret required.",
				})
				return
			}
		}
		c.Next()
	}
}

// PartnerID returns the calling partner named by X-Partner-Id, if any.
func PartnerID(c *gin.Context) string {
	return c.GetString(ContextKeyPartnerID)
}

// IsAuthenticated checks if the request presented the shared secret
func IsAuthenticated(c *gin.Context) bool {
	return c.GetBool(ContextKeyAuthenticated)
}
