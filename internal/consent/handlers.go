package consent

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/auth"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides HTTP endpoints for users, consents and policies.
type Handler struct {
	service *Service
	secret  *auth.Secret
}

// NewHandler creates a new consent handler. secret backs /login.
func NewHandler(service *Service, secret *auth.Secret) *Handler {
	return &Handler{service: service, secret: secret}
}

// RegisterPublicRoutes sets up routes that check credentials themselves.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
}

// RegisterProtectedRoutes sets up routes behind the shared secret.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.ListUsers)
	r.GET("/get_consent/:id", validation.IDParamMiddleware(), h.GetConsent)
	r.POST("/update_consent/:id", validation.IDParamMiddleware(), h.UpdateConsent)
	r.POST("/generate_policy", h.GeneratePolicy)
}

// RegisterAdminRoutes sets up admin-only user routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/user_activity_summary", h.UserSummary)
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if err := h.secret.Check(req.APIKey); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid API key",
		})
		return
	}
	user, err := h.service.Get(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "Login successful"})
}

// ListUsers handles GET /users. Admins are not listed.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	type entry struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	out := make([]entry, 0, len(users))
	for _, u := range users {
		if u.Role == RoleAdmin {
			continue
		}
		out = append(out, entry{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "count": len(out)})
}

// GetConsent handles GET /get_consent/:id
func (h *Handler) GetConsent(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateConsent handles POST /update_consent/:id
func (h *Handler) UpdateConsent(c *gin.Context) {
	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	user, err := h.service.UpdateConsent(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GeneratePolicy handles POST /generate_policy
func (h *Handler) GeneratePolicy(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body; days_valid must be an integer",
		})
		return
	}
	policy, err := h.service.GeneratePolicy(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": policy})
}

// UserSummary handles GET /admin/user_activity_summary
func (h *Handler) UserSummary(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, validation.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_field", "message": err.Error()})
	case errors.Is(err, ErrInvalidDays), errors.Is(err, ErrInvalidConsent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found"})
	case errors.Is(err, ErrConsentDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "consent_denied", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
