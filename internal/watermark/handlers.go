package watermark

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides the watermark endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a new watermark handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up watermark routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/generate_watermark", h.Generate)
}

// GenerateRequest is the body of POST /generate_watermark.
type GenerateRequest struct {
	PartnerID string `json:"partner_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// Generate handles POST /generate_watermark
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	wm, err := h.service.Generate(c.Request.Context(), req.PartnerID, req.UserID, req.Timestamp)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, wm)
	case errors.Is(err, validation.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_field", "message": err.Error()})
	case errors.Is(err, ErrDelimiterInField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_field", "message": err.Error()})
	case errors.Is(err, consent.ErrConsentDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "consent_denied", "message": "Consent denied for watermarking"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
