package honeytoken

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/auth"
	"github.com/adityaadi07/datasentinel/internal/consent"
	"github.com/adityaadi07/datasentinel/internal/logging"
	"github.com/adityaadi07/datasentinel/internal/risk"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Classifier classifies partner accesses by endpoint.
type Classifier interface {
	ClassifyAccess(ctx context.Context, partnerID, endpoint, userID string) (int, error)
}

// Handler provides the honeytoken issuance endpoint.
type Handler struct {
	controller *Controller
	classifier Classifier
}

// NewHandler creates a new honeytoken handler.
func NewHandler(controller *Controller, classifier Classifier) *Handler {
	return &Handler{controller: controller, classifier: classifier}
}

// RegisterProtectedRoutes sets up honeytoken routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET(risk.HoneytokenEndpoint, h.Issue)
}

// Issue handles GET /generate_honeytoken. When a partner is named (query
// partner_id or X-Partner-Id) the issuance is classified as a trap access.
func (h *Handler) Issue(c *gin.Context) {
	userID := c.Query("user_id")
	partnerID := c.Query("partner_id")
	if partnerID == "" {
		partnerID = auth.PartnerID(c)
	}

	token, err := h.controller.Issue(c.Request.Context(), userID)
	switch {
	case errors.Is(err, validation.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_field", "message": err.Error()})
		return
	case errors.Is(err, consent.ErrConsentDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "consent_denied", "message": "Consent denied for honeytoken"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	if partnerID != "" {
		if _, err := h.classifier.ClassifyAccess(c.Request.Context(), partnerID, risk.HoneytokenEndpoint, userID); err != nil {
			logging.L(c.Request.Context()).Error("classify honeytoken issuance", "partner_id", partnerID, "error", err)
		}
	}

	c.JSON(http.StatusOK, token)
}
