package alerts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides HTTP endpoints for file alerts and escalations.
type Handler struct {
	service *Service
}

// NewHandler creates a new alerts handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterFileRoutes sets up file alert routes.
func (h *Handler) RegisterFileRoutes(r *gin.RouterGroup) {
	r.GET("/file-alerts", h.ListFileAlerts)
	r.POST("/file-alerts/:id/read", validation.IDParamMiddleware(), h.MarkRead)
}

// RegisterEscalationRoutes sets up escalation routes.
func (h *Handler) RegisterEscalationRoutes(r *gin.RouterGroup) {
	r.POST("/request_admin_action", h.Escalate)
	r.GET("/alerts/:id", validation.IDParamMiddleware(), h.ListEscalations)
}

// RegisterAdminRoutes sets up admin-only alert routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/file-alerts", h.ListAllFileAlerts)
	r.GET("/escalations", h.ListAllEscalations)
}

// ListFileAlerts handles GET /file-alerts?user_id=
func (h *Handler) ListFileAlerts(c *gin.Context) {
	user := c.Query("user_id")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_field",
			"message": "user_id is required",
		})
		return
	}
	items := h.service.ForOwner(user)
	c.JSON(http.StatusOK, gin.H{"alerts": items, "count": len(items)})
}

// MarkRead handles POST /file-alerts/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_field",
			"message": "user_id is required",
		})
		return
	}
	if !h.service.MarkRead(req.UserID, c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Alert not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// ListAllFileAlerts handles GET /admin/file-alerts
func (h *Handler) ListAllFileAlerts(c *gin.Context) {
	items := h.service.All()
	c.JSON(http.StatusOK, gin.H{"alerts": items, "count": len(items)})
}

// EscalateRequest is the body of POST /request_admin_action.
type EscalateRequest struct {
	UserID    string `json:"user_id"`
	PartnerID string `json:"partner_id"`
	Reason    string `json:"reason"`
}

// Escalate handles POST /request_admin_action
func (h *Handler) Escalate(c *gin.Context) {
	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	e, err := h.service.Escalate(c.Request.Context(), req.UserID, req.PartnerID, validation.SanitizeString(req.Reason, 1000))
	if err != nil {
		if errors.Is(err, validation.ErrMissingField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_field", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Escalation sent to admin.", "escalation": e})
}

// ListEscalations handles GET /alerts/:id
func (h *Handler) ListEscalations(c *gin.Context) {
	items := h.service.Escalations(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"alerts": items, "count": len(items)})
}

// ListAllEscalations handles GET /admin/escalations
func (h *Handler) ListAllEscalations(c *gin.Context) {
	items := h.service.Escalations("")
	c.JSON(http.StatusOK, gin.H{"escalations": items, "count": len(items)})
}
