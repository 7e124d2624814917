package risk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/pagination"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides admin HTTP endpoints over the risk engine.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new risk handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterAdminRoutes sets up admin-only risk routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/partner_activity_summary", h.ActivitySummary)
	r.GET("/partners/:id", validation.IDParamMiddleware(), h.GetPartner)
	r.GET("/restricted_partners_detailed", h.RestrictedPartners)
	r.GET("/trap_logs", h.TrapLogs)
	r.GET("/alerts", h.Alerts)
	r.GET("/deception", h.ArmedPartners)
	r.GET("/deception/:id", validation.IDParamMiddleware(), h.GetDeception)
	r.POST("/risk/events", h.RecordEvent)
	r.POST("/risk/classify", h.Classify)
}

// RecordEventRequest is the body of POST /admin/risk/events.
type RecordEventRequest struct {
	PartnerID string `json:"partner_id"`
	Reason    Reason `json:"reason"`
	UserID    string `json:"user_id"`
}

// ClassifyRequest is the body of POST /admin/risk/classify.
type ClassifyRequest struct {
	PartnerID string `json:"partner_id"`
	Endpoint  string `json:"endpoint"`
	UserID    string `json:"user_id"`
}

type partnerSummary struct {
	PartnerID  string  `json:"partner_id"`
	Score      int     `json:"score"`
	Traits     []Trait `json:"traits"`
	TrapCount  int     `json:"trap_count"`
	WindowSize int     `json:"window_size"`
	Deception  bool    `json:"deception_mode"`
	Restricted bool    `json:"restricted"`
}

// ActivitySummary handles GET /admin/partner_activity_summary
func (h *Handler) ActivitySummary(c *gin.Context) {
	profiles := h.engine.Profiles()
	summaries := make([]partnerSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, partnerSummary{
			PartnerID:  p.PartnerID,
			Score:      p.Score,
			Traits:     p.Traits,
			TrapCount:  p.TrapCount,
			WindowSize: len(p.Window),
			Deception:  p.Deception,
			Restricted: h.engine.restrictions.Listed(p.PartnerID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"partners": summaries, "count": len(summaries)})
}

// GetPartner handles GET /admin/partners/:id
func (h *Handler) GetPartner(c *gin.Context) {
	p, ok := h.engine.Profile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No risk profile for partner",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// RestrictedPartners handles GET /admin/restricted_partners_detailed
func (h *Handler) RestrictedPartners(c *gin.Context) {
	type restricted struct {
		PartnerID string   `json:"partner_id"`
		Users     []string `json:"blocked_users"`
		Score     int      `json:"score"`
		TrapCount int      `json:"trap_count"`
	}
	ledger := h.engine.Restrictions()
	out := make([]restricted, 0, len(ledger))
	for _, p := range h.engine.Profiles() {
		users, ok := ledger[p.PartnerID]
		if !ok {
			continue
		}
		out = append(out, restricted{PartnerID: p.PartnerID, Users: users, Score: p.Score, TrapCount: p.TrapCount})
	}
	c.JSON(http.StatusOK, gin.H{"restricted_partners": out, "count": len(out)})
}

// TrapLogs handles GET /admin/trap_logs
func (h *Handler) TrapLogs(c *gin.Context) {
	log := h.engine.TrapLog()
	if partner := c.Query("partner_id"); partner != "" {
		filtered := log[:0]
		for _, ev := range log {
			if ev.PartnerID == partner {
				filtered = append(filtered, ev)
			}
		}
		log = filtered
	}
	page(c, "trap_logs", log)
}

// Alerts handles GET /admin/alerts
func (h *Handler) Alerts(c *gin.Context) {
	page(c, "alerts", h.engine.Alerts())
}

// ArmedPartners handles GET /admin/deception
func (h *Handler) ArmedPartners(c *gin.Context) {
	armed := h.engine.ArmedPartners()
	c.JSON(http.StatusOK, gin.H{"partners": armed, "count": len(armed)})
}

// GetDeception handles GET /admin/deception/:id
func (h *Handler) GetDeception(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"deception": h.engine.DeceptionState(c.Param("id"))})
}

// RecordEvent handles POST /admin/risk/events
func (h *Handler) RecordEvent(c *gin.Context) {
	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.Reason == "" {
		req.Reason = ReasonOther
	}
	score, err := h.engine.RecordAccess(c.Request.Context(), req.PartnerID, req.Reason, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner_id": req.PartnerID, "score": score})
}

// Classify handles POST /admin/risk/classify
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	score, err := h.engine.ClassifyAccess(c.Request.Context(), req.PartnerID, req.Endpoint, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner_id": req.PartnerID, "score": score})
}

func page[T any](c *gin.Context, key string, items []T) {
	limit := pagination.ParseLimit(c.Query("limit"), 100, 1000)
	out, next, more, err := pagination.Page(items, c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{key: out, "count": len(out), "next_cursor": next, "has_more": more})
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, validation.ErrMissingField) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_field",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": err.Error(),
	})
}
