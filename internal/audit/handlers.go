package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/pagination"
)

// Handler exposes the audit mirror to administrators.
type Handler struct {
	store Store
}

// NewHandler creates a new audit handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterAdminRoutes sets up admin-only audit routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/audit", h.List)
}

// List handles GET /admin/audit?kind=&partner_id=&limit=
func (h *Handler) List(c *gin.Context) {
	records, err := h.store.List(c.Request.Context(), Filter{
		Kind:      Kind(c.Query("kind")),
		PartnerID: c.Query("partner_id"),
		Limit:     pagination.ParseLimit(c.Query("limit"), 100, 1000),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}
