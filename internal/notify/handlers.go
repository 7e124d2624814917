package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for user notifications.
type Handler struct {
	inbox *Inbox
}

// NewHandler creates a new notification handler.
func NewHandler(inbox *Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// RegisterProtectedRoutes sets up notification routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/user_notifications", h.List)
	r.POST("/user_notifications/read", h.MarkRead)
}

// List handles GET /user_notifications
func (h *Handler) List(c *gin.Context) {
	user := c.Query("user_id")
	items := h.inbox.List(user)
	resp := gin.H{"notifications": items, "count": len(items)}
	if user != "" {
		resp["unread"] = h.inbox.Unread(user)
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead handles POST /user_notifications/read
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
	c.JSON(http.StatusOK, gin.H{"marked": h.inbox.MarkRead(req.UserID)})
}
