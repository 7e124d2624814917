package partners

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/auth"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides HTTP endpoints for partner data requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new partner handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up partner routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/partner_request_data", h.RequestData)
	r.POST("/bulk_partner_request", h.BulkRequest)
}

// RegisterAdminRoutes sets up admin-only partner routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/user_access_history", h.History)
}

// BulkItem is one entry of POST /bulk_partner_request.
type BulkItem struct {
	PartnerID string   `json:"partner_id"`
	Users     []string `json:"users"`
	Region    string   `json:"region"`
	Purpose   string   `json:"purpose"`
}

// BulkRequestBody is the body of POST /bulk_partner_request.
type BulkRequestBody struct {
	Requests []BulkItem `json:"requests"`
}

// RequestData handles POST /partner_request_data
func (h *Handler) RequestData(c *gin.Context) {
	var req DataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.PartnerID == "" {
		req.PartnerID = auth.PartnerID(c)
	}
	req.IP = c.ClientIP()

	resp, err := h.service.RequestData(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"users":    resp.Users,
		"withheld": resp.Withheld,
		"records":  resp.Records,
	})
}

// BulkRequest handles POST /bulk_partner_request
func (h *Handler) BulkRequest(c *gin.Context) {
	var body BulkRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	reqs := make([]DataRequest, 0, len(body.Requests))
	for _, item := range body.Requests {
		reqs = append(reqs, DataRequest{
			PartnerID: item.PartnerID,
			Region:    item.Region,
			Users:     item.Users,
			Purpose:   item.Purpose,
			IP:        c.ClientIP(),
		})
	}

	results, errs := h.service.BulkRequest(c.Request.Context(), reqs)
	users := make(map[string][]string, len(results))
	for partner, resp := range results {
		users[partner] = resp.Users
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"results": users, "errors": msgs})
}

// History handles GET /admin/user_access_history
func (h *Handler) History(c *gin.Context) {
	entries := h.service.History(c.Query("partner_id"), c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

func writeError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.Is(err, validation.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_field", "message": err.Error()})
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error(), "details": verrs})
	case errors.Is(err, ErrTooManyUsers):
		c.JSON(http.StatusBadRequest, gin.H{"error": "too_many_users", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
