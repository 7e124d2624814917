package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/files"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides HTTP endpoints for the access protocol.
type Handler struct {
	service *Service
}

// NewHandler creates a new access handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up access protocol routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/request-access", h.RequestAccess)
	r.GET("/access-requests", h.ListRequests)
	r.GET("/access-requests/sent", h.SentRequests)
	r.POST("/approve-access", h.Decide)
	r.POST("/file/:id/access", validation.IDParamMiddleware(), h.AccessFile)
	r.GET("/download/:id", validation.IDParamMiddleware(), h.Download)
	r.GET("/partner-files", h.PartnerFiles)
}

// DecideRequest is the body of POST /approve-access.
type DecideRequest struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	OwnerID   string `json:"owner_id"`
}

// AccessFileRequest is the body of POST /file/:id/access.
type AccessFileRequest struct {
	UserID string `json:"user_id"`
}

// RequestAccess handles POST /request-access
func (h *Handler) RequestAccess(c *gin.Context) {
	var req RequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	req.IP = c.ClientIP()

	out, err := h.service.RequestAccess(c.Request.Context(), req)
	if err != nil {
		var denied *DeniedError
		if errors.As(err, &denied) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "access_denied",
				"message": "Invalid honeytoken - security alert triggered",
			})
			return
		}
		writeError(c, err)
		return
	}

	if out.Granted {
		c.JSON(http.StatusOK, gin.H{"message": "Access granted via honeytoken", "access": true})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Access request sent",
		"request_id": out.Request.ID,
		"request":    out.Request,
	})
}

// ListRequests handles GET /access-requests?user_id=
func (h *Handler) ListRequests(c *gin.Context) {
	reqs, err := h.service.ListRequests(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// SentRequests handles GET /access-requests/sent?user_id=
func (h *Handler) SentRequests(c *gin.Context) {
	reqs, err := h.service.SentRequests(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "count": len(reqs)})
}

// Decide handles POST /approve-access
func (h *Handler) Decide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	decision, err := ParseDecision(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}

	out, err := h.service.Decide(c.Request.Context(), req.RequestID, decision, req.OwnerID, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	msg := "Access approved"
	if out.Status == StatusDenied {
		msg = "Access denied"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "request": out})
}

// AccessFile handles POST /file/:id/access
func (h *Handler) AccessFile(c *gin.Context) {
	var req AccessFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	h.direct(c, req.UserID, files.MethodLegitimate)
}

// Download handles GET /download/:id?user_id=
func (h *Handler) Download(c *gin.Context) {
	h.direct(c, c.Query("user_id"), files.MethodDownload)
}

func (h *Handler) direct(c *gin.Context, userID, method string) {
	desc, err := h.service.DirectAccess(c.Request.Context(), c.Param("id"), userID, method, c.ClientIP())
	if err != nil {
		if errors.Is(err, ErrAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "access_denied",
				"message": "Access denied - security alert triggered",
			})
			return
		}
		writeError(c, err)
		return
	}
	if method == files.MethodDownload {
		c.JSON(http.StatusOK, gin.H{"message": "Downloading " + desc.File.Filename, "file": desc.File})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": true, "file": desc.File, "download_url": desc.DownloadURL})
}

// PartnerFiles handles GET /partner-files?user_id=
func (h *Handler) PartnerFiles(c *gin.Context) {
	groups, err := h.service.PartnerFiles(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owners": groups, "count": len(groups)})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, validation.ErrMissingField):
		status, code = http.StatusBadRequest, "missing_field"
	case errors.Is(err, ErrInvalidDecision):
		status, code = http.StatusBadRequest, "invalid_action"
	case errors.Is(err, files.ErrFileNotFound):
		status, code = http.StatusNotFound, "file_not_found"
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrAlreadyGranted):
		status, code = http.StatusConflict, "already_granted"
	case errors.Is(err, ErrDuplicatePending):
		status, code = http.StatusConflict, "duplicate_pending"
	case errors.Is(err, ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, ErrNotOwner):
		status, code = http.StatusForbidden, "forbidden"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
