package files

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adityaadi07/datasentinel/internal/idgen"
	"github.com/adityaadi07/datasentinel/internal/pagination"
	"github.com/adityaadi07/datasentinel/internal/validation"
)

// Handler provides HTTP endpoints for file listings and the access log.
type Handler struct {
	store Store
	log   AccessLog
}

// NewHandler creates a new files handler.
func NewHandler(store Store, log AccessLog) *Handler {
	return &Handler{store: store, log: log}
}

// RegisterProtectedRoutes sets up file routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/files", h.ListFiles)
	r.POST("/files", h.CreateFile)
	r.GET("/access_log", h.ListAccessLog)
}

// CreateFileRequest registers a file's metadata.
type CreateFileRequest struct {
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
	Size        string `json:"size"`
	Description string `json:"description"`
}

// ListFiles handles GET /files. owner_id lists a user's own files with
// their honeytokens; user_id lists files the user can open.
func (h *Handler) ListFiles(c *gin.Context) {
	all, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	if owner := c.Query("owner_id"); owner != "" {
		out := make([]OwnerView, 0)
		for _, f := range all {
			if f.OwnerID == owner {
				out = append(out, OwnerView{File: f, Honeytoken: f.Honeytoken})
			}
		}
		c.JSON(http.StatusOK, gin.H{"files": out, "count": len(out)})
		return
	}

	out := all
	if user := c.Query("user_id"); user != "" {
		out = make([]*File, 0)
		for _, f := range all {
			if f.CanAccess(user) {
				out = append(out, f)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"files": out, "count": len(out)})
}

// CreateFile handles POST /files
func (h *Handler) CreateFile(c *gin.Context) {
	var req CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("owner_id", req.OwnerID),
		validation.ValidID("owner_id", req.OwnerID),
		validation.Required("filename", req.Filename),
		validation.MaxLength("filename", req.Filename, 255),
		validation.MaxLength("description", req.Description, 1000),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error(), "details": errs})
		return
	}

	name := path.Base(strings.ReplaceAll(validation.SanitizeString(req.Filename, 255), "\\", "/"))
	f := &File{
		ID:          idgen.New(),
		OwnerID:     req.OwnerID,
		Filename:    name,
		Type:        strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."),
		Size:        req.Size,
		Description: validation.SanitizeString(req.Description, 1000),
		UploadedAt:  time.Now().UTC(),
		SharedWith:  []string{},
		Honeytoken:  idgen.Code(),
	}
	if err := h.store.Put(c.Request.Context(), f); err != nil {
		if errors.Is(err, ErrInvalidFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": OwnerView{File: f, Honeytoken: f.Honeytoken}})
}

// ListAccessLog handles GET /access_log
func (h *Handler) ListAccessLog(c *gin.Context) {
	entries, err := h.log.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	if file := c.Query("file_id"); file != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.FileID == file {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limit := pagination.ParseLimit(c.Query("limit"), 100, 1000)
	page, next, more, err := pagination.Page(entries, c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_log": page, "count": len(page), "next_cursor": next, "has_more": more})
}
