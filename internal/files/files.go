// Package files stores shared files, their share lists and the access log.
package files

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidFile  = errors.New("invalid file")
)

// Access log methods.
const (
	MethodHoneytoken      = "honeytoken"
	MethodApprovedRequest = "approved_request"
	MethodLegitimate      = "legitimate_access"
	MethodDownload        = "download"
)

// File is a document owned by one user and shared with others.
type File struct {
	ID          string    `json:"file_id"`
	OwnerID     string    `json:"owner_id"`
	Filename    string    `json:"filename"`
	Type        string    `json:"type"`
	Size        string    `json:"size"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"upload_date"`
	SharedWith  []string  `json:"shared_with"`
	// Honeytoken is the trap code bound to the file. Only owners see it.
	Honeytoken string `json:"-"`
}

// CanAccess reports whether userID owns the file or has it shared.
func (f *File) CanAccess(userID string) bool {
	return f.OwnerID == userID || f.IsSharedWith(userID)
}

// IsSharedWith reports whether userID is on the share list.
func (f *File) IsSharedWith(userID string) bool {
	return slices.Contains(f.SharedWith, userID)
}

// Clone returns a deep copy.
func (f *File) Clone() *File {
	cp := *f
	cp.SharedWith = slices.Clone(f.SharedWith)
	if cp.SharedWith == nil {
		cp.SharedWith = []string{}
	}
	return &cp
}

// OwnerView is a file as its owner sees it, honeytoken included.
type OwnerView struct {
	*File
	Honeytoken string `json:"honeytoken"`
}

// AccessEntry is one line of the file access log.
type AccessEntry struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	OwnerID    string    `json:"owner_id"`
	AccessedBy string    `json:"accessed_by"`
	Method     string    `json:"method"`
	IP         string    `json:"ip,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store persists files.
type Store interface {
	Get(ctx context.Context, fileID string) (*File, error)
	List(ctx context.Context) ([]*File, error)
	Put(ctx context.Context, f *File) error
	// AddSharedWith appends userID to the share list if absent and reports
	// whether it was added.
	AddSharedWith(ctx context.Context, fileID, userID string) (bool, error)
}

// AccessLog records file accesses and grants.
type AccessLog interface {
	Append(ctx context.Context, entry AccessEntry) error
	List(ctx context.Context) ([]AccessEntry, error)
}
