package files

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory file store.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*File
}

// NewMemoryStore creates a new in-memory file store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*File)}
}

// Get returns a copy of a file.
func (m *MemoryStore) Get(_ context.Context, fileID string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, ErrFileNotFound
	}
	return f.Clone(), nil
}

// List returns copies of every file ordered by id.
func (m *MemoryStore) List(_ context.Context) ([]*File, error) {
	m.mu.RLock()
	out := make([]*File, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a file.
func (m *MemoryStore) Put(_ context.Context, f *File) error {
	if f.ID == "" || f.OwnerID == "" {
		return ErrInvalidFile
	}
	m.mu.Lock()
	m.files[f.ID] = f.Clone()
	m.mu.Unlock()
	return nil
}

// AddSharedWith appends userID to the file's share list if absent.
func (m *MemoryStore) AddSharedWith(_ context.Context, fileID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return false, ErrFileNotFound
	}
	if f.IsSharedWith(userID) {
		return false, nil
	}
	f.SharedWith = append(f.SharedWith, userID)
	return true, nil
}

// SeedDemoFiles loads six demo files spread over the demo users. code
// generates each file's honeytoken.
func (m *MemoryStore) SeedDemoFiles(code func() string) {
	day := func(d, h, min int) time.Time { return time.Date(2024, 1, d, h, min, 0, 0, time.UTC) }
	seed := []*File{
		{ID: "file_001", OwnerID: "aditya123", Filename: "Financial_Report_Q4.pdf", Type: "pdf", Size: "2.4 MB",
			UploadedAt: day(15, 10, 30), Description: "Quarterly financial analysis and projections"},
		{ID: "file_002", OwnerID: "aditya123", Filename: "Customer_Database.xlsx", Type: "xlsx", Size: "5.1 MB",
			UploadedAt: day(14, 14, 20), SharedWith: []string{"ace277"}, Description: "Customer contact information and preferences"},
		{ID: "file_003", OwnerID: "ace277", Filename: "Marketing_Strategy_2024.pptx", Type: "pptx", Size: "8.7 MB",
			UploadedAt: day(16, 9, 15), Description: "Comprehensive marketing strategy for 2024"},
		{ID: "file_004", OwnerID: "ace277", Filename: "Product_Roadmap.pdf", Type: "pdf", Size: "1.8 MB",
			UploadedAt: day(13, 16, 45), SharedWith: []string{"tulya343"}, Description: "Product development timeline and milestones"},
		{ID: "file_005", OwnerID: "tulya343", Filename: "Security_Audit_Report.pdf", Type: "pdf", Size: "3.2 MB",
			UploadedAt: day(12, 11, 30), Description: "Annual security assessment and recommendations"},
		{ID: "file_006", OwnerID: "tulya343", Filename: "Employee_Handbook.docx", Type: "docx", Size: "1.5 MB",
			UploadedAt: day(11, 13, 20), SharedWith: []string{"aditya123", "ace277"}, Description: "Company policies and employee guidelines"},
	}
	for _, f := range seed {
		f.Honeytoken = code()
		_ = m.Put(context.Background(), f)
	}
}

// MemoryAccessLog is an in-memory append-only access log.
type MemoryAccessLog struct {
	mu      sync.RWMutex
	entries []AccessEntry
}

// NewMemoryAccessLog creates an empty access log.
func NewMemoryAccessLog() *MemoryAccessLog {
	return &MemoryAccessLog{}
}

// Append adds an entry.
func (l *MemoryAccessLog) Append(_ context.Context, entry AccessEntry) error {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// List returns a copy of the log in append order.
func (l *MemoryAccessLog) List(_ context.Context) ([]AccessEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]AccessEntry(nil), l.entries...), nil
}
