package task

import "time"

// Status is a task lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Type identifies what kind of work a task performs.
type Type string

const (
	TypeScan                   Type = "scan"
	TypeAnalyzeFile            Type = "analyze_file"
	TypeAnalyzeBulk            Type = "analyze_bulk"
	TypeMetadataImport         Type = "metadata_import"
	TypeMetadataBulkMatch      Type = "metadata_bulk_match"
	TypeMetadataBulkRefresh    Type = "metadata_bulk_refresh"
	TypeMetadataRefreshMissing Type = "metadata_refresh_missing"
)

// ItemError records one failed unit of work within a task.
type ItemError struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// ScanProgress carries the scan-specific portion of a task's progress.
type ScanProgress struct {
	ScanID       string `json:"scan_id,omitempty"`
	Phase        string `json:"phase,omitempty"`
	FilesAdded   int    `json:"files_added"`
	FilesUpdated int    `json:"files_updated"`
	FilesDeleted int    `json:"files_deleted"`
}

// Progress is a point-in-time snapshot of one task's state. It is a plain
// value, safe to hand to transports after the tracker has released its lock.
type Progress struct {
	TaskID      string        `json:"task_id"`
	Type        Type          `json:"type"`
	Status      Status        `json:"status"`
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	CurrentItem string        `json:"current_item,omitempty"`
	Errors      []ItemError   `json:"errors"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Scan        *ScanProgress `json:"scan,omitempty"`
}
