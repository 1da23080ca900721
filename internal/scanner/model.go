package scanner

import "time"

// Scan phases, in pipeline order.
const (
	PhaseDiscovering = "discovering"
	PhaseParsing     = "parsing"
	PhaseSaving      = "saving"
	PhaseCleanup     = "cleanup"
	PhaseComplete    = "complete"
)

// Persisted scan statuses.
const (
	ScanRunning   = "running"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

// ScanRecord is the persisted summary of one scan run.
type ScanRecord struct {
	ID           string     `json:"id"`
	ScanType     string     `json:"scan_type"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FilesScanned int        `json:"files_scanned"`
	FilesAdded   int        `json:"files_added"`
	FilesUpdated int        `json:"files_updated"`
	FilesDeleted int        `json:"files_deleted"`
	Errors       []string   `json:"errors"`
}
