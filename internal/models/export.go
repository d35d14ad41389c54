package models

import (
	"time"
)

// ExportStatus is the lifecycle of a spreadsheet export.
type ExportStatus string

const (
	ExportStatusNotStarted ExportStatus = "not_started"
	ExportStatusRunning    ExportStatus = "running"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// Export records one spreadsheet export for a job. At most one export row
// exists per job; a retried export reuses the row.
type Export struct {
	ID               string       `json:"id" badgerhold:"key"`
	JobID            string       `json:"job_id" badgerhold:"index"`
	SheetName        string       `json:"sheet_name"`
	SheetURL         string       `json:"sheet_url,omitempty"`
	Status           ExportStatus `json:"status"`
	ProfilesExported int          `json:"profiles_exported"`
	Error            string       `json:"error,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}
