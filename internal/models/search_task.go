package models

import (
	"time"
)

// TaskStatus is the lifecycle of one search task or one profile enrichment.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Terminal reports whether the task will not be processed again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// SearchTask is one generated query for a (company, country) pair. Tasks are
// created in batch when a job enters the searching stage and are immutable once
// terminal except for the result count.
type SearchTask struct {
	ID          string     `json:"id" badgerhold:"key"`
	JobID       string     `json:"job_id" badgerhold:"index"`
	Company     string     `json:"company"`
	CompanyURL  string     `json:"company_url"`
	Country     string     `json:"country"`
	Query       string     `json:"query"`
	Status      TaskStatus `json:"status"`
	ResultCount int        `json:"result_count"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
