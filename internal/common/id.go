package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTaskID generates a unique search task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewExportID generates a unique export ID with the "exp_" prefix
func NewExportID() string {
	return "exp_" + uuid.New().String()
}
