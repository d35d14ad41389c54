// -----------------------------------------------------------------------
// Job - Lead generation job and its state machine
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// EmploymentStatus filters which employment relationships a job targets.
type EmploymentStatus string

const (
	EmploymentStatusCurrent EmploymentStatus = "current"
	EmploymentStatusPast    EmploymentStatus = "past"
	EmploymentStatusAll     EmploymentStatus = "all"
)

// Valid reports whether the status is one of the accepted values.
func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentStatusCurrent, EmploymentStatusPast, EmploymentStatusAll:
		return true
	}
	return false
}

// JobState is the pipeline stage a job is in. States only move forward; the
// terminal failure states are reachable from any non-terminal state.
type JobState string

const (
	JobStateSubmitted         JobState = "submitted"
	JobStateContextExtraction JobState = "context_extraction"
	JobStateSearching         JobState = "searching"
	JobStateEnriching         JobState = "enriching"
	JobStateAwaitingSelection JobState = "awaiting_selection"
	JobStateExporting         JobState = "exporting"
	JobStateCompleted         JobState = "completed"
	JobStateFailed            JobState = "failed"
	JobStateCancelled         JobState = "cancelled"
)

// stateOrder assigns each forward state a rank so transitions can be checked
// for monotonicity. Terminal failure states sit outside the order.
var stateOrder = map[JobState]int{
	JobStateSubmitted:         0,
	JobStateContextExtraction: 1,
	JobStateSearching:         2,
	JobStateEnriching:         3,
	JobStateAwaitingSelection: 4,
	JobStateExporting:         5,
	JobStateCompleted:         6,
}

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// Before reports whether s precedes other in the forward pipeline order.
// Terminal failure states precede nothing.
func (s JobState) Before(other JobState) bool {
	a, ok1 := stateOrder[s]
	b, ok2 := stateOrder[other]
	return ok1 && ok2 && a < b
}

// CanTransitionTo reports whether moving from s to next is legal: one step
// forward in the pipeline, or to failed/cancelled from any non-terminal state.
// The exporting -> awaiting_selection edge is the single allowed retreat, so a
// failed export can be retried without re-running search and enrichment.
func (s JobState) CanTransitionTo(next JobState) bool {
	if s.Terminal() {
		return false
	}
	if next == JobStateFailed || next == JobStateCancelled {
		return true
	}
	if s == JobStateExporting && next == JobStateAwaitingSelection {
		return true
	}
	a, ok1 := stateOrder[s]
	b, ok2 := stateOrder[next]
	return ok1 && ok2 && b == a+1
}

// JobProgress holds per-stage counters. Counters are monotonically increasing
// and updated atomically by concurrent workers while a stage runs.
type JobProgress struct {
	QueriesTotal      int `json:"queries_total"`
	QueriesCompleted  int `json:"queries_completed"`
	QueriesFailed     int `json:"queries_failed"`
	ProfilesFound     int `json:"profiles_found"`
	ProfilesEnriched  int `json:"profiles_enriched"`
	ProfilesFailed    int `json:"profiles_failed"`
	ProfilesFiltered  int `json:"profiles_filtered"`
	ProfilesExported  int `json:"profiles_exported"`
	CompaniesResolved int `json:"companies_resolved"`
}

// Job is one end-to-end lead generation request scoped to a set of companies
// and countries. Owned exclusively by the pipeline manager; state is mutated
// only through its transition API.
type Job struct {
	ID               string           `json:"id" badgerhold:"key"`
	OperatorEmail    string           `json:"operator_email"`
	CampaignGoal     string           `json:"campaign_goal,omitempty"`
	CompanyURLs      []string         `json:"company_urls"`
	Countries        []string         `json:"countries"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
	DecisionLevel    string           `json:"decision_level,omitempty"`
	State            JobState         `json:"state" badgerhold:"index"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	CancelRequested  bool             `json:"cancel_requested"`
	Progress         JobProgress      `json:"progress"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// JobRequest is the operator-facing payload for creating a job.
type JobRequest struct {
	OperatorEmail    string   `json:"operator_email" validate:"required,email"`
	CampaignGoal     string   `json:"campaign_goal"`
	CompanyURLs      []string `json:"company_urls" validate:"required,min=1,unique,dive,url"`
	Countries        []string `json:"countries" validate:"required,min=1,unique,dive,min=2"`
	EmploymentStatus string   `json:"employment_status" validate:"required,oneof=current past all"`
	DecisionLevel    string   `json:"decision_level"`
}

// JobStatus is the read-only view returned by status queries. It never
// triggers external calls.
type JobStatus struct {
	JobID         string      `json:"job_id"`
	State         JobState    `json:"state"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Progress      JobProgress `json:"progress"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Status builds the status view of the job.
func (j *Job) Status() *JobStatus {
	return &JobStatus{
		JobID:         j.ID,
		State:         j.State,
		FailureReason: j.FailureReason,
		Progress:      j.Progress,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}
