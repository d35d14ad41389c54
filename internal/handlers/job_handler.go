package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/pipeline"
)

// JobHandler handles HTTP requests for lead generation jobs.
type JobHandler struct {
	pipeline *pipeline.Manager
	jobs     interfaces.JobStorage
	logger   arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(pipelineManager *pipeline.Manager, jobs interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		pipeline: pipelineManager,
		jobs:     jobs,
		logger:   logger,
	}
}

// allStates covers every job state for unfiltered listing.
var allStates = []models.JobState{
	models.JobStateSubmitted,
	models.JobStateContextExtraction,
	models.JobStateSearching,
	models.JobStateEnriching,
	models.JobStateAwaitingSelection,
	models.JobStateExporting,
	models.JobStateCompleted,
	models.JobStateFailed,
	models.JobStateCancelled,
}

// CreateJobHandler handles POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var req models.JobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.pipeline.CreateJob(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Job creation rejected")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, job.Status())
}

// ListJobsHandler handles GET /api/jobs with an optional comma-separated
// state filter, e.g. ?state=searching,awaiting_selection
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	states := allStates
	if raw := r.URL.Query().Get("state"); raw != "" {
		states = nil
		for _, s := range strings.Split(raw, ",") {
			states = append(states, models.JobState(strings.TrimSpace(s)))
		}
	}

	jobs, err := h.jobs.ListJobsByState(r.Context(), states...)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	statuses := make([]*models.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		statuses = append(statuses, job.Status())
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  statuses,
		"count": len(statuses),
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	status, err := h.pipeline.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// GetJobResultsHandler handles GET /api/jobs/{id}/results
func (h *JobHandler) GetJobResultsHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	profiles, err := h.pipeline.GetResults(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":   jobID,
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if err := h.pipeline.Cancel(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancellation requested")
	WriteSuccess(w, "Job cancellation requested")
}

// ExtractJobID pulls the job id out of an /api/jobs/{id}[/suffix] path.
func ExtractJobID(path string) string {
	rest := strings.TrimPrefix(path, "/api/jobs/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
