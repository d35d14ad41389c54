package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/pipeline"
)

// TitleHandler serves the human-in-the-loop title selection gate.
type TitleHandler struct {
	pipeline *pipeline.Manager
	logger   arbor.ILogger
}

// NewTitleHandler creates a new TitleHandler
func NewTitleHandler(pipelineManager *pipeline.Manager, logger arbor.ILogger) *TitleHandler {
	return &TitleHandler{
		pipeline: pipelineManager,
		logger:   logger,
	}
}

// GetTitleGroupsHandler handles GET /api/jobs/{id}/titles
func (h *TitleHandler) GetTitleGroupsHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	groups, err := h.pipeline.GetTitleGroups(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"groups": groups,
		"count":  len(groups),
	})
}

// titleSelectionRequest is the POST body for title selections.
type titleSelectionRequest struct {
	Selections []models.TitleSelection `json:"selections"`
}

// SelectTitlesHandler handles POST /api/jobs/{id}/titles. Applying a
// selection with at least one selected group resumes the job into the export
// stage.
func (h *TitleHandler) SelectTitlesHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	var req titleSelectionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Selections) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one selection is required")
		return
	}

	if err := h.pipeline.SelectTitles(r.Context(), jobID, req.Selections); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Title selection rejected")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Int("selections", len(req.Selections)).
		Msg("Title selection applied")

	WriteSuccess(w, "Title selection applied, export started")
}
