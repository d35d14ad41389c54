package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/pipeline"
)

// ExportHandler serves export records.
type ExportHandler struct {
	pipeline *pipeline.Manager
	logger   arbor.ILogger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(pipelineManager *pipeline.Manager, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{
		pipeline: pipelineManager,
		logger:   logger,
	}
}

// GetExportHandler handles GET /api/jobs/{id}/export
func (h *ExportHandler) GetExportHandler(w http.ResponseWriter, r *http.Request) {
	jobID := ExtractJobID(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	record, err := h.pipeline.GetExport(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
