package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ExportStorage implements the ExportStorage interface for Badger. Exports are
// keyed by job ID so a retried export reuses the same record.
type ExportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExportStorage creates a new ExportStorage instance
func NewExportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExportStorage {
	return &ExportStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ExportStorage) SaveExport(ctx context.Context, export *models.Export) error {
	if export.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if export.ID == "" {
		export.ID = common.NewExportID()
	}
	if err := s.db.Store().Upsert(export.JobID, export); err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	return nil
}

func (s *ExportStorage) GetExportByJob(ctx context.Context, jobID string) (*models.Export, error) {
	var export models.Export
	if err := s.db.Store().Get(jobID, &export); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("export for job %s: %w", jobID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return &export, nil
}
