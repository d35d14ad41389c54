package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SearchTaskStorage implements the SearchTaskStorage interface for Badger
type SearchTaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSearchTaskStorage creates a new SearchTaskStorage instance
func NewSearchTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SearchTaskStorage {
	return &SearchTaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SearchTaskStorage) SaveTask(ctx context.Context, task *models.SearchTask) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save search task: %w", err)
	}
	return nil
}

func (s *SearchTaskStorage) GetTasksByJob(ctx context.Context, jobID string) ([]*models.SearchTask, error) {
	var tasks []*models.SearchTask
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list search tasks: %w", err)
	}
	return tasks, nil
}

func (s *SearchTaskStorage) DeleteTasksByJob(ctx context.Context, jobID string) error {
	query := badgerhold.Where("JobID").Eq(jobID)
	if err := s.db.Store().DeleteMatching(&models.SearchTask{}, query); err != nil {
		return fmt.Errorf("failed to delete search tasks: %w", err)
	}
	return nil
}
