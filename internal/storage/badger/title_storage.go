package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TitleGroupStorage implements the TitleGroupStorage interface for Badger
type TitleGroupStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTitleGroupStorage creates a new TitleGroupStorage instance
func NewTitleGroupStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TitleGroupStorage {
	return &TitleGroupStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TitleGroupStorage) SaveTitleGroup(ctx context.Context, group *models.TitleGroup) error {
	if group.JobID == "" || group.Company == "" || group.Title == "" {
		return fmt.Errorf("job ID, company and title are required")
	}
	group.ID = models.TitleGroupKey(group.JobID, group.Company, group.Title)
	if err := s.db.Store().Upsert(group.ID, group); err != nil {
		return fmt.Errorf("failed to save title group: %w", err)
	}
	return nil
}

func (s *TitleGroupStorage) GetTitleGroupsByJob(ctx context.Context, jobID string) ([]*models.TitleGroup, error) {
	var groups []*models.TitleGroup
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("Company", "Title")
	if err := s.db.Store().Find(&groups, query); err != nil {
		return nil, fmt.Errorf("failed to list title groups: %w", err)
	}
	return groups, nil
}

func (s *TitleGroupStorage) DeleteTitleGroupsByJob(ctx context.Context, jobID string) error {
	query := badgerhold.Where("JobID").Eq(jobID)
	if err := s.db.Store().DeleteMatching(&models.TitleGroup{}, query); err != nil {
		return fmt.Errorf("failed to delete title groups: %w", err)
	}
	return nil
}
