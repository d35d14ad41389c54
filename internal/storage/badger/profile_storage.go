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

// ProfileStorage implements the ProfileStorage interface for Badger.
// Discovered and enriched records share the (job id, normalized URL) identity;
// the composite key keeps dedup a pure upsert.
type ProfileStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProfileStorage creates a new ProfileStorage instance
func NewProfileStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ProfileStorage {
	return &ProfileStorage{
		db:     db,
		logger: logger,
	}
}

func profileKey(jobID, url string) string {
	return jobID + "|" + url
}

func (s *ProfileStorage) SaveDiscovered(ctx context.Context, profile *models.DiscoveredProfile) error {
	if profile.JobID == "" || profile.URL == "" {
		return fmt.Errorf("job ID and URL are required")
	}
	profile.ID = profileKey(profile.JobID, profile.URL)
	if err := s.db.Store().Upsert(profile.ID, profile); err != nil {
		return fmt.Errorf("failed to save discovered profile: %w", err)
	}
	return nil
}

func (s *ProfileStorage) GetDiscovered(ctx context.Context, jobID, url string) (*models.DiscoveredProfile, error) {
	var profile models.DiscoveredProfile
	if err := s.db.Store().Get(profileKey(jobID, url), &profile); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("discovered profile %s: %w", url, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get discovered profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileStorage) GetDiscoveredByJob(ctx context.Context, jobID string) ([]*models.DiscoveredProfile, error) {
	var profiles []*models.DiscoveredProfile
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list discovered profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileStorage) SaveEnriched(ctx context.Context, profile *models.EnrichedProfile) error {
	if profile.JobID == "" || profile.URL == "" {
		return fmt.Errorf("job ID and URL are required")
	}
	profile.ID = profileKey(profile.JobID, profile.URL)
	if err := s.db.Store().Upsert(profile.ID, profile); err != nil {
		return fmt.Errorf("failed to save enriched profile: %w", err)
	}
	return nil
}

func (s *ProfileStorage) GetEnriched(ctx context.Context, jobID, url string) (*models.EnrichedProfile, error) {
	var profile models.EnrichedProfile
	if err := s.db.Store().Get(profileKey(jobID, url), &profile); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("enriched profile %s: %w", url, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get enriched profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileStorage) GetEnrichedByJob(ctx context.Context, jobID string) ([]*models.EnrichedProfile, error) {
	var profiles []*models.EnrichedProfile
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list enriched profiles: %w", err)
	}
	return profiles, nil
}
