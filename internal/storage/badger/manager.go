package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	job        interfaces.JobStorage
	searchTask interfaces.SearchTaskStorage
	profile    interfaces.ProfileStorage
	titleGroup interfaces.TitleGroupStorage
	export     interfaces.ExportStorage
	cache      interfaces.CacheStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		job:        NewJobStorage(db, logger),
		searchTask: NewSearchTaskStorage(db, logger),
		profile:    NewProfileStorage(db, logger),
		titleGroup: NewTitleGroupStorage(db, logger),
		export:     NewExportStorage(db, logger),
		cache:      NewCacheStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// SearchTaskStorage returns the SearchTask storage interface
func (m *Manager) SearchTaskStorage() interfaces.SearchTaskStorage {
	return m.searchTask
}

// ProfileStorage returns the Profile storage interface
func (m *Manager) ProfileStorage() interfaces.ProfileStorage {
	return m.profile
}

// TitleGroupStorage returns the TitleGroup storage interface
func (m *Manager) TitleGroupStorage() interfaces.TitleGroupStorage {
	return m.titleGroup
}

// ExportStorage returns the Export storage interface
func (m *Manager) ExportStorage() interfaces.ExportStorage {
	return m.export
}

// CacheStorage returns the cross-job enrichment cache
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
