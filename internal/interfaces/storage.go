package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/prospector/internal/models"
)

// JobStorage persists job records. Jobs are independently queryable so a
// restarted process can resume them via the pipeline manager's idempotent
// Advance.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobsByState(ctx context.Context, states ...models.JobState) ([]*models.Job, error)
}

// SearchTaskStorage persists per-query search tasks.
type SearchTaskStorage interface {
	SaveTask(ctx context.Context, task *models.SearchTask) error
	GetTasksByJob(ctx context.Context, jobID string) ([]*models.SearchTask, error)
	DeleteTasksByJob(ctx context.Context, jobID string) error
}

// ProfileStorage persists discovered and enriched profile records. Discovered
// profiles are keyed by (job id, normalized URL) so concurrent workers that
// find the same URL converge on one record.
type ProfileStorage interface {
	SaveDiscovered(ctx context.Context, profile *models.DiscoveredProfile) error
	GetDiscovered(ctx context.Context, jobID, url string) (*models.DiscoveredProfile, error)
	GetDiscoveredByJob(ctx context.Context, jobID string) ([]*models.DiscoveredProfile, error)

	SaveEnriched(ctx context.Context, profile *models.EnrichedProfile) error
	GetEnriched(ctx context.Context, jobID, url string) (*models.EnrichedProfile, error)
	GetEnrichedByJob(ctx context.Context, jobID string) ([]*models.EnrichedProfile, error)
}

// TitleGroupStorage persists (company, title) aggregations and selections.
type TitleGroupStorage interface {
	SaveTitleGroup(ctx context.Context, group *models.TitleGroup) error
	GetTitleGroupsByJob(ctx context.Context, jobID string) ([]*models.TitleGroup, error)
	DeleteTitleGroupsByJob(ctx context.Context, jobID string) error
}

// ExportStorage persists export records, one per job.
type ExportStorage interface {
	SaveExport(ctx context.Context, export *models.Export) error
	GetExportByJob(ctx context.Context, jobID string) (*models.Export, error)
}

// CacheEntry is a cached enrichment payload shared across jobs, keyed by the
// normalized lookup key (profile URL or company URL).
type CacheEntry struct {
	Key       string    `json:"key" badgerhold:"key"`
	Payload   []byte    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the entry is past its expiry.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// CacheStorage is the cross-job enrichment cache. Set uses insert-or-replace
// semantics; concurrent writers racing on the same key are tolerated (last
// write wins) because payloads for a given source are value-identical.
type CacheStorage interface {
	Get(ctx context.Context, key string) (*CacheEntry, error) // ErrCacheMiss when absent
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int, error)
}

// StorageManager bundles the per-entity stores backed by one database.
type StorageManager interface {
	JobStorage() JobStorage
	SearchTaskStorage() SearchTaskStorage
	ProfileStorage() ProfileStorage
	TitleGroupStorage() TitleGroupStorage
	ExportStorage() ExportStorage
	CacheStorage() CacheStorage
	Close() error
}
