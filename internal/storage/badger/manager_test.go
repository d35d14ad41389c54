package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()

	cfg := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")}
	manager, err := NewManager(common.GetLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return manager
}

func TestJobStorageRoundtrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	job := &models.Job{
		ID:               "job_1",
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{"https://acme.example.com"},
		Countries:        []string{"Australia"},
		EmploymentStatus: models.EmploymentStatusCurrent,
		State:            models.JobStateSubmitted,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	loaded, err := storage.JobStorage().GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, job.OperatorEmail, loaded.OperatorEmail)
	assert.Equal(t, models.JobStateSubmitted, loaded.State)

	// Upsert replaces the stored record
	job.State = models.JobStateSearching
	require.NoError(t, storage.JobStorage().SaveJob(ctx, job))

	loaded, err = storage.JobStorage().GetJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateSearching, loaded.State)
}

func TestJobStorageMissingJob(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.JobStorage().GetJob(context.Background(), "job_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJobStorageRequiresID(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.JobStorage().SaveJob(context.Background(), &models.Job{})
	assert.Error(t, err)
}

func TestListJobsByState(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	states := []models.JobState{
		models.JobStateSearching,
		models.JobStateEnriching,
		models.JobStateCompleted,
	}
	for i, state := range states {
		job := &models.Job{
			ID:        "job_" + string(state),
			State:     state,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, storage.JobStorage().SaveJob(ctx, job))
	}

	running, err := storage.JobStorage().ListJobsByState(ctx, models.JobStateSearching, models.JobStateEnriching)
	require.NoError(t, err)
	require.Len(t, running, 2)

	done, err := storage.JobStorage().ListJobsByState(ctx, models.JobStateCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, models.JobStateCompleted, done[0].State)

	_, err = storage.JobStorage().ListJobsByState(ctx)
	assert.Error(t, err)
}

func TestSearchTaskStorage(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"task_1", "task_2"} {
		task := &models.SearchTask{
			ID:      id,
			JobID:   "job_1",
			Company: "Acme Corp",
			Country: "Australia",
			Query:   "site:linkedin.com/in acme",
			Status:  models.TaskStatusPending,
		}
		require.NoError(t, storage.SearchTaskStorage().SaveTask(ctx, task))
	}
	other := &models.SearchTask{ID: "task_3", JobID: "job_2", Status: models.TaskStatusPending}
	require.NoError(t, storage.SearchTaskStorage().SaveTask(ctx, other))

	tasks, err := storage.SearchTaskStorage().GetTasksByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, storage.SearchTaskStorage().DeleteTasksByJob(ctx, "job_1"))

	tasks, err = storage.SearchTaskStorage().GetTasksByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// Other jobs are untouched
	tasks, err = storage.SearchTaskStorage().GetTasksByJob(ctx, "job_2")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestProfileStorageDiscovered(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	url := "https://www.linkedin.com/in/jane-doe"
	profile := &models.DiscoveredProfile{
		ID:    "job_1|" + url,
		JobID: "job_1",
		URL:   url,
		Provenance: []models.Provenance{
			{Company: "Acme Corp", Country: "Australia"},
		},
		Status: models.TaskStatusPending,
	}
	require.NoError(t, storage.ProfileStorage().SaveDiscovered(ctx, profile))

	loaded, err := storage.ProfileStorage().GetDiscovered(ctx, "job_1", url)
	require.NoError(t, err)
	require.Len(t, loaded.Provenance, 1)
	assert.Equal(t, "Acme Corp", loaded.Provenance[0].Company)

	_, err = storage.ProfileStorage().GetDiscovered(ctx, "job_2", url)
	assert.ErrorIs(t, err, common.ErrNotFound)

	byJob, err := storage.ProfileStorage().GetDiscoveredByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Len(t, byJob, 1)
}

func TestProfileStorageEnriched(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	url := "https://www.linkedin.com/in/jane-doe"
	record := &models.EnrichedProfile{
		ID:            "job_1|" + url,
		JobID:         "job_1",
		URL:           url,
		Company:       "Acme Corp",
		Title:         "Engineering Manager",
		YearsInRole:   7.2,
		MeetsCriteria: true,
		Status:        models.TaskStatusDone,
		Payload: &models.ProfilePayload{
			FullName: "Jane Doe",
			Email:    "jane@example.com",
		},
	}
	require.NoError(t, storage.ProfileStorage().SaveEnriched(ctx, record))

	loaded, err := storage.ProfileStorage().GetEnriched(ctx, "job_1", url)
	require.NoError(t, err)
	assert.True(t, loaded.MeetsCriteria)
	require.NotNil(t, loaded.Payload)
	assert.Equal(t, "Jane Doe", loaded.Payload.FullName)

	byJob, err := storage.ProfileStorage().GetEnrichedByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Len(t, byJob, 1)
}

func TestTitleGroupStorage(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, title := range []string{"Engineering Manager", "Sales Director"} {
		group := &models.TitleGroup{
			ID:      models.TitleGroupKey("job_1", "Acme Corp", title),
			JobID:   "job_1",
			Company: "Acme Corp",
			Title:   title,
			Count:   3,
		}
		require.NoError(t, storage.TitleGroupStorage().SaveTitleGroup(ctx, group))
	}

	groups, err := storage.TitleGroupStorage().GetTitleGroupsByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	require.NoError(t, storage.TitleGroupStorage().DeleteTitleGroupsByJob(ctx, "job_1"))

	groups, err = storage.TitleGroupStorage().GetTitleGroupsByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestExportStorage(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.ExportStorage().GetExportByJob(ctx, "job_1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	record := &models.Export{
		ID:        "exp_1",
		JobID:     "job_1",
		SheetName: "Leads_operator_20250615_1200",
		Status:    models.ExportStatusRunning,
	}
	require.NoError(t, storage.ExportStorage().SaveExport(ctx, record))

	loaded, err := storage.ExportStorage().GetExportByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusRunning, loaded.Status)

	// A retried export reuses the row
	record.Status = models.ExportStatusCompleted
	record.SheetURL = "https://docs.google.com/spreadsheets/d/abc#gid=1"
	require.NoError(t, storage.ExportStorage().SaveExport(ctx, record))

	loaded, err = storage.ExportStorage().GetExportByJob(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, loaded.Status)
	assert.Equal(t, "exp_1", loaded.ID)
}

func TestCacheStorageRoundtrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CacheStorage().Set(ctx, "https://example.com/profile", []byte(`{"a":1}`), time.Hour))

	entry, err := storage.CacheStorage().Get(ctx, "https://example.com/profile")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), entry.Payload)

	// Keys are normalized, cosmetically different lookups hit the same entry
	entry, err = storage.CacheStorage().Get(ctx, "  HTTPS://EXAMPLE.COM/PROFILE ")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), entry.Payload)

	_, err = storage.CacheStorage().Get(ctx, "https://example.com/other")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestCacheStorageExpiry(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.CacheStorage().Set(ctx, "stale", []byte("old"), -time.Minute))
	require.NoError(t, storage.CacheStorage().Set(ctx, "fresh", []byte("new"), time.Hour))

	_, err := storage.CacheStorage().Get(ctx, "stale")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	purged, err := storage.CacheStorage().PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	// Fresh entry survives the purge
	entry, err := storage.CacheStorage().Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), entry.Payload)

	purged, err = storage.CacheStorage().PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
}
