package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/events"
	badgerstore "github.com/ternarybob/prospector/internal/storage/badger"
)

// ---------------------------------------------------------------------------
// Fake collaborators
// ---------------------------------------------------------------------------

type fakeQueries struct {
	mu         sync.Mutex
	queries    []string
	err        error
	errCountry string // when set, only this country fails
	calls      int
}

func (f *fakeQueries) GenerateQueries(ctx context.Context, company *models.CompanyContext, country, campaignGoal string, status models.EmploymentStatus) ([]string, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	errCountry := f.errCountry
	queries := f.queries
	f.mu.Unlock()

	if err != nil && (errCountry == "" || errCountry == country) {
		return nil, err
	}
	if queries != nil {
		return queries, nil
	}
	return []string{
		`site:linkedin.com/in "` + company.Name + `" "` + country + `"`,
		`site:linkedin.com/in "` + company.Name + `" "` + country + `" director`,
	}, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	results []interfaces.SearchResult
	err     error
	block   chan struct{} // when set, searches wait for release
	calls   int
}

func (f *fakeSearch) ExecuteSearch(ctx context.Context, query string) ([]interfaces.SearchResult, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeEnricher struct {
	mu           sync.Mutex
	payloads     map[string]*models.ProfilePayload
	companyName  string
	enrichCalls  int
	companyCalls int
}

func (f *fakeEnricher) EnrichProfile(ctx context.Context, profileURL string) (*models.ProfilePayload, error) {
	f.mu.Lock()
	f.enrichCalls++
	payload, ok := f.payloads[profileURL]
	f.mu.Unlock()
	if !ok {
		return nil, common.NewPermanentError("enrichment", errors.New("profile not found"))
	}
	return payload, nil
}

func (f *fakeEnricher) FetchCompanyContext(ctx context.Context, companyURL string) (*models.CompanyContext, error) {
	f.mu.Lock()
	f.companyCalls++
	f.mu.Unlock()
	name := f.companyName
	if name == "" {
		name = models.CompanyNameFromURL(companyURL)
	}
	return &models.CompanyContext{URL: companyURL, Name: name, Industry: "Software"}, nil
}

type fakeExporter struct {
	mu      sync.Mutex
	err     error
	batches []struct {
		sheet string
		rows  []interfaces.ExportRow
	}
}

func (f *fakeExporter) Export(ctx context.Context, rows []interfaces.ExportRow, sheetName string) (*interfaces.ExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, struct {
		sheet string
		rows  []interfaces.ExportRow
	}{sheetName, rows})
	return &interfaces.ExportResult{ExportedCount: len(rows), DestinationURL: "mock://exports/" + sheetName}, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const (
	acmeURL    = "https://www.linkedin.com/company/acme-corp"
	janeURL    = "https://www.linkedin.com/in/jane-doe-12345"
	johnURL    = "https://www.linkedin.com/in/john-smith-67890"
	juniorURL  = "https://www.linkedin.com/in/sam-junior-11111"
	missingURL = "https://www.linkedin.com/in/ghost-profile-99999"
)

func date(year, month int) *models.DateParts {
	return &models.DateParts{Year: year, Month: month}
}

func defaultPayloads() map[string]*models.ProfilePayload {
	return map[string]*models.ProfilePayload{
		janeURL: {
			FullName: "Jane Doe",
			Email:    "jane@example.com",
			Experiences: []models.Experience{
				{Company: "Acme Corp", Title: "Engineering Manager", StartsAt: date(2018, 3)},
			},
		},
		johnURL: {
			FullName: "John Smith",
			Experiences: []models.Experience{
				{Company: "Acme Corp", Title: "Sales Director", StartsAt: date(2015, 1)},
			},
		},
		juniorURL: {
			FullName: "Sam Junior",
			Experiences: []models.Experience{
				{Company: "Acme Corp", Title: "Software Engineer", StartsAt: date(2024, 1)},
			},
		},
	}
}

type testEnv struct {
	manager  *Manager
	storage  interfaces.StorageManager
	queries  *fakeQueries
	search   *fakeSearch
	enricher *fakeEnricher
	exporter *fakeExporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Workers.MaxRetries = 2
	cfg.Workers.RetryBackoff = "1ms"
	cfg.Workers.RetryBackoffMax = "5ms"

	storage, err := badgerstore.NewManager(common.GetLogger(), &cfg.Storage.Badger)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	search := &fakeSearch{
		results: []interfaces.SearchResult{
			{URL: janeURL, Title: "Jane Doe - Acme", Snippet: "Engineering Manager"},
			{URL: johnURL, Title: "John Smith - Acme"},
			{URL: juniorURL, Title: "Sam Junior - Acme"},
			{URL: "https://www.linkedin.com/company/acme-corp", Title: "Acme Corp"},
		},
	}
	queries := &fakeQueries{}
	enricher := &fakeEnricher{payloads: defaultPayloads(), companyName: "Acme Corp"}
	exporter := &fakeExporter{}

	manager := NewManager(cfg, storage, Collaborators{
		Queries:  queries,
		Search:   search,
		Enricher: enricher,
		Exporter: exporter,
	}, events.NewService(common.GetLogger()), common.GetLogger())

	return &testEnv{manager: manager, storage: storage, queries: queries, search: search, enricher: enricher, exporter: exporter}
}

func validRequest() *models.JobRequest {
	return &models.JobRequest{
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: "current",
	}
}

func (e *testEnv) waitForState(t *testing.T, jobID string, state models.JobState) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = e.storage.JobStorage().GetJob(context.Background(), jobID)
		return err == nil && job.State == state
	}, 10*time.Second, 10*time.Millisecond, "job never reached %s", state)
	return job
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.CreateJob(context.Background(), &models.JobRequest{
		OperatorEmail:    "not-an-email",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: "current",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = env.manager.CreateJob(context.Background(), &models.JobRequest{
		OperatorEmail:    "operator@example.com",
		Countries:        []string{"Australia"},
		EmploymentStatus: "current",
	})
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = env.manager.CreateJob(context.Background(), &models.JobRequest{
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: "recent",
	})
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = env.manager.CreateJob(context.Background(), &models.JobRequest{
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL, acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: "current",
	})
	assert.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = env.manager.CreateJob(context.Background(), &models.JobRequest{
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia", "Australia"},
		EmploymentStatus: "current",
	})
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestJobRunsToSelectionGate(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)

	job = env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	// Two queries, both succeeded.
	assert.Equal(t, 2, job.Progress.QueriesTotal)
	assert.Equal(t, 2, job.Progress.QueriesCompleted)
	assert.Zero(t, job.Progress.QueriesFailed)

	// Three profile URLs across both queries; the company page is discarded
	// and duplicates collapse to one record each.
	discovered, err := env.storage.ProfileStorage().GetDiscoveredByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, discovered, 3)
	assert.Equal(t, 3, job.Progress.ProfilesFound)

	// Jane (manager keyword) and John (director keyword) match; Sam does not.
	assert.Equal(t, 3, job.Progress.ProfilesEnriched)
	assert.Equal(t, 2, job.Progress.ProfilesFiltered)

	groups, err := env.manager.GetTitleGroups(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	for _, group := range groups {
		assert.Equal(t, "Acme Corp", group.Company)
		assert.Equal(t, 1, group.Count)
		assert.False(t, group.Selected)
	}
}

func TestDiscoveredProfilesKeepProvenance(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Countries = []string{"Australia", "New Zealand"}
	job, err := env.manager.CreateJob(context.Background(), req)
	require.NoError(t, err)

	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	profile, err := env.storage.ProfileStorage().GetDiscovered(context.Background(), job.ID, janeURL)
	require.NoError(t, err)

	// Same URL found for both countries merges into one record with both
	// provenance pairs.
	require.Len(t, profile.Provenance, 2)
	countries := []string{profile.Provenance[0].Country, profile.Provenance[1].Country}
	assert.ElementsMatch(t, []string{"Australia", "New Zealand"}, countries)
}

func TestSelectTitlesAndExport(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	err = env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
		{Company: "Acme Corp", Title: "Engineering Manager", Selected: true},
	})
	require.NoError(t, err)

	job = env.waitForState(t, job.ID, models.JobStateCompleted)
	assert.Equal(t, 1, job.Progress.ProfilesExported)

	record, err := env.manager.GetExport(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, record.Status)
	assert.Contains(t, record.SheetName, "Leads_operator_")
	assert.NotNil(t, record.CompletedAt)

	env.exporter.mu.Lock()
	defer env.exporter.mu.Unlock()
	require.Len(t, env.exporter.batches, 1)
	rows := env.exporter.batches[0].rows
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].FullName)
	assert.Equal(t, "jane@example.com", rows[0].Email)
	assert.Equal(t, janeURL, rows[0].ProfileURL)
}

func TestSelectTitlesRequiresSelectionGate(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	t.Run("unknown group", func(t *testing.T) {
		err := env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
			{Company: "Acme Corp", Title: "Astronaut", Selected: true},
		})
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("nothing selected", func(t *testing.T) {
		err := env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
			{Company: "Acme Corp", Title: "Engineering Manager", Selected: false},
		})
		assert.ErrorIs(t, err, common.ErrInvalidRequest)
	})

	t.Run("wrong state after export", func(t *testing.T) {
		require.NoError(t, env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
			{Company: "Acme Corp", Title: "Engineering Manager", Selected: true},
		}))
		env.waitForState(t, job.ID, models.JobStateCompleted)

		err := env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
			{Company: "Acme Corp", Title: "Sales Director", Selected: true},
		})
		assert.ErrorIs(t, err, common.ErrInvalidState)
	})
}

func TestSearchFailureContainment(t *testing.T) {
	env := newTestEnv(t)

	// All queries fail transiently; with two queries and a >50% threshold the
	// job must fail with a reason.
	env.search.err = common.NewTransientError("search", errors.New("provider down"))

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)

	job = env.waitForState(t, job.ID, models.JobStateFailed)
	assert.Contains(t, job.FailureReason, "queries failed")
	assert.Contains(t, job.FailureReason, common.ErrCapacityExceeded.Error())
	assert.Equal(t, 2, job.Progress.QueriesFailed)

	// Tasks carry their individual errors.
	tasks, err := env.storage.SearchTaskStorage().GetTasksByJob(context.Background(), job.ID)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, models.TaskStatusFailed, task.Status)
		assert.NotEmpty(t, task.Error)
	}

	// The stage error itself carries the capacity sentinel.
	stageErr := env.manager.runSearching(context.Background(), job)
	assert.ErrorIs(t, stageErr, common.ErrCapacityExceeded)
}

func TestQueryGenerationFailureMarksPairFailed(t *testing.T) {
	env := newTestEnv(t)

	// Generation fails terminally for one country; the other country's
	// pair must still run to the gate.
	env.queries.mu.Lock()
	env.queries.err = common.NewPermanentError("queries", errors.New("model unavailable"))
	env.queries.errCountry = "New Zealand"
	env.queries.mu.Unlock()

	req := validRequest()
	req.Countries = []string{"Australia", "New Zealand"}
	job, err := env.manager.CreateJob(context.Background(), req)
	require.NoError(t, err)

	job = env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	// Two Australia queries plus the failed marker for the broken pair.
	tasks, err := env.storage.SearchTaskStorage().GetTasksByJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	var failed []*models.SearchTask
	for _, task := range tasks {
		if task.Status == models.TaskStatusFailed {
			failed = append(failed, task)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "New Zealand", failed[0].Country)
	assert.Contains(t, failed[0].Error, "query generation failed")

	assert.Equal(t, 3, job.Progress.QueriesTotal)
	assert.Equal(t, 2, job.Progress.QueriesCompleted)
	assert.Equal(t, 1, job.Progress.QueriesFailed)
}

func TestResumeReusesPersistedSearchTasks(t *testing.T) {
	env := newTestEnv(t)

	// A job stranded mid-search: one task already done, one still pending,
	// as a crashed driver would leave them.
	now := time.Now()
	job := &models.Job{
		ID:               common.NewJobID(),
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: models.EmploymentStatusCurrent,
		State:            models.JobStateSearching,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, env.storage.JobStorage().SaveJob(context.Background(), job))

	doneTask := &models.SearchTask{
		ID:          common.NewTaskID(),
		JobID:       job.ID,
		Company:     "Acme Corp",
		CompanyURL:  acmeURL,
		Country:     "Australia",
		Query:       `site:linkedin.com/in "Acme Corp" "Australia"`,
		Status:      models.TaskStatusDone,
		ResultCount: 4,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	pendingTask := &models.SearchTask{
		ID:         common.NewTaskID(),
		JobID:      job.ID,
		Company:    "Acme Corp",
		CompanyURL: acmeURL,
		Country:    "Australia",
		Query:      `site:linkedin.com/in "Acme Corp" "Australia" director`,
		Status:     models.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, env.storage.SearchTaskStorage().SaveTask(context.Background(), doneTask))
	require.NoError(t, env.storage.SearchTaskStorage().SaveTask(context.Background(), pendingTask))

	require.NoError(t, env.manager.Advance(context.Background(), job.ID))
	job = env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	// The persisted tasks were reused, not regenerated: same two rows,
	// both terminal, and the generator was never consulted.
	tasks, err := env.storage.SearchTaskStorage().GetTasksByJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, models.TaskStatusDone, task.Status)
	}

	env.queries.mu.Lock()
	assert.Zero(t, env.queries.calls)
	env.queries.mu.Unlock()

	// Only the pending task issued a search.
	env.search.mu.Lock()
	assert.Equal(t, 1, env.search.calls)
	env.search.mu.Unlock()

	assert.Equal(t, 2, job.Progress.QueriesTotal)
	assert.Equal(t, 2, job.Progress.QueriesCompleted)
}

func TestEnrichmentFailureContainment(t *testing.T) {
	env := newTestEnv(t)

	// One of three profiles has no payload: it fails permanently while the
	// other two proceed, staying under the threshold.
	env.enricher.mu.Lock()
	delete(env.enricher.payloads, juniorURL)
	env.enricher.mu.Unlock()

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)

	job = env.waitForState(t, job.ID, models.JobStateAwaitingSelection)
	assert.Equal(t, 2, job.Progress.ProfilesEnriched)
	assert.Equal(t, 1, job.Progress.ProfilesFailed)

	failed, err := env.storage.ProfileStorage().GetEnriched(context.Background(), job.ID, juniorURL)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
}

func TestEnrichmentCacheServesSecondJob(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, first.ID, models.JobStateAwaitingSelection)

	env.enricher.mu.Lock()
	callsAfterFirst := env.enricher.enrichCalls
	env.enricher.mu.Unlock()
	assert.Equal(t, 3, callsAfterFirst)

	second, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, second.ID, models.JobStateAwaitingSelection)

	// Every payload came from the cache; no further provider calls.
	env.enricher.mu.Lock()
	callsAfterSecond := env.enricher.enrichCalls
	env.enricher.mu.Unlock()
	assert.Equal(t, callsAfterFirst, callsAfterSecond)

	profile, err := env.storage.ProfileStorage().GetEnriched(context.Background(), second.ID, janeURL)
	require.NoError(t, err)
	assert.True(t, profile.CachedPayload)
	assert.True(t, profile.MeetsCriteria)
}

func TestCancelLetsInFlightSearchesFinish(t *testing.T) {
	env := newTestEnv(t)
	release := make(chan struct{})
	env.search.block = release

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)

	// Wait until searches are actually running before cancelling.
	env.waitForState(t, job.ID, models.JobStateSearching)
	require.Eventually(t, func() bool {
		env.search.mu.Lock()
		defer env.search.mu.Unlock()
		return env.search.calls > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, env.manager.Cancel(context.Background(), job.ID))
	close(release)

	job = env.waitForState(t, job.ID, models.JobStateCancelled)
	assert.True(t, job.CancelRequested)

	// The searches that were mid-flight at cancel time completed and
	// persisted their results before the job settled.
	tasks, err := env.storage.SearchTaskStorage().GetTasksByJob(context.Background(), job.ID)
	require.NoError(t, err)
	done := 0
	for _, task := range tasks {
		if task.Status == models.TaskStatusDone {
			done++
		}
	}
	assert.Positive(t, done)

	discovered, err := env.storage.ProfileStorage().GetDiscoveredByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, discovered)
}

func TestCancelParkedJob(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	require.NoError(t, env.manager.Cancel(context.Background(), job.ID))
	env.waitForState(t, job.ID, models.JobStateCancelled)

	// A cancelled job accepts no further transitions.
	err = env.manager.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestExportFailureReturnsToSelectionGate(t *testing.T) {
	env := newTestEnv(t)
	env.exporter.err = common.NewPermanentError("export", errors.New("sheet quota exceeded"))

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	require.NoError(t, env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
		{Company: "Acme Corp", Title: "Engineering Manager", Selected: true},
	}))

	// The failed export retreats to the gate with a failed export record.
	var record *models.Export
	require.Eventually(t, func() bool {
		var gerr error
		record, gerr = env.manager.GetExport(context.Background(), job.ID)
		return gerr == nil && record.Status == models.ExportStatusFailed
	}, 10*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, record.Error)

	job = env.waitForState(t, job.ID, models.JobStateAwaitingSelection)
	firstSheetName := record.SheetName

	// Fixing the exporter and re-selecting retries with the same record.
	env.exporter.mu.Lock()
	env.exporter.err = nil
	env.exporter.mu.Unlock()

	require.NoError(t, env.manager.SelectTitles(context.Background(), job.ID, []models.TitleSelection{
		{Company: "Acme Corp", Title: "Engineering Manager", Selected: true},
	}))
	env.waitForState(t, job.ID, models.JobStateCompleted)

	record, err = env.manager.GetExport(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, record.Status)
	assert.Equal(t, firstSheetName, record.SheetName)
}

func TestRecoverJobsResumesStrandedJob(t *testing.T) {
	env := newTestEnv(t)

	// Simulate a job that a previous process left mid-pipeline.
	now := time.Now()
	job := &models.Job{
		ID:               common.NewJobID(),
		OperatorEmail:    "operator@example.com",
		CompanyURLs:      []string{acmeURL},
		Countries:        []string{"Australia"},
		EmploymentStatus: models.EmploymentStatusCurrent,
		State:            models.JobStateSearching,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, env.storage.JobStorage().SaveJob(context.Background(), job))

	recovered, err := env.manager.RecoverJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)
}

func TestRecoverJobsLeavesParkedJobsAlone(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	recovered, err := env.manager.RecoverJobs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recovered)
}

func TestStatusIsReadOnly(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.manager.CreateJob(context.Background(), validRequest())
	require.NoError(t, err)
	env.waitForState(t, job.ID, models.JobStateAwaitingSelection)

	env.search.mu.Lock()
	searchCalls := env.search.calls
	env.search.mu.Unlock()
	env.enricher.mu.Lock()
	enrichCalls := env.enricher.enrichCalls
	env.enricher.mu.Unlock()

	status, err := env.manager.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateAwaitingSelection, status.State)

	env.search.mu.Lock()
	assert.Equal(t, searchCalls, env.search.calls)
	env.search.mu.Unlock()
	env.enricher.mu.Lock()
	assert.Equal(t, enrichCalls, env.enricher.enrichCalls)
	env.enricher.mu.Unlock()
}

func TestGetStatusUnknownJob(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.manager.GetStatus(context.Background(), "job_missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
