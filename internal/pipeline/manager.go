// Package pipeline drives lead generation jobs through their state machine:
// submitted -> context_extraction -> searching -> enriching ->
// awaiting_selection -> exporting -> completed, with failed and cancelled
// reachable from any non-terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/filter"
)

// Collaborators bundles the external services the pipeline depends on. In
// mock mode a single fixture service backs all four.
type Collaborators struct {
	Queries  interfaces.QueryGenerator
	Search   interfaces.SearchProvider
	Enricher interfaces.ProfileEnricher
	Exporter interfaces.Exporter
}

// Manager owns job state. All state transitions go through its API; stages
// mutate only task, profile, and progress records.
type Manager struct {
	config   *common.Config
	storage  interfaces.StorageManager
	collab   Collaborators
	filter   *filter.Engine
	events   interfaces.EventService
	retry    RetryPolicy
	logger   arbor.ILogger
	validate *validator.Validate

	// active tracks the cancel function of each running job driver so Cancel
	// can interrupt a stage mid-flight.
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewManager wires a pipeline manager.
func NewManager(config *common.Config, storage interfaces.StorageManager, collab Collaborators, events interfaces.EventService, logger arbor.ILogger) *Manager {
	return &Manager{
		config:   config,
		storage:  storage,
		collab:   collab,
		filter:   filter.NewEngine(&config.Filter),
		events:   events,
		retry:    NewRetryPolicy(&config.Workers),
		logger:   logger,
		validate: validator.New(),
		active:   make(map[string]context.CancelFunc),
	}
}

// CreateJob validates the request, persists the job in the submitted state,
// and starts driving it in the background.
func (m *Manager) CreateJob(ctx context.Context, req *models.JobRequest) (*models.Job, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidRequest, err.Error())
	}

	now := time.Now()
	job := &models.Job{
		ID:               common.NewJobID(),
		OperatorEmail:    req.OperatorEmail,
		CampaignGoal:     req.CampaignGoal,
		CompanyURLs:      req.CompanyURLs,
		Countries:        req.Countries,
		EmploymentStatus: models.EmploymentStatus(req.EmploymentStatus),
		DecisionLevel:    req.DecisionLevel,
		State:            models.JobStateSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("operator", job.OperatorEmail).
		Int("companies", len(job.CompanyURLs)).
		Int("countries", len(job.Countries)).
		Str("employment_status", string(job.EmploymentStatus)).
		Msg("Job created")

	m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCreated, JobID: job.ID})

	m.StartJob(job.ID)
	return job, nil
}

// StartJob drives the job asynchronously. Calling it for a job that is
// already being driven is a no-op.
func (m *Manager) StartJob(jobID string) {
	go func() {
		if err := m.Advance(context.Background(), jobID); err != nil {
			m.logger.Error().Err(err).Str("job_id", jobID).Msg("Job driver stopped with error")
		}
	}()
}

// Advance runs the job forward until it reaches a terminal state or a human
// gate. It is idempotent: re-invoking on any job resumes from the persisted
// state, skipping work that already completed. Only one driver runs per job
// at a time.
func (m *Manager) Advance(ctx context.Context, jobID string) error {
	jobCtx, ok := m.acquire(jobID)
	if !ok {
		return nil
	}
	defer m.release(jobID)

	for {
		job, err := m.storage.JobStorage().GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.State.Terminal() {
			return nil
		}
		if job.CancelRequested || jobCtx.Err() != nil {
			return m.finishCancel(ctx, job)
		}

		var stageErr error
		switch job.State {
		case models.JobStateSubmitted:
			stageErr = m.transition(ctx, job, models.JobStateContextExtraction)

		case models.JobStateContextExtraction:
			if stageErr = m.runContextExtraction(jobCtx, job); stageErr == nil {
				stageErr = m.transition(ctx, job, models.JobStateSearching)
			}

		case models.JobStateSearching:
			if stageErr = m.runSearching(jobCtx, job); stageErr == nil {
				stageErr = m.transition(ctx, job, models.JobStateEnriching)
			}

		case models.JobStateEnriching:
			if stageErr = m.runEnriching(jobCtx, job); stageErr == nil {
				stageErr = m.transition(ctx, job, models.JobStateAwaitingSelection)
			}
			if stageErr == nil {
				// Human gate: the driver stops here until titles are selected.
				return nil
			}

		case models.JobStateAwaitingSelection:
			return nil

		case models.JobStateExporting:
			if stageErr = m.runExport(jobCtx, job); stageErr == nil {
				stageErr = m.transition(ctx, job, models.JobStateCompleted)
			} else if !errors.Is(stageErr, context.Canceled) {
				// A failed export retreats to the selection gate so the
				// operator can retry without re-running discovery.
				m.logger.Warn().Err(stageErr).Str("job_id", job.ID).Msg("Export failed, returning job to selection gate")
				if terr := m.transition(ctx, job, models.JobStateAwaitingSelection); terr != nil {
					return terr
				}
				return nil
			}

		default:
			stageErr = fmt.Errorf("%w: job %s in unknown state %s", common.ErrInvalidState, job.ID, job.State)
		}

		if stageErr != nil {
			if errors.Is(stageErr, context.Canceled) {
				return m.finishCancel(ctx, job)
			}
			return m.failJob(ctx, job, stageErr)
		}
	}
}

// SelectTitles records the operator's title selections and releases the job
// into the exporting stage. At least one group must be selected.
func (m *Manager) SelectTitles(ctx context.Context, jobID string, selections []models.TitleSelection) error {
	job, err := m.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State != models.JobStateAwaitingSelection {
		return fmt.Errorf("%w: job %s is %s, selections require awaiting_selection", common.ErrInvalidState, jobID, job.State)
	}

	groups, err := m.storage.TitleGroupStorage().GetTitleGroupsByJob(ctx, jobID)
	if err != nil {
		return err
	}
	byKey := make(map[string]*models.TitleGroup, len(groups))
	for _, group := range groups {
		byKey[group.ID] = group
	}

	anySelected := false
	for _, sel := range selections {
		group, ok := byKey[models.TitleGroupKey(jobID, sel.Company, sel.Title)]
		if !ok {
			return fmt.Errorf("%w: no title group for company %q title %q", common.ErrNotFound, sel.Company, sel.Title)
		}
		group.Selected = sel.Selected
		group.UpdatedAt = time.Now()
		if err := m.storage.TitleGroupStorage().SaveTitleGroup(ctx, group); err != nil {
			return err
		}
	}
	for _, group := range byKey {
		if group.Selected {
			anySelected = true
			break
		}
	}
	if !anySelected {
		return fmt.Errorf("%w: at least one title group must be selected", common.ErrInvalidRequest)
	}

	if err := m.transition(ctx, job, models.JobStateExporting); err != nil {
		return err
	}

	m.StartJob(jobID)
	return nil
}

// Cancel requests cancellation. The flag is persisted first so a restarted
// process honors it; the running driver is then interrupted.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", common.ErrInvalidState, jobID, job.State)
	}

	job.CancelRequested = true
	job.UpdatedAt = time.Now()
	if err := m.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return err
	}

	m.mu.Lock()
	cancel, running := m.active[jobID]
	m.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	// No driver is running (e.g. job is parked at the selection gate), so
	// finalize the cancellation directly.
	return m.finishCancel(ctx, job)
}

// GetStatus returns the job status view from storage only.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	job, err := m.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Status(), nil
}

// GetTitleGroups returns the aggregated title groups for selection.
func (m *Manager) GetTitleGroups(ctx context.Context, jobID string) ([]*models.TitleGroup, error) {
	job, err := m.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State.Before(models.JobStateAwaitingSelection) {
		return nil, fmt.Errorf("%w: job %s has not finished enrichment", common.ErrInvalidState, jobID)
	}
	return m.storage.TitleGroupStorage().GetTitleGroupsByJob(ctx, jobID)
}

// GetResults returns the enriched profiles for a job.
func (m *Manager) GetResults(ctx context.Context, jobID string) ([]*models.EnrichedProfile, error) {
	if _, err := m.storage.JobStorage().GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return m.storage.ProfileStorage().GetEnrichedByJob(ctx, jobID)
}

// GetExport returns the export record for a job.
func (m *Manager) GetExport(ctx context.Context, jobID string) (*models.Export, error) {
	return m.storage.ExportStorage().GetExportByJob(ctx, jobID)
}

// RecoverJobs re-drives jobs stranded in an active state, typically after a
// restart. Jobs parked at the selection gate are waiting on an operator and
// are left alone.
func (m *Manager) RecoverJobs(ctx context.Context) (int, error) {
	jobs, err := m.storage.JobStorage().ListJobsByState(ctx,
		models.JobStateSubmitted,
		models.JobStateContextExtraction,
		models.JobStateSearching,
		models.JobStateEnriching,
		models.JobStateExporting,
	)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range jobs {
		m.mu.Lock()
		_, running := m.active[job.ID]
		m.mu.Unlock()
		if running {
			continue
		}
		m.logger.Info().Str("job_id", job.ID).Str("state", string(job.State)).Msg("Recovering stranded job")
		m.StartJob(job.ID)
		recovered++
	}
	return recovered, nil
}

// acquire registers a driver for the job and returns its cancellable context.
// Returns ok=false when a driver is already running.
func (m *Manager) acquire(jobID string) (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.active[jobID]; running {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.active[jobID] = cancel
	return ctx, true
}

func (m *Manager) release(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.active[jobID]; ok {
		cancel()
		delete(m.active, jobID)
	}
}

// transition moves the job to the next state after validating the edge, and
// publishes the change.
func (m *Manager) transition(ctx context.Context, job *models.Job, next models.JobState) error {
	if !job.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot transition job %s from %s to %s", common.ErrInvalidState, job.ID, job.State, next)
	}

	previous := job.State
	job.State = next
	job.UpdatedAt = time.Now()
	if err := m.storage.JobStorage().SaveJob(ctx, job); err != nil {
		job.State = previous
		return fmt.Errorf("failed to persist state transition: %w", err)
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("Job state changed")

	m.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventJobStateChanged,
		JobID: job.ID,
		Payload: map[string]interface{}{
			"from": string(previous),
			"to":   string(next),
		},
	})
	return nil
}

// failJob moves the job to failed with a reason. Work already persisted
// (discovered profiles, cache entries) is retained.
func (m *Manager) failJob(ctx context.Context, job *models.Job, cause error) error {
	m.logger.Error().Err(cause).Str("job_id", job.ID).Str("state", string(job.State)).Msg("Job failed")

	job.FailureReason = cause.Error()
	if err := m.transition(ctx, job, models.JobStateFailed); err != nil {
		return err
	}
	m.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventJobFailed,
		JobID:   job.ID,
		Payload: map[string]interface{}{"reason": job.FailureReason},
	})
	return nil
}

// finishCancel finalizes a requested cancellation.
func (m *Manager) finishCancel(ctx context.Context, job *models.Job) error {
	if job.State.Terminal() {
		return nil
	}
	if err := m.transition(ctx, job, models.JobStateCancelled); err != nil {
		return err
	}
	m.events.Publish(ctx, interfaces.Event{Type: interfaces.EventJobCancelled, JobID: job.ID})
	return nil
}

// saveProgress persists the job's progress counters without touching state.
func (m *Manager) saveProgress(ctx context.Context, job *models.Job) {
	job.UpdatedAt = time.Now()
	if err := m.storage.JobStorage().SaveJob(ctx, job); err != nil {
		m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job progress")
	}
}

// exceedsFailureThreshold reports whether failed units exceed the configured
// fraction of total units for a stage.
func (m *Manager) exceedsFailureThreshold(failed, total int) bool {
	if total == 0 {
		return false
	}
	threshold := m.config.Workers.FailureThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	return float64(failed)/float64(total) > threshold
}
