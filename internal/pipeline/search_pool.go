package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/search"
	"golang.org/x/sync/errgroup"
)

// runSearching executes the job's search tasks with a bounded worker pool.
// Task creation is checkpointed: a resumed job reuses its persisted tasks and
// re-runs only the non-terminal ones. The stage fails the job only when the
// failed fraction exceeds the configured threshold.
func (m *Manager) runSearching(ctx context.Context, job *models.Job) error {
	tasks, err := m.ensureSearchTasks(ctx, job)
	if err != nil {
		return err
	}

	var pending []*models.SearchTask
	completed, failed := 0, 0
	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusDone:
			completed++
		case models.TaskStatusFailed:
			failed++
		default:
			pending = append(pending, task)
		}
	}

	job.Progress.QueriesTotal = len(tasks)
	job.Progress.QueriesCompleted = completed
	job.Progress.QueriesFailed = failed
	m.saveProgress(ctx, job)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	concurrency := m.config.Workers.SearchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	group.SetLimit(concurrency)

	for _, task := range pending {
		task := task
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			// Once a unit starts it runs to completion and persists its
			// result; a cancel only gates the start of new units, landing
			// after the stage barrier.
			unitCtx := context.WithoutCancel(groupCtx)
			found, taskErr := m.runSearchTask(unitCtx, job, task, &mu)

			mu.Lock()
			defer mu.Unlock()
			if taskErr != nil {
				if errors.Is(taskErr, context.Canceled) {
					return taskErr
				}
				failed++
				job.Progress.QueriesFailed = failed
			} else {
				completed++
				job.Progress.QueriesCompleted = completed
				job.Progress.ProfilesFound += found
			}
			m.saveProgress(unitCtx, job)
			m.events.Publish(unitCtx, interfaces.Event{
				Type:  interfaces.EventStageProgress,
				JobID: job.ID,
				Payload: map[string]interface{}{
					"stage":     string(models.JobStateSearching),
					"completed": completed,
					"failed":    failed,
					"total":     len(tasks),
				},
			})
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if m.exceedsFailureThreshold(failed, len(tasks)) {
		return fmt.Errorf("%w: %d of %d queries failed", common.ErrCapacityExceeded, failed, len(tasks))
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Int("queries", len(tasks)).
		Int("failed", failed).
		Int("profiles_found", job.Progress.ProfilesFound).
		Msg("Search stage completed")

	return nil
}

// ensureSearchTasks returns the job's search tasks, generating and persisting
// them on first entry into the stage.
func (m *Manager) ensureSearchTasks(ctx context.Context, job *models.Job) ([]*models.SearchTask, error) {
	existing, err := m.storage.SearchTaskStorage().GetTasksByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	var tasks []*models.SearchTask
	for _, companyURL := range job.CompanyURLs {
		company, err := m.resolveCompanyContext(ctx, companyURL)
		if err != nil {
			return nil, err
		}

		for _, country := range job.Countries {
			var queries []string
			err := m.retry.Do(ctx, func(ctx context.Context) error {
				var qerr error
				queries, qerr = m.collab.Queries.GenerateQueries(ctx, company, country, job.CampaignGoal, job.EmploymentStatus)
				return qerr
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				// Terminal generation failure marks only this pair failed;
				// the remaining pairs still get their tasks.
				now := time.Now()
				task := &models.SearchTask{
					ID:         common.NewTaskID(),
					JobID:      job.ID,
					Company:    company.Name,
					CompanyURL: companyURL,
					Country:    country,
					Status:     models.TaskStatusFailed,
					Error:      fmt.Sprintf("query generation failed: %v", err),
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if serr := m.storage.SearchTaskStorage().SaveTask(ctx, task); serr != nil {
					return nil, serr
				}
				tasks = append(tasks, task)
				m.logger.Warn().Err(err).
					Str("job_id", job.ID).
					Str("company", company.Name).
					Str("country", country).
					Msg("Query generation failed")
				continue
			}
			if max := m.config.Search.MaxQueries; max > 0 && len(queries) > max {
				queries = queries[:max]
			}

			now := time.Now()
			for _, query := range queries {
				task := &models.SearchTask{
					ID:         common.NewTaskID(),
					JobID:      job.ID,
					Company:    company.Name,
					CompanyURL: companyURL,
					Country:    country,
					Query:      query,
					Status:     models.TaskStatusPending,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := m.storage.SearchTaskStorage().SaveTask(ctx, task); err != nil {
					return nil, err
				}
				tasks = append(tasks, task)
			}
		}
	}

	job.Progress.QueriesTotal = len(tasks)
	m.saveProgress(ctx, job)

	m.logger.Info().
		Str("job_id", job.ID).
		Int("tasks", len(tasks)).
		Msg("Search tasks generated")

	return tasks, nil
}

// runSearchTask executes one query and folds its results into the discovered
// set. Returns the number of profiles newly recorded for this job.
func (m *Manager) runSearchTask(ctx context.Context, job *models.Job, task *models.SearchTask, mu *sync.Mutex) (int, error) {
	task.Status = models.TaskStatusRunning
	task.UpdatedAt = time.Now()
	if err := m.storage.SearchTaskStorage().SaveTask(ctx, task); err != nil {
		return 0, err
	}

	var results []interfaces.SearchResult
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = m.collab.Search.ExecuteSearch(ctx, task.Query)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		task.Status = models.TaskStatusFailed
		task.Error = err.Error()
		task.UpdatedAt = time.Now()
		if serr := m.storage.SearchTaskStorage().SaveTask(ctx, task); serr != nil {
			m.logger.Warn().Err(serr).Str("task_id", task.ID).Msg("Failed to persist task failure")
		}
		m.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("query", task.Query).
			Msg("Search query failed")
		return 0, err
	}

	provenance := models.Provenance{
		Company:    task.Company,
		CompanyURL: task.CompanyURL,
		Country:    task.Country,
	}

	found := 0
	for _, result := range results {
		if !search.IsProfileURL(result.URL) {
			continue
		}
		normalized, nerr := search.NormalizeProfileURL(result.URL)
		if nerr != nil {
			continue
		}

		newRecord, derr := m.recordDiscovered(ctx, job.ID, normalized, result.Snippet, provenance, mu)
		if derr != nil {
			return found, derr
		}
		if newRecord {
			found++
		}
	}

	task.Status = models.TaskStatusDone
	task.ResultCount = len(results)
	task.UpdatedAt = time.Now()
	if err := m.storage.SearchTaskStorage().SaveTask(ctx, task); err != nil {
		return found, err
	}
	return found, nil
}

// recordDiscovered merges one hit into the per-job discovered set. The mutex
// serializes the read-merge-write so concurrent workers finding the same URL
// converge on a single record with the union of provenance pairs.
func (m *Manager) recordDiscovered(ctx context.Context, jobID, url, snippet string, provenance models.Provenance, mu *sync.Mutex) (bool, error) {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	existing, err := m.storage.ProfileStorage().GetDiscovered(ctx, jobID, url)
	if err == nil {
		if existing.HasProvenance(provenance) {
			return false, nil
		}
		existing.Provenance = append(existing.Provenance, provenance)
		existing.UpdatedAt = now
		return false, m.storage.ProfileStorage().SaveDiscovered(ctx, existing)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	profile := &models.DiscoveredProfile{
		ID:         jobID + "|" + url,
		JobID:      jobID,
		URL:        url,
		Snippet:    snippet,
		Provenance: []models.Provenance{provenance},
		Status:     models.TaskStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return true, m.storage.ProfileStorage().SaveDiscovered(ctx, profile)
}
