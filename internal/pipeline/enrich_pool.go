package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/enrich"
	"github.com/ternarybob/prospector/internal/services/filter"
	"golang.org/x/sync/errgroup"
)

// runEnriching resolves every discovered profile to a structured payload,
// computes derived fields, applies the filter, and aggregates title groups.
// Payloads are served from the cross-job cache when fresh. Individual profile
// failures are contained; the stage fails only past the threshold.
func (m *Manager) runEnriching(ctx context.Context, job *models.Job) error {
	discovered, err := m.storage.ProfileStorage().GetDiscoveredByJob(ctx, job.ID)
	if err != nil {
		return err
	}

	enriched, failed := 0, 0
	var pending []*models.DiscoveredProfile
	for _, profile := range discovered {
		existing, gerr := m.storage.ProfileStorage().GetEnriched(ctx, job.ID, profile.URL)
		if gerr == nil && existing.Status.Terminal() {
			if existing.Status == models.TaskStatusDone {
				enriched++
			} else {
				failed++
			}
			continue
		}
		if gerr != nil && !errors.Is(gerr, common.ErrNotFound) {
			return gerr
		}
		pending = append(pending, profile)
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	concurrency := m.config.Workers.EnrichmentConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	group.SetLimit(concurrency)

	for _, profile := range pending {
		profile := profile
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			// A started unit runs to completion and persists its record
			// even when the job is cancelled mid-flight; the cancel lands
			// after the stage barrier.
			unitCtx := context.WithoutCancel(groupCtx)

			// enrichOne contains collaborator failures in the record; an
			// error here means storage trouble or cancellation, either of
			// which stops the stage.
			record, taskErr := m.enrichOne(unitCtx, job, profile)
			if taskErr != nil {
				return taskErr
			}

			mu.Lock()
			defer mu.Unlock()
			if record.Status == models.TaskStatusDone {
				enriched++
			} else {
				failed++
			}
			job.Progress.ProfilesEnriched = enriched
			job.Progress.ProfilesFailed = failed
			m.saveProgress(unitCtx, job)
			m.events.Publish(unitCtx, interfaces.Event{
				Type:  interfaces.EventStageProgress,
				JobID: job.ID,
				Payload: map[string]interface{}{
					"stage":     string(models.JobStateEnriching),
					"completed": enriched,
					"failed":    failed,
					"total":     len(discovered),
				},
			})
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if m.exceedsFailureThreshold(failed, len(discovered)) {
		return fmt.Errorf("%w: %d of %d profiles failed", common.ErrCapacityExceeded, failed, len(discovered))
	}

	if err := m.buildTitleGroups(ctx, job); err != nil {
		return err
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Int("profiles", len(discovered)).
		Int("enriched", enriched).
		Int("failed", failed).
		Int("matched", job.Progress.ProfilesFiltered).
		Msg("Enrichment stage completed")

	return nil
}

// enrichOne resolves a single profile, derives its fields, and persists the
// enriched record. A permanently failing profile produces a failed record,
// not an error; errors are reserved for storage problems and cancellation.
func (m *Manager) enrichOne(ctx context.Context, job *models.Job, discovered *models.DiscoveredProfile) (*models.EnrichedProfile, error) {
	primary := models.Provenance{}
	if len(discovered.Provenance) > 0 {
		primary = discovered.Provenance[0]
	}

	now := time.Now()
	record := &models.EnrichedProfile{
		ID:        discovered.ID,
		JobID:     job.ID,
		URL:       discovered.URL,
		Company:   primary.Company,
		Country:   primary.Country,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, cached, err := m.fetchPayload(ctx, discovered.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		record.Status = models.TaskStatusFailed
		record.Error = err.Error()
		record.UpdatedAt = time.Now()
		m.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("url", discovered.URL).
			Msg("Profile enrichment failed")
		return record, m.storage.ProfileStorage().SaveEnriched(ctx, record)
	}

	fields := enrich.Derive(payload, primary.Company, time.Now())

	record.Payload = payload
	record.Title = fields.Title
	record.CompanyTitle = fields.CompanyTitle
	record.YearsInRole = fields.YearsInRole
	record.TotalTenureYears = fields.TotalTenureYears
	record.YearsSinceDeparture = fields.YearsSinceDeparture
	record.MeetsCriteria = m.filter.Evaluate(record, job.EmploymentStatus)
	record.CachedPayload = cached
	record.Status = models.TaskStatusDone
	record.UpdatedAt = time.Now()

	return record, m.storage.ProfileStorage().SaveEnriched(ctx, record)
}

// fetchPayload returns the profile payload, serving from the shared cache
// when fresh and populating it after a live fetch.
func (m *Manager) fetchPayload(ctx context.Context, url string) (*models.ProfilePayload, bool, error) {
	if entry, err := m.storage.CacheStorage().Get(ctx, url); err == nil {
		var payload models.ProfilePayload
		if err := json.Unmarshal(entry.Payload, &payload); err == nil {
			return &payload, true, nil
		}
	} else if !errors.Is(err, interfaces.ErrCacheMiss) {
		m.logger.Warn().Err(err).Str("url", url).Msg("Cache lookup failed")
	}

	var payload *models.ProfilePayload
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		payload, err = m.collab.Enricher.EnrichProfile(ctx, url)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if data, merr := json.Marshal(payload); merr == nil {
		if cerr := m.storage.CacheStorage().Set(ctx, url, data, m.config.Enrichment.CacheTTLDuration()); cerr != nil {
			m.logger.Warn().Err(cerr).Str("url", url).Msg("Failed to cache enrichment payload")
		}
	}
	return payload, false, nil
}

// buildTitleGroups aggregates matching profiles per (company, title). Groups
// are rebuilt from scratch so a resumed stage cannot double-count.
func (m *Manager) buildTitleGroups(ctx context.Context, job *models.Job) error {
	if err := m.storage.TitleGroupStorage().DeleteTitleGroupsByJob(ctx, job.ID); err != nil {
		return err
	}

	profiles, err := m.storage.ProfileStorage().GetEnrichedByJob(ctx, job.ID)
	if err != nil {
		return err
	}

	counts := make(map[string]*models.TitleGroup)
	matched := 0
	for _, profile := range profiles {
		if !profile.MeetsCriteria {
			continue
		}
		matched++

		title := filter.GroupTitle(profile)
		key := models.TitleGroupKey(job.ID, profile.Company, title)
		group, ok := counts[key]
		if !ok {
			now := time.Now()
			group = &models.TitleGroup{
				ID:        key,
				JobID:     job.ID,
				Company:   profile.Company,
				Title:     title,
				CreatedAt: now,
				UpdatedAt: now,
			}
			counts[key] = group
		}
		group.Count++
	}

	for _, group := range counts {
		if err := m.storage.TitleGroupStorage().SaveTitleGroup(ctx, group); err != nil {
			return err
		}
	}

	job.Progress.ProfilesFiltered = matched
	m.saveProgress(ctx, job)

	m.logger.Info().
		Str("job_id", job.ID).
		Int("matched", matched).
		Int("title_groups", len(counts)).
		Msg("Title groups built")

	return nil
}
