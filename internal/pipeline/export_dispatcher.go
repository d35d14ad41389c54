package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/export"
	"github.com/ternarybob/prospector/internal/services/filter"
)

// runExport collects the profiles belonging to selected title groups and
// writes them to the export destination in one batch. The export record is
// reused across retries so the job keeps a single export history row.
func (m *Manager) runExport(ctx context.Context, job *models.Job) error {
	rows, err := m.collectExportRows(ctx, job)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no profiles match the selected title groups")
	}

	record, err := m.storage.ExportStorage().GetExportByJob(ctx, job.ID)
	if errors.Is(err, common.ErrNotFound) {
		record = &models.Export{
			ID:        common.NewExportID(),
			JobID:     job.ID,
			SheetName: export.SheetName(job.OperatorEmail, time.Now()),
			CreatedAt: time.Now(),
		}
	} else if err != nil {
		return err
	}

	record.Status = models.ExportStatusRunning
	record.Error = ""
	if err := m.storage.ExportStorage().SaveExport(ctx, record); err != nil {
		return err
	}

	var result *interfaces.ExportResult
	err = m.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = m.collab.Exporter.Export(ctx, rows, record.SheetName)
		return err
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			record.Status = models.ExportStatusFailed
			record.Error = err.Error()
			if serr := m.storage.ExportStorage().SaveExport(ctx, record); serr != nil {
				m.logger.Warn().Err(serr).Str("job_id", job.ID).Msg("Failed to persist export failure")
			}
		}
		return err
	}

	now := time.Now()
	record.Status = models.ExportStatusCompleted
	record.SheetURL = result.DestinationURL
	record.ProfilesExported = result.ExportedCount
	record.CompletedAt = &now
	if err := m.storage.ExportStorage().SaveExport(ctx, record); err != nil {
		return err
	}

	job.Progress.ProfilesExported = result.ExportedCount
	m.saveProgress(ctx, job)

	m.logger.Info().
		Str("job_id", job.ID).
		Str("sheet", record.SheetName).
		Int("rows", result.ExportedCount).
		Msg("Export completed")

	m.events.Publish(ctx, interfaces.Event{
		Type:  interfaces.EventExportCompleted,
		JobID: job.ID,
		Payload: map[string]interface{}{
			"sheet_url": record.SheetURL,
			"rows":      result.ExportedCount,
		},
	})
	return nil
}

// collectExportRows builds the spreadsheet rows for every matching profile in
// a selected (company, title) group.
func (m *Manager) collectExportRows(ctx context.Context, job *models.Job) ([]interfaces.ExportRow, error) {
	groups, err := m.storage.TitleGroupStorage().GetTitleGroupsByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool)
	for _, group := range groups {
		if group.Selected {
			selected[group.ID] = true
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no title groups selected", common.ErrInvalidState)
	}

	profiles, err := m.storage.ProfileStorage().GetEnrichedByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	var rows []interfaces.ExportRow
	for _, profile := range profiles {
		if !profile.MeetsCriteria || profile.Payload == nil {
			continue
		}
		key := models.TitleGroupKey(job.ID, profile.Company, filter.GroupTitle(profile))
		if !selected[key] {
			continue
		}

		title := profile.CompanyTitle
		if title == "" {
			title = profile.Title
		}
		rows = append(rows, interfaces.ExportRow{
			FullName:        profile.Payload.FullName,
			ProfileURL:      profile.URL,
			Title:           title,
			Company:         profile.Company,
			Country:         profile.Country,
			Email:           profile.Payload.Email,
			Phone:           profile.Payload.Phone,
			TotalExperience: profile.TotalTenureYears,
			Industry:        profile.Payload.Industry,
			Education:       profile.Payload.Education,
			Skills:          profile.Payload.Skills,
			ExtractedAt:     profile.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}
