package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// companyCachePrefix namespaces company context entries in the shared cache.
const companyCachePrefix = "company|"

// runContextExtraction resolves a context document for every target company.
// Lookups are cached cross-job; failures degrade to URL-derived stubs, so the
// stage itself never fails the job.
func (m *Manager) runContextExtraction(ctx context.Context, job *models.Job) error {
	job.Progress.CompaniesResolved = 0

	for _, companyURL := range job.CompanyURLs {
		if err := ctx.Err(); err != nil {
			return err
		}

		// An in-flight lookup lands even if the job is cancelled; the
		// check above gates the next company.
		company, err := m.resolveCompanyContext(context.WithoutCancel(ctx), companyURL)
		if err != nil {
			return err
		}

		job.Progress.CompaniesResolved++
		m.logger.Debug().
			Str("job_id", job.ID).
			Str("company", company.Name).
			Bool("stub", company.Stub).
			Msg("Company context resolved")
	}

	m.saveProgress(ctx, job)
	return nil
}

// resolveCompanyContext returns the context for one company URL, serving from
// the shared cache when possible. Stub contexts are not cached so a later job
// can retry the real lookup.
func (m *Manager) resolveCompanyContext(ctx context.Context, companyURL string) (*models.CompanyContext, error) {
	cacheKey := companyCachePrefix + companyURL

	if entry, err := m.storage.CacheStorage().Get(ctx, cacheKey); err == nil {
		var company models.CompanyContext
		if err := json.Unmarshal(entry.Payload, &company); err == nil {
			return &company, nil
		}
	} else if !errors.Is(err, interfaces.ErrCacheMiss) {
		m.logger.Warn().Err(err).Str("company_url", companyURL).Msg("Company cache lookup failed")
	}

	var company *models.CompanyContext
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		company, err = m.collab.Enricher.FetchCompanyContext(ctx, companyURL)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		m.logger.Warn().Err(err).Str("company_url", companyURL).Msg("Company lookup failed, using stub context")
		return models.StubCompanyContext(companyURL), nil
	}

	if !company.Stub {
		if payload, merr := json.Marshal(company); merr == nil {
			if cerr := m.storage.CacheStorage().Set(ctx, cacheKey, payload, m.config.Enrichment.CacheTTLDuration()); cerr != nil {
				m.logger.Warn().Err(cerr).Str("company_url", companyURL).Msg("Failed to cache company context")
			}
		}
	}
	return company, nil
}
