package interfaces

import (
	"context"

	"github.com/ternarybob/prospector/internal/models"
)

// QueryGenerator produces search query strings for one (company, country)
// pair. Implementations must degrade to a generic template rather than stall
// the pipeline when the AI collaborator is unavailable.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, company *models.CompanyContext, country, campaignGoal string, employmentStatus models.EmploymentStatus) ([]string, error)
}

// SearchResult is one raw hit from the search collaborator.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchProvider executes one web search query. A query returning zero
// results is not an error.
type SearchProvider interface {
	ExecuteSearch(ctx context.Context, query string) ([]SearchResult, error)
}

// ProfileEnricher resolves profile and company URLs to structured payloads.
type ProfileEnricher interface {
	EnrichProfile(ctx context.Context, profileURL string) (*models.ProfilePayload, error)
	FetchCompanyContext(ctx context.Context, companyURL string) (*models.CompanyContext, error)
}

// ExportRow is one spreadsheet row of the export batch.
type ExportRow struct {
	FullName        string
	ProfileURL      string
	Title           string
	Company         string
	Country         string
	Email           string
	Phone           string
	TotalExperience float64
	Industry        string
	Education       []string
	Skills          []string
	ExtractedAt     string
}

// ExportResult reports where the batch landed.
type ExportResult struct {
	ExportedCount  int
	DestinationURL string
}

// Exporter writes the full export batch in one call to minimize external
// requests.
type Exporter interface {
	Export(ctx context.Context, rows []ExportRow, sheetName string) (*ExportResult, error)
}
