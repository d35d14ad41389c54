// Package mock provides fixture-backed collaborators for development and
// tests. With mock_mode enabled the whole pipeline runs without external
// credentials: queries come from templates, search results and profiles from
// YAML fixtures, and exports land in memory.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"gopkg.in/yaml.v3"
)

type searchFixture struct {
	URL     string `yaml:"url"`
	Title   string `yaml:"title"`
	Snippet string `yaml:"snippet"`
}

type experienceFixture struct {
	Company    string `yaml:"company"`
	Title      string `yaml:"title"`
	StartYear  int    `yaml:"start_year"`
	StartMonth int    `yaml:"start_month"`
	EndYear    int    `yaml:"end_year"`
	EndMonth   int    `yaml:"end_month"`
}

type profileFixture struct {
	FullName    string              `yaml:"full_name"`
	Headline    string              `yaml:"headline"`
	Country     string              `yaml:"country"`
	Email       string              `yaml:"email"`
	Industry    string              `yaml:"industry"`
	Skills      []string            `yaml:"skills"`
	Education   []string            `yaml:"education"`
	Experiences []experienceFixture `yaml:"experiences"`
}

type companyFixture struct {
	Name        string `yaml:"name"`
	Industry    string `yaml:"industry"`
	Size        string `yaml:"size"`
	Description string `yaml:"description"`
}

// fixtureFile is the on-disk format: search results keyed by a company token
// that must appear in the query, profiles and companies keyed by URL.
type fixtureFile struct {
	Searches  map[string][]searchFixture `yaml:"searches"`
	Profiles  map[string]profileFixture  `yaml:"profiles"`
	Companies map[string]companyFixture  `yaml:"companies"`
}

// Service implements every collaborator interface from fixture data.
type Service struct {
	logger    arbor.ILogger
	searches  map[string][]searchFixture
	profiles  map[string]profileFixture
	companies map[string]companyFixture

	mu      sync.Mutex
	exports []ExportedBatch
}

// ExportedBatch records one Export call for inspection.
type ExportedBatch struct {
	SheetName string
	Rows      []interfaces.ExportRow
}

// NewService loads every *.yaml file under fixturesDir. An empty or missing
// directory yields a service that returns empty results rather than errors.
func NewService(fixturesDir string, logger arbor.ILogger) (*Service, error) {
	s := &Service{
		logger:    logger,
		searches:  make(map[string][]searchFixture),
		profiles:  make(map[string]profileFixture),
		companies: make(map[string]companyFixture),
	}

	if fixturesDir == "" {
		return s, nil
	}

	paths, err := filepath.Glob(filepath.Join(fixturesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan fixtures directory: %w", err)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
		}

		var file fixtureFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
		}
		s.merge(file)
	}

	logger.Info().
		Int("files", len(paths)).
		Int("searches", len(s.searches)).
		Int("profiles", len(s.profiles)).
		Msg("Mock fixtures loaded")

	return s, nil
}

func (s *Service) merge(file fixtureFile) {
	for key, results := range file.Searches {
		s.searches[strings.ToLower(key)] = results
	}
	for key, profile := range file.Profiles {
		s.profiles[key] = profile
	}
	for key, company := range file.Companies {
		s.companies[key] = company
	}
}

// GenerateQueries returns deterministic template queries.
func (s *Service) GenerateQueries(ctx context.Context, company *models.CompanyContext, country, campaignGoal string, status models.EmploymentStatus) ([]string, error) {
	return []string{
		fmt.Sprintf(`site:linkedin.com/in "%s" "%s"`, company.Name, country),
		fmt.Sprintf(`site:linkedin.com/in "%s" "%s" director OR manager`, company.Name, country),
	}, nil
}

// ExecuteSearch returns the fixture results whose key appears in the query.
func (s *Service) ExecuteSearch(ctx context.Context, query string) ([]interfaces.SearchResult, error) {
	lowered := strings.ToLower(query)
	for key, fixtures := range s.searches {
		if !strings.Contains(lowered, key) {
			continue
		}
		results := make([]interfaces.SearchResult, 0, len(fixtures))
		for _, f := range fixtures {
			results = append(results, interfaces.SearchResult{
				URL:     f.URL,
				Title:   f.Title,
				Snippet: f.Snippet,
			})
		}
		return results, nil
	}
	return nil, nil
}

// EnrichProfile returns the fixture payload for the URL.
func (s *Service) EnrichProfile(ctx context.Context, profileURL string) (*models.ProfilePayload, error) {
	fixture, ok := s.profiles[profileURL]
	if !ok {
		return nil, common.NewPermanentError("enrichment", fmt.Errorf("no fixture for profile %s", profileURL))
	}

	payload := &models.ProfilePayload{
		FullName:  fixture.FullName,
		Headline:  fixture.Headline,
		Country:   fixture.Country,
		Email:     fixture.Email,
		Industry:  fixture.Industry,
		Skills:    fixture.Skills,
		Education: fixture.Education,
	}
	for _, exp := range fixture.Experiences {
		experience := models.Experience{
			Company: exp.Company,
			Title:   exp.Title,
		}
		if exp.StartYear > 0 {
			experience.StartsAt = &models.DateParts{Year: exp.StartYear, Month: exp.StartMonth}
		}
		if exp.EndYear > 0 {
			experience.EndsAt = &models.DateParts{Year: exp.EndYear, Month: exp.EndMonth}
		}
		payload.Experiences = append(payload.Experiences, experience)
	}
	return payload, nil
}

// FetchCompanyContext returns the fixture company, or a stub when unknown.
func (s *Service) FetchCompanyContext(ctx context.Context, companyURL string) (*models.CompanyContext, error) {
	if fixture, ok := s.companies[companyURL]; ok {
		return &models.CompanyContext{
			URL:         companyURL,
			Name:        fixture.Name,
			Industry:    fixture.Industry,
			Size:        fixture.Size,
			Description: fixture.Description,
		}, nil
	}
	return models.StubCompanyContext(companyURL), nil
}

// Export records the batch in memory.
func (s *Service) Export(ctx context.Context, rows []interfaces.ExportRow, sheetName string) (*interfaces.ExportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exports = append(s.exports, ExportedBatch{SheetName: sheetName, Rows: rows})

	s.logger.Info().
		Str("sheet", sheetName).
		Int("rows", len(rows)).
		Msg("Mock export recorded")

	return &interfaces.ExportResult{
		ExportedCount:  len(rows),
		DestinationURL: "mock://exports/" + sheetName,
	}, nil
}

// Exports returns every recorded batch.
func (s *Service) Exports() []ExportedBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExportedBatch(nil), s.exports...)
}
