// Package llm generates per-company search queries with Anthropic Claude.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
)

const querySystemPrompt = `You are a search query strategist for a professional lead-discovery tool.
Given a company, a country, and a campaign goal, produce Google search queries that surface
public LinkedIn profiles of people matching the goal. Respond with a JSON array of query
strings and nothing else.`

// ClaudeService implements the QueryGenerator interface using the Anthropic
// Claude API. On any generation or parsing failure it degrades to a
// deterministic query template so the searching stage never stalls on the LLM.
type ClaudeService struct {
	config     *common.ClaudeConfig
	logger     arbor.ILogger
	client     anthropic.Client
	timeout    time.Duration
	maxQueries int
}

// NewClaudeService creates a new Claude query generation service.
func NewClaudeService(claudeConfig *common.ClaudeConfig, maxQueries int, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-3-5-20241022"
	}
	if maxQueries <= 0 {
		maxQueries = 5
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:     claudeConfig,
		logger:     logger,
		client:     client,
		timeout:    claudeConfig.TimeoutDuration(),
		maxQueries: maxQueries,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", service.timeout).
		Int("max_queries", maxQueries).
		Msg("Claude query generation service initialized")

	return service, nil
}

// GenerateQueries produces up to the configured number of search queries for
// one (company, country) pair. The fallback template result is returned with a
// nil error when Claude fails; callers always get at least one query.
func (s *ClaudeService) GenerateQueries(ctx context.Context, company *models.CompanyContext, country, campaignGoal string, status models.EmploymentStatus) ([]string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := s.buildPrompt(company, country, campaignGoal, status)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: querySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("company", company.Name).
			Str("country", country).
			Msg("Claude query generation failed, using fallback queries")
		return FallbackQueries(company, country, status, s.maxQueries), nil
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	queries, err := ParseQueryArray(text.String())
	if err != nil || len(queries) == 0 {
		s.logger.Warn().Err(err).
			Str("company", company.Name).
			Msg("Claude response was not a query array, using fallback queries")
		return FallbackQueries(company, country, status, s.maxQueries), nil
	}

	if len(queries) > s.maxQueries {
		queries = queries[:s.maxQueries]
	}

	s.logger.Debug().
		Str("company", company.Name).
		Str("country", country).
		Int("queries", len(queries)).
		Msg("Search queries generated")

	return queries, nil
}

// Close releases the underlying client.
func (s *ClaudeService) Close() error {
	return nil
}

func (s *ClaudeService) buildPrompt(company *models.CompanyContext, country, campaignGoal string, status models.EmploymentStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", company.Name)
	if company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", company.Industry)
	}
	if company.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", company.Description)
	}
	fmt.Fprintf(&b, "Country: %s\n", country)
	if campaignGoal != "" {
		fmt.Fprintf(&b, "Campaign goal: %s\n", campaignGoal)
	}

	switch status {
	case models.EmploymentStatusPast:
		b.WriteString("Target: former employees who left the company within the last few years.\n")
	case models.EmploymentStatusAll:
		b.WriteString("Target: both current and former employees.\n")
	default:
		b.WriteString("Target: current employees, especially senior or long-tenured ones.\n")
	}

	fmt.Fprintf(&b, "Every query must include site:linkedin.com/in and the company name. Return at most %d queries as a JSON array.", s.maxQueries)
	return b.String()
}

// ParseQueryArray extracts a JSON string array from LLM output, tolerating
// surrounding prose and markdown fences.
func ParseQueryArray(text string) ([]string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var raw []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse query array: %w", err)
	}

	queries := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// FallbackQueries builds deterministic template queries used when the LLM is
// unavailable. They trade precision for guaranteed coverage.
func FallbackQueries(company *models.CompanyContext, country string, status models.EmploymentStatus, max int) []string {
	name := company.Name

	var queries []string
	switch status {
	case models.EmploymentStatusPast:
		queries = []string{
			fmt.Sprintf(`site:linkedin.com/in "former" "%s" "%s"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "ex-%s" "%s"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "previously at %s" "%s"`, name, country),
		}
	case models.EmploymentStatusAll:
		queries = []string{
			fmt.Sprintf(`site:linkedin.com/in "%s" "%s"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "former" "%s" "%s"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "%s" "%s" director OR manager`, name, country),
		}
	default:
		queries = []string{
			fmt.Sprintf(`site:linkedin.com/in "%s" "%s"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "%s" "%s" director OR manager OR "vice president"`, name, country),
			fmt.Sprintf(`site:linkedin.com/in "works at %s" "%s"`, name, country),
		}
	}

	if max > 0 && len(queries) > max {
		queries = queries[:max]
	}
	return queries
}
