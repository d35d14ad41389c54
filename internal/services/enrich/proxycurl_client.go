package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultProxycurlBaseURL is the base URL for the Proxycurl API.
	DefaultProxycurlBaseURL = "https://nubela.co/proxycurl"

	// DefaultProxycurlTimeout is the default HTTP timeout.
	DefaultProxycurlTimeout = 45 * time.Second

	// DefaultProxycurlRateLimit is the default rate limit (requests per second).
	DefaultProxycurlRateLimit = 10
)

// ProxycurlClient implements the ProfileEnricher interface against the
// Proxycurl API.
type ProxycurlClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ProxycurlOption configures the ProxycurlClient.
type ProxycurlOption func(*ProxycurlClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ProxycurlOption {
	return func(c *ProxycurlClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProxycurlOption {
	return func(c *ProxycurlClient) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ProxycurlOption {
	return func(c *ProxycurlClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewProxycurlClient creates a new Proxycurl enrichment client.
func NewProxycurlClient(config *common.EnrichmentConfig, logger arbor.ILogger, opts ...ProxycurlOption) (*ProxycurlClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("enrichment API key is required")
	}

	c := &ProxycurlClient{
		baseURL: DefaultProxycurlBaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.RequestTimeoutDuration(),
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(DefaultProxycurlRateLimit), DefaultProxycurlRateLimit),
	}
	if config.BaseURL != "" {
		c.baseURL = config.BaseURL
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// proxycurlDate mirrors the provider's date object.
type proxycurlDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// proxycurlProfile is the subset of the person endpoint payload the engine
// consumes. Everything else stays in the raw document.
type proxycurlProfile struct {
	FullName    string `json:"full_name"`
	Headline    string `json:"headline"`
	CountryName string `json:"country_full_name"`
	Industry    string `json:"industry"`
	Experiences []struct {
		Company  string         `json:"company"`
		Title    string         `json:"title"`
		StartsAt *proxycurlDate `json:"starts_at"`
		EndsAt   *proxycurlDate `json:"ends_at"`
	} `json:"experiences"`
	Education []struct {
		School       string `json:"school"`
		DegreeName   string `json:"degree_name"`
		FieldOfStudy string `json:"field_of_study"`
	} `json:"education"`
	Skills          []string `json:"skills"`
	PersonalEmails  []string `json:"personal_emails"`
	PersonalNumbers []string `json:"personal_numbers"`
}

// proxycurlCompany is the subset of the company endpoint payload used for
// query context.
type proxycurlCompany struct {
	Name        string   `json:"name"`
	Industry    string   `json:"industry"`
	CompanySize string   `json:"company_size_on_linkedin"`
	Description string   `json:"description"`
	Specialties []string `json:"specialities"`
}

// EnrichProfile fetches the structured payload for one profile URL. A 404
// from the provider is permanent; rate limiting and server errors are
// transient.
func (c *ProxycurlClient) EnrichProfile(ctx context.Context, profileURL string) (*models.ProfilePayload, error) {
	body, err := c.get(ctx, "/api/v2/linkedin", url.Values{"linkedin_profile_url": {profileURL}})
	if err != nil {
		return nil, err
	}

	var profile proxycurlProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, common.NewPermanentError("enrichment", fmt.Errorf("failed to decode profile payload: %w", err))
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	payload := &models.ProfilePayload{
		FullName: profile.FullName,
		Headline: profile.Headline,
		Country:  profile.CountryName,
		Industry: profile.Industry,
		Skills:   profile.Skills,
		Raw:      raw,
	}
	if len(profile.PersonalEmails) > 0 {
		payload.Email = profile.PersonalEmails[0]
	}
	if len(profile.PersonalNumbers) > 0 {
		payload.Phone = profile.PersonalNumbers[0]
	}

	for _, edu := range profile.Education {
		entry := edu.School
		if edu.DegreeName != "" {
			entry = fmt.Sprintf("%s, %s", edu.DegreeName, edu.School)
		}
		if entry != "" {
			payload.Education = append(payload.Education, entry)
		}
	}

	for _, exp := range profile.Experiences {
		experience := models.Experience{
			Company: exp.Company,
			Title:   exp.Title,
		}
		if exp.StartsAt != nil {
			experience.StartsAt = &models.DateParts{Year: exp.StartsAt.Year, Month: exp.StartsAt.Month}
		}
		if exp.EndsAt != nil {
			experience.EndsAt = &models.DateParts{Year: exp.EndsAt.Year, Month: exp.EndsAt.Month}
		}
		payload.Experiences = append(payload.Experiences, experience)
	}

	c.logger.Debug().
		Str("url", profileURL).
		Int("experiences", len(payload.Experiences)).
		Msg("Profile enriched")

	return payload, nil
}

// FetchCompanyContext fetches company metadata for query generation. Failures
// degrade to a stub derived from the URL slug rather than an error; context is
// an optimization, not a dependency.
func (c *ProxycurlClient) FetchCompanyContext(ctx context.Context, companyURL string) (*models.CompanyContext, error) {
	body, err := c.get(ctx, "/api/linkedin/company", url.Values{"url": {companyURL}})
	if err != nil {
		c.logger.Warn().Err(err).Str("url", companyURL).Msg("Company lookup failed, using stub context")
		return models.StubCompanyContext(companyURL), nil
	}

	var company proxycurlCompany
	if err := json.Unmarshal(body, &company); err != nil {
		c.logger.Warn().Err(err).Str("url", companyURL).Msg("Company payload malformed, using stub context")
		return models.StubCompanyContext(companyURL), nil
	}
	if company.Name == "" {
		return models.StubCompanyContext(companyURL), nil
	}

	return &models.CompanyContext{
		URL:         companyURL,
		Name:        company.Name,
		Industry:    company.Industry,
		Size:        company.CompanySize,
		Description: company.Description,
		Specialties: company.Specialties,
	}, nil
}

// get performs an authenticated GET and returns the response body.
func (c *ProxycurlClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.NewTransientError("enrichment", fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewTransientError("enrichment", fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, common.NewTransientError("enrichment",
			fmt.Errorf("enrichment request failed with status %d: %s", resp.StatusCode, string(body)))
	default:
		return nil, common.NewPermanentError("enrichment",
			fmt.Errorf("enrichment request failed with status %d: %s", resp.StatusCode, string(body)))
	}
}
