package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultSerpBaseURL is the base URL for the SerpApi search endpoint.
	DefaultSerpBaseURL = "https://serpapi.com"

	// DefaultSerpTimeout is the default HTTP timeout.
	DefaultSerpTimeout = 30 * time.Second

	// DefaultSerpRateLimit is the default rate limit (requests per second).
	DefaultSerpRateLimit = 5

	// serpPageSize is the number of organic results requested per page.
	serpPageSize = 100
)

// SerpProvider executes queries against the SerpApi Google endpoint.
type SerpProvider struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// SerpOption configures the SerpProvider.
type SerpOption func(*SerpProvider)

// WithSerpBaseURL sets a custom base URL.
func WithSerpBaseURL(baseURL string) SerpOption {
	return func(p *SerpProvider) {
		p.baseURL = baseURL
	}
}

// WithSerpHTTPClient sets a custom HTTP client.
func WithSerpHTTPClient(httpClient *http.Client) SerpOption {
	return func(p *SerpProvider) {
		p.httpClient = httpClient
	}
}

// WithSerpRateLimit sets a custom rate limit.
func WithSerpRateLimit(requestsPerSecond int) SerpOption {
	return func(p *SerpProvider) {
		p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewSerpProvider creates a new SerpApi search provider.
func NewSerpProvider(config *common.SearchConfig, logger arbor.ILogger, opts ...SerpOption) (*SerpProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("search API key is required for the serp provider")
	}

	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = serpPageSize
	}

	p := &SerpProvider{
		baseURL:    DefaultSerpBaseURL,
		apiKey:     config.APIKey,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: config.RequestTimeoutDuration(),
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(DefaultSerpRateLimit), DefaultSerpRateLimit),
	}
	if config.BaseURL != "" {
		p.baseURL = config.BaseURL
	}
	if config.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// serpResponse is the subset of the SerpApi payload the provider consumes.
type serpResponse struct {
	OrganicResults []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// ExecuteSearch runs one query and returns the organic results. HTTP 429 and
// 5xx responses surface as transient errors so the caller retries them.
func (p *SerpProvider) ExecuteSearch(ctx context.Context, query string) ([]interfaces.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(serpPageSize))
	params.Set("api_key", p.apiKey)

	reqURL := fmt.Sprintf("%s/search.json?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	p.logger.Debug().Str("query", query).Msg("Executing search query")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, common.NewTransientError("search", fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("search request failed with status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, common.NewTransientError("search", err)
		}
		return nil, common.NewPermanentError("search", err)
	}

	var payload serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, common.NewTransientError("search", fmt.Errorf("failed to decode response: %w", err))
	}
	if payload.Error != "" {
		return nil, common.NewPermanentError("search", fmt.Errorf("search provider error: %s", payload.Error))
	}

	results := make([]interfaces.SearchResult, 0, len(payload.OrganicResults))
	for _, r := range payload.OrganicResults {
		if len(results) >= p.maxResults {
			break
		}
		results = append(results, interfaces.SearchResult{
			URL:     r.Link,
			Title:   r.Title,
			Snippet: r.Snippet,
		})
	}

	p.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Search query completed")

	return results, nil
}
