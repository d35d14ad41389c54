package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	MockMode    bool             `toml:"mock_mode"`   // Replace all collaborators with fixture-backed mocks
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Workers     WorkersConfig    `toml:"workers"`
	Claude      ClaudeConfig     `toml:"claude"`
	Search      SearchConfig     `toml:"search"`
	Enrichment  EnrichmentConfig `toml:"enrichment"`
	Export      ExportConfig     `toml:"export"`
	Filter      FilterConfig     `toml:"filter"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// WorkersConfig controls per-stage worker pools and the job failure policy.
// Search and enrichment are throttled independently; enrichment concurrency is
// typically higher because enrichment cost dominates job latency.
type WorkersConfig struct {
	SearchConcurrency     int     `toml:"search_concurrency"`     // Max concurrent search queries per job (default: 5)
	EnrichmentConcurrency int     `toml:"enrichment_concurrency"` // Max concurrent profile enrichments per job (default: 10)
	MaxRetries            int     `toml:"max_retries"`            // Retry budget per external call (default: 3)
	RetryBackoff          string  `toml:"retry_backoff"`          // Initial backoff duration (default: "1s")
	RetryBackoffMax       string  `toml:"retry_backoff_max"`      // Backoff cap (default: "10s")
	FailureThreshold      float64 `toml:"failure_threshold"`      // Fraction of failed units that fails the job (default: 0.5)
}

// ClaudeConfig contains Anthropic Claude API configuration for query generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model name (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2048)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "60s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.5)
}

// SearchConfig contains configuration for the web search collaborator
type SearchConfig struct {
	Provider       string `toml:"provider"`        // "serp" (default) or "gemini" (GoogleSearch grounding)
	APIKey         string `toml:"api_key"`         // Provider API key
	BaseURL        string `toml:"base_url"`        // Override for the serp endpoint (tests)
	GeminiModel    string `toml:"gemini_model"`    // Model for gemini provider (default: "gemini-3-flash-preview")
	MaxQueries     int    `toml:"max_queries"`     // Max generated queries per company/country pair (default: 5)
	MaxResults     int    `toml:"max_results"`     // Results requested per query (default: 100)
	RequestTimeout string `toml:"request_timeout"` // Per-call timeout (default: "30s")
	RateLimit      int    `toml:"rate_limit"`      // Requests per second against the provider (default: 5)
	FixturesDir    string `toml:"fixtures_dir"`    // Mock fixtures directory (mock_mode)
}

// EnrichmentConfig contains configuration for the profile enrichment collaborator
type EnrichmentConfig struct {
	APIKey         string `toml:"api_key"`         // Proxycurl API key
	BaseURL        string `toml:"base_url"`        // Override for the enrichment endpoint (tests)
	RequestTimeout string `toml:"request_timeout"` // Per-call timeout (default: "30s")
	RateLimit      int    `toml:"rate_limit"`      // Requests per second against the provider (default: 10)
	CacheTTL       string `toml:"cache_ttl"`       // Cache entry lifetime (default: "24h")
}

// ExportConfig contains Google Sheets export configuration
type ExportConfig struct {
	CredentialsFile string `toml:"credentials_file"` // Service account JSON key path
	SpreadsheetID   string `toml:"spreadsheet_id"`   // Destination spreadsheet
	RequestTimeout  string `toml:"request_timeout"`  // Per-call timeout (default: "60s")
}

// FilterConfig contains the tenure/seniority thresholds applied by the filter engine
type FilterConfig struct {
	CurrentMinYears   float64 `toml:"current_min_years"`  // Min years in current role (default: 6)
	PastMinYears      float64 `toml:"past_min_years"`     // Min total tenure for past employees (default: 10)
	PastRecencyYears  float64 `toml:"past_recency_years"` // Max years since departure (default: 5)
	SeniorityKeywords string  `toml:"seniority_keywords"` // Override for the seniority pattern (regex)
}

// SchedulerConfig controls the recovery sweep and cache maintenance crons
type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`           // Enable background schedules (default: true)
	RecoverySchedule string `toml:"recovery_schedule"` // Cron spec for the job recovery sweep (default: "@every 1m")
	CachePurge       string `toml:"cache_purge"`       // Cron spec for expired-cache purge (default: "@every 1h")
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in prospector.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		MockMode:    false,
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Workers: WorkersConfig{
			SearchConcurrency:     5,
			EnrichmentConcurrency: 10,
			MaxRetries:            3,
			RetryBackoff:          "1s",
			RetryBackoffMax:       "10s",
			FailureThreshold:      0.5,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2048,
			Timeout:     "60s",
			Temperature: 0.5,
		},
		Search: SearchConfig{
			Provider:       "serp",
			GeminiModel:    "gemini-3-flash-preview",
			MaxQueries:     5,
			MaxResults:     100,
			RequestTimeout: "30s",
			RateLimit:      5,
			FixturesDir:    "./fixtures",
		},
		Enrichment: EnrichmentConfig{
			RequestTimeout: "30s",
			RateLimit:      10,
			CacheTTL:       "24h",
		},
		Export: ExportConfig{
			RequestTimeout: "60s",
		},
		Filter: FilterConfig{
			CurrentMinYears:  6,
			PastMinYears:     10,
			PastRecencyYears: 5,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			RecoverySchedule: "@every 1m",
			CachePurge:       "@every 1h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> files (in order) -> env.
// Later files override earlier ones; a missing file is an error, but calling with no
// paths returns defaults plus env overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PROSPECTOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if mock := os.Getenv("PROSPECTOR_MOCK_MODE"); mock != "" {
		if b, err := strconv.ParseBool(mock); err == nil {
			config.MockMode = b
		}
	}

	if port := os.Getenv("PROSPECTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PROSPECTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("PROSPECTOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if v := os.Getenv("PROSPECTOR_SEARCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Workers.SearchConcurrency = n
		}
	}
	if v := os.Getenv("PROSPECTOR_ENRICHMENT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Workers.EnrichmentConcurrency = n
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("PROSPECTOR_SEARCH_API_KEY"); key != "" {
		config.Search.APIKey = key
	}
	if key := os.Getenv("PROSPECTOR_ENRICHMENT_API_KEY"); key != "" {
		config.Enrichment.APIKey = key
	}
	if id := os.Getenv("PROSPECTOR_SPREADSHEET_ID"); id != "" {
		config.Export.SpreadsheetID = id
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" && config.Export.CredentialsFile == "" {
		config.Export.CredentialsFile = creds
	}

	if level := os.Getenv("PROSPECTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PROSPECTOR_LOG_OUTPUT"); output != "" {
		parts := strings.Split(output, ",")
		outputs := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures deep in the pipeline.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Workers.SearchConcurrency < 1 {
		return fmt.Errorf("workers.search_concurrency must be at least 1")
	}
	if c.Workers.EnrichmentConcurrency < 1 {
		return fmt.Errorf("workers.enrichment_concurrency must be at least 1")
	}
	if c.Workers.FailureThreshold <= 0 || c.Workers.FailureThreshold > 1 {
		return fmt.Errorf("workers.failure_threshold must be in (0, 1]")
	}
	if _, err := time.ParseDuration(c.Workers.RetryBackoff); err != nil {
		return fmt.Errorf("invalid workers.retry_backoff: %w", err)
	}
	if _, err := time.ParseDuration(c.Workers.RetryBackoffMax); err != nil {
		return fmt.Errorf("invalid workers.retry_backoff_max: %w", err)
	}
	if _, err := time.ParseDuration(c.Enrichment.CacheTTL); err != nil {
		return fmt.Errorf("invalid enrichment.cache_ttl: %w", err)
	}
	switch c.Search.Provider {
	case "serp", "gemini":
	default:
		return fmt.Errorf("unknown search provider: %s", c.Search.Provider)
	}
	return nil
}

// RetryBackoffDuration returns the parsed initial backoff.
func (c *WorkersConfig) RetryBackoffDuration() time.Duration {
	return parseDurationOr(c.RetryBackoff, time.Second)
}

// RetryBackoffMaxDuration returns the parsed backoff cap.
func (c *WorkersConfig) RetryBackoffMaxDuration() time.Duration {
	return parseDurationOr(c.RetryBackoffMax, 10*time.Second)
}

// CacheTTLDuration returns the parsed cache entry lifetime.
func (c *EnrichmentConfig) CacheTTLDuration() time.Duration {
	return parseDurationOr(c.CacheTTL, 24*time.Hour)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// RequestTimeoutDuration returns the search provider call timeout.
func (c *SearchConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 30*time.Second)
}

// RequestTimeoutDuration returns the enrichment call timeout.
func (c *EnrichmentConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 30*time.Second)
}

// RequestTimeoutDuration returns the export call timeout.
func (c *ExportConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 60*time.Second)
}

// TimeoutDuration returns the Claude call timeout.
func (c *ClaudeConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 60*time.Second)
}
