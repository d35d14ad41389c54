// Package export writes accepted profiles to a Google Sheets spreadsheet.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"golang.org/x/oauth2/google"
)

const (
	sheetsAPIBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	sheetsScope      = "https://www.googleapis.com/auth/spreadsheets"
)

// headerRow is the first row of every exported sheet.
var headerRow = []string{
	"Full Name", "Profile URL", "Title", "Company", "Country",
	"Email", "Phone", "Total Experience (years)", "Industry", "Education", "Skills", "Extracted At",
}

// SheetsService implements the Exporter interface against the Google Sheets
// REST API using a service account. Each export lands on a fresh sheet inside
// the configured spreadsheet.
type SheetsService struct {
	config     *common.ExportConfig
	logger     arbor.ILogger
	httpClient *http.Client
	baseURL    string
}

// SheetsOption configures the SheetsService.
type SheetsOption func(*SheetsService)

// WithSheetsBaseURL sets a custom API base URL.
func WithSheetsBaseURL(baseURL string) SheetsOption {
	return func(s *SheetsService) {
		s.baseURL = baseURL
	}
}

// WithSheetsHTTPClient sets a custom HTTP client, bypassing service account
// authentication.
func WithSheetsHTTPClient(client *http.Client) SheetsOption {
	return func(s *SheetsService) {
		s.httpClient = client
	}
}

// NewSheetsService creates a Sheets exporter authenticated via the configured
// service account key file.
func NewSheetsService(ctx context.Context, config *common.ExportConfig, logger arbor.ILogger, opts ...SheetsOption) (*SheetsService, error) {
	if config.SpreadsheetID == "" {
		return nil, fmt.Errorf("export spreadsheet ID is required")
	}

	s := &SheetsService{
		config:  config,
		logger:  logger,
		baseURL: sheetsAPIBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		if config.CredentialsFile == "" {
			return nil, fmt.Errorf("export credentials file is required")
		}
		keyJSON, err := os.ReadFile(config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account key: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(keyJSON, sheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account key: %w", err)
		}
		s.httpClient = jwtConfig.Client(ctx)
		s.httpClient.Timeout = config.RequestTimeoutDuration()
	}

	logger.Debug().
		Str("spreadsheet_id", config.SpreadsheetID).
		Msg("Sheets export service initialized")

	return s, nil
}

// SheetName builds the per-export sheet name from the operator email local
// part and the creation time, e.g. "Leads_jdoe_20250617_0930".
func SheetName(operatorEmail string, at time.Time) string {
	operator := operatorEmail
	if idx := strings.Index(operator, "@"); idx > 0 {
		operator = operator[:idx]
	}
	operator = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, operator)
	return fmt.Sprintf("Leads_%s_%s", operator, at.Format("20060102_1504"))
}

// Export creates the named sheet and writes the header plus all rows in a
// single append call.
func (s *SheetsService) Export(ctx context.Context, rows []interfaces.ExportRow, sheetName string) (*interfaces.ExportResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeoutDuration())
	defer cancel()

	sheetID, err := s.addSheet(timeoutCtx, sheetName)
	if err != nil {
		return nil, err
	}

	values := make([][]interface{}, 0, len(rows)+1)
	header := make([]interface{}, len(headerRow))
	for i, h := range headerRow {
		header[i] = h
	}
	values = append(values, header)

	for _, row := range rows {
		values = append(values, []interface{}{
			row.FullName,
			row.ProfileURL,
			row.Title,
			row.Company,
			row.Country,
			row.Email,
			row.Phone,
			row.TotalExperience,
			row.Industry,
			strings.Join(row.Education, "; "),
			strings.Join(row.Skills, "; "),
			row.ExtractedAt,
		})
	}

	if err := s.appendValues(timeoutCtx, sheetName, values); err != nil {
		return nil, err
	}

	destinationURL := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", s.config.SpreadsheetID, sheetID)

	s.logger.Info().
		Str("sheet", sheetName).
		Int("rows", len(rows)).
		Msg("Export batch written")

	return &interfaces.ExportResult{
		ExportedCount:  len(rows),
		DestinationURL: destinationURL,
	}, nil
}

// addSheet creates a new sheet tab and returns its numeric ID.
func (s *SheetsService) addSheet(ctx context.Context, sheetName string) (int64, error) {
	request := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"addSheet": map[string]interface{}{
					"properties": map[string]interface{}{"title": sheetName},
				},
			},
		},
	}

	var response struct {
		Replies []struct {
			AddSheet struct {
				Properties struct {
					SheetID int64 `json:"sheetId"`
				} `json:"properties"`
			} `json:"addSheet"`
		} `json:"replies"`
	}

	url := fmt.Sprintf("%s/%s:batchUpdate", s.baseURL, s.config.SpreadsheetID)
	if err := s.post(ctx, url, request, &response); err != nil {
		return 0, fmt.Errorf("failed to create sheet %q: %w", sheetName, err)
	}

	if len(response.Replies) == 0 {
		return 0, nil
	}
	return response.Replies[0].AddSheet.Properties.SheetID, nil
}

// appendValues writes the value matrix starting at A1 of the named sheet.
func (s *SheetsService) appendValues(ctx context.Context, sheetName string, values [][]interface{}) error {
	request := map[string]interface{}{
		"range":          fmt.Sprintf("%s!A1", sheetName),
		"majorDimension": "ROWS",
		"values":         values,
	}

	url := fmt.Sprintf("%s/%s/values/%s!A1:append?valueInputOption=RAW", s.baseURL, s.config.SpreadsheetID, sheetName)
	if err := s.post(ctx, url, request, nil); err != nil {
		return fmt.Errorf("failed to append rows to sheet %q: %w", sheetName, err)
	}
	return nil
}

// post sends a JSON request and decodes the response. HTTP 429 and 5xx are
// transient, anything else non-200 is permanent.
func (s *SheetsService) post(ctx context.Context, url string, request, response interface{}) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return common.NewTransientError("export", fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("sheets request failed with status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return common.NewTransientError("export", err)
		}
		return common.NewPermanentError("export", err)
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
