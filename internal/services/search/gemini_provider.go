package search

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"google.golang.org/genai"
)

// defaultGeminiModel is used when no model is configured.
const defaultGeminiModel = "gemini-3-flash-preview"

// GeminiProvider executes queries through the Gemini API with GoogleSearch
// grounding. Result URLs come from the grounding chunks rather than the
// generated text, so the provider is immune to prose formatting drift.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger arbor.ILogger
}

// NewGeminiProvider creates a Gemini-backed search provider.
func NewGeminiProvider(ctx context.Context, config *common.SearchConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("search API key is required for the gemini provider")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.GeminiModel
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// ExecuteSearch runs the query with GoogleSearch grounding and returns the
// grounding sources as results.
func (p *GeminiProvider) ExecuteSearch(ctx context.Context, query string) ([]interfaces.SearchResult, error) {
	searchTool := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{searchTool},
	}

	prompt := fmt.Sprintf(`Search the web for the following query and list every matching page you find.

Query: %s`, query)

	p.logger.Debug().Str("query", query).Str("model", p.model).Msg("Executing Gemini grounded search")

	resp, err := p.client.Models.GenerateContent(
		ctx,
		p.model,
		[]*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
		},
		config,
	)
	if err != nil {
		return nil, common.NewTransientError("search", fmt.Errorf("Gemini search failed: %w", err))
	}

	var results []interfaces.SearchResult
	seen := make(map[string]bool)

	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		gm := resp.Candidates[0].GroundingMetadata
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			results = append(results, interfaces.SearchResult{
				URL:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}

	p.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Gemini grounded search completed")

	return results, nil
}
