package search

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
)

// NewSearchProvider creates the configured search provider implementation.
func NewSearchProvider(ctx context.Context, cfg *common.SearchConfig, logger arbor.ILogger) (interfaces.SearchProvider, error) {
	logger.Info().Str("provider", cfg.Provider).Msg("Initializing search provider")

	switch cfg.Provider {
	case "serp", "":
		return NewSerpProvider(cfg, logger)
	case "gemini":
		return NewGeminiProvider(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported search provider '%s': must be 'serp' or 'gemini'", cfg.Provider)
	}
}
