package answer

import (
	"context"
	"fmt"

	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/provider"
	"github.com/hyperjump/medqa/internal/retry"
	"go.uber.org/zap"
)

// Generator is a language model: one prompt in, free text out.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	ModelID() string
}

// NewGeneratorFromConfig creates the configured generator.
func NewGeneratorFromConfig(cfg config.GenerationConfig, m *metrics.Metrics, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("generation API key not set (export %s)", cfg.APIKeyEnv)
		}
		return NewOpenAIGenerator(provider.NewClient(cfg.BaseURL, key), cfg.Model,
			WithTemperature(cfg.Temperature),
			WithMaxTokens(cfg.MaxTokens),
			WithRetryPolicy(retry.FromConfig(cfg.Retry, cfg.Timeout)),
			WithMetrics(m),
			WithLogger(logger),
		), nil
	case config.ProviderExtractive:
		return NewExtractiveGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: openai, extractive)", cfg.Provider)
	}
}
