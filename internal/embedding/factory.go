package embedding

import (
	"fmt"

	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/provider"
	"github.com/hyperjump/medqa/internal/retry"
	"go.uber.org/zap"
)

// NewFromConfig creates the configured embedder, wrapped in a cache when cache_size > 0.
// batchSize is the per-request limit for remote providers.
func NewFromConfig(cfg config.EmbeddingConfig, batchSize int, m *metrics.Metrics, logger *zap.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("embedding API key not set (export %s)", cfg.APIKeyEnv)
		}
		e = NewOpenAIEmbedder(
			provider.NewClient(cfg.BaseURL, key),
			cfg.Model,
			cfg.Dimensions,
			WithBatchSize(batchSize),
			WithRetryPolicy(retry.FromConfig(cfg.Retry, cfg.Timeout)),
			WithMetrics(m),
			WithLogger(logger),
		)
	case config.ProviderHashing:
		e, err = NewHashingEmbedder(cfg.Dimensions)
	case config.ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, hashing, onnx)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
