package config

import "time"

// Provider names.
const (
	ProviderOpenAI     = "openai"
	ProviderHashing    = "hashing"
	ProviderONNX       = "onnx"
	ProviderExtractive = "extractive"
)

// GeminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.WatchDebounce == 0 {
		cfg.Server.WatchDebounce = 2 * time.Second
	}
	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = "./datasets/mtsamples.csv"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./data/index"
	}
	if cfg.Index.BuildConcurrency == 0 {
		cfg.Index.BuildConcurrency = 4
	}
	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 32
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 50
	}
	if len(cfg.Chunking.Separators) == 0 {
		cfg.Chunking.Separators = append([]string(nil), DefaultSeparators...)
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	switch cfg.Embedding.Provider {
	case ProviderHashing:
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = 1024
		}
	case ProviderONNX:
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = 384
		}
	default:
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-004"
		}
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = 768
		}
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = GeminiOpenAIBaseURL
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	applyRetryDefaults(&cfg.Embedding.Retry, 5, 500*time.Millisecond, 8*time.Second)
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderOpenAI
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-2.5-flash"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = GeminiOpenAIBaseURL
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	applyRetryDefaults(&cfg.Generation.Retry, 3, time.Second, 10*time.Second)

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 8000
	}
	if cfg.Retrieval.Mode == "" {
		cfg.Retrieval.Mode = RetrievalVector
	}
	if cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
	}
	if cfg.Pipeline.QueryTimeout == 0 {
		cfg.Pipeline.QueryTimeout = 2 * time.Minute
	}
	if cfg.Eval.Concurrency == 0 {
		cfg.Eval.Concurrency = 2
	}
}

func applyRetryDefaults(r *RetryConfig, attempts int, initial, max time.Duration) {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = attempts
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = initial
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = max
	}
}
