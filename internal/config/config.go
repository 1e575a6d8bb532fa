// Package config provides configuration loading and structs for the medqa service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is built once at startup and
// passed explicitly to every component that needs it.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Index      IndexConfig      `yaml:"index"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Eval       EvalConfig       `yaml:"eval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// WatchCorpus rebuilds and swaps the index when the corpus file changes.
	WatchCorpus bool `yaml:"watch_corpus"`
	// WatchDebounce is how long the corpus must be quiet before a rebuild starts.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// CorpusConfig locates the clinical transcript dataset.
type CorpusConfig struct {
	Path string `yaml:"path"`
	// Columns restricts which columns form a record's text; empty means all.
	Columns []string `yaml:"columns"`
}

// IndexConfig holds the persisted index location and build fan-out.
type IndexConfig struct {
	Path             string `yaml:"path"`
	BuildConcurrency int    `yaml:"build_concurrency"`
	BatchSize        int    `yaml:"batch_size"`
}

// ChunkingConfig holds the splitter settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
}

// RetryConfig is a bounded exponential backoff budget for one call type.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	// Provider is one of "openai" (any OpenAI-compatible API), "hashing" (offline), or "onnx".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	Retry      RetryConfig   `yaml:"retry"`
	CacheSize  int           `yaml:"cache_size"`
	ModelPath  string        `yaml:"model_path"`
	MaxTokens  int           `yaml:"max_tokens"`
}

// APIKey returns the key read from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// GenerationConfig selects and configures the language model.
type GenerationConfig struct {
	// Provider is one of "openai" or "extractive" (offline).
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

// APIKey returns the key read from the configured environment variable.
func (g *GenerationConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// Retrieval modes.
const (
	RetrievalVector = "vector"
	RetrievalHybrid = "hybrid"
)

// RetrievalConfig holds top-K, the ranking mode and the prompt context budget.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
	// Mode is "vector" (embedding similarity only) or "hybrid" (fused with keyword matches).
	Mode          string  `yaml:"mode"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// PipelineConfig holds per-query limits.
type PipelineConfig struct {
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// EvalConfig holds batch evaluation settings.
type EvalConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Load reads and parses the config file at path, loads a sibling .env file if present,
// expands paths, applies defaults and validates. Returns an error if the file cannot be
// read, parsed, or is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if err := LoadEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	cfg.Corpus.Path = expandPath(cfg.Corpus.Path, configDir)
	cfg.Index.Path = expandPath(cfg.Index.Path, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated config with every default applied and paths relative to dir.
// Used when no config file exists.
func Default(dir string) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := LoadEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	cfg.Corpus.Path = expandPath(cfg.Corpus.Path, dir)
	cfg.Index.Path = expandPath(cfg.Index.Path, dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads environment variables from the given .env files. Missing files are
// skipped; variables already set in the environment are not overridden.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file: %w", err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderHashing, ProviderONNX:
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: openai, hashing, onnx)", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderExtractive:
	default:
		return fmt.Errorf("unknown generation provider: %s (supported: openai, extractive)", c.Generation.Provider)
	}
	switch c.Retrieval.Mode {
	case RetrievalVector, RetrievalHybrid:
	default:
		return fmt.Errorf("unknown retrieval mode: %s (supported: vector, hybrid)", c.Retrieval.Mode)
	}
	if c.Retrieval.KeywordWeight < 0 || c.Retrieval.KeywordWeight > 1 {
		return fmt.Errorf("retrieval.keyword_weight must be in [0, 1], got %g", c.Retrieval.KeywordWeight)
	}
	if c.Embedding.Provider == ProviderONNX && c.Embedding.ModelPath == "" {
		return fmt.Errorf("embedding.model_path is required for the onnx provider")
	}
	return nil
}

// expandPath converts a path to absolute. "~/" paths are relative to the home directory;
// other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
		return abs
	}
	return filepath.Join(configDir, path)
}
