// Package config provides configuration loading and validation for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Vector     VectorConfig     `yaml:"vector"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the document registry path and the corpus directory.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	CorpusDir    string `yaml:"corpus_dir"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai" (OpenAI-compatible endpoint) or "mock"
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key; the key
	// itself never appears in the config file.
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	MaxInputChars     int     `yaml:"max_input_chars"`
	OversizePolicy    string  `yaml:"oversize_policy"` // "truncate" or "reject"
	CacheSize         int     `yaml:"cache_size"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// GenerationConfig holds generative model settings.
type GenerationConfig struct {
	Provider  string `yaml:"provider"` // "anthropic", "openai", or "mock"
	Endpoint  string `yaml:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// VectorConfig selects and addresses the vector store.
type VectorConfig struct {
	Store      string `yaml:"store"` // "qdrant" or "memory"
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// RetryConfig bounds retry of transient external-service failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// PipelineConfig holds chunking, retrieval, and assembly settings.
type PipelineConfig struct {
	ChunkSize        int         `yaml:"chunk_size"`    // max chunk length in characters
	ChunkOverlap     int         `yaml:"chunk_overlap"` // characters shared between neighbors
	TopK             int         `yaml:"top_k"`
	ContextBudget    int         `yaml:"context_budget"` // max characters of assembled context
	MaxRounds        int         `yaml:"max_rounds"`
	RescoreThreshold float64     `yaml:"rescore_threshold"` // avg score below which a round escalates
	Fanout           int         `yaml:"fanout"`            // concurrent embed workers during ingestion
	Retry            RetryConfig `yaml:"retry"`
}

// WatchConfig holds corpus directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// RetryPolicy converts the YAML retry block to the pipeline retry config.
func (p *PipelineConfig) RetryPolicy() pipeline.RetryConfig {
	return pipeline.RetryConfig{
		MaxAttempts: p.Retry.MaxAttempts,
		BaseDelay:   p.Retry.BaseDelay,
		MaxDelay:    p.Retry.MaxDelay,
	}
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and validates. A validation failure is fatal to the caller: the
// process must not serve traffic with inconsistent settings.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.CorpusDir = expandPath(cfg.Storage.CorpusDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants that would otherwise surface as
// runtime surprises deep in the pipeline.
func (c *Config) Validate() error {
	p := &c.Pipeline
	if p.ChunkSize <= 0 {
		return pipeline.Configf("pipeline.chunk_size must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkOverlap <= 0 || p.ChunkOverlap >= p.ChunkSize {
		return pipeline.Configf("pipeline.chunk_overlap must satisfy 0 < overlap < chunk_size, got overlap=%d size=%d",
			p.ChunkOverlap, p.ChunkSize)
	}
	if p.TopK <= 0 {
		return pipeline.Configf("pipeline.top_k must be positive, got %d", p.TopK)
	}
	if p.ContextBudget <= 0 {
		return pipeline.Configf("pipeline.context_budget must be positive, got %d", p.ContextBudget)
	}
	if c.Embedding.Dimensions <= 0 {
		return pipeline.Configf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.OversizePolicy {
	case "truncate", "reject":
	default:
		return pipeline.Configf("embedding.oversize_policy must be truncate or reject, got %q", c.Embedding.OversizePolicy)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.Model == "" {
		return pipeline.Configf("embedding.model is required for provider openai")
	}
	switch c.Generation.Provider {
	case "anthropic", "openai":
		if c.Generation.Model == "" {
			return pipeline.Configf("generation.model is required for provider %s", c.Generation.Provider)
		}
	case "mock", "":
	default:
		return pipeline.Configf("unknown generation.provider %q", c.Generation.Provider)
	}
	if c.Vector.Store == "qdrant" && c.Vector.Host == "" {
		return pipeline.Configf("vector.host is required for the qdrant store")
	}
	if c.Vector.Collection == "" {
		return pipeline.Configf("vector.collection must not be empty")
	}
	return nil
}

// Save writes the config back to path as YAML. Used to persist watch
// directory changes made through the API.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// APIKey resolves the named environment variable, or "" when unset.
func APIKey(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
