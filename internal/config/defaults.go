package config

import "time"

// Default values applied when the config file leaves a field zero.
const (
	DefaultChunkSize     = 2000 // characters
	DefaultChunkOverlap  = 200
	DefaultTopK          = 5
	DefaultContextBudget = 12000
	DefaultMaxRounds     = 3
	DefaultFanout        = 4
	DefaultDimensions    = 1024
)

// ApplyDefaults fills zero-valued fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./kotae.db"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxInputChars == 0 {
		cfg.Embedding.MaxInputChars = 20000
	}
	if cfg.Embedding.OversizePolicy == "" {
		cfg.Embedding.OversizePolicy = "truncate"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 10
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "anthropic"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}

	if cfg.Vector.Store == "" {
		cfg.Vector.Store = "qdrant"
	}
	if cfg.Vector.Port == 0 {
		cfg.Vector.Port = 6334
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "kotae-chunks"
	}

	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = DefaultChunkSize
	}
	if cfg.Pipeline.ChunkOverlap == 0 {
		cfg.Pipeline.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = DefaultTopK
	}
	if cfg.Pipeline.ContextBudget == 0 {
		cfg.Pipeline.ContextBudget = DefaultContextBudget
	}
	if cfg.Pipeline.MaxRounds == 0 {
		cfg.Pipeline.MaxRounds = DefaultMaxRounds
	}
	if cfg.Pipeline.RescoreThreshold == 0 {
		cfg.Pipeline.RescoreThreshold = 0.65
	}
	if cfg.Pipeline.Fanout == 0 {
		cfg.Pipeline.Fanout = DefaultFanout
	}
	if cfg.Pipeline.Retry.MaxAttempts == 0 {
		cfg.Pipeline.Retry.MaxAttempts = 4
	}
	if cfg.Pipeline.Retry.BaseDelay == 0 {
		cfg.Pipeline.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Pipeline.Retry.MaxDelay == 0 {
		cfg.Pipeline.Retry.MaxDelay = 10 * time.Second
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}
	}
}
