package generate

import (
	"github.com/hyperjump/kotae/internal/pipeline"
)

// Config holds everything needed to construct any generator.
type Config struct {
	Provider string // "anthropic", "openai", or "mock"
	APIKey   string
	Model    string
	BaseURL  string
}

// New creates a Generator from config.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case "mock", "":
		return NewMockGenerator(nil), nil
	default:
		return nil, pipeline.Configf("unknown generation provider %q (use anthropic, openai, or mock)", cfg.Provider)
	}
}
