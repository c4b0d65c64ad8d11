package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/refinery/internal/ports"
	"github.com/aescanero/refinery/pkg/adapters/llm/anthropic"
	"github.com/aescanero/refinery/pkg/adapters/llm/openaicompat"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Default OpenAI-compatible endpoints per provider.
var defaultBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"gemini":   "https://generativelanguage.googleapis.com/v1beta/openai",
}

// NewClient creates a new LLM client based on provider
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(cfg.APIKey, cfg.Model, cfg.Logger)
	case "openai", "deepseek", "gemini":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[cfg.Provider]
		}
		return openaicompat.NewClient(&openaicompat.Config{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			BaseURL:  baseURL,
			Timeout:  cfg.Timeout,
			Logger:   cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
