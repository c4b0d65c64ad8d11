package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the refinery service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"REFINERY_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"REFINERY_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Provider configuration, one block per pipeline role
	Generator       ProviderConfig `envPrefix:"GENERATOR_"`
	Critic1         ProviderConfig `envPrefix:"CRITIC1_"`
	Critic2         ProviderConfig `envPrefix:"CRITIC2_"`
	Critic2Fallback ProviderConfig `envPrefix:"CRITIC2_FALLBACK_"`

	// Pipeline configuration
	Pipeline PipelineConfig

	// Retry configuration
	Retry RetryConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// ProviderConfig holds configuration for one remote text-generation
// provider. MinInterval is the minimum spacing between two calls to the
// provider; it is enforced provider-wide, not per session.
type ProviderConfig struct {
	Provider    string        `env:"PROVIDER"`
	Model       string        `env:"MODEL"`
	APIKey      string        `env:"API_KEY"`
	BaseURL     string        `env:"BASE_URL"`
	MinInterval time.Duration `env:"MIN_INTERVAL" envDefault:"1s"`
}

// PipelineConfig holds bounds and thresholds for the generation loop
type PipelineConfig struct {
	MaxIterations     int           `env:"MAX_ITERATIONS" envDefault:"3"`
	LowScoreThreshold float64       `env:"LOW_SCORE_THRESHOLD" envDefault:"0.3"`
	StoreTTL          time.Duration `env:"STORE_TTL" envDefault:"24h"`
}

// RetryConfig holds the provider retry budget
type RetryConfig struct {
	MaxRetries        int           `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`
	InitialBackoff    time.Duration `env:"PROVIDER_INITIAL_BACKOFF" envDefault:"2s"`
	MaxBackoff        time.Duration `env:"PROVIDER_MAX_BACKOFF" envDefault:"60s"`
	BackoffMultiplier float64       `env:"PROVIDER_BACKOFF_MULTIPLIER" envDefault:"2.0"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ProviderRequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout        time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills the provider blocks left empty in the environment:
// a slow-paced generator on a free-tier quota and two independent critics
// with an Anthropic fallback for critic-2.
func (c *Config) applyDefaults() {
	if c.Generator.Provider == "" {
		c.Generator.Provider = "gemini"
		c.Generator.Model = "gemini-2.0-flash-exp"
		c.Generator.MinInterval = 6 * time.Second
	}
	if c.Critic1.Provider == "" {
		c.Critic1.Provider = "openai"
		c.Critic1.Model = "gpt-4o"
	}
	if c.Critic2.Provider == "" {
		c.Critic2.Provider = "deepseek"
		c.Critic2.Model = "deepseek-r1"
	}
	if c.Critic2Fallback.Provider == "" {
		c.Critic2Fallback.Provider = "anthropic"
		c.Critic2Fallback.Model = "claude-3-5-sonnet-20241022"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	for _, pc := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"generator", c.Generator},
		{"critic1", c.Critic1},
		{"critic2", c.Critic2},
		{"critic2 fallback", c.Critic2Fallback},
	} {
		if pc.cfg.Provider == "" {
			return fmt.Errorf("%s provider is required", pc.name)
		}
		if pc.cfg.Model == "" {
			return fmt.Errorf("%s model is required", pc.name)
		}
		if pc.cfg.MinInterval < 0 {
			return fmt.Errorf("%s min interval must not be negative", pc.name)
		}
	}

	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1")
	}
	if c.Pipeline.LowScoreThreshold < 0 || c.Pipeline.LowScoreThreshold > 1 {
		return fmt.Errorf("low score threshold must be in [0,1]: %f", c.Pipeline.LowScoreThreshold)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("provider max retries must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
