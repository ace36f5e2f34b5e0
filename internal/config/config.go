// Package config loads and validates deepresearch configuration. Settings
// come from a YAML file, with environment variables taking precedence for
// secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all deepresearch configuration.
type Config struct {
	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Research pipeline settings
	Research ResearchConfig `yaml:"research"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Persistence
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider     string  `yaml:"provider"` // gemini, groq
	APIKey       string  `yaml:"api_key"`
	GeminiAPIKey string  `yaml:"gemini_api_key"`
	GroqAPIKey   string  `yaml:"groq_api_key"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url"`
	Timeout      string  `yaml:"timeout"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// ResearchConfig configures the research pipeline itself.
type ResearchConfig struct {
	MaxSources          int     `yaml:"max_sources"`
	SearchDepth         string  `yaml:"search_depth"` // shallow, medium, deep
	MaxFindingsPerPhase int     `yaml:"max_findings_per_phase"`
	MinRelevanceScore   float64 `yaml:"min_relevance_score"`
	CitationStyle       string  `yaml:"citation_style"` // apa, mla, chicago
	PhaseTimeout        string  `yaml:"phase_timeout"`
	FetchTimeout        string  `yaml:"fetch_timeout"`
	UseBrowser          bool    `yaml:"use_browser"`
}

// RateLimitConfig configures retry and pacing behavior.
type RateLimitConfig struct {
	MinInterval       string `yaml:"min_interval"`
	BaseDelay         string `yaml:"base_delay"`
	MaxRetries        int    `yaml:"max_retries"`
	DegradedThreshold int    `yaml:"degraded_threshold"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	Enabled      bool   `yaml:"enabled"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama-3.1-8b-instant",
			BaseURL:     "https://api.groq.com/openai/v1",
			Timeout:     "120s",
			MaxTokens:   2048,
			Temperature: 0.3,
		},
		Research: ResearchConfig{
			MaxSources:          5,
			SearchDepth:         "medium",
			MaxFindingsPerPhase: 10,
			MinRelevanceScore:   0.3,
			CitationStyle:       "apa",
			PhaseTimeout:        "5m",
			FetchTimeout:        "30s",
		},
		RateLimit: RateLimitConfig{
			MinInterval:       "1s",
			BaseDelay:         "1s",
			MaxRetries:        3,
			DegradedThreshold: 3,
		},
		Storage: StorageConfig{
			DatabasePath: "data/deepresearch.db",
			Enabled:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// FreeTier returns a configuration tuned for free-tier API limits: fewer
// sources, slower pacing, more patience between retries.
func FreeTier() *Config {
	cfg := DefaultConfig()
	cfg.Research.MaxSources = 3
	cfg.Research.SearchDepth = "shallow"
	cfg.RateLimit.MinInterval = "2s"
	cfg.RateLimit.BaseDelay = "2s"
	cfg.RateLimit.MaxRetries = 5
	return cfg
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.GroqAPIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "groq"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.GeminiAPIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if path := os.Getenv("DEEPRESEARCH_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if model := os.Getenv("DEEPRESEARCH_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// ProviderKey returns the API key for the configured provider, falling back
// to the generic api_key field.
func (c *Config) ProviderKey() string {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey != "" {
			return c.LLM.GeminiAPIKey
		}
	case "groq":
		if c.LLM.GroqAPIKey != "" {
			return c.LLM.GroqAPIKey
		}
	}
	return c.LLM.APIKey
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetPhaseTimeout returns the per-phase timeout as a duration.
func (c *Config) GetPhaseTimeout() time.Duration {
	return parseDuration(c.Research.PhaseTimeout, 5*time.Minute)
}

// GetFetchTimeout returns the document fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Research.FetchTimeout, 30*time.Second)
}

// GetMinInterval returns the minimum spacing between model calls.
func (c *Config) GetMinInterval() time.Duration {
	return parseDuration(c.RateLimit.MinInterval, time.Second)
}

// GetBaseDelay returns the base retry backoff.
func (c *Config) GetBaseDelay() time.Duration {
	return parseDuration(c.RateLimit.BaseDelay, time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
