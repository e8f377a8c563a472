package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend provider names accepted in llm.primary / llm.secondary.
const (
	ProviderOpenAI = "OPENAI"
	ProviderClaude = "CLAUDE"
	ProviderNoop   = "NOOP"
)

type Backend struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Config struct {
	Feed struct {
		Kind           string `yaml:"kind"`
		Source         string `yaml:"source"`
		Limit          int    `yaml:"limit"`
		MinTitleLength int    `yaml:"min_title_length"`
		BaseURL        string `yaml:"base_url"`
		UserAgent      string `yaml:"user_agent"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"feed"`
	LLM struct {
		Primary        Backend `yaml:"primary"`
		Secondary      Backend `yaml:"secondary"`
		System         string  `yaml:"system"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		Rate           struct {
			Burst      int `yaml:"burst"`
			IntervalMs int `yaml:"interval_ms"`
		} `yaml:"rate"`
	} `yaml:"llm"`
	Cache struct {
		Backend        string `yaml:"backend"`
		Path           string `yaml:"path"`
		ResetOnCorrupt bool   `yaml:"reset_on_corrupt"`
	} `yaml:"cache"`
	Aggregate struct {
		Workers int `yaml:"workers"`
	} `yaml:"aggregate"`
	Output struct {
		Format        string `yaml:"format"`
		TopN          int    `yaml:"top_n"`
		RunLogDir     string `yaml:"run_log_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"output"`
	Schedule struct {
		Cron     string `yaml:"cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Feed.Kind == "" {
		c.Feed.Kind = "reddit"
	}
	if c.Feed.Source == "" {
		c.Feed.Source = "stocks"
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = 10
	}
	if c.Feed.MinTitleLength == 0 {
		c.Feed.MinTitleLength = 15
	}
	if c.Feed.TimeoutSeconds == 0 {
		c.Feed.TimeoutSeconds = 30
	}

	if c.LLM.Primary.Provider == "" {
		c.LLM.Primary = Backend{
			Provider:  ProviderOpenAI,
			Model:     "meta-llama/llama-3-8b-instruct:free",
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKeyEnv: "OPENROUTER_API_KEY",
		}
	}
	if c.LLM.Secondary.Provider == "" {
		c.LLM.Secondary = Backend{
			Provider:  ProviderClaude,
			Model:     "claude-3-5-haiku-latest",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		}
	}
	c.LLM.Primary.Provider = strings.ToUpper(c.LLM.Primary.Provider)
	c.LLM.Secondary.Provider = strings.ToUpper(c.LLM.Secondary.Provider)
	if c.LLM.System == "" {
		c.LLM.System = "You are a financial analyst assistant."
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.Rate.Burst == 0 {
		c.LLM.Rate.Burst = 5
	}
	if c.LLM.Rate.IntervalMs == 0 {
		c.LLM.Rate.IntervalMs = 1000
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Path == "" {
		if c.Cache.Backend == "sqlite" {
			c.Cache.Path = "cache/llm_cache.db"
		} else {
			c.Cache.Path = "cache/llm_cache.json"
		}
	}

	if c.Aggregate.Workers == 0 {
		c.Aggregate.Workers = 5
	}

	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
	if c.Output.TopN == 0 {
		c.Output.TopN = 10
	}
	if c.Output.RetentionDays == 0 {
		c.Output.RetentionDays = 7
	}

	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
}

func validBackend(name string, b Backend) error {
	switch b.Provider {
	case ProviderOpenAI, ProviderClaude:
		if b.Model == "" {
			return fmt.Errorf("llm.%s.model is required for provider %s", name, b.Provider)
		}
	case ProviderNoop:
	default:
		return fmt.Errorf("llm.%s.provider must be 'OPENAI', 'CLAUDE' or 'NOOP', got '%s'", name, b.Provider)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Feed.Kind != "reddit" && c.Feed.Kind != "rss" {
		return fmt.Errorf("invalid feed.kind '%s': must be 'reddit' or 'rss'", c.Feed.Kind)
	}
	if c.Feed.Limit < 1 {
		return fmt.Errorf("feed.limit must be positive, got %d", c.Feed.Limit)
	}
	if err := validBackend("primary", c.LLM.Primary); err != nil {
		return err
	}
	if err := validBackend("secondary", c.LLM.Secondary); err != nil {
		return err
	}
	if c.LLM.TimeoutSeconds < 1 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.Rate.IntervalMs < 0 || c.LLM.Rate.Burst < 0 {
		return errors.New("llm.rate values cannot be negative")
	}
	if c.Cache.Backend != "file" && c.Cache.Backend != "sqlite" {
		return fmt.Errorf("invalid cache.backend '%s': must be 'file' or 'sqlite'", c.Cache.Backend)
	}
	if c.Aggregate.Workers < 1 {
		return fmt.Errorf("aggregate.workers must be positive, got %d", c.Aggregate.Workers)
	}
	if c.Output.Format != "text" && c.Output.Format != "json" {
		return fmt.Errorf("invalid output.format '%s': must be 'text' or 'json'", c.Output.Format)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule.timezone '%s': %w", c.Schedule.Timezone, err)
	}
	return nil
}

// LLMTimeout is the per-attempt bound for one backend call.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) RateInterval() time.Duration {
	return time.Duration(c.LLM.Rate.IntervalMs) * time.Millisecond
}

func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// LoadConfig reads a YAML config. A missing file is not an error: every default applies.
func LoadConfig(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
