package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"crowdalpha/internal/aggregate"
	"crowdalpha/internal/cache"
	"crowdalpha/internal/feed"
	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/llm"
	"crowdalpha/internal/llm/claude"
	"crowdalpha/internal/llm/llmobs"
	"crowdalpha/internal/llm/noop"
	"crowdalpha/internal/llm/openai"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/ratelimit"
	"crowdalpha/internal/runlog"
	"crowdalpha/internal/store"
	"crowdalpha/internal/thesis"
)

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeCache opens and loads the result cache. A corrupt store is reset only
// when the config allows it; otherwise startup aborts.
func initializeCache(ctx context.Context, cfg *store.Config) (*cache.Cache, error) {
	c, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open thesis cache: %w", err)
	}

	err = c.Load()
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrCorrupt) && cfg.Cache.ResetOnCorrupt:
		logger.Warn(ctx, "Thesis cache is corrupt, starting empty", "path", cfg.Cache.Path, "error", err)
		if err := c.Reset(); err != nil {
			c.Close()
			return nil, err
		}
	default:
		c.Close()
		return nil, fmt.Errorf("load thesis cache %s: %w", cfg.Cache.Path, err)
	}

	logger.Info(ctx, "Thesis cache loaded", "backend", cfg.Cache.Backend, "path", cfg.Cache.Path, "entries", c.Len())
	return c, nil
}

// initializeBackend builds one gateway slot with observability. A slot without a
// usable provider or key becomes a noop backend so the chain still degrades cleanly.
func initializeBackend(ctx context.Context, slot string, b store.Backend, cfg *store.Config) interfaces.Completer {
	var completer interfaces.Completer

	apiKey := ""
	if b.APIKeyEnv != "" {
		apiKey = os.Getenv(b.APIKeyEnv)
	}

	switch {
	case b.Provider == store.ProviderNoop:
		completer = noop.New(slot+"-noop", "")
	case apiKey == "":
		logger.Warn(ctx, "Inference API key not set, backend disabled",
			"slot", slot, "provider", b.Provider, "env", b.APIKeyEnv)
		completer = noop.New(slot+"-noop", fmt.Sprintf("%s is not set", b.APIKeyEnv))
	case b.Provider == store.ProviderOpenAI:
		name := "openai"
		var headers map[string]string
		if strings.Contains(b.BaseURL, "openrouter.ai") {
			name = "openrouter"
			headers = map[string]string{
				"HTTP-Referer": "https://github.com/crowdalpha/crowdalpha",
				"X-Title":      "CrowdAlpha",
			}
		}
		completer = openai.New(openai.Config{
			Name:        name,
			Model:       b.Model,
			APIKey:      apiKey,
			BaseURL:     b.BaseURL,
			System:      cfg.LLM.System,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Headers:     headers,
		})
	case b.Provider == store.ProviderClaude:
		completer = claude.New(claude.Config{
			Model:       b.Model,
			APIKey:      apiKey,
			BaseURL:     b.BaseURL,
			System:      cfg.LLM.System,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	default:
		logger.Warn(ctx, "Unknown inference provider, backend disabled", "slot", slot, "provider", b.Provider)
		completer = noop.New(slot+"-noop", fmt.Sprintf("unknown provider %q", b.Provider))
	}

	logger.Info(ctx, "Inference backend ready", "slot", slot, "backend", completer.Name(), "model", b.Model)
	return llmobs.Wrap(completer)
}

func initializeGateway(ctx context.Context, cfg *store.Config) *llm.Gateway {
	return llm.NewGateway(
		initializeBackend(ctx, "primary", cfg.LLM.Primary, cfg),
		initializeBackend(ctx, "secondary", cfg.LLM.Secondary, cfg),
		llm.WithTimeout(cfg.LLMTimeout()),
		llm.WithRateLimiter(ratelimit.New(cfg.LLM.Rate.Burst, cfg.RateInterval())),
	)
}

func initializeFetcher(cfg *store.Config) (interfaces.PostFetcher, error) {
	return feed.New(cfg.Feed.Kind, feed.Config{
		BaseURL:        cfg.Feed.BaseURL,
		UserAgent:      cfg.Feed.UserAgent,
		Timeout:        cfg.FeedTimeout(),
		MinTitleLength: cfg.Feed.MinTitleLength,
	})
}

// initializePipeline wires fetcher, gateway, extractor, scheduler and journal.
// The returned cache must be closed by the caller.
func initializePipeline(ctx context.Context, cfg *store.Config) (*pipeline, *cache.Cache, error) {
	resultCache, err := initializeCache(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := initializeFetcher(cfg)
	if err != nil {
		resultCache.Close()
		return nil, nil, err
	}

	extractor := thesis.NewExtractor(initializeGateway(ctx, cfg), resultCache)

	var journal *runlog.Journal
	if cfg.Output.RunLogDir != "" {
		journal = runlog.New(cfg.Output.RunLogDir)
	}

	return &pipeline{
		fetcher:       fetcher,
		scheduler:     aggregate.NewScheduler(extractor, cfg.Aggregate.Workers),
		journal:       journal,
		retentionDays: cfg.Output.RetentionDays,
		topN:          cfg.Output.TopN,
		out:           os.Stdout,
	}, resultCache, nil
}
