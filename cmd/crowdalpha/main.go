package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdalpha/internal/logger"
	"crowdalpha/internal/refresh"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "crowdalpha:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	source := flag.String("source", "", "feed source (subreddit name or feed URL); overrides feed.source")
	limit := flag.Int("limit", 0, "maximum posts to fetch; overrides feed.limit")
	format := flag.String("format", "", "output format, text or json; overrides output.format")
	once := flag.Bool("once", false, "run a single pass even when a schedule is configured")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}

	opts := runOptions{source: cfg.Feed.Source, limit: cfg.Feed.Limit, format: cfg.Output.Format}
	if *source != "" {
		opts.source = *source
	}
	if *limit > 0 {
		opts.limit = *limit
	}
	if *format != "" {
		if *format != "text" && *format != "json" {
			return fmt.Errorf("invalid -format %q: must be text or json", *format)
		}
		opts.format = *format
	}

	p, resultCache, err := initializePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer resultCache.Close()

	if *once || cfg.Schedule.Cron == "" {
		return p.run(ctx, opts)
	}

	sched, err := refresh.New(ctx, cfg.Schedule.Timezone, 0)
	if err != nil {
		return err
	}
	job := func(ctx context.Context) error { return p.run(ctx, opts) }
	if err := sched.AddJob("aggregate", cfg.Schedule.Cron, job); err != nil {
		return err
	}

	// first pass right away, then on schedule
	if err := sched.RunNow("aggregate", job); err != nil {
		logger.ErrorWithErr(ctx, "Initial aggregation failed", err)
	}

	sched.Start()
	logger.Info(ctx, "Waiting for scheduled runs", "schedule", cfg.Schedule.Cron, "timezone", cfg.Schedule.Timezone)
	<-ctx.Done()

	logger.Info(ctx, "Shutting down...")
	<-sched.Stop().Done()
	return nil
}
