package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"crowdalpha/internal/aggregate"
	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/runlog"
	"crowdalpha/internal/types"
)

type pipeline struct {
	fetcher       interfaces.PostFetcher
	scheduler     *aggregate.Scheduler
	journal       *runlog.Journal
	retentionDays int
	topN          int
	out           io.Writer
}

type runOptions struct {
	source string
	limit  int
	format string
}

// run performs one fetch-aggregate-render pass.
func (p *pipeline) run(ctx context.Context, opts runOptions) error {
	grouped, stats := aggregate.Run(ctx, p.fetcher, p.scheduler, opts.source, opts.limit)
	top := grouped.TopTickers(p.topN)

	var err error
	if opts.format == "json" {
		err = renderJSON(p.out, grouped, stats, top)
	} else {
		err = renderText(p.out, grouped, top)
	}
	if err != nil {
		return fmt.Errorf("render output: %w", err)
	}

	if p.journal != nil {
		if err := p.journal.Append(runlog.Entry{
			Source:     stats.Source,
			Fetched:    stats.Fetched,
			Failed:     stats.Failed,
			Groups:     stats.Groups,
			Records:    stats.Records,
			DurationMs: stats.Duration.Milliseconds(),
			TopTickers: top,
			Grouped:    grouped,
		}); err != nil {
			logger.Warn(ctx, "Failed to append run journal", "error", err)
		}
		if n, err := p.journal.CompressOlder(p.retentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old run journals", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Compressed old run journals", "files", n)
		}
	}

	return ctx.Err()
}

const titleWidth = 100

func renderText(w io.Writer, grouped types.GroupedTickerMap, top []types.TickerCount) error {
	if len(grouped) == 0 {
		_, err := fmt.Fprintln(w, "No posts to show.")
		return err
	}

	for _, ticker := range grouped.Tickers() {
		if _, err := fmt.Fprintf(w, "\n=== %s ===\n", ticker); err != nil {
			return err
		}
		for _, post := range grouped[ticker] {
			title := []rune(post.Title)
			if len(title) > titleWidth {
				title = title[:titleWidth]
			}
			if _, err := fmt.Fprintf(w, "- [%s] %s\n    %s\n", post.Sentiment, string(title), post.Summary); err != nil {
				return err
			}
		}
	}

	if len(top) > 0 {
		if _, err := fmt.Fprintln(w, "\nTop tickers:"); err != nil {
			return err
		}
		for i, tc := range top {
			if _, err := fmt.Fprintf(w, "%2d. %-6s %d\n", i+1, tc.Ticker, tc.Count); err != nil {
				return err
			}
		}
	}
	return nil
}

type jsonReport struct {
	Stats      aggregate.RunStats     `json:"stats"`
	TopTickers []types.TickerCount    `json:"top_tickers"`
	Grouped    types.GroupedTickerMap `json:"grouped"`
}

func renderJSON(w io.Writer, grouped types.GroupedTickerMap, stats aggregate.RunStats, top []types.TickerCount) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Stats: stats, TopTickers: top, Grouped: grouped})
}
