package aggregate

import (
	"context"
	"time"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/types"
)

// RunStats describes one fetch-and-aggregate pass.
type RunStats struct {
	Source   string        `json:"source"`
	Fetched  int           `json:"fetched"`
	Failed   int           `json:"failed"`
	Groups   int           `json:"groups"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
}

// Run fetches a batch from source and aggregates it. A failed fetch yields an
// empty map, never an error.
func Run(ctx context.Context, fetcher interfaces.PostFetcher, s *Scheduler, source string, limit int) (types.GroupedTickerMap, RunStats) {
	op := logger.StartOperation(ctx, "aggregate.Run", "source", source, "limit", limit)
	ctx = op.GetContext()
	start := time.Now()

	posts := fetcher.Fetch(ctx, source, limit)
	grouped, failed := s.aggregate(ctx, posts)

	stats := RunStats{
		Source:   source,
		Fetched:  len(posts),
		Failed:   failed,
		Groups:   len(grouped),
		Records:  grouped.PostCount(),
		Duration: time.Since(start),
	}

	logger.Info(ctx, "Aggregation run complete",
		"source", source,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"groups", stats.Groups,
		"records", stats.Records,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	op.End("groups", stats.Groups)

	return grouped, stats
}
