package aggregate

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/thesis"
	"crowdalpha/internal/types"
)

const DefaultWorkers = 5

// Scheduler fans posts out to a bounded pool of extractions and groups the
// results by ticker.
type Scheduler struct {
	extractor interfaces.Extractor
	workers   int
}

func NewScheduler(extractor interfaces.Extractor, workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{extractor: extractor, workers: workers}
}

func (s *Scheduler) Workers() int {
	return s.workers
}

type taskResult struct {
	index  int
	post   types.Post
	result types.ThesisResult
	err    error
}

// Aggregate blocks until every post has been extracted or excluded, then returns
// the complete grouping. A post with several tickers is filed under each of them.
func (s *Scheduler) Aggregate(ctx context.Context, posts []types.Post) types.GroupedTickerMap {
	grouped, _ := s.aggregate(ctx, posts)
	return grouped
}

func (s *Scheduler) aggregate(ctx context.Context, posts []types.Post) (types.GroupedTickerMap, int) {
	grouped := types.GroupedTickerMap{}
	if len(posts) == 0 {
		return grouped, 0
	}

	results := make(chan taskResult, len(posts))

	go func() {
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i, post := range posts {
			g.Go(func() error {
				results <- s.extract(ctx, i, post)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	// Only this goroutine touches grouped.
	done := make([]taskResult, 0, len(posts))
	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			logger.ErrorWithErr(ctx, "Extraction task failed, excluding post", r.err,
				"index", r.index, "title", truncate(r.post.Title, 80))
			continue
		}
		done = append(done, r)
	}

	// Completion order is arbitrary; file in input order so runs are reproducible.
	sort.Slice(done, func(i, j int) bool { return done[i].index < done[j].index })
	for _, r := range done {
		enriched := Enrich(r.post, r.result)
		for _, ticker := range EffectiveTickers(r.result) {
			grouped[ticker] = append(grouped[ticker], enriched)
		}
	}

	return grouped, failed
}

func (s *Scheduler) extract(ctx context.Context, index int, post types.Post) (tr taskResult) {
	tr = taskResult{index: index, post: post}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug(ctx, "Recovered extraction panic", "stack", string(debug.Stack()))
			tr.err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	tr.result, tr.err = s.extractor.Extract(ctx, post)
	return tr
}

// EffectiveTickers is the set of buckets a result is filed under.
func EffectiveTickers(result types.ThesisResult) []string {
	if len(result.Tickers) == 0 {
		return []string{types.Uncategorized}
	}
	return result.Tickers
}

// Enrich builds the display record for one post. The summary joins the surviving
// reasons, or falls back to a fixed placeholder.
func Enrich(post types.Post, result types.ThesisResult) types.EnrichedPost {
	summary := types.NoReasonPlaceholder
	if reasons := thesis.FilterReasons(result.Reasons); len(reasons) > 0 {
		summary = strings.Join(reasons, "; ")
	}
	return types.EnrichedPost{
		Post:      post,
		Sentiment: types.ParseSentiment(string(result.Sentiment)),
		Summary:   summary,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
