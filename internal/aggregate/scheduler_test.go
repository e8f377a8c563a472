package aggregate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crowdalpha/internal/cache"
	"crowdalpha/internal/thesis"
	"crowdalpha/internal/types"
)

// stubExtractor answers from a title-keyed table.
type stubExtractor struct {
	results  map[string]types.ThesisResult
	panicOn  string
	failOn   string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *stubExtractor) Extract(ctx context.Context, post types.Post) (types.ThesisResult, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	if post.Title == e.panicOn {
		panic("unexpected nil map")
	}
	if post.Title == e.failOn {
		return types.ThesisResult{}, errors.New("extractor bug")
	}
	return e.results[post.Title], nil
}

func TestAggregateFanOut(t *testing.T) {
	post := types.Post{Title: "TSLA and NVDA both look stretched", URL: "https://x.test/1"}
	ex := &stubExtractor{results: map[string]types.ThesisResult{
		post.Title: {Tickers: []string{"TSLA", "NVDA"}, Sentiment: types.Bearish, Reasons: []string{"Valuation"}},
	}}

	grouped := NewScheduler(ex, 5).Aggregate(context.Background(), []types.Post{post})

	if len(grouped) != 2 {
		t.Fatalf("Expected 2 buckets, got %v", grouped.Tickers())
	}
	tsla, nvda := grouped["TSLA"], grouped["NVDA"]
	if len(tsla) != 1 || len(nvda) != 1 {
		t.Fatalf("Expected one record per bucket, got %d and %d", len(tsla), len(nvda))
	}
	if !reflect.DeepEqual(tsla[0], nvda[0]) {
		t.Errorf("Fan-out records differ: %+v vs %+v", tsla[0], nvda[0])
	}
	if tsla[0].Summary != "Valuation" || tsla[0].Sentiment != types.Bearish {
		t.Errorf("Unexpected enriched record %+v", tsla[0])
	}
}

func TestAggregateUncategorized(t *testing.T) {
	post := types.Post{Title: "what is everyone buying this week?"}
	ex := &stubExtractor{results: map[string]types.ThesisResult{
		post.Title: {Tickers: []string{}, Sentiment: types.Neutral, Reasons: []string{"unknown"}},
	}}

	grouped := NewScheduler(ex, 2).Aggregate(context.Background(), []types.Post{post})

	if !reflect.DeepEqual(grouped.Tickers(), []string{types.Uncategorized}) {
		t.Fatalf("Expected only %s, got %v", types.Uncategorized, grouped.Tickers())
	}
	if got := grouped[types.Uncategorized][0].Summary; got != types.NoReasonPlaceholder {
		t.Errorf("Expected placeholder summary, got %q", got)
	}
}

func tenPosts() ([]types.Post, map[string]types.ThesisResult) {
	tickers := []string{"AAPL", "MSFT", "AMZN", "GOOG", "META", "NFLX", "TSLA", "NVDA", "AMD", "INTC"}
	posts := make([]types.Post, len(tickers))
	results := make(map[string]types.ThesisResult, len(tickers))
	for i, tk := range tickers {
		posts[i] = types.Post{Title: fmt.Sprintf("Post %d about %s", i+1, tk)}
		results[posts[i].Title] = types.ThesisResult{Tickers: []string{tk}, Sentiment: types.Bullish}
	}
	return posts, results
}

func TestAggregateIsolatesPanics(t *testing.T) {
	posts, results := tenPosts()
	ex := &stubExtractor{results: results, panicOn: posts[2].Title}

	grouped, failed := NewScheduler(ex, 3).aggregate(context.Background(), posts)

	if failed != 1 {
		t.Errorf("Expected 1 failed task, got %d", failed)
	}
	if grouped.PostCount() != 9 {
		t.Errorf("Expected 9 records, got %d", grouped.PostCount())
	}
	if _, ok := grouped["AMZN"]; ok {
		t.Error("Post #3 must be excluded")
	}
}

func TestAggregateIsolatesErrors(t *testing.T) {
	posts, results := tenPosts()
	ex := &stubExtractor{results: results, failOn: posts[5].Title}

	grouped := NewScheduler(ex, 4).Aggregate(context.Background(), posts)

	if grouped.PostCount() != 9 {
		t.Errorf("Expected 9 records, got %d", grouped.PostCount())
	}
	if _, ok := grouped["NFLX"]; ok {
		t.Error("Failed post must be excluded")
	}
}

func TestAggregateBoundedConcurrency(t *testing.T) {
	posts, results := tenPosts()
	ex := &stubExtractor{results: results, delay: 15 * time.Millisecond}

	NewScheduler(ex, 3).Aggregate(context.Background(), posts)

	if got := ex.maxSeen.Load(); got > 3 {
		t.Errorf("Expected at most 3 concurrent extractions, saw %d", got)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	posts, results := tenPosts()
	results[posts[0].Title] = types.ThesisResult{Tickers: []string{"AAPL", "MSFT"}, Sentiment: types.Bullish}

	reversed := make([]types.Post, len(posts))
	for i, p := range posts {
		reversed[len(posts)-1-i] = p
	}

	a := NewScheduler(&stubExtractor{results: results}, 5).Aggregate(context.Background(), posts)
	b := NewScheduler(&stubExtractor{results: results}, 5).Aggregate(context.Background(), reversed)

	if !reflect.DeepEqual(a.Tickers(), b.Tickers()) {
		t.Fatalf("Bucket keys differ: %v vs %v", a.Tickers(), b.Tickers())
	}
	for _, tk := range a.Tickers() {
		if !reflect.DeepEqual(titles(a[tk]), titles(b[tk])) {
			t.Errorf("Bucket %s differs: %v vs %v", tk, titles(a[tk]), titles(b[tk]))
		}
	}
}

func titles(records []types.EnrichedPost) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	sort.Strings(out)
	return out
}

func TestAggregateEmptyBatch(t *testing.T) {
	grouped := NewScheduler(&stubExtractor{}, 0).Aggregate(context.Background(), nil)
	if grouped == nil || len(grouped) != 0 {
		t.Errorf("Expected empty non-nil map, got %v", grouped)
	}
}

type countingGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGateway) Complete(ctx context.Context, prompt string) types.Completion {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	return types.Completion{Text: `{"ticker": ["GME"], "sentiment": "bullish", "reason": ["Squeeze"]}`, Backend: "fake"}
}

func TestAggregateIdenticalPostsShareOneCacheEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := cache.Open("file", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	posts := make([]types.Post, 12)
	for i := range posts {
		posts[i] = types.Post{Title: "GME squeeze is back on", Body: "Same text every time", URL: fmt.Sprintf("https://x.test/%d", i)}
	}

	gw := &countingGateway{}
	grouped := NewScheduler(thesis.NewExtractor(gw, c), 6).Aggregate(context.Background(), posts)

	if len(grouped["GME"]) != len(posts) {
		t.Errorf("Expected %d GME records, got %d", len(posts), len(grouped["GME"]))
	}

	reloaded, err := cache.Open("file", path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Persisted store is unreadable: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("Expected exactly one persisted entry, got %d", reloaded.Len())
	}
	if _, ok := reloaded.Get(thesis.Fingerprint(posts[0].Text())); !ok {
		t.Error("Expected the shared fingerprint to be persisted")
	}
}
