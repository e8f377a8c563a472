package thesis

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crowdalpha/internal/types"
)

type fakeGateway struct {
	text     string
	degraded bool
	delay    time.Duration
	calls    atomic.Int32
}

func (g *fakeGateway) Complete(ctx context.Context, prompt string) types.Completion {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return types.Completion{Text: g.text, Backend: "fake", Degraded: g.degraded}
}

type memCache struct {
	mu      sync.RWMutex
	entries map[string]types.ThesisResult
	puts    int
	err     error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]types.ThesisResult)}
}

func (c *memCache) Get(fp string) (types.ThesisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[fp]
	return r, ok
}

func (c *memCache) Put(fp string, r types.ThesisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if _, ok := c.entries[fp]; !ok {
		c.entries[fp] = r
	}
	return c.err
}

var nvdaPost = types.Post{
	Title: "Why I keep adding to my NVDA position",
	Body:  "Datacenter demand is not slowing down.",
	URL:   "https://example.com/nvda",
}

func TestExtractCachesResult(t *testing.T) {
	gw := &fakeGateway{text: `{"ticker": ["NVDA"], "sentiment": "bullish", "reason": ["Datacenter demand"]}`}
	cache := newMemCache()
	ex := NewExtractor(gw, cache)
	ctx := context.Background()

	first, err := ex.Extract(ctx, nvdaPost)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := ex.Extract(ctx, nvdaPost)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if n := gw.calls.Load(); n != 1 {
		t.Errorf("Expected 1 inference call, got %d", n)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Second extraction differs: %+v vs %+v", first, second)
	}
	if _, ok := cache.Get(Fingerprint(nvdaPost.Text())); !ok {
		t.Error("Expected result to be written through to the cache")
	}
}

func TestExtractReturnsCachedResultUnchanged(t *testing.T) {
	cached := types.ThesisResult{Tickers: []string{}, Sentiment: types.Bearish, Reasons: []string{"unknown"}}
	cache := newMemCache()
	cache.entries[Fingerprint(nvdaPost.Text())] = cached
	gw := &fakeGateway{text: `{"ticker": ["AMD"]}`}

	got, err := NewExtractor(gw, cache).Extract(context.Background(), nvdaPost)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Error("Expected no inference on a cache hit")
	}
	if !reflect.DeepEqual(got, cached) {
		t.Errorf("Expected cached result as-is, got %+v", got)
	}
}

func TestExtractHeuristicFallback(t *testing.T) {
	post := types.Post{Title: "Thinking about $NVDA and AMD calls", Body: ""}
	gw := &fakeGateway{text: `{"ticker": [], "sentiment": "bearish", "reason": ["Unknown", "Valuation stretched"]}`}

	got, err := NewExtractor(gw, newMemCache()).Extract(context.Background(), post)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := ExtractTickers(post.Text())
	if !reflect.DeepEqual(got.Tickers, want) {
		t.Errorf("Expected heuristic tickers %v, got %v", want, got.Tickers)
	}
	if got.Sentiment != types.Bearish {
		t.Errorf("Expected bearish, got %s", got.Sentiment)
	}
	if !reflect.DeepEqual(got.Reasons, []string{"Valuation stretched"}) {
		t.Errorf("Expected filtered reasons, got %v", got.Reasons)
	}
}

func TestExtractNoTickersAnywhere(t *testing.T) {
	post := types.Post{Title: "what is everyone buying this week?", Body: "asking for a friend"}
	gw := &fakeGateway{text: `{"ticker": [], "sentiment": "neutral", "reason": []}`}

	got, err := NewExtractor(gw, newMemCache()).Extract(context.Background(), post)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(got.Tickers) != 0 {
		t.Errorf("Expected empty tickers, got %v", got.Tickers)
	}
}

func TestExtractParseFailure(t *testing.T) {
	gw := &fakeGateway{text: "I'm sorry, I can't analyse that post."}
	cache := newMemCache()

	got, err := NewExtractor(gw, cache).Extract(context.Background(), nvdaPost)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.Sentiment != types.Neutral {
		t.Errorf("Expected neutral, got %s", got.Sentiment)
	}
	if !reflect.DeepEqual(got.Reasons, []string{ParseErrorReason}) {
		t.Errorf("Expected parse error reason, got %v", got.Reasons)
	}
	// heuristic still runs over the post text
	if !reflect.DeepEqual(got.Tickers, []string{"NVDA"}) {
		t.Errorf("Expected heuristic tickers [NVDA], got %v", got.Tickers)
	}
	if cache.puts != 0 {
		t.Error("Parse failures must not be cached")
	}
}

func TestExtractDegradedNotCached(t *testing.T) {
	gw := &fakeGateway{
		text:     `{"ticker": [], "sentiment": "neutral", "reason": ["LLM error or invalid response format"]}`,
		degraded: true,
	}
	cache := newMemCache()
	ex := NewExtractor(gw, cache)

	for i := 0; i < 2; i++ {
		if _, err := ex.Extract(context.Background(), nvdaPost); err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
	}
	if cache.puts != 0 {
		t.Errorf("Expected no cache writes for degraded completions, got %d", cache.puts)
	}
	if n := gw.calls.Load(); n != 2 {
		t.Errorf("Expected degraded results to be retried, got %d calls", n)
	}
}

func TestExtractCachePutErrorStillReturnsResult(t *testing.T) {
	gw := &fakeGateway{text: `{"ticker": ["NVDA"], "sentiment": "bullish", "reason": []}`}
	cache := newMemCache()
	cache.err = errors.New("disk full")

	got, err := NewExtractor(gw, cache).Extract(context.Background(), nvdaPost)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got.Sentiment != types.Bullish {
		t.Errorf("Expected bullish, got %s", got.Sentiment)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &fakeGateway{text: `{}`}

	_, err := NewExtractor(gw, newMemCache()).Extract(ctx, nvdaPost)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Error("Expected no inference for a cancelled context")
	}
}

func TestExtractConcurrentSamePost(t *testing.T) {
	gw := &fakeGateway{
		text:  `{"ticker": ["NVDA"], "sentiment": "bullish", "reason": ["Demand"]}`,
		delay: 20 * time.Millisecond,
	}
	cache := newMemCache()
	ex := NewExtractor(gw, cache)

	var wg sync.WaitGroup
	results := make([]types.ThesisResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := ex.Extract(context.Background(), nvdaPost)
			if err != nil {
				t.Errorf("Extract failed: %v", err)
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if n := gw.calls.Load(); n != 1 {
		t.Errorf("Expected one shared inference call, got %d", n)
	}
	for i, r := range results {
		if !reflect.DeepEqual(r, results[0]) {
			t.Errorf("Result %d differs: %+v", i, r)
		}
	}
	if len(cache.entries) != 1 {
		t.Errorf("Expected one cache entry, got %d", len(cache.entries))
	}
}
