package types

import (
	"sort"
	"strings"
)

// Uncategorized is the bucket for posts with no recoverable ticker.
const Uncategorized = "UNCATEGORIZED"

// NoReasonPlaceholder replaces a summary whose reasons were all filtered out.
const NoReasonPlaceholder = "No clear reason provided"

type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// ParseSentiment maps free text onto the three known sentiments; anything else is Neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case Bullish:
		return Bullish
	case Bearish:
		return Bearish
	default:
		return Neutral
	}
}

// Post is one discussion item from a feed.
type Post struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Text is the title and body joined the way they are fingerprinted and scanned.
func (p Post) Text() string {
	return p.Title + "\n" + p.Body
}

// ThesisResult is the structured extraction for one post. The JSON keys match
// the shape the model is asked to produce and the persisted cache format.
type ThesisResult struct {
	Tickers   []string  `json:"ticker"`
	Sentiment Sentiment `json:"sentiment"`
	Reasons   []string  `json:"reason"`
}

// Completion is what the inference gateway hands back for one prompt.
type Completion struct {
	Text     string
	Backend  string
	Degraded bool // every backend failed and Text is the sentinel payload
}

// EnrichedPost is a post filed under a ticker bucket.
type EnrichedPost struct {
	Post
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary"`
}

// GroupedTickerMap maps ticker symbols (and Uncategorized) to the posts discussing them.
// A post with several tickers appears in every one of their buckets.
type GroupedTickerMap map[string][]EnrichedPost

type TickerCount struct {
	Ticker string `json:"ticker"`
	Count  int    `json:"count"`
}

// Tickers returns the bucket keys in sorted order.
func (g GroupedTickerMap) Tickers() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TopTickers returns up to n tickers by post count, ignoring Uncategorized.
// Ties are broken alphabetically. n <= 0 returns every ticker.
func (g GroupedTickerMap) TopTickers(n int) []TickerCount {
	counts := make([]TickerCount, 0, len(g))
	for ticker, posts := range g {
		if ticker == Uncategorized {
			continue
		}
		counts = append(counts, TickerCount{Ticker: ticker, Count: len(posts)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Ticker < counts[j].Ticker
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// PostCount is the number of enriched records across all buckets.
func (g GroupedTickerMap) PostCount() int {
	total := 0
	for _, posts := range g {
		total += len(posts)
	}
	return total
}
