package feed

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/types"
)

const (
	DefaultBaseURL        = "https://www.reddit.com"
	DefaultUserAgent      = "crowdalpha/0.2 (thesis aggregator)"
	DefaultSource         = "stocks"
	DefaultLimit          = 10
	DefaultMinTitleLength = 15
	DefaultTimeout        = 30 * time.Second
)

// Config is shared by every fetcher kind.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MinTitleLength int // titles must be strictly longer than this
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MinTitleLength <= 0 {
		c.MinTitleLength = DefaultMinTitleLength
	}
	return c
}

// New returns the fetcher for kind ("reddit" or "rss").
func New(kind string, cfg Config) (interfaces.PostFetcher, error) {
	switch strings.ToLower(kind) {
	case "", "reddit":
		return NewRedditFetcher(cfg), nil
	case "rss":
		return NewRSSFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}
}

// keepTitle applies the minimum title length rule, counting characters not bytes.
func keepTitle(title string, minLen int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(title)) > minLen
}

// appendPost adds p unless the batch is already full.
func appendPost(posts []types.Post, p types.Post, limit int) ([]types.Post, bool) {
	if len(posts) >= limit {
		return posts, false
	}
	return append(posts, p), true
}
