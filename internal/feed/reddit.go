package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/types"
)

// RedditFetcher reads a subreddit's hot listing through the public JSON endpoint.
type RedditFetcher struct {
	cfg Config
}

var _ interfaces.PostFetcher = (*RedditFetcher)(nil)

func NewRedditFetcher(cfg Config) *RedditFetcher {
	return &RedditFetcher{cfg: cfg.withDefaults()}
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				URL       string `json:"url"`
				Permalink string `json:"permalink"`
				Stickied  bool   `json:"stickied"`
				Pinned    bool   `json:"pinned"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (f *RedditFetcher) listingURL(source string, limit int) string {
	return fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1",
		f.cfg.BaseURL, url.PathEscape(source), limit)
}

// Fetch returns up to limit non-pinned posts with long enough titles, in listing order.
// Any failure is logged and yields an empty batch.
func (f *RedditFetcher) Fetch(ctx context.Context, source string, limit int) []types.Post {
	posts := []types.Post{}
	source = strings.TrimPrefix(strings.TrimSpace(source), "r/")
	if source == "" || limit <= 0 {
		return posts
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.Async(false),
		colly.UserAgent(f.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.cfg.Timeout)

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		var l listing
		if err := json.Unmarshal(r.Body, &l); err != nil {
			fetchErr = fmt.Errorf("decode listing: %w", err)
			return
		}
		for _, child := range l.Data.Children {
			d := child.Data
			if d.Stickied || d.Pinned || !keepTitle(d.Title, f.cfg.MinTitleLength) {
				continue
			}
			link := d.URL
			if link == "" && d.Permalink != "" {
				link = f.cfg.BaseURL + d.Permalink
			}
			var ok bool
			if posts, ok = appendPost(posts, types.Post{
				Title: strings.TrimSpace(d.Title),
				Body:  d.Selftext,
				URL:   link,
			}, limit); !ok {
				return
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	target := f.listingURL(source, limit)
	if err := c.Visit(target); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch subreddit listing", fetchErr, "source", source, "url", target)
		return []types.Post{}
	}

	logger.Info(ctx, "Fetched posts", "source", source, "requested", limit, "kept", len(posts))
	return posts
}
