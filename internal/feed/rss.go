package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/types"
)

// RSSFetcher reads RSS or Atom feeds. A bare source name is treated as a subreddit.
type RSSFetcher struct {
	cfg    Config
	parser *gofeed.Parser
}

var _ interfaces.PostFetcher = (*RSSFetcher)(nil)

func NewRSSFetcher(cfg Config) *RSSFetcher {
	cfg = cfg.withDefaults()
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	return &RSSFetcher{cfg: cfg, parser: parser}
}

func (f *RSSFetcher) feedURL(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return source
	}
	return fmt.Sprintf("%s/r/%s/.rss", f.cfg.BaseURL, strings.TrimPrefix(source, "r/"))
}

// Fetch returns up to limit items. Feeds carry no pinned flag, so only the title
// rule filters.
func (f *RSSFetcher) Fetch(ctx context.Context, source string, limit int) []types.Post {
	posts := []types.Post{}
	source = strings.TrimSpace(source)
	if source == "" || limit <= 0 {
		return posts
	}

	target := f.feedURL(source)
	parsed, err := f.parser.ParseURLWithContext(target, ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch feed", err, "source", source, "url", target)
		return posts
	}

	for _, item := range parsed.Items {
		if !keepTitle(item.Title, f.cfg.MinTitleLength) {
			continue
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		var ok bool
		if posts, ok = appendPost(posts, types.Post{
			Title: strings.TrimSpace(item.Title),
			Body:  htmlToText(body),
			URL:   item.Link,
		}, limit); !ok {
			break
		}
	}

	logger.Info(ctx, "Fetched feed items", "source", source, "items", len(parsed.Items), "kept", len(posts))
	return posts
}

// htmlToText flattens feed HTML into paragraphs of plain text.
func htmlToText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var parts []string
	doc.Find("p, li, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}
