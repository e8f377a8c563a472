package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

const rssXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Market chatter</title>
    <item>
      <title>Short</title>
      <link>https://news.test/short</link>
      <description>ignored</description>
    </item>
    <item>
      <title>Apple guidance looks conservative again</title>
      <link>https://news.test/aapl</link>
      <description><![CDATA[<p>AAPL beat on <b>services</b>.</p><p>Margins expanded.</p>]]></description>
    </item>
    <item>
      <title>Plain text description item here</title>
      <link>https://news.test/plain</link>
      <description>No markup at all</description>
    </item>
  </channel>
</rss>`

func TestRSSFetcherParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, rssXML)
	}))
	defer srv.Close()

	posts := NewRSSFetcher(Config{}).Fetch(context.Background(), srv.URL+"/feed.xml", 10)

	assert.Equal(t, 2, len(posts))
	assert.Equal(t, "Apple guidance looks conservative again", posts[0].Title)
	assert.Equal(t, "AAPL beat on services.\n\nMargins expanded.", posts[0].Body)
	assert.Equal(t, "https://news.test/aapl", posts[0].URL)
	assert.Equal(t, "No markup at all", posts[1].Body)
}

func TestRSSFetcherSubredditSource(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, rssXML)
	}))
	defer srv.Close()

	posts := NewRSSFetcher(Config{BaseURL: srv.URL}).Fetch(context.Background(), "wallstreetbets", 1)
	assert.Equal(t, "/r/wallstreetbets/.rss", gotPath)
	assert.Equal(t, 1, len(posts))
}

func TestRSSFetcherFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	posts := NewRSSFetcher(Config{}).Fetch(context.Background(), srv.URL, 10)
	assert.Equal(t, 0, len(posts))
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "plain", htmlToText("  plain "))
	assert.Equal(t, "one\n\ntwo", htmlToText("<ul><li>one</li><li>two</li></ul>"))
	assert.Equal(t, "bare text", htmlToText("<span>bare text</span>"))
}
