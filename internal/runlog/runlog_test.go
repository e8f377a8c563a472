package runlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crowdalpha/internal/types"
)

func TestAppendWritesDailyJSONLines(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	j.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	grouped := types.GroupedTickerMap{"TSLA": {{Post: types.Post{Title: "t"}, Sentiment: types.Bullish, Summary: "s"}}}
	for i := 0; i < 2; i++ {
		if err := j.Append(Entry{Source: "stocks", Fetched: 3, Groups: 1, Grouped: grouped}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "runs", "2026-03-14.txt"))
	if err != nil {
		t.Fatalf("Expected day file: %v", err)
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("Line %d is not JSON: %v", lines, err)
		}
		if e.Time != "2026-03-14T09:30:00Z" || e.Source != "stocks" || len(e.Grouped["TSLA"]) != 1 {
			t.Errorf("Unexpected entry %+v", e)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("Expected 2 lines, got %d", lines)
	}
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	j := New(dir)
	now := time.Now()

	j.now = func() time.Time { return now.AddDate(0, 0, -10) }
	if err := j.Append(Entry{Source: "old"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	oldPath := j.dailyFilepath(now.AddDate(0, 0, -10))
	past := now.AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	j.now = func() time.Time { return now }
	if err := j.Append(Entry{Source: "new"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	n, err := j.CompressOlder(7)
	if err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 compressed file, got %d", n)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Expected old day file to be removed")
	}
	if _, err := os.Stat(j.dailyFilepath(now)); err != nil {
		t.Error("Expected today's file to be kept")
	}

	gzf, err := os.Open(oldPath + ".gz")
	if err != nil {
		t.Fatalf("Expected gzip file: %v", err)
	}
	defer gzf.Close()
	zr, err := gzip.NewReader(gzf)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	data, _ := io.ReadAll(zr)
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil || e.Source != "old" {
		t.Errorf("Unexpected compressed content %q (%v)", data, err)
	}
}

func TestCompressOlderMissingDir(t *testing.T) {
	n, err := New(filepath.Join(t.TempDir(), "nothing")).CompressOlder(3)
	if err != nil || n != 0 {
		t.Errorf("Expected no-op, got %d %v", n, err)
	}
}
