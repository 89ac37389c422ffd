package origincheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <item><title>Kept</title><link>https://example.com/kept</link></item>
    <item><title>Also kept</title><link>https://example.com/also</link></item>
  </channel>
</rss>`

func TestMarkFlagsVanishedStories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssDoc)
	}))
	t.Cleanup(server.Close)

	feed := core.Feed{ID: "1", Title: "Example", Address: server.URL}
	stories := []core.Story{
		{ID: "kept", Permalink: "https://example.com/kept"},
		{ID: "gone", Permalink: "https://example.com/retracted"},
		{ID: "nolink"},
	}

	set := core.NewDeletionSet()
	checker := New(5*time.Second, "newsblur-cleaner/test")
	if err := checker.Mark(context.Background(), feed, stories, set); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if set.Len() != 1 || !set.Contains("gone") {
		t.Fatalf("expected only the vanished story marked, got %d marks", set.Len())
	}
}

func TestMarkSkipsFeedsWithoutAddress(t *testing.T) {
	set := core.NewDeletionSet()
	checker := New(time.Second, "")
	err := checker.Mark(context.Background(), core.Feed{ID: "1"}, []core.Story{{ID: "a", Permalink: "https://x"}}, set)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("feed without address must not be checked")
	}
}

func TestMarkReturnsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	set := core.NewDeletionSet()
	checker := New(time.Second, "")
	feed := core.Feed{ID: "1", Address: server.URL}
	err := checker.Mark(context.Background(), feed, []core.Story{{ID: "a", Permalink: "https://x"}}, set)
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	if set.Len() != 0 {
		t.Fatalf("a failed fetch must not mark anything")
	}
}
