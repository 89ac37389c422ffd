package newsblur

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/core"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(config.NewsBlurEnvConfig{
		BaseURL:         server.URL,
		HTTPTimeout:     5 * time.Second,
		RequestInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	client.retry.Attempts = 1
	return client
}

func TestLoginSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("username") != "alice" {
			t.Errorf("unexpected username %q", r.PostForm.Get("username"))
		}
		fmt.Fprint(w, `{"result": "ok", "authenticated": true}`)
	})

	client := testClient(t, mux)
	session, err := client.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Username() != "alice" {
		t.Fatalf("unexpected session username %q", session.Username())
	}
}

func TestLoginBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": "fail", "authenticated": false, "errors": {"username": ["bad login"]}}`)
	})

	client := testClient(t, mux)
	_, err := client.Login(context.Background(), "alice", "wrong")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestLoginServiceFailureIsNotAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": "maintenance"}`)
	})

	client := testClient(t, mux)
	_, err := client.Login(context.Background(), "alice", "secret")
	var authErr *AuthError
	if errors.As(err, &authErr) {
		t.Fatalf("a service outage must not look like bad credentials: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestLoginMalformedBodyIsNotAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>offline</html>`)
	})

	client := testClient(t, mux)
	_, err := client.Login(context.Background(), "alice", "secret")
	var authErr *AuthError
	if errors.As(err, &authErr) {
		t.Fatalf("a garbled body must not look like bad credentials: %v", err)
	}
}

func TestFeedsParsesAndSorts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reader/feeds", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("update_counts") != "true" {
			t.Errorf("expected update_counts=true")
		}
		fmt.Fprint(w, `{"result": "ok", "feeds": {
			"2": {"feed_title": "Zebra News", "nt": 3},
			"1": {"feed_title": "Antelope Weekly", "nt": 0, "feed_address": "https://antelope.example/rss"}
		}}`)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	feeds, err := session.Feeds(context.Background())
	if err != nil {
		t.Fatalf("feeds failed: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(feeds))
	}
	if feeds[0].Title != "Antelope Weekly" || feeds[1].Title != "Zebra News" {
		t.Fatalf("feeds not sorted by title: %v", feeds)
	}
	if feeds[0].Address != "https://antelope.example/rss" {
		t.Fatalf("feed address not parsed")
	}
	if feeds[1].UnreadCount != 3 {
		t.Fatalf("unread count not parsed")
	}
}

func TestStoriesPagesUntilUnreadCount(t *testing.T) {
	pages := map[string]string{
		"1": `{"result": "ok", "stories": [
			{"id": "s2", "story_hash": "7:s2", "story_title": "Two", "story_permalink": "https://example.com/2", "story_timestamp": "1700000100", "read_status": 0},
			{"id": "skip", "story_hash": "7:skip", "read_status": 1}
		]}`,
		"2": `{"result": "ok", "stories": [
			{"id": "s1", "story_hash": "7:s1", "story_title": "One", "story_permalink": "https://example.com/1", "story_timestamp": "1700000000", "read_status": 0}
		]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/reader/feed/7", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("read_filter") != "unread" {
			t.Errorf("expected read_filter=unread")
		}
		if r.URL.Query().Get("order") != "newest" {
			t.Errorf("expected order=newest")
		}
		page := r.URL.Query().Get("page")
		body, ok := pages[page]
		if !ok {
			body = `{"result": "ok", "stories": []}`
		}
		fmt.Fprint(w, body)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	stories, err := session.Stories(context.Background(), core.Feed{ID: "7", UnreadCount: 2})
	if err != nil {
		t.Fatalf("stories failed: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("expected 2 unread stories, got %d", len(stories))
	}
	if stories[0].ID != "s2" || stories[1].ID != "s1" {
		t.Fatalf("unexpected story order: %v", stories)
	}
	want := time.Unix(1700000000, 0).UTC()
	if !stories[1].PublishedAt.Equal(want) {
		t.Fatalf("timestamp not parsed: %v", stories[1].PublishedAt)
	}
}

func TestStoriesStopsOnEmptyPage(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/reader/feed/9", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"result": "ok", "stories": []}`)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	// Unread count claims 50 but the feed serves nothing; a stale count
	// must not loop forever.
	stories, err := session.Stories(context.Background(), core.Feed{ID: "9", UnreadCount: 50})
	if err != nil {
		t.Fatalf("stories failed: %v", err)
	}
	if len(stories) != 0 {
		t.Fatalf("expected no stories, got %d", len(stories))
	}
	if calls != 1 {
		t.Fatalf("expected a single page fetch, got %d", calls)
	}
}

func TestPurgeStoriesSendsHashes(t *testing.T) {
	var got []string
	mux := http.NewServeMux()
	mux.HandleFunc("/reader/mark_story_hashes_as_read", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = r.PostForm["story_hash"]
		fmt.Fprint(w, `{"result": "ok"}`)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	if err := session.PurgeStories(context.Background(), []string{"7:a", "7:b"}); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if len(got) != 2 || got[0] != "7:a" || got[1] != "7:b" {
		t.Fatalf("unexpected hashes: %v", got)
	}
}

func TestPurgeStoriesEmptyIsNoop(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty purge")
	}))
	session := &Session{client: client, username: "alice"}
	if err := session.PurgeStories(context.Background(), nil); err != nil {
		t.Fatalf("empty purge failed: %v", err)
	}
}

func TestNonOKResultBecomesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reader/feeds", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result": "maintenance"}`)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	_, err := session.Feeds(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestHTTPErrorBecomesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reader/feeds", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	client := testClient(t, mux)
	session := &Session{client: client, username: "alice"}
	_, err := session.Feeds(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", apiErr.StatusCode)
	}
}
