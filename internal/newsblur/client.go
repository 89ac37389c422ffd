package newsblur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/retry"
)

// Client talks to the NewsBlur reader API. The session cookie issued at
// login lives in the client's cookie jar; no other state is retained.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	retry     retry.Config
}

// Session is an authenticated handle on the reader API. It is read-only
// after login and safe to reuse for the whole run.
type Session struct {
	client   *Client
	username string
}

func NewClient(cfg config.NewsBlurEnvConfig) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://www.newsblur.com"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse newsblur base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "newsblur-cleaner/1.0.0"
	}

	return &Client{
		baseURL:   parsed,
		http:      &http.Client{Timeout: timeout, Jar: jar},
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		retry:     retry.Config{Attempts: 3, BaseDelay: 300 * time.Millisecond},
	}, nil
}

type envelope struct {
	Result        string          `json:"result"`
	Authenticated bool            `json:"authenticated"`
	Errors        json.RawMessage `json:"errors,omitempty"`
}

// Login authenticates against /api/login. Rejected credentials produce an
// *AuthError; transport failures an *APIError.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	body, err := c.do(ctx, http.MethodPost, "/api/login", nil, form)
	if err != nil {
		var apiErr *APIError
		// The service answers a bad login with result "fail", not a 401.
		// Other non-ok results (maintenance, garbled body) stay APIErrors.
		if errors.As(err, &apiErr) && apiErr.Result == "fail" {
			return nil, &AuthError{Username: username, Detail: apiErr.Detail}
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Method: http.MethodPost, Path: "/api/login", Detail: err.Error()}
	}
	if !env.Authenticated {
		return nil, &AuthError{Username: username, Detail: string(env.Errors)}
	}
	return &Session{client: c, username: username}, nil
}

// Username returns the account the session was opened for.
func (s *Session) Username() string {
	return s.username
}

type feedsResponse struct {
	Feeds map[string]struct {
		Title       string `json:"feed_title"`
		Address     string `json:"feed_address"`
		UnreadCount int    `json:"nt"`
	} `json:"feeds"`
}

// Feeds lists the account's subscriptions, sorted by title.
// update_counts forces recalculation of unread counts on all feeds.
func (s *Session) Feeds(ctx context.Context) ([]core.Feed, error) {
	params := url.Values{}
	params.Set("update_counts", "true")

	body, err := s.client.do(ctx, http.MethodGet, "/reader/feeds", params, nil)
	if err != nil {
		return nil, err
	}

	var resp feedsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Method: http.MethodGet, Path: "/reader/feeds", Detail: err.Error()}
	}

	feeds := make([]core.Feed, 0, len(resp.Feeds))
	for id, data := range resp.Feeds {
		feed := core.Feed{
			ID:          id,
			Title:       data.Title,
			Address:     data.Address,
			UnreadCount: data.UnreadCount,
		}
		if feed.Title == "" {
			feed.Title = id
		}
		feeds = append(feeds, feed)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].Title < feeds[j].Title })
	return feeds, nil
}

type storiesResponse struct {
	Stories []struct {
		ID         string `json:"id"`
		Hash       string `json:"story_hash"`
		Title      string `json:"story_title"`
		Permalink  string `json:"story_permalink"`
		Timestamp  string `json:"story_timestamp"`
		ReadStatus int    `json:"read_status"`
	} `json:"stories"`
}

// Stories fetches the feed's unread stories page by page, newest first,
// metadata only. Fetching stops once the feed's unread count is satisfied
// or a page comes back empty, whichever happens first.
func (s *Session) Stories(ctx context.Context, feed core.Feed) ([]core.Story, error) {
	path := "/reader/feed/" + url.PathEscape(feed.ID)

	var stories []core.Story
	for page := 1; len(stories) < feed.UnreadCount; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("order", "newest")
		params.Set("read_filter", "unread")
		params.Set("include_story_content", "false")

		body, err := s.client.do(ctx, http.MethodGet, path, params, nil)
		if err != nil {
			return nil, err
		}

		var resp storiesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &APIError{Method: http.MethodGet, Path: path, Detail: err.Error()}
		}
		if len(resp.Stories) == 0 {
			break
		}

		for _, raw := range resp.Stories {
			if raw.ReadStatus != 0 {
				continue
			}
			story := core.Story{
				ID:          raw.ID,
				Hash:        raw.Hash,
				FeedID:      feed.ID,
				Title:       raw.Title,
				Permalink:   raw.Permalink,
				PublishedAt: parseTimestamp(raw.Timestamp),
			}
			if story.Title == "" {
				story.Title = story.ID
			}
			stories = append(stories, story)
		}
	}
	return stories, nil
}

// PurgeStories marks the given story hashes as read, which is the removal
// primitive the reader API offers. A nil or empty hash list is a no-op.
func (s *Session) PurgeStories(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	form := url.Values{}
	for _, hash := range hashes {
		form.Add("story_hash", hash)
	}
	_, err := s.client.do(ctx, http.MethodPost, "/reader/mark_story_hashes_as_read", nil, form)
	return err
}

// do issues one paced, bounded-retry request and verifies the service's
// {"result": "ok"} envelope before handing the body back.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	var body []byte
	err := retry.Do(ctx, c.retry, func() error {
		var reader io.Reader
		if form != nil {
			reader = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
		}
		body = data
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, &APIError{Method: method, Path: path, Detail: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Method: method, Path: path, StatusCode: http.StatusOK, Detail: err.Error()}
	}
	if env.Result != "ok" {
		detail := fmt.Sprintf("result %q", env.Result)
		if len(env.Errors) > 0 {
			detail += " " + string(env.Errors)
		}
		return nil, &APIError{Method: method, Path: path, StatusCode: http.StatusOK, Result: env.Result, Detail: detail}
	}
	return body, nil
}

// parseTimestamp decodes the service's unix-seconds string. A missing or
// malformed timestamp falls back to now so an undated story is never aged
// out by accident.
func parseTimestamp(raw string) time.Time {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(int64(seconds), 0).UTC()
}
