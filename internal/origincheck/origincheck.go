package origincheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/filters"
	"github.com/feedtools/newsblur-cleaner/internal/retry"
)

const RuleName = "origin_vanished"

// Checker crosschecks unread stories against the publisher's live feed and
// marks the ones whose permalink no longer appears there, typically
// retractions or stories the publisher pulled. It is opt-in and runs
// outside the pure filter pipeline because it does network I/O.
type Checker struct {
	parser *gofeed.Parser
}

func New(timeout time.Duration, userAgent string) *Checker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = userAgent
	return &Checker{parser: parser}
}

// Mark fetches feed.Address and marks every story whose permalink is
// absent from the live document. Feeds without an address are skipped. A
// fetch failure is returned so the caller can log it and move on; it never
// marks anything.
func (c *Checker) Mark(ctx context.Context, feed core.Feed, stories []core.Story, set *core.DeletionSet) error {
	if feed.Address == "" || len(stories) == 0 {
		return nil
	}

	var parsed *gofeed.Feed
	err := retry.Do(ctx, retry.Config{Attempts: 2, BaseDelay: 300 * time.Millisecond}, func() error {
		doc, err := c.parser.ParseURLWithContext(feed.Address, ctx)
		if err != nil {
			return err
		}
		parsed = doc
		return nil
	})
	if err != nil {
		return fmt.Errorf("fetch origin feed %s: %w", feed.Address, err)
	}
	if len(parsed.Items) == 0 {
		// An empty document is more likely a serving hiccup than a feed
		// that dropped everything; don't mark on it.
		return nil
	}

	live := make(map[string]struct{}, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link != "" {
			live[filters.NormalizePermalink(item.Link)] = struct{}{}
		}
		if item.GUID != "" {
			live[filters.NormalizePermalink(item.GUID)] = struct{}{}
		}
	}

	for _, story := range stories {
		if story.Permalink == "" {
			continue
		}
		if _, ok := live[filters.NormalizePermalink(story.Permalink)]; !ok {
			set.Mark(story, RuleName)
		}
	}
	return nil
}
