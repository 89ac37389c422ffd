package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

// Run summarizes one cleanup run for logging and, optionally, email.
type Run struct {
	Username  string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Feeds     []FeedResult
}

// FeedResult records what happened to one feed.
type FeedResult struct {
	Feed     core.Feed
	Examined int
	Purged   []core.Marked
	Err      string
}

// TotalExamined counts stories inspected across all feeds.
func (r *Run) TotalExamined() int {
	total := 0
	for _, f := range r.Feeds {
		total += f.Examined
	}
	return total
}

// TotalPurged counts stories selected for purging across all feeds.
func (r *Run) TotalPurged() int {
	total := 0
	for _, f := range r.Feeds {
		total += len(f.Purged)
	}
	return total
}

// FailedFeeds counts feeds that were skipped on error.
func (r *Run) FailedFeeds() int {
	failed := 0
	for _, f := range r.Feeds {
		if f.Err != "" {
			failed++
		}
	}
	return failed
}

// Markdown renders the run as a GFM document.
func (r *Run) Markdown() string {
	var b strings.Builder

	action := "Purged"
	if r.DryRun {
		action = "Would purge"
	}
	fmt.Fprintf(&b, "# NewsBlur cleanup for %s\n\n", r.Username)
	fmt.Fprintf(&b, "%s at %s, took %s.\n\n", action, r.StartedAt.Format(time.RFC1123), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Examined %d %s across %d %s; %s %d.\n\n",
		r.TotalExamined(), plural(r.TotalExamined(), "story", "stories"),
		len(r.Feeds), plural(len(r.Feeds), "feed", "feeds"),
		strings.ToLower(action), r.TotalPurged())

	for _, feed := range r.Feeds {
		if feed.Err != "" {
			fmt.Fprintf(&b, "## %s\n\nSkipped: %s\n\n", feed.Feed.DisplayTitle(), feed.Err)
			continue
		}
		if len(feed.Purged) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", feed.Feed.DisplayTitle())
		for _, m := range feed.Purged {
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", m.Story.Title, m.Story.Permalink, strings.Join(m.Reasons, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the markdown report to HTML for email delivery.
func (r *Run) HTML() (string, error) {
	converter := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var buf bytes.Buffer
	if err := converter.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

func plural(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
