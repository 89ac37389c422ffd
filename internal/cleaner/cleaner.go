package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/filters"
	"github.com/feedtools/newsblur-cleaner/internal/report"
)

// Session is the slice of the NewsBlur client the cleaner needs.
// *newsblur.Session satisfies it; tests substitute fakes.
type Session interface {
	Username() string
	Feeds(ctx context.Context) ([]core.Feed, error)
	Stories(ctx context.Context, feed core.Feed) ([]core.Story, error)
	PurgeStories(ctx context.Context, hashes []string) error
}

// OriginChecker adds marks from the publisher's live feed.
// *origincheck.Checker satisfies it.
type OriginChecker interface {
	Mark(ctx context.Context, feed core.Feed, stories []core.Story, set *core.DeletionSet) error
}

type Config struct {
	Rules []filters.Rule
	// Origin enables the live-feed crosscheck when non-nil.
	Origin OriginChecker
	// DryRun computes and reports the deletion set without purging.
	DryRun bool
}

// Cleaner walks the account's feeds sequentially: fetch stories, run the
// filter pipeline, purge the marked stories. One feed's failure never
// stops the others; only losing the session does.
type Cleaner struct {
	logger  *slog.Logger
	session Session
	config  Config
}

func New(logger *slog.Logger, session Session, config Config) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger, session: session, config: config}
}

// Run cleans every feed with unread stories and returns the run report.
// It fails only when the feed list itself cannot be fetched.
func (c *Cleaner) Run(ctx context.Context) (*report.Run, error) {
	tracer := otel.Tracer("newsblur-cleaner/cleaner")
	ctx, span := tracer.Start(ctx, "cleaner.run")
	defer span.End()

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logger := c.logger.With("run_id", runID)
	ctx = core.WithRunID(ctx, runID)
	ctx = core.WithLogger(ctx, logger)
	span.SetAttributes(attribute.String("run.id", runID))

	started := time.Now().UTC()
	run := &report.Run{
		Username:  c.session.Username(),
		StartedAt: started,
		DryRun:    c.config.DryRun,
	}

	feeds, err := c.session.Feeds(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	unread := 0
	for _, feed := range feeds {
		if feed.UnreadCount > 0 {
			unread++
		}
	}
	logger.Info("retrieved feeds", "total", len(feeds), "with_unread", unread)

	for _, feed := range feeds {
		if feed.UnreadCount == 0 {
			continue
		}
		run.Feeds = append(run.Feeds, c.cleanFeed(ctx, tracer, feed))
	}

	run.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int("run.feeds", len(run.Feeds)),
		attribute.Int("run.purged", run.TotalPurged()),
	)
	logger.Info("run complete",
		"feeds", len(run.Feeds),
		"examined", run.TotalExamined(),
		"purged", run.TotalPurged(),
		"failed_feeds", run.FailedFeeds(),
		"dry_run", run.DryRun,
		"duration", run.Duration.Round(time.Millisecond))
	return run, nil
}

func (c *Cleaner) cleanFeed(ctx context.Context, tracer trace.Tracer, feed core.Feed) report.FeedResult {
	ctx, span := tracer.Start(ctx, "cleaner.feed")
	span.SetAttributes(
		attribute.String("feed.id", feed.ID),
		attribute.String("feed.title", feed.DisplayTitle()),
	)
	defer span.End()

	logger := core.LoggerFromContext(ctx).With("feed_id", feed.ID, "feed", feed.DisplayTitle())
	ctx = core.WithLogger(ctx, logger)
	result := report.FeedResult{Feed: feed}

	logger.Info("processing feed", "unread", feed.UnreadCount)

	stories, err := c.session.Stories(ctx, feed)
	if err != nil {
		logger.Error("failed to fetch stories, skipping feed", "error", err)
		span.RecordError(err)
		result.Err = err.Error()
		return result
	}
	result.Examined = len(stories)

	set, err := filters.SelectForDeletion(ctx, stories, c.config.Rules)
	if err != nil {
		logger.Error("filter pipeline failed, skipping feed", "error", err)
		span.RecordError(err)
		result.Err = err.Error()
		return result
	}

	if c.config.Origin != nil {
		// A crosscheck failure disables the check for this feed only.
		if err := c.config.Origin.Mark(ctx, feed, stories, set); err != nil {
			logger.Warn("origin crosscheck failed", "error", err)
		}
	}

	result.Purged = set.Stories()
	if set.Len() == 0 {
		return result
	}
	logger.Info("marked stories for purging", "count", set.Len())

	if c.config.DryRun {
		return result
	}
	if err := c.session.PurgeStories(ctx, set.Hashes()); err != nil {
		// Non-fatal: the stories stay unread and the next run retries.
		logger.Error("purge failed", "error", err)
		span.RecordError(err)
		result.Err = err.Error()
	}
	return result
}
