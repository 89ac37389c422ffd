package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/report"
	"github.com/feedtools/newsblur-cleaner/internal/report/email/mock"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("NEWSBLUR_DEDUPE_TITLE", "true")
	t.Setenv("NEWSBLUR_MAX_COUNT", "25")
	t.Setenv("NEWSBLUR_MAX_AGE", "10d")
	t.Setenv("NEWSBLUR_LANGUAGES", "en, de")

	if !getenvBool("NEWSBLUR_DEDUPE_TITLE", false) {
		t.Fatalf("expected dedupe-title default from env")
	}
	if getenvBool("NEWSBLUR_ORIGIN_CHECK", false) {
		t.Fatalf("unset env var must fall back to the default")
	}
	if got := getenvInt("NEWSBLUR_MAX_COUNT", 0); got != 25 {
		t.Fatalf("max-count default=%d, want 25", got)
	}
	if got := getenv("NEWSBLUR_MAX_AGE", ""); got != "10d" {
		t.Fatalf("max-age default=%q, want 10d", got)
	}
	langs := splitList(getenv("NEWSBLUR_LANGUAGES", ""))
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "de" {
		t.Fatalf("unexpected language list: %v", langs)
	}
}

func TestGetenvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("NEWSBLUR_MAX_COUNT", "lots")
	if got := getenvInt("NEWSBLUR_MAX_COUNT", 7); got != 7 {
		t.Fatalf("unparsable value must fall back, got %d", got)
	}
}

func TestMergeFlagsLaysOverDocument(t *testing.T) {
	doc := &config.CleanerDocument{
		Filters: config.FilterConfig{MaxCount: 100},
	}
	mergeFlags(doc, flagOverrides{
		dedupeTitle: true,
		maxAge:      "2w",
		maxCount:    5,
		languages:   []string{"en"},
		schedule:    "0 6 * * *",
		timezone:    "UTC",
	})

	if !doc.Filters.DedupeTitle {
		t.Fatalf("dedupe-title flag not applied")
	}
	if doc.Filters.MaxAge.Std() != 14*24*time.Hour {
		t.Fatalf("max-age=%v, want 336h", doc.Filters.MaxAge)
	}
	if doc.Filters.MaxCount != 5 {
		t.Fatalf("flag must win over the document, got %d", doc.Filters.MaxCount)
	}
	if doc.Schedule == nil || doc.Schedule.Cron != "0 6 * * *" || doc.Schedule.Timezone != "UTC" {
		t.Fatalf("schedule flags not applied: %+v", doc.Schedule)
	}
}

func emailDoc() *config.CleanerDocument {
	return &config.CleanerDocument{
		Report: &config.ReportConfig{
			Email: &config.EmailReport{From: "cleaner@example.com", To: "alice@example.com"},
		},
	}
}

func purgedRun() *report.Run {
	return &report.Run{
		Username:  "alice",
		StartedAt: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		Feeds: []report.FeedResult{{
			Feed:     core.Feed{ID: "1", Title: "Feed One"},
			Examined: 4,
			Purged: []core.Marked{{
				Story:   core.Story{ID: "a", Title: "Dup", Permalink: "https://example.com/a"},
				Reasons: []string{"dedupe_title"},
			}},
		}},
	}
}

func TestDeliverReportSendsEmail(t *testing.T) {
	sender := &mock.Sender{}
	if err := deliverReport(context.Background(), slog.Default(), emailDoc(), sender, purgedRun()); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(sender.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.Messages))
	}
	msg := sender.Messages[0]
	if msg.To != "alice@example.com" || msg.From != "cleaner@example.com" {
		t.Fatalf("unexpected addressing: %+v", msg)
	}
	if !strings.Contains(msg.Subject, "1 purged") {
		t.Fatalf("default subject missing purge count: %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "<h1") || !strings.Contains(msg.Body, "https://example.com/a") {
		t.Fatalf("body is not the rendered report:\n%s", msg.Body)
	}
}

func TestDeliverReportHonorsConfiguredSubject(t *testing.T) {
	doc := emailDoc()
	doc.Report.Email.Subject = "Nightly cleanup"
	sender := &mock.Sender{}
	if err := deliverReport(context.Background(), slog.Default(), doc, sender, purgedRun()); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if sender.Messages[0].Subject != "Nightly cleanup" {
		t.Fatalf("configured subject not used: %q", sender.Messages[0].Subject)
	}
}

func TestDeliverReportSendFailureIsNonFatal(t *testing.T) {
	sender := &mock.Sender{Err: fmt.Errorf("smtp down")}
	if err := deliverReport(context.Background(), slog.Default(), emailDoc(), sender, purgedRun()); err != nil {
		t.Fatalf("a lost report must not fail the run: %v", err)
	}
}

func TestDeliverReportWithoutSenderSkipsEmail(t *testing.T) {
	if err := deliverReport(context.Background(), slog.Default(), &config.CleanerDocument{}, nil, purgedRun()); err != nil {
		t.Fatalf("report without email config must still succeed: %v", err)
	}
}
