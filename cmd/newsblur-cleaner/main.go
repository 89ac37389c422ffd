package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedtools/newsblur-cleaner/internal/cleaner"
	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/filters"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect/lingua"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect/llm"
	"github.com/feedtools/newsblur-cleaner/internal/newsblur"
	"github.com/feedtools/newsblur-cleaner/internal/observability/otelx"
	"github.com/feedtools/newsblur-cleaner/internal/origincheck"
	"github.com/feedtools/newsblur-cleaner/internal/report"
	"github.com/feedtools/newsblur-cleaner/internal/report/email"
	"github.com/feedtools/newsblur-cleaner/internal/report/email/smtp"
	"github.com/feedtools/newsblur-cleaner/internal/trigger"
)

func main() {
	env := config.LoadEnv()

	languages := stringList(splitList(getenv("NEWSBLUR_LANGUAGES", "")))
	configPath := flag.String("config", env.ConfigPath, "path to cleaner document (optional)")
	username := flag.String("username", env.Username, "NewsBlur username")
	password := flag.String("password", env.Password, "NewsBlur password")
	dedupeTitle := flag.Bool("dedupe-title", getenvBool("NEWSBLUR_DEDUPE_TITLE", false), "purge stories repeating an earlier title")
	dedupePermalink := flag.Bool("dedupe-permalink", getenvBool("NEWSBLUR_DEDUPE_PERMALINK", false), "purge stories repeating an earlier permalink")
	maxAge := flag.String("max-age", getenv("NEWSBLUR_MAX_AGE", ""), "purge stories older than this (e.g. 36h, 10d, 2w)")
	maxCount := flag.Int("max-count", getenvInt("NEWSBLUR_MAX_COUNT", 0), "keep at most this many stories per feed")
	flag.Var(&languages, "language", "keep only stories in this language code (repeatable)")
	rule := flag.String("rule", getenv("NEWSBLUR_RULE", ""), "purge stories matching this expression (e.g. 'title.length < 10')")
	originCheck := flag.Bool("origin-check", getenvBool("NEWSBLUR_ORIGIN_CHECK", false), "purge stories no longer present in the publisher's feed")
	schedule := flag.String("schedule", getenv("NEWSBLUR_SCHEDULE", ""), "cron schedule for recurring cleanups; omit to run once")
	timezone := flag.String("timezone", getenv("NEWSBLUR_TIMEZONE", ""), "timezone for the cron schedule")
	dryRun := flag.Bool("dry-run", getenvBool("NEWSBLUR_DRY_RUN", false), "report what would be purged without purging")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	doc, err := loadDocument(*configPath)
	if err != nil {
		log.Fatalf("failed to load cleaner document: %v", err)
	}
	mergeFlags(doc, flagOverrides{
		dedupeTitle:     *dedupeTitle,
		dedupePermalink: *dedupePermalink,
		maxAge:          *maxAge,
		maxCount:        *maxCount,
		languages:       languages,
		rule:            *rule,
		originCheck:     *originCheck,
		schedule:        *schedule,
		timezone:        *timezone,
	})

	if *username == "" || *password == "" {
		log.Fatalf("username and password are required (flags or NEWSBLUR_USERNAME/NEWSBLUR_PASSWORD)")
	}
	if !doc.Filters.Enabled() {
		log.Fatalf("no filtering rules configured; nothing to do")
	}
	if err := doc.Filters.Validate(); err != nil {
		log.Fatalf("invalid filter config: %v", err)
	}
	if doc.Report != nil {
		if err := doc.Report.Email.Validate(); err != nil {
			log.Fatalf("invalid report config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := otelx.Init(ctx, logger, env.OTel)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	if shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	detector, err := buildDetector(env, doc.Filters)
	if err != nil {
		log.Fatalf("failed to build language detector: %v", err)
	}
	rules, err := filters.FromConfig(doc.Filters, detector, nil)
	if err != nil {
		log.Fatalf("invalid filter config: %v", err)
	}

	var sender email.Sender
	if doc.Report != nil && doc.Report.Email != nil {
		sender, err = smtp.NewSender(env.SMTP)
		if err != nil {
			log.Fatalf("invalid smtp config: %v", err)
		}
	}

	client, err := newsblur.NewClient(env.NewsBlur)
	if err != nil {
		log.Fatalf("failed to build newsblur client: %v", err)
	}
	session, err := client.Login(ctx, *username, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	logger.Info("authenticated", "username", *username)

	var origin cleaner.OriginChecker
	if doc.Filters.OriginCheck {
		origin = origincheck.New(env.NewsBlur.HTTPTimeout, env.NewsBlur.UserAgent)
	}

	c := cleaner.New(logger, session, cleaner.Config{
		Rules:  rules,
		Origin: origin,
		DryRun: *dryRun,
	})

	runOnce := func(ctx context.Context) error {
		run, err := c.Run(ctx)
		if err != nil {
			return err
		}
		return deliverReport(ctx, logger, doc, sender, run)
	}

	if doc.Schedule == nil {
		if err := runOnce(ctx); err != nil {
			log.Fatalf("run failed: %v", err)
		}
		return
	}

	cron := trigger.NewCron(doc.Schedule.Cron, doc.Schedule.Timezone)
	events, err := cron.Start(ctx)
	if err != nil {
		log.Fatalf("failed to start schedule: %v", err)
	}
	logger.Info("scheduled", "cron", doc.Schedule.Cron, "timezone", doc.Schedule.Timezone)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logger.Info("schedule fired", "time", event.Timestamp)
			if err := runOnce(ctx); err != nil {
				logger.Error("run failed", "error", err)
			}
		}
	}
}

func deliverReport(ctx context.Context, logger *slog.Logger, doc *config.CleanerDocument, sender email.Sender, run *report.Run) error {
	fmt.Print(run.Markdown())

	if sender == nil || doc.Report == nil || doc.Report.Email == nil {
		return nil
	}
	html, err := run.HTML()
	if err != nil {
		return err
	}
	subject := doc.Report.Email.Subject
	if subject == "" {
		subject = fmt.Sprintf("NewsBlur cleanup: %d purged", run.TotalPurged())
	}
	err = sender.Send(ctx, email.Message{
		From:    doc.Report.Email.From,
		To:      doc.Report.Email.To,
		Subject: subject,
		Body:    html,
	})
	if err != nil {
		// The cleanup itself succeeded; a lost report is not worth a
		// non-zero exit.
		logger.Error("failed to send report", "error", err)
		return nil
	}
	logger.Info("report sent", "to", doc.Report.Email.To)
	return nil
}

func buildDetector(env config.EnvConfig, cfg config.FilterConfig) (langdetect.Detector, error) {
	if len(cfg.Languages) == 0 {
		return nil, nil
	}
	switch env.Detector.Backend {
	case "", "lingua":
		return lingua.New(), nil
	case "llm":
		if env.OpenAI.APIKey == "" && env.OpenAI.BaseURL == "" {
			return nil, fmt.Errorf("llm detector requires OPENAI_API_KEY or OPENAI_BASE_URL")
		}
		return llm.New(env.OpenAI), nil
	case "none":
		return nil, fmt.Errorf("language filter configured but LANGUAGE_DETECTOR=none")
	default:
		return nil, fmt.Errorf("unknown language detector %q", env.Detector.Backend)
	}
}

func loadDocument(path string) (*config.CleanerDocument, error) {
	if path == "" {
		return &config.CleanerDocument{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc config.CleanerDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cleaner document: %w", err)
	}
	return &doc, nil
}

type flagOverrides struct {
	dedupeTitle     bool
	dedupePermalink bool
	maxAge          string
	maxCount        int
	languages       []string
	rule            string
	originCheck     bool
	schedule        string
	timezone        string
}

// mergeFlags lays CLI flags over the document; a set flag wins.
func mergeFlags(doc *config.CleanerDocument, flags flagOverrides) {
	if flags.dedupeTitle {
		doc.Filters.DedupeTitle = true
	}
	if flags.dedupePermalink {
		doc.Filters.DedupePermalink = true
	}
	if flags.maxAge != "" {
		parsed, err := config.ParseDuration(flags.maxAge)
		if err != nil {
			log.Fatalf("invalid --max-age: %v", err)
		}
		doc.Filters.MaxAge = config.Duration(parsed)
	}
	if flags.maxCount > 0 {
		doc.Filters.MaxCount = flags.maxCount
	}
	if len(flags.languages) > 0 {
		doc.Filters.Languages = flags.languages
	}
	if flags.rule != "" {
		doc.Filters.Rule = flags.rule
	}
	if flags.originCheck {
		doc.Filters.OriginCheck = true
	}
	if flags.schedule != "" {
		doc.Schedule = &config.ScheduleConfig{Cron: flags.schedule, Timezone: flags.timezone}
	} else if doc.Schedule != nil && flags.timezone != "" {
		doc.Schedule.Timezone = flags.timezone
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("language code is required")
	}
	*s = append(*s, value)
	return nil
}
