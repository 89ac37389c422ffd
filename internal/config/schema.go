package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CleanerDocument represents the top-level structure of a cleaner.yaml file.
// Everything in it can also be supplied through CLI flags; the document is
// for users who keep a standing cleanup policy.
type CleanerDocument struct {
	Filters  FilterConfig    `yaml:"filters"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
	Report   *ReportConfig   `yaml:"report,omitempty"`
}

// FilterConfig enables and parameterizes the filtering rules. A zero
// FilterConfig selects nothing for deletion.
type FilterConfig struct {
	DedupeTitle     bool     `yaml:"dedupe_title,omitempty"`
	DedupePermalink bool     `yaml:"dedupe_permalink,omitempty"`
	MaxAge          Duration `yaml:"max_age,omitempty"`
	MaxCount        int      `yaml:"max_count,omitempty"`
	Languages       []string `yaml:"languages,omitempty"`
	Rule            string   `yaml:"rule,omitempty"`
	OriginCheck     bool     `yaml:"origin_check,omitempty"`
}

// Enabled reports whether any rule is configured at all.
func (f FilterConfig) Enabled() bool {
	return f.DedupeTitle ||
		f.DedupePermalink ||
		f.MaxAge > 0 ||
		f.MaxCount > 0 ||
		len(f.Languages) > 0 ||
		strings.TrimSpace(f.Rule) != "" ||
		f.OriginCheck
}

// Validate rejects configurations the pipeline cannot honor.
func (f FilterConfig) Validate() error {
	if f.MaxAge < 0 {
		return fmt.Errorf("max_age must be positive")
	}
	if f.MaxCount < 0 {
		return fmt.Errorf("max_count must be positive")
	}
	for _, code := range f.Languages {
		code = strings.TrimSpace(code)
		if len(code) != 2 {
			return fmt.Errorf("language %q is not a two-letter ISO 639-1 code", code)
		}
	}
	return nil
}

// ScheduleConfig runs the cleanup on a recurring cron schedule instead of
// once.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone,omitempty"`
}

// ReportConfig controls run-report delivery. The report is always logged;
// email delivery is opt-in.
type ReportConfig struct {
	Email *EmailReport `yaml:"email,omitempty"`
}

// EmailReport addresses the emailed run report.
type EmailReport struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Subject string `yaml:"subject,omitempty"`
}

// Validate checks the email addresses up front so a bad report config fails
// before any stories are purged.
func (e *EmailReport) Validate() error {
	if e == nil {
		return nil
	}
	if _, err := mail.ParseAddress(e.From); err != nil {
		return fmt.Errorf("invalid report from address %q: %w", e.From, err)
	}
	if e.To == "" {
		return fmt.Errorf("report to address is required")
	}
	if _, err := mail.ParseAddressList(e.To); err != nil {
		return fmt.Errorf("invalid report to address(es) %q: %w", e.To, err)
	}
	return nil
}

// Duration is a time.Duration that unmarshals from extended duration syntax
// ("36h", "10d", "2w").
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
