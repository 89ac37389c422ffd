package filters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feedtools/newsblur-cleaner/internal/config"
	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
)

// Rule inspects one feed's stories and marks the subset it wants purged.
// Rules are independent: each sees the full input list, and the pipeline
// unions their marks. A rule never un-marks what another rule selected.
type Rule interface {
	Name() string
	Validate() error
	Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error)
}

// SelectForDeletion runs every rule over the story list and unions the
// marks. It is a pure function of its inputs: rules hold no state across
// calls, so re-running the pipeline over the survivors selects nothing.
func SelectForDeletion(ctx context.Context, stories []core.Story, rules []Rule) (*core.DeletionSet, error) {
	set := core.NewDeletionSet()
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		marked, err := rule.Select(ctx, stories)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		set.Union(marked)
	}
	return set, nil
}

// FromConfig assembles the rule set a FilterConfig asks for. The origin
// crosscheck is not part of the pure pipeline and is wired separately by
// the cleaner. A nil now falls back to time.Now.
func FromConfig(cfg config.FilterConfig, detector langdetect.Detector, now func() time.Time) ([]Rule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rules []Rule
	if cfg.DedupeTitle {
		rules = append(rules, NewTitleDedupe())
	}
	if cfg.DedupePermalink {
		rules = append(rules, NewPermalinkDedupe())
	}
	if cfg.MaxAge > 0 {
		rules = append(rules, NewMaxAge(cfg.MaxAge.Std(), now))
	}
	if cfg.MaxCount > 0 {
		rules = append(rules, NewMaxCount(cfg.MaxCount))
	}
	if len(cfg.Languages) > 0 {
		if detector == nil {
			return nil, fmt.Errorf("language filter requires a detector (set LANGUAGE_DETECTOR)")
		}
		rules = append(rules, NewLanguage(cfg.Languages, detector))
	}
	if strings.TrimSpace(cfg.Rule) != "" {
		rule, err := NewExprRule(cfg.Rule, now)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
