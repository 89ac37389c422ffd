package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

// exprRule marks stories matching a user-supplied expression. A story
// whose evaluation errors is left alone: a broken predicate should never
// widen the deletion set.
type exprRule struct {
	source  string
	program *vm.Program
	now     func() time.Time
}

// NewExprRule compiles the expression up front so a bad predicate fails at
// configuration time, before any network calls.
func NewExprRule(source string, now func() time.Time) (Rule, error) {
	program, err := expr.Compile(source, expr.Env(map[string]interface{}{}))
	if err != nil {
		return nil, fmt.Errorf("compile filter rule: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &exprRule{source: source, program: program, now: now}, nil
}

func (r *exprRule) Name() string { return "custom_rule" }

func (r *exprRule) Validate() error {
	if r.program == nil {
		return fmt.Errorf("rule expression is required")
	}
	return nil
}

func (r *exprRule) Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error) {
	logger := core.LoggerFromContext(ctx)
	set := core.NewDeletionSet()
	now := r.now().UTC()

	for i, story := range stories {
		result, err := expr.Run(r.program, ruleEnv(story, i, now))
		if err != nil {
			logger.Warn("filter rule failed for story", "story_id", story.ID, "error", err)
			continue
		}
		matched, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("filter rule did not return bool")
		}
		if matched {
			set.Mark(story, r.Name())
		}
	}
	return set, nil
}

func ruleEnv(story core.Story, position int, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title": map[string]interface{}{
			"value":  story.Title,
			"length": len(story.Title),
		},
		"permalink":    story.Permalink,
		"feed_id":      story.FeedID,
		"position":     position,
		"published_at": story.PublishedAt,
		"age_hours":    now.Sub(story.PublishedAt).Hours(),
	}
}
