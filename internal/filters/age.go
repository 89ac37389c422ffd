package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

// maxAgeRule marks stories whose age exceeds the cutoff.
type maxAgeRule struct {
	maxAge time.Duration
	now    func() time.Time
}

// NewMaxAge builds the age-cutoff rule. A nil now falls back to time.Now;
// tests inject a fixed clock.
func NewMaxAge(maxAge time.Duration, now func() time.Time) Rule {
	if now == nil {
		now = time.Now
	}
	return &maxAgeRule{maxAge: maxAge, now: now}
}

func (r *maxAgeRule) Name() string { return "max_age" }

func (r *maxAgeRule) Validate() error {
	if r.maxAge <= 0 {
		return fmt.Errorf("max age must be positive")
	}
	return nil
}

func (r *maxAgeRule) Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error) {
	_ = ctx
	set := core.NewDeletionSet()
	cutoff := r.now().UTC().Add(-r.maxAge)
	for _, story := range stories {
		if story.PublishedAt.Before(cutoff) {
			set.Mark(story, r.Name())
		}
	}
	return set, nil
}
