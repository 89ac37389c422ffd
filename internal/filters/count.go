package filters

import (
	"context"
	"fmt"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

// maxCountRule caps a feed at max stories. The input is expected in the
// service's order, newest first, so everything from position max onward is
// the oldest surplus.
type maxCountRule struct {
	max int
}

func NewMaxCount(max int) Rule {
	return &maxCountRule{max: max}
}

func (r *maxCountRule) Name() string { return "max_count" }

func (r *maxCountRule) Validate() error {
	if r.max <= 0 {
		return fmt.Errorf("max count must be positive")
	}
	return nil
}

func (r *maxCountRule) Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error) {
	_ = ctx
	set := core.NewDeletionSet()
	for i := r.max; i < len(stories); i++ {
		set.Mark(stories[i], r.Name())
	}
	return set, nil
}
