package filters

import (
	"context"
	"fmt"

	"github.com/feedtools/newsblur-cleaner/internal/core"
	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
)

// languageRule marks stories whose title is not in one of the wanted
// languages. Indeterminate detection counts as non-matching, so short or
// ambiguous titles get marked rather than crash a run.
type languageRule struct {
	wanted   map[langdetect.Code]struct{}
	detector langdetect.Detector
}

func NewLanguage(codes []string, detector langdetect.Detector) Rule {
	wanted := make(map[langdetect.Code]struct{}, len(codes))
	for _, code := range codes {
		wanted[langdetect.Normalize(code)] = struct{}{}
	}
	return &languageRule{wanted: wanted, detector: detector}
}

func (r *languageRule) Name() string { return "language" }

func (r *languageRule) Validate() error {
	if len(r.wanted) == 0 {
		return fmt.Errorf("at least one language code is required")
	}
	if r.detector == nil {
		return fmt.Errorf("language detector is required")
	}
	return nil
}

func (r *languageRule) Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error) {
	logger := core.LoggerFromContext(ctx)
	set := core.NewDeletionSet()
	for _, story := range stories {
		code, err := r.detector.Detect(ctx, story.Title)
		if err != nil {
			logger.Debug("language detection failed, treating as non-matching",
				"story_id", story.ID, "error", err)
			code = langdetect.Unknown
		}
		if _, ok := r.wanted[code]; !ok {
			set.Mark(story, r.Name())
		}
	}
	return set, nil
}
