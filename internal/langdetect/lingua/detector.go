package lingua

import (
	"context"
	"strings"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
)

// Detector classifies text offline with lingua's statistical models.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector over all languages lingua ships models for. The
// build is slow enough that callers should construct one detector per run
// and share it.
func New() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
	}
}

func (d *Detector) Detect(ctx context.Context, text string) (langdetect.Code, error) {
	_ = ctx
	if strings.TrimSpace(text) == "" {
		return langdetect.Unknown, nil
	}
	language, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return langdetect.Unknown, nil
	}
	return langdetect.Normalize(language.IsoCode639_1().String()), nil
}
