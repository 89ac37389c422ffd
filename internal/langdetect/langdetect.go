package langdetect

import (
	"context"
	"strings"
)

// Code is a lower-case ISO 639-1 language code.
type Code string

// Unknown is returned when the detector cannot settle on a language, which
// happens routinely for short or ambiguous titles.
const Unknown Code = "und"

// Detector classifies the language of a piece of text. Implementations are
// swappable per target environment: the offline lingua backend is the
// default, and an LLM-backed one exists for constrained runtimes.
type Detector interface {
	Detect(ctx context.Context, text string) (Code, error)
}

// Normalize lower-cases and trims a language code, mapping empty input to
// Unknown.
func Normalize(raw string) Code {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return Unknown
	}
	return Code(code)
}
