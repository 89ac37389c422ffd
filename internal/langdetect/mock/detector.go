package mock

import (
	"context"

	"github.com/feedtools/newsblur-cleaner/internal/langdetect"
)

// Detector returns scripted codes for tests. Texts without a scripted code
// come back as Unknown.
type Detector struct {
	Codes map[string]langdetect.Code
	Err   error
	Calls []string
}

func (d *Detector) Detect(ctx context.Context, text string) (langdetect.Code, error) {
	_ = ctx
	d.Calls = append(d.Calls, text)
	if d.Err != nil {
		return langdetect.Unknown, d.Err
	}
	if code, ok := d.Codes[text]; ok {
		return code, nil
	}
	return langdetect.Unknown, nil
}
