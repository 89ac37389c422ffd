package filters

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/feedtools/newsblur-cleaner/internal/core"
)

// dedupeRule keeps the first occurrence of each key in list order and
// marks every later story with the same key. The seen set is local to one
// Select call, so dedupe scope is exactly one feed in one run.
type dedupeRule struct {
	name string
	key  func(core.Story) string
}

// NewTitleDedupe deduplicates on the normalized story title.
func NewTitleDedupe() Rule {
	return &dedupeRule{
		name: "dedupe_title",
		key:  func(s core.Story) string { return NormalizeTitle(s.Title) },
	}
}

// NewPermalinkDedupe deduplicates on the normalized permalink.
func NewPermalinkDedupe() Rule {
	return &dedupeRule{
		name: "dedupe_permalink",
		key:  func(s core.Story) string { return NormalizePermalink(s.Permalink) },
	}
}

func (r *dedupeRule) Name() string { return r.name }

func (r *dedupeRule) Validate() error { return nil }

func (r *dedupeRule) Select(ctx context.Context, stories []core.Story) (*core.DeletionSet, error) {
	_ = ctx
	set := core.NewDeletionSet()
	seen := make(map[string]struct{}, len(stories))
	for _, story := range stories {
		key := r.key(story)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			set.Mark(story, r.name)
			continue
		}
		seen[key] = struct{}{}
	}
	return set, nil
}

// NormalizeTitle lower-cases a title, strips punctuation and symbols, and
// collapses runs of whitespace, so reposts with cosmetic tweaks compare
// equal.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizePermalink trims the URL and lower-cases its scheme and host.
// Paths keep their case; many services treat them case-sensitively.
func NormalizePermalink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.ToLower(link)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
