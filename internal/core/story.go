package core

import (
	"sort"
	"time"
)

// Story is a single unread entry in a NewsBlur feed. The cleaner never
// mutates a Story after fetch; filtering only decides keep or purge.
type Story struct {
	ID          string    `json:"id" yaml:"id"`
	Hash        string    `json:"hash" yaml:"hash"`
	FeedID      string    `json:"feed_id" yaml:"feed_id"`
	Title       string    `json:"title" yaml:"title"`
	Permalink   string    `json:"permalink" yaml:"permalink"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// Age returns how long ago the story was published, relative to now.
func (s Story) Age(now time.Time) time.Duration {
	return now.Sub(s.PublishedAt)
}

// Feed is a subscribed content source in the NewsBlur account.
type Feed struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Address     string `json:"address,omitempty" yaml:"address,omitempty"`
	UnreadCount int    `json:"unread_count" yaml:"unread_count"`
}

// DisplayTitle falls back to the feed ID when the service has no title.
func (f Feed) DisplayTitle() string {
	if f.Title != "" {
		return f.Title
	}
	return f.ID
}

// Marked pairs a story selected for purging with the names of the rules
// that selected it.
type Marked struct {
	Story   Story    `json:"story" yaml:"story"`
	Reasons []string `json:"reasons" yaml:"reasons"`
}

// DeletionSet collects the stories a run has selected for purging. It has
// set semantics: marking the same story under several rules records each
// rule name once but never duplicates the story. A DeletionSet is built
// fresh per feed per run and is never persisted.
type DeletionSet struct {
	marked map[string]*Marked
}

// NewDeletionSet returns an empty set.
func NewDeletionSet() *DeletionSet {
	return &DeletionSet{marked: make(map[string]*Marked)}
}

// Mark records that rule selected story for purging. Marking under a rule
// that already selected the story is a no-op.
func (d *DeletionSet) Mark(story Story, rule string) {
	m, ok := d.marked[story.ID]
	if !ok {
		d.marked[story.ID] = &Marked{Story: story, Reasons: []string{rule}}
		return
	}
	for _, r := range m.Reasons {
		if r == rule {
			return
		}
	}
	m.Reasons = append(m.Reasons, rule)
}

// Contains reports whether the story with the given ID has been marked.
func (d *DeletionSet) Contains(id string) bool {
	_, ok := d.marked[id]
	return ok
}

// Len returns the number of distinct marked stories.
func (d *DeletionSet) Len() int {
	return len(d.marked)
}

// Union folds every mark from other into d. Rules never un-mark, so union
// only ever grows the set.
func (d *DeletionSet) Union(other *DeletionSet) {
	if other == nil {
		return
	}
	for _, m := range other.marked {
		for _, rule := range m.Reasons {
			d.Mark(m.Story, rule)
		}
	}
}

// Stories returns the marked stories sorted by ID for stable iteration.
func (d *DeletionSet) Stories() []Marked {
	out := make([]Marked, 0, len(d.marked))
	for _, m := range d.marked {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Story.ID < out[j].Story.ID })
	return out
}

// Hashes returns the service purge keys of the marked stories, sorted.
func (d *DeletionSet) Hashes() []string {
	hashes := make([]string, 0, len(d.marked))
	for _, m := range d.Stories() {
		if m.Story.Hash != "" {
			hashes = append(hashes, m.Story.Hash)
		}
	}
	return hashes
}

// Reasons returns the rule names that marked the story, or nil.
func (d *DeletionSet) Reasons(id string) []string {
	if m, ok := d.marked[id]; ok {
		return m.Reasons
	}
	return nil
}
