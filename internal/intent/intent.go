// Package intent accumulates which departments and services a visitor has
// shown interest in, and ranks navigation choices from it.
package intent

import (
	"context"
	"sort"
	"time"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/record"
)

// LeadKey holds the session's interest tags.
const LeadKey = "lead_intent"

// Tracker is the lead-intent set. Tags only grow within a session.
type Tracker struct {
	store *record.Store
}

// NewTracker creates a lead-intent tracker over s.
func NewTracker(s *record.Store) *Tracker {
	return &Tracker{store: s}
}

// MarkInterest adds tag to the session's interest set. Marking the same tag
// twice keeps a single copy. Empty tags are ignored.
func (t *Tracker) MarkInterest(ctx context.Context, tag string) {
	if tag == "" {
		return
	}
	record.Modify(ctx, t.store, LeadKey, []string{}, func(tags []string) []string {
		for _, x := range tags {
			if x == tag {
				return tags
			}
		}
		return append(tags, tag)
	}, record.SessionNecessary)
}

// GetInterests returns the tags in first-marked order.
func (t *Tracker) GetInterests(ctx context.Context) []string {
	return record.GetOr(ctx, t.store, LeadKey, []string{}, record.SessionNecessary)
}

// Has reports whether tag was marked.
func (t *Tracker) Has(ctx context.Context, tag string) bool {
	for _, x := range t.GetInterests(ctx) {
		if x == tag {
			return true
		}
	}
	return false
}

// PackageKey holds the package-interest counts.
const PackageKey = "package_interest"

// DefaultPackageWindow is how long package views are remembered.
const DefaultPackageWindow = 30 * 24 * time.Hour

// Counter counts views per tag over a rolling window, for example which
// pricing packages a visitor keeps returning to.
type Counter struct {
	store  *record.Store
	key    string
	window time.Duration
}

// NewCounter creates a counter stored under key. A non-positive window
// selects DefaultPackageWindow.
func NewCounter(s *record.Store, key string, window time.Duration) *Counter {
	if window <= 0 {
		window = DefaultPackageWindow
	}
	return &Counter{store: s, key: key, window: window}
}

func (c *Counter) opts() record.WriteOptions {
	return record.Expiring(model.Necessary, c.window)
}

// Bump increments tag and returns its new count. Each bump restarts the
// window.
func (c *Counter) Bump(ctx context.Context, tag string) int {
	n := 0
	record.Modify(ctx, c.store, c.key, map[string]int{}, func(m map[string]int) map[string]int {
		if m == nil {
			m = map[string]int{}
		}
		m[tag]++
		n = m[tag]
		return m
	}, c.opts())
	return n
}

// Counts returns every tag's count.
func (c *Counter) Counts(ctx context.Context) map[string]int {
	return record.GetOr(ctx, c.store, c.key, map[string]int{}, c.opts())
}

// TagCount is one entry of Top.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Top returns the n most viewed tags, ties broken by name.
func (c *Counter) Top(ctx context.Context, n int) []TagCount {
	var out []TagCount
	for tag, count := range c.Counts(ctx) {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// QuickLink is a navigation choice offered on the 404 page and in
// department CTAs.
type QuickLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Tag   string `json:"tag,omitempty"`
}

// Rank orders links for a visitor: links tagged with an interest first (in
// interest order), then links the visitor has not visited yet. The input
// order breaks remaining ties. links is not modified.
func Rank(links []QuickLink, interests, visited []string) []QuickLink {
	interestPos := map[string]int{}
	for i, tag := range interests {
		if _, ok := interestPos[tag]; !ok {
			interestPos[tag] = i
		}
	}
	seen := map[string]bool{}
	for _, p := range visited {
		seen[p] = true
	}

	rank := func(l QuickLink) (int, int) {
		if pos, ok := interestPos[l.Tag]; ok && l.Tag != "" {
			return 0, pos
		}
		if !seen[l.Path] {
			return 1, 0
		}
		return 2, 0
	}

	out := append([]QuickLink(nil), links...)
	sort.SliceStable(out, func(i, j int) bool {
		gi, pi := rank(out[i])
		gj, pj := rank(out[j])
		if gi != gj {
			return gi < gj
		}
		return pi < pj
	})
	return out
}
