// Package journey records the ordered pages a visitor moves through in a
// session.
package journey

import (
	"context"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/record"
)

const (
	// Key holds the journey in the session tier.
	Key = "user_journey"
	// DefaultCap bounds the journey length.
	DefaultCap = 20
)

// Tracker is a capped, session-scoped log of page visits. It is classed as
// necessary first-party navigation data and is not consent gated.
type Tracker struct {
	store *record.Store
	cap   int
}

// New creates a Tracker keeping at most capacity entries. A non-positive
// capacity selects DefaultCap.
func New(s *record.Store, capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Tracker{store: s, cap: capacity}
}

// Cap returns the maximum number of entries kept.
func (t *Tracker) Cap() int { return t.cap }

// AddPage appends a visit, evicting the oldest entries beyond the cap.
func (t *Tracker) AddPage(ctx context.Context, name, url string) {
	entry := model.JourneyEntry{
		PageName:  name,
		URL:       url,
		Timestamp: t.store.Now().UnixMilli(),
	}
	record.Modify(ctx, t.store, Key, []model.JourneyEntry{}, func(entries []model.JourneyEntry) []model.JourneyEntry {
		entries = append(entries, entry)
		if over := len(entries) - t.cap; over > 0 {
			entries = entries[over:]
		}
		return entries
	}, record.SessionNecessary)
}

// GetJourney returns the entries oldest first.
func (t *Tracker) GetJourney(ctx context.Context) []model.JourneyEntry {
	return record.GetOr(ctx, t.store, Key, []model.JourneyEntry{}, record.SessionNecessary)
}

// HasVisited reports whether a page with exactly this name is in the journey.
func (t *Tracker) HasVisited(ctx context.Context, name string) bool {
	for _, e := range t.GetJourney(ctx) {
		if e.PageName == name {
			return true
		}
	}
	return false
}

// GetPreviousPage returns the entry before the current (latest) page.
func (t *Tracker) GetPreviousPage(ctx context.Context) (model.JourneyEntry, bool) {
	entries := t.GetJourney(ctx)
	if len(entries) < 2 {
		return model.JourneyEntry{}, false
	}
	return entries[len(entries)-2], true
}

// Paths returns the visited URLs in journey order, without duplicates.
func (t *Tracker) Paths(ctx context.Context) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range t.GetJourney(ctx) {
		if !seen[e.URL] {
			seen[e.URL] = true
			out = append(out, e.URL)
		}
	}
	return out
}

// Clear drops the journey.
func (t *Tracker) Clear(ctx context.Context) {
	t.store.Remove(ctx, Key, record.SessionNecessary)
}
