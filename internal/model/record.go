// Package model defines the core visitor storage data types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category classifies a record for consent gating.
type Category string

const (
	Necessary Category = "necessary"
	Analytics Category = "analytics"
	Marketing Category = "marketing"
)

// Lifetime decides which tier a record lives in and whether it expires.
type Lifetime string

const (
	// Permanent records survive browser restarts.
	Permanent Lifetime = "permanent"
	// Session records are cleared when the browsing session ends.
	Session Lifetime = "session"
	// Temporary records carry an explicit expiry.
	Temporary Lifetime = "temporary"
)

// ValidCategories are the allowed record categories.
var ValidCategories = map[Category]bool{
	Necessary: true,
	Analytics: true,
	Marketing: true,
}

// ValidLifetimes are the allowed record lifetimes.
var ValidLifetimes = map[Lifetime]bool{
	Permanent: true,
	Session:   true,
	Temporary: true,
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !ValidCategories[c] {
		return "", fmt.Errorf("invalid category %q (valid: necessary, analytics, marketing)", s)
	}
	return c, nil
}

// ParseLifetime parses a lifetime name.
func ParseLifetime(s string) (Lifetime, error) {
	l := Lifetime(s)
	if !ValidLifetimes[l] {
		return "", fmt.Errorf("invalid lifetime %q (valid: permanent, session, temporary)", s)
	}
	return l, nil
}

// Record is the envelope persisted for every key.
type Record struct {
	Key       string          `json:"-"`
	Value     json.RawMessage `json:"value"`
	Category  Category        `json:"category"`
	Lifetime  Lifetime        `json:"lifetime"`
	ExpiresAt *int64          `json:"expires_at,omitempty"`
	WrittenAt int64           `json:"written_at"`
}

// Expired reports whether the record has passed its expiry at now.
// A record read exactly at expires_at is still live.
func (r Record) Expired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return now.UnixMilli() > *r.ExpiresAt
}

// ConsentDecision is the visitor's current answer to the consent banner.
type ConsentDecision struct {
	Necessary bool  `json:"necessary"`
	Analytics bool  `json:"analytics"`
	Marketing bool  `json:"marketing"`
	Timestamp int64 `json:"timestamp"`
}

// Grants reports whether the decision allows writes of category c.
func (d ConsentDecision) Grants(c Category) bool {
	switch c {
	case Necessary:
		return true
	case Analytics:
		return d.Analytics
	case Marketing:
		return d.Marketing
	default:
		return false
	}
}

// JourneyEntry is one page visit in the session journey.
type JourneyEntry struct {
	PageName  string `json:"pageName"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// PerfSample is one performance measurement.
type PerfSample struct {
	Metric    string  `json:"metric"`
	Millis    float64 `json:"ms"`
	Timestamp int64   `json:"timestamp"`
}
