package record

import (
	"context"
)

// Well-known preference keys.
const (
	PrefReducedMotion  = "reducedMotion"
	PrefConnectionType = "connectionType"
	PrefLowPowerMode   = "lowPowerMode"
)

// Preferences is the userPreferences view: durable, necessary records
// under the "prefs" namespace.
type Preferences struct {
	store *Store
}

// NewPreferences creates the preferences view of s.
func NewPreferences(s *Store) *Preferences {
	return &Preferences{store: s.Namespace("prefs")}
}

// Get decodes preference key into dst; dst is untouched when absent.
func (p *Preferences) Get(ctx context.Context, key string, dst any) bool {
	return p.store.Get(ctx, key, dst, DurableNecessary)
}

// Set stores a preference.
func (p *Preferences) Set(ctx context.Context, key string, value any) bool {
	return p.store.Set(ctx, key, value, DurableNecessary)
}

// Update shallow-merges patch into preference key.
func (p *Preferences) Update(ctx context.Context, key string, patch any) bool {
	return p.store.Update(ctx, key, patch, DurableNecessary)
}

// Remove deletes preference key.
func (p *Preferences) Remove(ctx context.Context, key string) {
	p.store.Remove(ctx, key, DurableNecessary)
}

// Increment bumps counter field inside the object stored at key, for
// example the per-button tally under "button_interactions".
func (p *Preferences) Increment(ctx context.Context, key, field string) int {
	n := 0
	Modify(ctx, p.store, key, map[string]int{}, func(m map[string]int) map[string]int {
		if m == nil {
			m = map[string]int{}
		}
		m[field]++
		n = m[field]
		return m
	}, DurableNecessary)
	return n
}

// Flags is the typed view of the device preferences pages adapt to.
type Flags struct {
	ReducedMotion  bool   `json:"reducedMotion"`
	ConnectionType string `json:"connectionType"`
	LowPowerMode   bool   `json:"lowPowerMode"`
}

// Flags returns the device preference flags with zero defaults.
func (p *Preferences) Flags(ctx context.Context) Flags {
	var f Flags
	p.Get(ctx, PrefReducedMotion, &f.ReducedMotion)
	p.Get(ctx, PrefConnectionType, &f.ConnectionType)
	p.Get(ctx, PrefLowPowerMode, &f.LowPowerMode)
	return f
}
