// Package consent tracks the visitor's storage consent decision and gates
// every write that is not strictly necessary.
package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rcliao/visitor-store/internal/logging"
	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

const (
	// DecisionKey holds the ConsentDecision in the durable tier.
	DecisionKey = "cookie_consent"
	// DismissedKey marks a banner closed without a decision this session.
	DismissedKey = "cookie_banner_dismissed"
)

// ErrConsentDenied reports a write dropped for lack of consent. It is an
// expected outcome, not a failure.
var ErrConsentDenied = errors.New("consent not granted")

// ChangeFunc is called after a new decision is persisted. prev is nil when
// no decision existed before.
type ChangeFunc func(ctx context.Context, prev *model.ConsentDecision, next model.ConsentDecision)

// Gate decides whether records of a category may be persisted.
type Gate struct {
	store *persist.Store
	log   logging.Logger
	now   func() time.Time

	mu        sync.Mutex
	listeners []ChangeFunc
}

// NewGate creates a Gate over store.
func NewGate(store *persist.Store, log logging.Logger) *Gate {
	return &Gate{store: store, log: logging.OrNop(log), now: time.Now}
}

// WithClock overrides the clock used to stamp decisions.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// OnChange registers fn to run after every SetConsent.
func (g *Gate) OnChange(fn ChangeFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Decision returns the current decision, if one exists. A stored decision
// that cannot be decoded is purged and treated as absent.
func (g *Gate) Decision(ctx context.Context) (model.ConsentDecision, bool) {
	raw, err := g.store.Read(ctx, persist.TierDurable, DecisionKey)
	if err != nil {
		return model.ConsentDecision{}, false
	}
	var d model.ConsentDecision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		g.log.Warnf("consent: malformed decision purged: %v", err)
		g.store.Remove(ctx, persist.TierDurable, DecisionKey)
		return model.ConsentDecision{}, false
	}
	d.Necessary = true
	return d, true
}

// HasConsent reports whether category c may be written.
func (g *Gate) HasConsent(ctx context.Context, c model.Category) bool {
	if c == model.Necessary {
		return true
	}
	d, ok := g.Decision(ctx)
	return ok && d.Grants(c)
}

// GuardedWrite writes raw when category c is allowed. It returns
// ErrConsentDenied, without touching storage, when it is not.
func (g *Gate) GuardedWrite(ctx context.Context, t persist.Tier, key string, c model.Category, raw string) error {
	if c != model.Necessary && !g.HasConsent(ctx, c) {
		g.log.Debugf("consent: dropped %s write of %q", c, key)
		return ErrConsentDenied
	}
	return g.store.Write(ctx, t, key, raw)
}

// SetConsent replaces the current decision in full and returns the
// categories it revokes relative to the previous decision. Writes blocked
// before the decision are not replayed.
func (g *Gate) SetConsent(ctx context.Context, d model.ConsentDecision) ([]model.Category, error) {
	d.Necessary = true
	if d.Timestamp == 0 {
		d.Timestamp = g.now().UnixMilli()
	}

	var prev *model.ConsentDecision
	if p, ok := g.Decision(ctx); ok {
		prev = &p
	}

	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal decision: %w", err)
	}
	if err := g.store.Write(ctx, persist.TierDurable, DecisionKey, string(b)); err != nil {
		return nil, fmt.Errorf("persist decision: %w", err)
	}

	var revoked []model.Category
	if prev != nil {
		for _, c := range []model.Category{model.Analytics, model.Marketing} {
			if prev.Grants(c) && !d.Grants(c) {
				revoked = append(revoked, c)
			}
		}
	}

	g.mu.Lock()
	listeners := append([]ChangeFunc(nil), g.listeners...)
	g.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, prev, d)
	}
	return revoked, nil
}

// Reset removes the decision so the banner is offered again.
func (g *Gate) Reset(ctx context.Context) {
	g.store.Remove(ctx, persist.TierDurable, DecisionKey)
	g.store.Remove(ctx, persist.TierSession, DismissedKey)
}

// DismissBanner records that the banner was closed without a decision.
// It lasts for the current session only.
func (g *Gate) DismissBanner(ctx context.Context) {
	g.store.Write(ctx, persist.TierSession, DismissedKey, "true")
}

// BannerDismissed reports whether the banner was dismissed this session.
func (g *Gate) BannerDismissed(ctx context.Context) bool {
	raw, err := g.store.Read(ctx, persist.TierSession, DismissedKey)
	return err == nil && raw == "true"
}

// ShouldShowBanner is true when no decision exists and the banner has not
// been dismissed in this session.
func (g *Gate) ShouldShowBanner(ctx context.Context) bool {
	if _, ok := g.Decision(ctx); ok {
		return false
	}
	return !g.BannerDismissed(ctx)
}
