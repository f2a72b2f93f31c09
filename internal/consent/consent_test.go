package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

func newTestGate(t *testing.T) (*Gate, *persist.Store, *persist.MemoryBackend) {
	t.Helper()
	durable := persist.NewMemoryBackend()
	store := persist.NewStore(durable, persist.NewMemoryBackend())
	g := NewGate(store, nil).WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
	return g, store, durable
}

func TestNecessaryAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGate(t)

	if !g.HasConsent(ctx, model.Necessary) {
		t.Error("expected necessary to be granted without a decision")
	}
	if err := g.GuardedWrite(ctx, persist.TierDurable, "k", model.Necessary, "1"); err != nil {
		t.Fatalf("guarded write: %v", err)
	}
	if v, _ := store.Read(ctx, persist.TierDurable, "k"); v != "1" {
		t.Errorf("expected necessary write to land, got %q", v)
	}
}

func TestNonNecessaryDroppedWithoutDecision(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGate(t)

	for _, c := range []model.Category{model.Analytics, model.Marketing} {
		err := g.GuardedWrite(ctx, persist.TierDurable, "k", c, "1")
		if !errors.Is(err, ErrConsentDenied) {
			t.Errorf("%s: expected ErrConsentDenied, got %v", c, err)
		}
	}
	if _, err := store.Read(ctx, persist.TierDurable, "k"); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("expected nothing written, got %v", err)
	}
}

func TestSetConsentGrantsPerCategory(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	if _, err := g.SetConsent(ctx, model.ConsentDecision{Analytics: true}); err != nil {
		t.Fatalf("set consent: %v", err)
	}
	if !g.HasConsent(ctx, model.Analytics) {
		t.Error("expected analytics granted")
	}
	if g.HasConsent(ctx, model.Marketing) {
		t.Error("expected marketing still denied")
	}

	d, ok := g.Decision(ctx)
	if !ok {
		t.Fatal("expected a decision")
	}
	if !d.Necessary {
		t.Error("expected necessary forced true")
	}
	if d.Timestamp != 1_700_000_000_000 {
		t.Errorf("expected stamped timestamp, got %d", d.Timestamp)
	}
}

func TestSetConsentOverwritesInFull(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	g.SetConsent(ctx, model.ConsentDecision{Analytics: true, Marketing: true})
	revoked, err := g.SetConsent(ctx, model.ConsentDecision{Marketing: true})
	if err != nil {
		t.Fatalf("set consent: %v", err)
	}
	if len(revoked) != 1 || revoked[0] != model.Analytics {
		t.Errorf("expected [analytics] revoked, got %v", revoked)
	}
	if g.HasConsent(ctx, model.Analytics) {
		t.Error("expected analytics revoked, no merge across decisions")
	}
}

func TestBlockedWritesAreNotReplayed(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGate(t)

	g.GuardedWrite(ctx, persist.TierDurable, "campaign_tag", model.Marketing, `"X"`)
	g.SetConsent(ctx, model.ConsentDecision{Marketing: true})

	if _, err := store.Read(ctx, persist.TierDurable, "campaign_tag"); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("expected blocked write to stay lost, got %v", err)
	}
}

func TestShouldShowBanner(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	if !g.ShouldShowBanner(ctx) {
		t.Fatal("expected banner with no decision")
	}

	g.DismissBanner(ctx)
	if g.ShouldShowBanner(ctx) {
		t.Error("expected banner hidden after dismiss this session")
	}
}

func TestBannerSuppressedAcrossSessions(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGate(t)

	// An all-false decision is still a decision.
	g.SetConsent(ctx, model.ConsentDecision{})
	store.ClearTier(ctx, persist.TierSession)

	if g.ShouldShowBanner(ctx) {
		t.Error("expected banner suppressed in a new session after a decision")
	}

	g.Reset(ctx)
	if !g.ShouldShowBanner(ctx) {
		t.Error("expected banner again after explicit reset")
	}
}

func TestDismissOnlyLastsOneSession(t *testing.T) {
	ctx := context.Background()
	g, store, _ := newTestGate(t)

	g.DismissBanner(ctx)
	store.ClearTier(ctx, persist.TierSession)
	if !g.ShouldShowBanner(ctx) {
		t.Error("expected banner offered again in the next session")
	}
}

func TestMalformedDecisionTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	g, store, durable := newTestGate(t)

	store.Write(ctx, persist.TierDurable, DecisionKey, "{not json")
	if _, ok := g.Decision(ctx); ok {
		t.Error("expected malformed decision to be absent")
	}
	if durable.Len() != 0 {
		t.Error("expected malformed decision purged")
	}
	if !g.ShouldShowBanner(ctx) {
		t.Error("expected banner after malformed decision")
	}
}

func TestOnChangeListeners(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	var calls []bool
	g.OnChange(func(_ context.Context, prev *model.ConsentDecision, next model.ConsentDecision) {
		calls = append(calls, prev == nil)
	})

	g.SetConsent(ctx, model.ConsentDecision{Analytics: true})
	g.SetConsent(ctx, model.ConsentDecision{})

	if len(calls) != 2 || !calls[0] || calls[1] {
		t.Errorf("expected [true false] prev==nil calls, got %v", calls)
	}
}

func TestSetConsentStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	g, _, durable := newTestGate(t)
	durable.SetFailure(errors.New("disabled"))

	if _, err := g.SetConsent(ctx, model.ConsentDecision{Analytics: true}); err == nil {
		t.Error("expected error persisting decision")
	}
	if g.HasConsent(ctx, model.Analytics) {
		t.Error("expected no consent when storage is unavailable")
	}
	if !g.ShouldShowBanner(ctx) {
		t.Error("expected banner every visit when storage is unavailable")
	}
}
