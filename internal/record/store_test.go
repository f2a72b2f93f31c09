package record

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rcliao/visitor-store/internal/consent"
	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	store   *Store
	gate    *consent.Gate
	persist *persist.Store
	durable *persist.MemoryBackend
	session *persist.MemoryBackend
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	durable := persist.NewMemoryBackend()
	session := persist.NewMemoryBackend()
	p := persist.NewStore(durable, session)
	gate := consent.NewGate(p, nil).WithClock(clock.Now)
	return &testEnv{
		store:   New(p, gate, nil).WithClock(clock.Now),
		gate:    gate,
		persist: p,
		durable: durable,
		session: session,
		clock:   clock,
	}
}

func TestSetAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	type viewed struct {
		Departments []string       `json:"departments"`
		Counts      map[string]int `json:"counts"`
	}
	want := viewed{Departments: []string{"design", "dev"}, Counts: map[string]int{"design": 2}}

	if !env.store.Set(ctx, "viewed", want, DurableNecessary) {
		t.Fatal("expected set to persist")
	}
	var got viewed
	if !env.store.Get(ctx, "viewed", &got, DurableNecessary) {
		t.Fatal("expected get to find value")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestGetReturnsDefault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if got := GetOr(ctx, env.store, "missing", 42, DurableNecessary); got != 42 {
		t.Errorf("expected default 42, got %d", got)
	}
}

func TestNecessaryIgnoresConsent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.gate.SetConsent(ctx, model.ConsentDecision{})
	env.store.Set(ctx, "k", "v", DurableNecessary)
	if got := GetOr(ctx, env.store, "k", "", DurableNecessary); got != "v" {
		t.Errorf("expected necessary write to survive opt-out, got %q", got)
	}
}

func TestConsentGatedWriteThenGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	opts := WriteOptions{Category: model.Marketing}

	if env.store.Set(ctx, "campaign_tag", "X", opts) {
		t.Error("expected marketing write to be dropped without consent")
	}
	if got := GetOr[*string](ctx, env.store, "campaign_tag", nil, opts); got != nil {
		t.Errorf("expected nil default, got %q", *got)
	}
	if env.durable.Len() != 0 {
		t.Errorf("expected nothing physically written, got %d keys", env.durable.Len())
	}

	env.gate.SetConsent(ctx, model.ConsentDecision{Marketing: true})
	// The earlier write is not replayed.
	if got := GetOr(ctx, env.store, "campaign_tag", "none", opts); got != "none" {
		t.Errorf("expected blocked write lost, got %q", got)
	}

	env.store.Set(ctx, "campaign_tag", "X", opts)
	if got := GetOr(ctx, env.store, "campaign_tag", "none", opts); got != "X" {
		t.Errorf("expected X after grant, got %q", got)
	}
}

func TestAnalyticsDroppedWithoutGrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	opts := WriteOptions{Category: model.Analytics}

	env.gate.SetConsent(ctx, model.ConsentDecision{Marketing: true})
	env.store.Set(ctx, "scroll_depth", 80, opts)
	if got := GetOr(ctx, env.store, "scroll_depth", -1, opts); got != -1 {
		t.Errorf("expected default, got %d", got)
	}
}

func TestExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	opts := WriteOptions{TTL: 1000 * time.Millisecond}

	env.store.Set(ctx, "offer", "spring", opts)

	env.clock.Advance(999 * time.Millisecond)
	if got := GetOr(ctx, env.store, "offer", "", opts); got != "spring" {
		t.Errorf("expected value at +999ms, got %q", got)
	}

	env.clock.Advance(2 * time.Millisecond)
	if got := GetOr(ctx, env.store, "offer", "", opts); got != "" {
		t.Errorf("expected default at +1001ms, got %q", got)
	}
	if env.durable.Len() != 0 {
		t.Error("expected expired record to be purged")
	}
}

func TestExpiresExactlyAtBoundaryIsLive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	opts := Expiring(model.Necessary, time.Second)

	env.store.Set(ctx, "k", 1, opts)
	env.clock.Advance(time.Second)
	if got := GetOr(ctx, env.store, "k", 0, opts); got != 1 {
		t.Errorf("expected record live at exactly expires_at, got %d", got)
	}
}

func TestSessionLifetimeUsesSessionTier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "viewed_departments", []string{"design"}, SessionNecessary)
	if env.session.Len() != 1 || env.durable.Len() != 0 {
		t.Fatalf("expected record in session tier only (session=%d durable=%d)", env.session.Len(), env.durable.Len())
	}
	if GetOr[[]string](ctx, env.store, "viewed_departments", nil, DurableNecessary) != nil {
		t.Error("expected durable read to miss a session record")
	}

	env.store.EndSession(ctx)
	if got := GetOr[[]string](ctx, env.store, "viewed_departments", nil, SessionNecessary); got != nil {
		t.Errorf("expected session record gone after session end, got %v", got)
	}
}

func TestUpdateShallowMerge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "prefs", map[string]any{"theme": "dark", "nested": map[string]int{"a": 1}}, DurableNecessary)
	env.store.Update(ctx, "prefs", map[string]any{"lang": "en", "nested": map[string]int{"b": 2}}, DurableNecessary)

	got := GetOr(ctx, env.store, "prefs", map[string]any{}, DurableNecessary)
	if got["theme"] != "dark" || got["lang"] != "en" {
		t.Errorf("expected merged top-level keys, got %v", got)
	}
	nested, _ := got["nested"].(map[string]any)
	if _, ok := nested["a"]; ok {
		t.Errorf("expected shallow merge to replace nested object, got %v", nested)
	}
}

func TestUpdateReplacesNonObject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "k", []int{1, 2}, DurableNecessary)
	env.store.Update(ctx, "k", map[string]int{"x": 1}, DurableNecessary)

	got := GetOr(ctx, env.store, "k", map[string]int{}, DurableNecessary)
	if got["x"] != 1 || len(got) != 1 {
		t.Errorf("expected patch to replace array, got %v", got)
	}
}

func TestUpdateKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "k", map[string]int{"a": 1}, Expiring(model.Necessary, time.Minute))
	env.clock.Advance(30 * time.Second)
	env.store.Update(ctx, "k", map[string]int{"b": 2}, DurableNecessary)

	env.clock.Advance(31 * time.Second)
	if got := GetOr[map[string]int](ctx, env.store, "k", nil, DurableNecessary); got != nil {
		t.Errorf("expected original expiry to hold, got %v", got)
	}
}

func TestModifyCounter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	inc := func(n int) int { return n + 1 }
	for i := 0; i < 3; i++ {
		Modify(ctx, env.store, "visits", 0, inc, DurableNecessary)
	}
	if got := GetOr(ctx, env.store, "visits", 0, DurableNecessary); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestModifyDoesNotMutateDefault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	def := map[string]int{}
	env.store.Set(ctx, "m", map[string]int{"a": 1}, DurableNecessary)
	Modify(ctx, env.store, "m", def, func(m map[string]int) map[string]int { m["b"] = 2; return m }, DurableNecessary)
	if len(def) != 0 {
		t.Errorf("expected default untouched, got %v", def)
	}
}

func TestMalformedRecordTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.persist.Write(ctx, persist.TierDurable, "rec:legacy", "not-json{")
	env.persist.Write(ctx, persist.TierDurable, "rec:foreign", `{"other":1}`)

	if got := GetOr(ctx, env.store, "legacy", "def", DurableNecessary); got != "def" {
		t.Errorf("expected default for garbage, got %q", got)
	}
	if got := GetOr(ctx, env.store, "foreign", "def", DurableNecessary); got != "def" {
		t.Errorf("expected default for foreign shape, got %q", got)
	}
	if env.durable.Len() != 0 {
		t.Errorf("expected malformed records purged, got %d keys", env.durable.Len())
	}
}

func TestWrongTypeReturnsDefault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "k", "text", DurableNecessary)
	if got := GetOr(ctx, env.store, "k", 7, DurableNecessary); got != 7 {
		t.Errorf("expected default on type mismatch, got %d", got)
	}
}

func TestGetLeavesDstUntouchedOnDecodeError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	type pageView struct {
		Page  string `json:"page"`
		Count int    `json:"count"`
	}
	env.store.Set(ctx, "view", map[string]any{"page": "/pricing", "count": "many"}, DurableNecessary)

	got := pageView{Page: "/", Count: 1}
	if env.store.Get(ctx, "view", &got, DurableNecessary) {
		t.Fatal("expected get to fail on a type mismatch")
	}
	if got.Page != "/" || got.Count != 1 {
		t.Errorf("expected preset dst kept, got %+v", got)
	}

	if env.store.Get(ctx, "view", got, DurableNecessary) {
		t.Error("expected get to reject a non-pointer dst")
	}
}

func TestStorageUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.durable.SetFailure(errors.New("SecurityError: storage disabled"))

	if env.store.Set(ctx, "k", "v", DurableNecessary) {
		t.Error("expected set to report failure")
	}
	if got := GetOr(ctx, env.store, "k", "def", DurableNecessary); got != "def" {
		t.Errorf("expected default, got %q", got)
	}
	if env.store.Update(ctx, "k", map[string]int{"a": 1}, DurableNecessary) {
		t.Error("expected update to report failure")
	}
	env.store.Remove(ctx, "k", DurableNecessary)
	if n := env.store.Sweep(ctx); n != 0 {
		t.Errorf("expected nothing swept, got %d", n)
	}
}

func TestInvalidOptionsRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if env.store.Set(ctx, "k", 1, WriteOptions{Lifetime: model.Temporary}) {
		t.Error("expected temporary without ttl to be rejected")
	}
	if env.store.Set(ctx, "k", 1, WriteOptions{Category: "tracking"}) {
		t.Error("expected unknown category to be rejected")
	}
	if env.durable.Len() != 0 {
		t.Error("expected nothing written")
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "k", 1, SessionNecessary)
	env.store.Remove(ctx, "k", SessionNecessary)
	if got := GetOr(ctx, env.store, "k", 0, SessionNecessary); got != 0 {
		t.Errorf("expected removed, got %d", got)
	}
}

func TestPurgeCategory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gate.SetConsent(ctx, model.ConsentDecision{Analytics: true, Marketing: true})

	env.store.Set(ctx, "a1", 1, WriteOptions{Category: model.Analytics})
	env.store.Set(ctx, "a2", 1, WriteOptions{Category: model.Analytics, Lifetime: model.Session})
	env.store.Namespace("perf").Set(ctx, "a3", 1, WriteOptions{Category: model.Analytics})
	env.store.Set(ctx, "m1", 1, WriteOptions{Category: model.Marketing})
	env.store.Set(ctx, "n1", 1, DurableNecessary)

	if n := env.store.PurgeCategory(ctx, model.Analytics); n != 3 {
		t.Errorf("expected 3 analytics records purged, got %d", n)
	}
	if got := GetOr(ctx, env.store, "m1", 0, DurableNecessary); got != 1 {
		t.Error("expected marketing record kept")
	}
	if got := GetOr(ctx, env.store, "n1", 0, DurableNecessary); got != 1 {
		t.Error("expected necessary record kept")
	}
	if _, ok := env.gate.Decision(ctx); !ok {
		t.Error("expected consent decision untouched by purge")
	}
}

func TestSweepAndStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.store.Set(ctx, "live", 1, DurableNecessary)
	env.store.Set(ctx, "short", 1, Expiring(model.Necessary, time.Second))
	env.store.Set(ctx, "sess", 1, SessionNecessary)
	env.persist.Write(ctx, persist.TierDurable, "rec:bad", "{")
	env.clock.Advance(2 * time.Second)

	st := env.store.Stats(ctx)
	if st.Tiers["durable"] != 3 || st.Tiers["session"] != 1 {
		t.Errorf("unexpected tier counts: %v", st.Tiers)
	}
	if st.Expired != 1 || st.Malformed != 1 {
		t.Errorf("expected 1 expired and 1 malformed, got %+v", st)
	}
	if st.Categories["necessary"] != 3 {
		t.Errorf("expected 3 necessary, got %v", st.Categories)
	}

	if n := env.store.Sweep(ctx); n != 2 {
		t.Errorf("expected 2 swept, got %d", n)
	}
	if st := env.store.Stats(ctx); st.Tiers["durable"] != 1 {
		t.Errorf("expected 1 durable record after sweep, got %v", st.Tiers)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a := env.store.Namespace("a")
	b := env.store.Namespace("b")
	a.Set(ctx, "k", 1, DurableNecessary)
	b.Set(ctx, "k", 2, DurableNecessary)

	if got := GetOr(ctx, a, "k", 0, DurableNecessary); got != 1 {
		t.Errorf("expected 1 in namespace a, got %d", got)
	}
	if n := a.Clear(ctx, persist.TierDurable); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if got := GetOr(ctx, b, "k", 0, DurableNecessary); got != 2 {
		t.Errorf("expected namespace b untouched, got %d", got)
	}
}
