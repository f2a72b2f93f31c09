package intent

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/visitor-store/internal/consent"
	"github.com/rcliao/visitor-store/internal/persist"
	"github.com/rcliao/visitor-store/internal/record"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestStore(t *testing.T) (*record.Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	p := persist.NewStore(persist.NewMemoryBackend(), persist.NewMemoryBackend())
	return record.New(p, consent.NewGate(p, nil), nil).WithClock(clock.now), clock
}

func TestMarkInterestIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	tr := NewTracker(s)

	tr.MarkInterest(ctx, "web-design")
	tr.MarkInterest(ctx, "web-design")
	tr.MarkInterest(ctx, "seo")
	tr.MarkInterest(ctx, "")

	got := tr.GetInterests(ctx)
	if len(got) != 2 || got[0] != "web-design" || got[1] != "seo" {
		t.Errorf("expected [web-design seo], got %v", got)
	}
	if !tr.Has(ctx, "seo") || tr.Has(ctx, "ads") {
		t.Error("unexpected Has result")
	}
}

func TestInterestsAreSessionScoped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	tr := NewTracker(s)

	tr.MarkInterest(ctx, "branding")
	s.EndSession(ctx)
	if got := tr.GetInterests(ctx); len(got) != 0 {
		t.Errorf("expected interests cleared with the session, got %v", got)
	}
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	c := NewCounter(s, PackageKey, time.Hour)

	c.Bump(ctx, "starter")
	c.Bump(ctx, "growth")
	if n := c.Bump(ctx, "growth"); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	c.Bump(ctx, "enterprise")

	top := c.Top(ctx, 2)
	if len(top) != 2 || top[0].Tag != "growth" || top[1].Tag != "enterprise" {
		t.Errorf("expected growth then enterprise (tie by name), got %+v", top)
	}

	clock.t = clock.t.Add(2 * time.Hour)
	if got := c.Counts(ctx); len(got) != 0 {
		t.Errorf("expected counts expired after window, got %v", got)
	}
}

func TestCounterSurvivesSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c := NewCounter(s, PackageKey, 0)

	c.Bump(ctx, "starter")
	s.EndSession(ctx)
	if got := c.Counts(ctx); got["starter"] != 1 {
		t.Errorf("expected package interest to be durable, got %v", got)
	}
}

func TestRank(t *testing.T) {
	links := []QuickLink{
		{Label: "Home", Path: "/"},
		{Label: "Blog", Path: "/blog"},
		{Label: "Design", Path: "/design", Tag: "design"},
		{Label: "Dev", Path: "/dev", Tag: "dev"},
		{Label: "Contact", Path: "/contact"},
	}

	got := Rank(links, []string{"dev", "design"}, []string{"/", "/dev"})
	want := []string{"/dev", "/design", "/blog", "/contact", "/"}
	if len(got) != len(want) {
		t.Fatalf("expected %d links, got %d", len(want), len(got))
	}
	for i, p := range want {
		if got[i].Path != p {
			t.Errorf("position %d: expected %s, got %s", i, p, got[i].Path)
		}
	}
	if links[0].Path != "/" {
		t.Error("expected input slice untouched")
	}
}

func TestRankWithoutSignals(t *testing.T) {
	links := []QuickLink{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}
	got := Rank(links, nil, nil)
	for i := range links {
		if got[i].Path != links[i].Path {
			t.Errorf("expected input order preserved, got %v", got)
		}
	}
}
