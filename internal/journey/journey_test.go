package journey

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rcliao/visitor-store/internal/consent"
	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
	"github.com/rcliao/visitor-store/internal/record"
)

func newTestTracker(t *testing.T, capacity int) (*Tracker, *record.Store) {
	t.Helper()
	p := persist.NewStore(persist.NewMemoryBackend(), persist.NewMemoryBackend())
	tick := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	s := record.New(p, consent.NewGate(p, nil), nil).WithClock(clock)
	return New(s, capacity), s
}

func TestAddPageAndQueries(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, 0)

	if _, ok := tr.GetPreviousPage(ctx); ok {
		t.Error("expected no previous page on an empty journey")
	}

	tr.AddPage(ctx, "Home", "/")
	if _, ok := tr.GetPreviousPage(ctx); ok {
		t.Error("expected no previous page on the first page of the session")
	}

	tr.AddPage(ctx, "Services", "/services")
	tr.AddPage(ctx, "Pricing", "/pricing")

	j := tr.GetJourney(ctx)
	if len(j) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(j))
	}
	if j[0].PageName != "Home" || j[2].PageName != "Pricing" {
		t.Errorf("expected chronological order, got %+v", j)
	}
	if j[0].Timestamp >= j[1].Timestamp {
		t.Error("expected increasing timestamps")
	}

	prev, ok := tr.GetPreviousPage(ctx)
	if !ok || prev.PageName != "Services" || prev.URL != "/services" {
		t.Errorf("expected Services as previous page, got %+v", prev)
	}

	if !tr.HasVisited(ctx, "Services") {
		t.Error("expected Services visited")
	}
	if tr.HasVisited(ctx, "services") {
		t.Error("expected exact name match")
	}
}

func TestFIFOCap(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, 5)

	for i := 0; i < 6; i++ {
		tr.AddPage(ctx, fmt.Sprintf("Page %d", i), fmt.Sprintf("/p/%d", i))
	}
	j := tr.GetJourney(ctx)
	if len(j) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(j))
	}
	if j[0].PageName != "Page 1" {
		t.Errorf("expected oldest entry evicted first, got %q at head", j[0].PageName)
	}
	if tr.HasVisited(ctx, "Page 0") {
		t.Error("expected evicted page to be forgotten")
	}
}

func TestDefaultCap(t *testing.T) {
	tr, _ := newTestTracker(t, -1)
	if tr.Cap() != DefaultCap {
		t.Errorf("expected default cap %d, got %d", DefaultCap, tr.Cap())
	}
}

func TestPathsAndClear(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, 0)

	tr.AddPage(ctx, "Home", "/")
	tr.AddPage(ctx, "Blog", "/blog")
	tr.AddPage(ctx, "Home", "/")

	paths := tr.Paths(ctx)
	if len(paths) != 2 || paths[0] != "/" || paths[1] != "/blog" {
		t.Errorf("expected [/ /blog], got %v", paths)
	}

	tr.Clear(ctx)
	if len(tr.GetJourney(ctx)) != 0 {
		t.Error("expected empty journey after clear")
	}
}

func TestJourneyIgnoresConsentOptOut(t *testing.T) {
	ctx := context.Background()
	p := persist.NewStore(persist.NewMemoryBackend(), persist.NewMemoryBackend())
	gate := consent.NewGate(p, nil)
	gate.SetConsent(ctx, model.ConsentDecision{})
	tr := New(record.New(p, gate, nil), 0)

	tr.AddPage(ctx, "Home", "/")
	if !tr.HasVisited(ctx, "Home") {
		t.Error("expected journey recorded as necessary data despite opt-out")
	}
}

func TestJourneyEndsWithSession(t *testing.T) {
	ctx := context.Background()
	tr, s := newTestTracker(t, 0)

	tr.AddPage(ctx, "Home", "/")
	s.EndSession(ctx)
	if len(tr.GetJourney(ctx)) != 0 {
		t.Error("expected journey cleared at session end")
	}
}
