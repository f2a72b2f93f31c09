package engagement

import (
	"sync"
	"time"
)

// Banner runs a Decision against real timers and calls show at most once.
type Banner struct {
	policy Policy
	show   func()

	mu       sync.Mutex
	timers   []*time.Timer
	decision Decision
	started  bool
	armed    bool
	engaged  bool
	shown    bool
	stopped  bool
}

// NewBanner creates a scheduler calling show when the banner should appear.
func NewBanner(p Policy, show func()) *Banner {
	return &Banner{policy: p, show: show}
}

// Start schedules the banner for in and returns the decision. Calling Start
// again has no effect.
func (b *Banner) Start(in Input) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.stopped {
		return b.decision
	}
	b.started = true
	b.decision = b.policy.Decide(in)
	if !b.decision.Show {
		return b.decision
	}
	b.timers = append(b.timers, time.AfterFunc(b.decision.Delay, b.arm))
	if b.decision.Deadline > b.decision.Delay {
		b.timers = append(b.timers, time.AfterFunc(b.decision.Deadline, b.fire))
	}
	return b.decision
}

func (b *Banner) arm() {
	b.mu.Lock()
	b.armed = true
	ready := b.engaged || !b.decision.RequireEngagement
	b.mu.Unlock()
	if ready {
		b.fire()
	}
}

// NotifyEngaged records the first scroll or click. Later calls are ignored.
func (b *Banner) NotifyEngaged() {
	b.mu.Lock()
	if b.engaged {
		b.mu.Unlock()
		return
	}
	b.engaged = true
	ready := b.armed
	b.mu.Unlock()
	if ready {
		b.fire()
	}
}

func (b *Banner) fire() {
	b.mu.Lock()
	if b.shown || b.stopped {
		b.mu.Unlock()
		return
	}
	b.shown = true
	b.stopTimers()
	b.mu.Unlock()
	b.show()
}

// Shown reports whether show has been called.
func (b *Banner) Shown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shown
}

// Stop cancels pending timers on teardown.
func (b *Banner) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.stopTimers()
}

func (b *Banner) stopTimers() {
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}
