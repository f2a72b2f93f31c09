// Package timing rate-limits bursty page events such as scroll and resize.
package timing

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Debouncer runs the last scheduled call once the calls have been quiet for
// the configured delay. Each Call resets the timer.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Call schedules fn, replacing any call still pending. Calls after Stop are
// ignored.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// fire runs the pending call scheduled by the Call numbered gen. A timer
// that fired before a later Call replaced it finds a newer gen and returns.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	stopped := d.stopped
	d.mu.Unlock()
	if fn != nil && !stopped {
		fn()
	}
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush runs the pending call now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop drops the pending call and disables the Debouncer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}

// DefaultThrottle is roughly one animation frame at 30fps.
const DefaultThrottle = 33 * time.Millisecond

// Throttler lets the first call of each interval through and drops the rest.
type Throttler struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottler creates a Throttler admitting one call per interval. A
// non-positive interval admits every call.
func NewThrottler(interval time.Duration) *Throttler {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttler{limiter: rate.NewLimiter(limit, 1), now: time.Now}
}

// WithClock overrides the clock used to measure intervals.
func (t *Throttler) WithClock(now func() time.Time) *Throttler {
	t.now = now
	return t
}

// Allow reports whether a call made now may run.
func (t *Throttler) Allow() bool {
	return t.limiter.AllowN(t.now(), 1)
}

// Do runs fn when the throttle allows it and reports whether it ran.
func (t *Throttler) Do(fn func()) bool {
	if !t.Allow() {
		return false
	}
	fn()
	return true
}
