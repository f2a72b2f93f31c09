// Package scroll remembers the scroll position of recently viewed pages.
package scroll

import (
	"context"
	"sync"
	"time"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/record"
	"github.com/rcliao/visitor-store/internal/timing"
)

const (
	// KeyPrefix precedes the page path in the record key.
	KeyPrefix = "scroll:"
	// DefaultWindow is how long a position is restored for.
	DefaultWindow = 30 * time.Minute
	// DefaultDebounce coalesces scroll bursts.
	DefaultDebounce = 200 * time.Millisecond
)

// Memory stores one position per path.
type Memory struct {
	store    *record.Store
	window   time.Duration
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*timing.Debouncer
}

// New creates a Memory. Non-positive durations select the defaults.
func New(s *record.Store, window, debounce time.Duration) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Memory{
		store:    s,
		window:   window,
		debounce: debounce,
		pending:  map[string]*timing.Debouncer{},
	}
}

func (m *Memory) opts() record.WriteOptions {
	return record.Expiring(model.Necessary, m.window)
}

// Save records y for path immediately.
func (m *Memory) Save(ctx context.Context, path string, y int) bool {
	if y < 0 {
		y = 0
	}
	return m.store.Set(ctx, KeyPrefix+path, y, m.opts())
}

// Get returns the remembered position for path, or 0.
func (m *Memory) Get(ctx context.Context, path string) int {
	return record.GetOr(ctx, m.store, KeyPrefix+path, 0, m.opts())
}

// Forget drops the position for path.
func (m *Memory) Forget(ctx context.Context, path string) {
	m.store.Remove(ctx, KeyPrefix+path, m.opts())
}

// SaveDebounced records y for path once scrolling on that path has been
// quiet for the debounce period.
func (m *Memory) SaveDebounced(ctx context.Context, path string, y int) {
	m.mu.Lock()
	d, ok := m.pending[path]
	if !ok {
		d = timing.NewDebouncer(m.debounce)
		m.pending[path] = d
	}
	m.mu.Unlock()
	d.Call(func() { m.Save(ctx, path, y) })
}

// Flush writes every pending position now.
func (m *Memory) Flush() {
	m.mu.Lock()
	ds := make([]*timing.Debouncer, 0, len(m.pending))
	for _, d := range m.pending {
		ds = append(ds, d)
	}
	m.mu.Unlock()
	for _, d := range ds {
		d.Flush()
	}
}

// Stop cancels pending saves without writing them.
func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, d := range m.pending {
		d.Stop()
		delete(m.pending, path)
	}
}
