package record

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	visitedBeforeKey = "visited_before"
	sessionStateKey  = "session_state"
	visitedPathsKey  = "visited_paths"
)

// SessionState describes the current browsing session.
type SessionState struct {
	ID        string `json:"id"`
	StartedAt int64  `json:"started_at"`
	Returning bool   `json:"returning"`
}

// Session tracks per-session facts. The returning-visitor marker is a
// necessary record and is never consent gated.
type Session struct {
	store *Store

	mu      sync.Mutex
	entropy *rand.Rand
	// unsaved holds the state decided by Start when the session tier
	// could not store it.
	unsaved *SessionState
}

// NewSession creates a Session over s.
func NewSession(s *Store) *Session {
	return &Session{
		store:   s,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (ss *Session) newID(t time.Time) string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), ss.entropy).String()
}

// Start returns the current session, creating it on first use. Whether
// the visitor is returning is decided once, before the durable marker is
// set, and stays fixed for the rest of the session. When the session tier
// cannot store the state it is kept in memory instead.
func (ss *Session) Start(ctx context.Context) SessionState {
	var st SessionState
	if ss.store.Get(ctx, sessionStateKey, &st, SessionNecessary) && st.ID != "" {
		return st
	}

	ss.mu.Lock()
	unsaved := ss.unsaved
	ss.mu.Unlock()
	if unsaved != nil {
		return *unsaved
	}

	now := ss.store.Now()
	var firstVisit int64
	returning := ss.store.Get(ctx, visitedBeforeKey, &firstVisit, DurableNecessary)

	st = SessionState{
		ID:        ss.newID(now),
		StartedAt: now.UnixMilli(),
		Returning: returning,
	}
	if !ss.store.Set(ctx, sessionStateKey, st, SessionNecessary) {
		ss.mu.Lock()
		ss.unsaved = &st
		ss.mu.Unlock()
	}
	if !returning {
		ss.store.Set(ctx, visitedBeforeKey, now.UnixMilli(), DurableNecessary)
	}
	return st
}

// ID returns the current session id.
func (ss *Session) ID(ctx context.Context) string {
	return ss.Start(ctx).ID
}

// IsReturningUser reports whether a previous session left its marker.
func (ss *Session) IsReturningUser(ctx context.Context) bool {
	return ss.Start(ctx).Returning
}

// MarkVisited adds path to the session's visited set.
func (ss *Session) MarkVisited(ctx context.Context, path string) {
	Modify(ctx, ss.store, visitedPathsKey, []string{}, func(paths []string) []string {
		for _, p := range paths {
			if p == path {
				return paths
			}
		}
		return append(paths, path)
	}, SessionNecessary)
}

// GetVisited returns the visited paths in first-visit order.
func (ss *Session) GetVisited(ctx context.Context) []string {
	return GetOr(ctx, ss.store, visitedPathsKey, []string{}, SessionNecessary)
}

// HasVisitedPath reports whether path was visited this session.
func (ss *Session) HasVisitedPath(ctx context.Context, path string) bool {
	for _, p := range ss.GetVisited(ctx) {
		if p == path {
			return true
		}
	}
	return false
}

// End clears every session-scoped record. The next Start begins a new
// session as a returning visitor.
func (ss *Session) End(ctx context.Context) {
	ss.mu.Lock()
	ss.unsaved = nil
	ss.mu.Unlock()
	ss.store.EndSession(ctx)
}
