// Package persist provides the failure-safe persistence tiers that every
// visitor record is written to.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// Tier selects the underlying persistence mechanism.
type Tier int

const (
	// TierDurable survives browser restarts.
	TierDurable Tier = iota
	// TierSession is cleared when the browsing session ends.
	TierSession
)

func (t Tier) String() string {
	switch t {
	case TierDurable:
		return "durable"
	case TierSession:
		return "session"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses "durable" or "session".
func ParseTier(s string) (Tier, error) {
	switch s {
	case "durable":
		return TierDurable, nil
	case "session":
		return TierSession, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Tiers lists every tier, durable first.
var Tiers = []Tier{TierDurable, TierSession}

// ErrNotFound is returned by backends when a key is absent.
var ErrNotFound = errors.New("not found")

// ErrNoBackend is returned when a tier has no backend configured.
var ErrNoBackend = errors.New("no backend for tier")

// Backend is a raw string key/value store for one tier.
type Backend interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists stored keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrorKind classifies persistence failures.
type ErrorKind int

const (
	// KindUnavailable covers disabled storage, quota and security errors.
	KindUnavailable ErrorKind = iota + 1
)

func (k ErrorKind) String() string {
	if k == KindUnavailable {
		return "storage unavailable"
	}
	return "unknown"
}

// Error is a persistence failure. It never escapes the record layer.
type Error struct {
	Op   string
	Tier Tier
	Key  string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %q: %s: %v", e.Op, e.Tier, e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a StorageUnavailable failure.
func IsUnavailable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindUnavailable
}
