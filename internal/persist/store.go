package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/visitor-store/internal/logging"
)

// DefaultPrefix scopes every key so visitor data never collides with
// unrelated site data sharing the same backend.
const DefaultPrefix = "site"

// Store routes raw reads and writes to the backend of each tier. Every
// backend failure, including a panic, is converted into a *Error and
// logged; nothing is thrown to callers.
type Store struct {
	durable Backend
	session Backend
	prefix  string
	log     logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger used for storage warnings.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = logging.OrNop(l) }
}

// NewStore creates a Store over a durable and a session backend.
// Either may be nil, in which case every operation on that tier fails
// as unavailable.
func NewStore(durable, session Backend, opts ...Option) *Store {
	s := &Store{
		durable: durable,
		session: session,
		prefix:  DefaultPrefix,
		log:     logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Prefix returns the application key prefix.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) backend(t Tier) Backend {
	switch t {
	case TierDurable:
		return s.durable
	case TierSession:
		return s.session
	}
	return nil
}

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) keyPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + ":"
}

// do runs fn against the tier's backend, translating failures.
func (s *Store) do(op string, t Tier, key string, fn func(Backend) error) (err error) {
	b := s.backend(t)
	if b == nil {
		return &Error{Op: op, Tier: t, Key: key, Kind: KindUnavailable, Err: ErrNoBackend}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Op: op, Tier: t, Key: key, Kind: KindUnavailable, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(b); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &Error{Op: op, Tier: t, Key: key, Kind: KindUnavailable, Err: err}
	}
	return nil
}

// Read returns the raw value for key. The error is ErrNotFound when the key
// is absent, or a *Error when the tier is unavailable.
func (s *Store) Read(ctx context.Context, t Tier, key string) (string, error) {
	var v string
	err := s.do("read", t, key, func(b Backend) error {
		var err error
		v, err = b.Get(ctx, s.fullKey(key))
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warnf("storage: %v", err)
	}
	return v, err
}

// Write stores raw under key. A nil error means the value was written.
func (s *Store) Write(ctx context.Context, t Tier, key, raw string) error {
	err := s.do("write", t, key, func(b Backend) error {
		return b.Set(ctx, s.fullKey(key), raw)
	})
	if err != nil {
		s.log.Warnf("storage: %v", err)
	}
	return err
}

// Remove deletes key on a best-effort basis.
func (s *Store) Remove(ctx context.Context, t Tier, key string) {
	err := s.do("remove", t, key, func(b Backend) error {
		return b.Delete(ctx, s.fullKey(key))
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warnf("storage: %v", err)
	}
}

// Keys lists every application key in the tier, without the prefix.
func (s *Store) Keys(ctx context.Context, t Tier) ([]string, error) {
	var raw []string
	err := s.do("keys", t, "*", func(b Backend) error {
		var err error
		raw, err = b.Keys(ctx, s.keyPrefix())
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		s.log.Warnf("storage: %v", err)
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, s.keyPrefix()))
	}
	return keys, nil
}

// ClearTier removes every application key in the tier. Keys without the
// application prefix are left untouched.
func (s *Store) ClearTier(ctx context.Context, t Tier) error {
	keys, err := s.Keys(ctx, t)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s.Remove(ctx, t, k)
	}
	return nil
}
