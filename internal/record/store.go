// Package record implements the namespaced, consent-gated, TTL-aware
// record store on top of the persistence tiers.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rcliao/visitor-store/internal/consent"
	"github.com/rcliao/visitor-store/internal/logging"
	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

// DefaultNamespace prefixes every record key.
const DefaultNamespace = "rec"

var (
	// ErrMalformed reports a stored value that is not a record envelope.
	ErrMalformed = errors.New("malformed record")
	// ErrExpired reports a record read after its expiry.
	ErrExpired = errors.New("expired record")
)

// Store reads and writes record envelopes. No method returns an error or
// panics: every failure ends in absorb and the caller gets its default.
type Store struct {
	persist *persist.Store
	gate    *consent.Gate
	log     logging.Logger
	now     func() time.Time
	ns      string
}

// New creates a record store writing through gate into p.
func New(p *persist.Store, gate *consent.Gate, log logging.Logger) *Store {
	return &Store{
		persist: p,
		gate:    gate,
		log:     logging.OrNop(log),
		now:     time.Now,
		ns:      DefaultNamespace,
	}
}

// WithClock overrides the clock used for expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Namespace returns a view of s whose keys live under ns.
func (s *Store) Namespace(ns string) *Store {
	c := *s
	c.ns = s.ns + ":" + ns
	return &c
}

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

func (s *Store) fullKey(key string) string {
	return s.ns + ":" + key
}

// absorb is the single place where errors become "use the default".
func (s *Store) absorb(op, key string, err error) {
	switch {
	case err == nil, errors.Is(err, persist.ErrNotFound):
	case errors.Is(err, consent.ErrConsentDenied):
		s.log.Debugf("record: %s %q: %v", op, key, err)
	case errors.Is(err, ErrExpired):
		s.log.Debugf("record: %s %q: %v", op, key, err)
	case persist.IsUnavailable(err):
		// Already reported by the persistence layer.
		s.log.Debugf("record: %s %q: %v", op, key, err)
	default:
		s.log.Warnf("record: %s %q: %v", op, key, err)
	}
}

// decode parses an envelope without side effects.
func decode(raw string) (model.Record, error) {
	var rec model.Record
	if !gjson.Valid(raw) || !gjson.Get(raw, "value").Exists() {
		return rec, ErrMalformed
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return rec, nil
}

// load reads a live record, purging it when it is malformed or expired.
func (s *Store) load(ctx context.Context, t persist.Tier, key string) (model.Record, error) {
	full := s.fullKey(key)
	raw, err := s.persist.Read(ctx, t, full)
	if err != nil {
		return model.Record{}, err
	}
	rec, err := decode(raw)
	if err != nil {
		s.persist.Remove(ctx, t, full)
		return rec, err
	}
	if rec.Expired(s.now()) {
		s.persist.Remove(ctx, t, full)
		return rec, ErrExpired
	}
	rec.Key = key
	return rec, nil
}

func (s *Store) write(ctx context.Context, key string, value json.RawMessage, o WriteOptions, expiresAt *int64) error {
	now := s.now()
	rec := model.Record{
		Value:     value,
		Category:  o.Category,
		Lifetime:  o.Lifetime,
		ExpiresAt: expiresAt,
		WrittenAt: now.UnixMilli(),
	}
	if o.TTL > 0 {
		exp := now.Add(o.TTL).UnixMilli()
		rec.ExpiresAt = &exp
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.gate.GuardedWrite(ctx, o.Tier(), s.fullKey(key), o.Category, string(b))
}

// Get decodes the live value of key into dst, a non-nil pointer, and
// reports whether it did. Only the lifetime of opts matters for reads. The
// value is decoded into a fresh copy and stored in dst only on success, so
// a preset dst is left untouched when the record is missing, expired or
// does not decode, and acts as the default.
func (s *Store) Get(ctx context.Context, key string, dst any, opts WriteOptions) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		s.absorb("get", key, fmt.Errorf("%w: destination must be a non-nil pointer, got %T", ErrInvalidOptions, dst))
		return false
	}
	rec, err := s.load(ctx, opts.Tier(), key)
	if err != nil {
		s.absorb("get", key, err)
		return false
	}
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(rec.Value, tmp.Interface()); err != nil {
		s.absorb("get", key, fmt.Errorf("%w: %v", ErrMalformed, err))
		return false
	}
	rv.Elem().Set(tmp.Elem())
	return true
}

// Raw returns the live value of key as JSON.
func (s *Store) Raw(ctx context.Context, key string, opts WriteOptions) (json.RawMessage, bool) {
	var raw json.RawMessage
	if !s.Get(ctx, key, &raw, opts) {
		return nil, false
	}
	return raw, true
}

// GetOr returns the live value of key, or def.
func GetOr[T any](ctx context.Context, s *Store, key string, def T, opts WriteOptions) T {
	var v T
	if !s.Get(ctx, key, &v, opts) {
		return def
	}
	return v
}

// Set writes value under key and reports whether it was persisted. A write
// dropped for lack of consent returns false without any error.
func (s *Store) Set(ctx context.Context, key string, value any, opts WriteOptions) bool {
	o, err := opts.Normalize()
	if err != nil {
		s.absorb("set", key, err)
		return false
	}
	b, err := json.Marshal(value)
	if err != nil {
		s.absorb("set", key, err)
		return false
	}
	err = s.write(ctx, key, b, o, nil)
	s.absorb("set", key, err)
	return err == nil
}

// modify is the read-modify-write primitive. fn receives the current value
// (ok=false when absent) and returns the value to store. The existing
// expiry is kept when opts carry no TTL.
func (s *Store) modify(ctx context.Context, key string, opts WriteOptions, fn func(cur json.RawMessage, ok bool) (any, error)) bool {
	o, err := opts.Normalize()
	if err != nil {
		s.absorb("update", key, err)
		return false
	}

	rec, err := s.load(ctx, o.Tier(), key)
	exists := err == nil
	if err != nil {
		s.absorb("update", key, err)
	}

	next, err := fn(rec.Value, exists)
	if err != nil {
		s.absorb("update", key, err)
		return false
	}
	b, err := json.Marshal(next)
	if err != nil {
		s.absorb("update", key, err)
		return false
	}

	var keep *int64
	if o.TTL == 0 && exists {
		keep = rec.ExpiresAt
		if keep != nil && o.Lifetime == model.Permanent {
			o.Lifetime = model.Temporary
		}
	}
	err = s.write(ctx, key, b, o, keep)
	s.absorb("update", key, err)
	return err == nil
}

// Update merges patch into the current value. When both are JSON objects
// the merge is shallow (top-level keys of patch win); otherwise patch
// replaces the value.
func (s *Store) Update(ctx context.Context, key string, patch any, opts WriteOptions) bool {
	return s.modify(ctx, key, opts, func(cur json.RawMessage, ok bool) (any, error) {
		p, err := json.Marshal(patch)
		if err != nil {
			return nil, err
		}
		if !ok {
			return json.RawMessage(p), nil
		}
		return mergeShallow(cur, p), nil
	})
}

// Modify applies fn to the current value of key (def when absent) and
// stores the result.
func Modify[T any](ctx context.Context, s *Store, key string, def T, fn func(T) T, opts WriteOptions) bool {
	return s.modify(ctx, key, opts, func(cur json.RawMessage, ok bool) (any, error) {
		v := def
		if ok {
			var decoded T
			if err := json.Unmarshal(cur, &decoded); err == nil {
				v = decoded
			}
		}
		return fn(v), nil
	})
}

func mergeShallow(cur, patch json.RawMessage) json.RawMessage {
	var a, b map[string]json.RawMessage
	if json.Unmarshal(cur, &a) != nil || json.Unmarshal(patch, &b) != nil || a == nil || b == nil {
		return patch
	}
	for k, v := range b {
		a[k] = v
	}
	out, err := json.Marshal(a)
	if err != nil {
		return patch
	}
	return out
}

// Remove deletes key from the tier selected by opts.
func (s *Store) Remove(ctx context.Context, key string, opts WriteOptions) {
	s.persist.Remove(ctx, opts.Tier(), s.fullKey(key))
}

// Keys lists record keys in this namespace for tier t.
func (s *Store) Keys(ctx context.Context, t persist.Tier) []string {
	all, err := s.persist.Keys(ctx, t)
	if err != nil {
		s.absorb("keys", "*", err)
		return nil
	}
	prefix := s.ns + ":"
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	return keys
}

// Clear removes every record of this namespace in tier t.
func (s *Store) Clear(ctx context.Context, t persist.Tier) int {
	n := 0
	for _, k := range s.Keys(ctx, t) {
		s.persist.Remove(ctx, t, s.fullKey(k))
		n++
	}
	return n
}

// PurgeCategory removes every record of category c in both tiers and
// returns how many were removed.
func (s *Store) PurgeCategory(ctx context.Context, c model.Category) int {
	n := 0
	for _, t := range persist.Tiers {
		for _, k := range s.Keys(ctx, t) {
			raw, err := s.persist.Read(ctx, t, s.fullKey(k))
			if err != nil {
				continue
			}
			rec, err := decode(raw)
			if err != nil || rec.Category != c {
				continue
			}
			s.persist.Remove(ctx, t, s.fullKey(k))
			n++
		}
	}
	if n > 0 {
		s.log.Infof("record: purged %d %s records", n, c)
	}
	return n
}

// Sweep removes every expired or malformed record and returns the count.
func (s *Store) Sweep(ctx context.Context) int {
	n := 0
	for _, t := range persist.Tiers {
		for _, k := range s.Keys(ctx, t) {
			_, err := s.load(ctx, t, k)
			if errors.Is(err, ErrExpired) || errors.Is(err, ErrMalformed) {
				n++
			}
		}
	}
	return n
}

// Stats summarises the records in this namespace.
type Stats struct {
	Tiers      map[string]int `json:"tiers"`
	Categories map[string]int `json:"categories"`
	Expired    int            `json:"expired"`
	Malformed  int            `json:"malformed"`
}

// Stats counts records per tier and category without purging anything.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{Tiers: map[string]int{}, Categories: map[string]int{}}
	now := s.now()
	for _, t := range persist.Tiers {
		for _, k := range s.Keys(ctx, t) {
			raw, err := s.persist.Read(ctx, t, s.fullKey(k))
			if err != nil {
				continue
			}
			st.Tiers[t.String()]++
			rec, err := decode(raw)
			if err != nil {
				st.Malformed++
				continue
			}
			if rec.Expired(now) {
				st.Expired++
			}
			st.Categories[string(rec.Category)]++
		}
	}
	return st
}

// EndSession clears the whole session tier, consent markers included.
func (s *Store) EndSession(ctx context.Context) {
	if err := s.persist.ClearTier(ctx, persist.TierSession); err != nil {
		s.absorb("end-session", "*", err)
	}
}
