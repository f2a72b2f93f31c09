package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

// ErrInvalidOptions reports write options that cannot be honoured.
var ErrInvalidOptions = errors.New("invalid write options")

// WriteOptions are decided once at the call site and carried with the
// record. The zero value is a permanent, necessary record.
type WriteOptions struct {
	Category model.Category
	Lifetime model.Lifetime
	TTL      time.Duration
}

// Normalize fills defaults and validates o. A permanent record with a TTL
// becomes temporary; a temporary record needs a positive TTL.
func (o WriteOptions) Normalize() (WriteOptions, error) {
	if o.Category == "" {
		o.Category = model.Necessary
	}
	if o.Lifetime == "" {
		o.Lifetime = model.Permanent
	}
	if !model.ValidCategories[o.Category] {
		return o, fmt.Errorf("%w: category %q", ErrInvalidOptions, o.Category)
	}
	if !model.ValidLifetimes[o.Lifetime] {
		return o, fmt.Errorf("%w: lifetime %q", ErrInvalidOptions, o.Lifetime)
	}
	if o.TTL < 0 {
		return o, fmt.Errorf("%w: negative ttl %s", ErrInvalidOptions, o.TTL)
	}
	if o.Lifetime == model.Permanent && o.TTL > 0 {
		o.Lifetime = model.Temporary
	}
	if o.Lifetime == model.Temporary && o.TTL == 0 {
		return o, fmt.Errorf("%w: temporary record without ttl", ErrInvalidOptions)
	}
	return o, nil
}

// Tier returns the persistence tier for the options' lifetime.
func (o WriteOptions) Tier() persist.Tier {
	if o.Lifetime == model.Session {
		return persist.TierSession
	}
	return persist.TierDurable
}

// Legacy is the loose option bag used by older call sites:
// consent marks analytics data, temporary selects session storage and
// ExpiresIn is a TTL in milliseconds.
type Legacy struct {
	Consent   bool
	Temporary bool
	ExpiresIn int64
}

// Options converts the legacy bag into WriteOptions.
func (l Legacy) Options() WriteOptions {
	o := WriteOptions{Category: model.Necessary, Lifetime: model.Permanent}
	if l.Consent {
		o.Category = model.Analytics
	}
	if l.Temporary {
		o.Lifetime = model.Session
	}
	if l.ExpiresIn > 0 {
		o.TTL = time.Duration(l.ExpiresIn) * time.Millisecond
	}
	return o
}

// Convenience option sets used across the module.
var (
	DurableNecessary = WriteOptions{Category: model.Necessary, Lifetime: model.Permanent}
	SessionNecessary = WriteOptions{Category: model.Necessary, Lifetime: model.Session}
)

// Expiring returns temporary options of category c living for ttl.
func Expiring(c model.Category, ttl time.Duration) WriteOptions {
	return WriteOptions{Category: c, Lifetime: model.Temporary, TTL: ttl}
}
