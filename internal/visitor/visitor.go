// Package visitor wires the storage layer once per visitor profile. A
// Context is built at startup and handed to every component that needs
// storage, instead of package-level singletons.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rcliao/visitor-store/internal/config"
	"github.com/rcliao/visitor-store/internal/consent"
	"github.com/rcliao/visitor-store/internal/engagement"
	"github.com/rcliao/visitor-store/internal/intent"
	"github.com/rcliao/visitor-store/internal/journey"
	"github.com/rcliao/visitor-store/internal/logging"
	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/perf"
	"github.com/rcliao/visitor-store/internal/persist"
	"github.com/rcliao/visitor-store/internal/record"
	"github.com/rcliao/visitor-store/internal/scroll"
)

// Options tune a Context. Zero values select the defaults.
type Options struct {
	Prefix       string
	JourneyCap   int
	ScrollWindow time.Duration
	Banner       engagement.Policy
	Logger       logging.Logger
	Clock        func() time.Time
}

// Context owns every store for one visitor profile.
type Context struct {
	Persist  *persist.Store
	Consent  *consent.Gate
	Records  *record.Store
	Session  *record.Session
	Prefs    *record.Preferences
	Journey  *journey.Tracker
	Intent   *intent.Tracker
	Packages *intent.Counter
	Scroll   *scroll.Memory
	Perf     *perf.Tracker
	Policy   engagement.Policy
	// SQLite is set when the profile lives in a SQLite database.
	SQLite *persist.SQLiteDB

	closers []io.Closer
}

// New builds a Context over the given tier backends.
func New(durable, session persist.Backend, opts Options) *Context {
	log := logging.OrNop(opts.Logger)
	pOpts := []persist.Option{persist.WithLogger(log)}
	if opts.Prefix != "" {
		pOpts = append(pOpts, persist.WithPrefix(opts.Prefix))
	}
	p := persist.NewStore(durable, session, pOpts...)

	gate := consent.NewGate(p, log)
	records := record.New(p, gate, log)
	if opts.Clock != nil {
		gate.WithClock(opts.Clock)
		records.WithClock(opts.Clock)
	}

	c := &Context{
		Persist:  p,
		Consent:  gate,
		Records:  records,
		Session:  record.NewSession(records),
		Prefs:    record.NewPreferences(records),
		Journey:  journey.New(records, opts.JourneyCap),
		Intent:   intent.NewTracker(records),
		Packages: intent.NewCounter(records, intent.PackageKey, 0),
		Scroll:   scroll.New(records, opts.ScrollWindow, 0),
		Perf:     perf.New(records),
		Policy:   opts.Banner.WithDefaults(),
	}
	gate.OnChange(c.purgeWithdrawn)
	return c
}

// purgeWithdrawn removes records of every category the new decision does
// not grant, so withdrawn consent also withdraws the stored data.
func (c *Context) purgeWithdrawn(ctx context.Context, _ *model.ConsentDecision, next model.ConsentDecision) {
	for _, cat := range []model.Category{model.Analytics, model.Marketing} {
		if !next.Grants(cat) {
			c.Records.PurgeCategory(ctx, cat)
		}
	}
}

// ResetConsent forgets the decision and the records it allowed.
func (c *Context) ResetConsent(ctx context.Context) {
	c.Consent.Reset(ctx)
	c.purgeWithdrawn(ctx, nil, model.ConsentDecision{})
}

// Open builds a Context from configuration, opening the configured
// backend. Close releases it.
func Open(ctx context.Context, cfg config.Config, log logging.Logger) (*Context, error) {
	opts := Options{
		Prefix:       cfg.KeyPrefix,
		JourneyCap:   cfg.JourneyCap,
		ScrollWindow: cfg.ScrollWindow,
		Banner: engagement.Policy{
			ReturningDelay: cfg.Banner.ReturningDelay,
			InitialDelay:   cfg.Banner.InitialDelay,
			Fallback:       cfg.Banner.Fallback,
		},
		Logger: log,
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return New(persist.NewMemoryBackend(), persist.NewMemoryBackend(), opts), nil

	case config.BackendSQLite:
		db, err := persist.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		c := New(db.Scope(persist.ScopeDurable), db.Scope(persist.ScopeSession), opts)
		c.SQLite = db
		c.closers = append(c.closers, db)
		return c, nil

	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		c := New(
			persist.NewRedisBackend(rdb, persist.ScopeDurable, 0),
			persist.NewRedisBackend(rdb, persist.ScopeSession, cfg.Redis.SessionTTL),
			opts,
		)
		c.closers = append(c.closers, rdb)
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Close stops pending timers and releases the backends.
func (c *Context) Close() error {
	c.Scroll.Stop()
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartSession begins (or resumes) the session.
func (c *Context) StartSession(ctx context.Context) record.SessionState {
	return c.Session.Start(ctx)
}

// EndSession clears the session tier.
func (c *Context) EndSession(ctx context.Context) {
	c.Scroll.Stop()
	c.Session.End(ctx)
}

// Visit records a page view in the journey and the visited-path set, and
// marks tag as an interest when it is not empty.
func (c *Context) Visit(ctx context.Context, name, path, tag string) {
	c.Journey.AddPage(ctx, name, path)
	c.Session.MarkVisited(ctx, path)
	if tag != "" {
		c.Intent.MarkInterest(ctx, tag)
	}
}

// BannerInput gathers the state the banner policy reads.
func (c *Context) BannerInput(ctx context.Context) engagement.Input {
	_, decided := c.Consent.Decision(ctx)
	return engagement.Input{
		HasDecision:      decided,
		DismissedSession: c.Consent.BannerDismissed(ctx),
		Returning:        c.Session.IsReturningUser(ctx),
	}
}

// BannerDecision applies the policy to the current visitor.
func (c *Context) BannerDecision(ctx context.Context) engagement.Decision {
	return c.Policy.Decide(c.BannerInput(ctx))
}

// NewBanner returns a scheduler for the current page load. The caller
// starts it with BannerInput and stops it on teardown.
func (c *Context) NewBanner(show func()) *engagement.Banner {
	return engagement.NewBanner(c.Policy, show)
}

// QuickLinks ranks links by the visitor's interests and visited paths.
func (c *Context) QuickLinks(ctx context.Context, links []intent.QuickLink) []intent.QuickLink {
	return intent.Rank(links, c.Intent.GetInterests(ctx), c.Session.GetVisited(ctx))
}

// Snapshot is a full export of one profile.
type Snapshot struct {
	Consent  *model.ConsentDecision `json:"consent,omitempty"`
	Records  []record.Entry         `json:"records"`
	Exported int64                  `json:"exported_at"`
}

// Export captures the consent decision and every live record.
func (c *Context) Export(ctx context.Context) Snapshot {
	snap := Snapshot{
		Records:  c.Records.Export(ctx),
		Exported: c.Records.Now().UnixMilli(),
	}
	if d, ok := c.Consent.Decision(ctx); ok {
		snap.Consent = &d
	}
	if snap.Records == nil {
		snap.Records = []record.Entry{}
	}
	return snap
}

// Import restores a snapshot. The consent decision is applied first so the
// records it covers are accepted.
func (c *Context) Import(ctx context.Context, snap Snapshot) (record.ImportResult, error) {
	if snap.Consent != nil {
		if _, err := c.Consent.SetConsent(ctx, *snap.Consent); err != nil {
			return record.ImportResult{}, fmt.Errorf("import consent: %w", err)
		}
	}
	return c.Records.Import(ctx, snap.Records)
}
