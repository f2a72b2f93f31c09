package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Scope names used for the two tiers inside one SQLite profile.
const (
	ScopeDurable = "durable"
	ScopeSession = "session"
)

// SQLiteDB is a browser-profile database holding every tier as a scope.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates a SQLite profile database at the given path.
func OpenSQLite(dbPath string) (*SQLiteDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	d := &SQLiteDB{db: db, path: dbPath}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *SQLiteDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		scope      TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, key)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_updated ON entries(updated_at DESC);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (d *SQLiteDB) Path() string { return d.path }

// Close closes the database.
func (d *SQLiteDB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Scope returns a Backend restricted to one scope of the database.
func (d *SQLiteDB) Scope(name string) *SQLiteBackend {
	return &SQLiteBackend{d: d, scope: name}
}

// SQLiteBackend implements Backend over one scope of a SQLiteDB.
type SQLiteBackend struct {
	d     *SQLiteDB
	scope string
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := b.d.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE scope = ? AND key = ?`, b.scope, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := b.d.db.ExecContext(ctx,
		`INSERT INTO entries (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.scope, key, value, now)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := b.d.db.ExecContext(ctx,
		`DELETE FROM entries WHERE scope = ? AND key = ?`, b.scope, key)
	return err
}

func (b *SQLiteBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.d.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE scope = ? AND substr(key, 1, length(?)) = ? ORDER BY key`,
		b.scope, prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stats holds database statistics.
type Stats struct {
	DBPath       string       `json:"db_path"`
	DBSizeBytes  int64        `json:"db_size_bytes"`
	TotalEntries int          `json:"total_entries"`
	Scopes       []ScopeStats `json:"scopes"`
}

// ScopeStats holds per-scope counts.
type ScopeStats struct {
	Scope       string `json:"scope"`
	Entries     int    `json:"entries"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// Stats returns database statistics.
func (d *SQLiteDB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: d.path}

	if info, err := os.Stat(d.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&st.TotalEntries)

	scopes, err := d.Scopes(ctx)
	if err != nil {
		return st, err
	}
	st.Scopes = scopes
	return st, nil
}

// Scopes lists every scope with its entry count.
func (d *SQLiteDB) Scopes(ctx context.Context) ([]ScopeStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT scope, COUNT(*) AS cnt, MAX(updated_at)
		FROM entries GROUP BY scope ORDER BY cnt DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScopeStats
	for rows.Next() {
		var s ScopeStats
		var last sql.NullString
		if err := rows.Scan(&s.Scope, &s.Entries, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			s.LastUpdated = last.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
