package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/persist"
)

// Entry is one exported record.
type Entry struct {
	Tier   string       `json:"tier"`
	Key    string       `json:"key"`
	Record model.Record `json:"record"`
}

// Export returns every live record of this namespace, durable tier first.
// Expired and malformed records are purged on the way.
func (s *Store) Export(ctx context.Context) []Entry {
	var out []Entry
	for _, t := range persist.Tiers {
		for _, k := range s.Keys(ctx, t) {
			rec, err := s.load(ctx, t, k)
			if err != nil {
				s.absorb("export", k, err)
				continue
			}
			out = append(out, Entry{Tier: t.String(), Key: k, Record: rec})
		}
	}
	return out
}

// ImportResult counts the outcome of Import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import writes entries back with their original envelopes. Expired
// entries, entries with unknown categories or lifetimes, and entries whose
// category lacks consent are skipped. An unknown tier fails the import.
func (s *Store) Import(ctx context.Context, entries []Entry) (ImportResult, error) {
	var res ImportResult
	now := s.now()
	for _, e := range entries {
		t, err := persist.ParseTier(e.Tier)
		if err != nil {
			return res, fmt.Errorf("import %q: %w", e.Key, err)
		}
		rec := e.Record
		if e.Key == "" ||
			!model.ValidCategories[rec.Category] ||
			!model.ValidLifetimes[rec.Lifetime] ||
			len(rec.Value) == 0 ||
			rec.Expired(now) {
			res.Skipped++
			continue
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return res, fmt.Errorf("import %q: %w", e.Key, err)
		}
		if err := s.gate.GuardedWrite(ctx, t, s.fullKey(e.Key), rec.Category, string(b)); err != nil {
			s.absorb("import", e.Key, err)
			res.Skipped++
			continue
		}
		res.Imported++
	}
	return res, nil
}
