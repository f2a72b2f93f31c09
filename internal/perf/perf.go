// Package perf keeps a short rolling log of page performance samples. The
// samples are analytics data and are only stored with analytics consent.
package perf

import (
	"context"
	"sort"
	"time"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/record"
)

const (
	// Key holds the sample log.
	Key = "performance_metrics"
	// MaxSamples bounds the log; the oldest samples are dropped first.
	MaxSamples = 50
	// Retention is how long the log is kept after the last sample.
	Retention = 7 * 24 * time.Hour
)

var opts = record.Expiring(model.Analytics, Retention)

// Tracker records timing samples.
type Tracker struct {
	store *record.Store
}

// New creates a Tracker over s.
func New(s *record.Store) *Tracker {
	return &Tracker{store: s}
}

// Record appends a sample for metric and reports whether it was stored.
func (t *Tracker) Record(ctx context.Context, metric string, d time.Duration) bool {
	sample := model.PerfSample{
		Metric:    metric,
		Millis:    float64(d) / float64(time.Millisecond),
		Timestamp: t.store.Now().UnixMilli(),
	}
	return record.Modify(ctx, t.store, Key, []model.PerfSample{}, func(s []model.PerfSample) []model.PerfSample {
		s = append(s, sample)
		if over := len(s) - MaxSamples; over > 0 {
			s = s[over:]
		}
		return s
	}, opts)
}

// Samples returns the stored samples oldest first.
func (t *Tracker) Samples(ctx context.Context) []model.PerfSample {
	return record.GetOr(ctx, t.store, Key, []model.PerfSample{}, opts)
}

// Clear drops every sample.
func (t *Tracker) Clear(ctx context.Context) {
	t.store.Remove(ctx, Key, opts)
}

// MetricSummary aggregates the samples of one metric.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	AvgMS  float64 `json:"avg_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// Summary aggregates the stored samples per metric, sorted by metric name.
func (t *Tracker) Summary(ctx context.Context) []MetricSummary {
	return Summarize(t.Samples(ctx))
}

// Summarize aggregates samples per metric.
func Summarize(samples []model.PerfSample) []MetricSummary {
	byMetric := map[string]*MetricSummary{}
	for _, s := range samples {
		m, ok := byMetric[s.Metric]
		if !ok {
			m = &MetricSummary{Metric: s.Metric}
			byMetric[s.Metric] = m
		}
		m.Count++
		m.AvgMS += s.Millis
		if s.Millis > m.MaxMS {
			m.MaxMS = s.Millis
		}
	}
	out := make([]MetricSummary, 0, len(byMetric))
	for _, m := range byMetric {
		m.AvgMS /= float64(m.Count)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
