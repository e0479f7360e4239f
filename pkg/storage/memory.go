package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cartops/perf-monitor/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and by deployments that
// run without PostgreSQL. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	samples    []models.MetricSample
	thresholds map[string]models.Threshold
	alerts     map[string]*models.Alert
	nextID     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		thresholds: make(map[string]models.Threshold),
		alerts:     make(map[string]*models.Alert),
		nextID:     1,
	}
}

func matches(s models.MetricSample, f models.MetricFilter) bool {
	if f.Layer != "" && s.Layer != f.Layer {
		return false
	}
	if f.Component != "" && s.Component != f.Component {
		return false
	}
	if f.MetricName != "" && s.MetricName != f.MetricName {
		return false
	}
	return true
}

// InsertSamples appends a batch of samples.
func (s *MemoryStore) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		sample.ID = s.nextID
		s.nextID++
		s.samples = append(s.samples, sample)
	}
	return nil
}

// QuerySamples returns matching samples, newest first, paginated.
func (s *MemoryStore) QuerySamples(ctx context.Context, filter models.MetricFilter, tr models.TimeRange, page models.Page) ([]models.MetricSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MetricSample
	for _, sample := range s.samples {
		if sample.Timestamp.Before(tr.Start) || sample.Timestamp.After(tr.End) {
			continue
		}
		if matches(sample, filter) {
			out = append(out, sample)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	offset := page.Offset()
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + page.Limit()
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// QueryGroups returns per-group aggregates for the time range.
func (s *MemoryStore) QueryGroups(ctx context.Context, filter models.MetricFilter, tr models.TimeRange) ([]models.MetricGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[string]*models.MetricGroup)
	for _, sample := range s.samples {
		if sample.Timestamp.Before(tr.Start) || sample.Timestamp.After(tr.End) {
			continue
		}
		if !matches(sample, filter) {
			continue
		}

		key := string(sample.Layer) + "/" + sample.Component + "/" + sample.MetricName
		g, ok := groups[key]
		if !ok {
			g = &models.MetricGroup{
				Layer:      sample.Layer,
				Component:  sample.Component,
				MetricName: sample.MetricName,
				Max:        sample.Value,
				Min:        sample.Value,
			}
			groups[key] = g
		}

		g.Avg += sample.Value // running sum, divided below
		g.SampleCount++
		if sample.Value > g.Max {
			g.Max = sample.Value
		}
		if sample.Value < g.Min {
			g.Min = sample.Value
		}
	}

	out := make([]models.MetricGroup, 0, len(groups))
	for _, g := range groups {
		g.Avg /= float64(g.SampleCount)
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// WorstValue returns the worst observed value for a group since the given time.
func (s *MemoryStore) WorstValue(ctx context.Context, filter models.MetricFilter, since time.Time, direction models.MetricDirection) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var worst float64
	count := 0
	for _, sample := range s.samples {
		if sample.Timestamp.Before(since) || !matches(sample, filter) {
			continue
		}
		if count == 0 {
			worst = sample.Value
		} else if direction == models.LowerIsWorse {
			if sample.Value < worst {
				worst = sample.Value
			}
		} else if sample.Value > worst {
			worst = sample.Value
		}
		count++
	}

	return worst, count, nil
}

// DeleteSamplesBefore removes samples older than the cutoff.
func (s *MemoryStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.samples[:0]
	var deleted int64
	for _, sample := range s.samples {
		if sample.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, sample)
	}
	s.samples = kept
	return deleted, nil
}

// UpsertThreshold inserts or replaces a threshold by its key.
func (s *MemoryStore) UpsertThreshold(ctx context.Context, t *models.Threshold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.thresholds[t.Key()]
	if ok {
		t.ID = existing.ID
	} else {
		t.ID = s.nextID
		s.nextID++
	}
	t.UpdatedAt = time.Now()
	s.thresholds[t.Key()] = *t
	return nil
}

// ListThresholds returns all thresholds.
func (s *MemoryStore) ListThresholds(ctx context.Context) ([]models.Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Threshold, 0, len(s.thresholds))
	for _, t := range s.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// InsertAlert persists a new alert.
func (s *MemoryStore) InsertAlert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *a
	s.alerts[a.ID] = &stored
	return nil
}

// ResolveAlert flips an alert to resolved. Returns false when the alert is
// unknown or already resolved.
func (s *MemoryStore) ResolveAlert(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.Resolved {
		return false, nil
	}

	a.Resolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = by
	return true, nil
}

// ActiveAlerts returns all unresolved alerts, newest first.
func (s *MemoryStore) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, a := range s.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AlertHistory returns all alerts created since the given time, newest first.
func (s *MemoryStore) AlertHistory(ctx context.Context, since time.Time) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, a := range s.alerts {
		if !a.CreatedAt.Before(since) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
