package threshold

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
)

// Manager owns the warning/critical threshold registry. Thresholds are
// served from an in-memory cache refreshed at most once per TTL window,
// invalidated immediately after CreateOrUpdate (read-your-writes).
type Manager struct {
	store  storage.ThresholdStore
	logger *zap.Logger
	ttl    time.Duration

	mu        sync.RWMutex
	cache     map[string]models.Threshold
	refreshed time.Time
}

// NewManager creates a threshold manager backed by the given store.
func NewManager(store storage.ThresholdStore, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]models.Threshold),
	}
}

// cacheKey builds the lookup key for (metric, layer, component).
func cacheKey(metric string, layer models.Layer, component string) string {
	return metric + "/" + string(layer) + "/" + component
}

// ensureFresh reloads the cache from the store when the TTL has elapsed.
// Read current, else block and refresh.
func (m *Manager) ensureFresh(ctx context.Context) error {
	m.mu.RLock()
	fresh := time.Since(m.refreshed) < m.ttl
	m.mu.RUnlock()
	if fresh {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if time.Since(m.refreshed) < m.ttl {
		return nil
	}

	thresholds, err := m.store.ListThresholds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load thresholds: %w", err)
	}

	cache := make(map[string]models.Threshold, len(thresholds))
	for _, t := range thresholds {
		cache[t.Key()] = t
	}
	m.cache = cache
	m.refreshed = time.Now()

	return nil
}

// GetThreshold resolves the most specific enabled threshold for a sample:
// component-specific first, then the layer-wide wildcard. Returns nil when
// no threshold matches.
func (m *Manager) GetThreshold(ctx context.Context, metric string, layer models.Layer, component string) (*models.Threshold, error) {
	if err := m.ensureFresh(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if component != "" {
		if t, ok := m.cache[cacheKey(metric, layer, component)]; ok && t.Enabled {
			return &t, nil
		}
	}
	if t, ok := m.cache[cacheKey(metric, layer, "")]; ok && t.Enabled {
		return &t, nil
	}

	return nil, nil
}

// CreateOrUpdate upserts a threshold keyed by (metric_name, layer, component)
// and invalidates the cache so the next read observes the write.
func (m *Manager) CreateOrUpdate(ctx context.Context, t *models.Threshold) error {
	if t.Direction == "" {
		t.Direction = DirectionFor(t.MetricName)
	}
	if err := t.Validate(); err != nil {
		return err
	}

	if err := m.store.UpsertThreshold(ctx, t); err != nil {
		return fmt.Errorf("failed to upsert threshold %s: %w", t.Key(), err)
	}

	m.mu.Lock()
	m.refreshed = time.Time{} // force reload on next read
	m.mu.Unlock()

	m.logger.Info("threshold updated",
		zap.String("metric", t.MetricName),
		zap.String("layer", string(t.Layer)),
		zap.String("component", t.Component),
		zap.Float64("warning", t.WarningValue),
		zap.Float64("critical", t.CriticalValue))

	return nil
}

// CheckViolations evaluates each sample against its resolved threshold.
// A critical breach produces exactly one critical event, never an
// additional warning event for the same sample.
func (m *Manager) CheckViolations(ctx context.Context, samples []models.MetricSample) ([]models.ViolationEvent, error) {
	if err := m.ensureFresh(ctx); err != nil {
		return nil, err
	}

	var events []models.ViolationEvent
	for _, sample := range samples {
		t, err := m.GetThreshold(ctx, sample.MetricName, sample.Layer, sample.Component)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}

		if breaches(sample.Value, t.CriticalValue, t.Direction) {
			if t.AlertOnCritical {
				events = append(events, models.ViolationEvent{
					Sample:         sample,
					Threshold:      *t,
					Severity:       models.ViolationCritical,
					ThresholdValue: t.CriticalValue,
				})
			}
			continue
		}

		if breaches(sample.Value, t.WarningValue, t.Direction) && t.AlertOnWarning {
			events = append(events, models.ViolationEvent{
				Sample:         sample,
				Threshold:      *t,
				Severity:       models.ViolationWarning,
				ThresholdValue: t.WarningValue,
			})
		}
	}

	return events, nil
}

// breaches reports whether a value is on the bad side of a limit.
func breaches(value, limit float64, direction models.MetricDirection) bool {
	if direction == models.LowerIsWorse {
		return value <= limit
	}
	return value >= limit
}
