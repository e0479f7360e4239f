package threshold

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
)

// lowerIsWorseSuffixes marks metric families where a low value is the bad
// side (rates that should stay high). Everything else is higher-is-worse.
var lowerIsWorseSuffixes = []string{
	"hit_rate",
	"success_rate",
	"availability",
}

// DirectionFor returns the direction property for a metric family.
func DirectionFor(metricName string) models.MetricDirection {
	for _, suffix := range lowerIsWorseSuffixes {
		if strings.HasSuffix(metricName, suffix) {
			return models.LowerIsWorse
		}
	}
	return models.HigherIsWorse
}

// defaultThresholds seeds limits for the common metric families.
func defaultThresholds() []models.Threshold {
	return []models.Threshold{
		{MetricName: "response_time", Layer: models.LayerAPI, Direction: models.HigherIsWorse,
			WarningValue: 200, CriticalValue: 500, Enabled: true, AlertOnWarning: true, AlertOnCritical: true},
		{MetricName: "query_time", Layer: models.LayerStorage, Direction: models.HigherIsWorse,
			WarningValue: 100, CriticalValue: 300, Enabled: true, AlertOnWarning: true, AlertOnCritical: true},
		{MetricName: "cpu_usage", Layer: models.LayerSystem, Direction: models.HigherIsWorse,
			WarningValue: 75, CriticalValue: 90, Enabled: true, AlertOnWarning: true, AlertOnCritical: true},
		{MetricName: "memory_usage", Layer: models.LayerSystem, Direction: models.HigherIsWorse,
			WarningValue: 80, CriticalValue: 95, Enabled: true, AlertOnWarning: true, AlertOnCritical: true},
		{MetricName: "disk_usage", Layer: models.LayerSystem, Direction: models.HigherIsWorse,
			WarningValue: 85, CriticalValue: 95, Enabled: true, AlertOnWarning: false, AlertOnCritical: true},
		{MetricName: "error_rate", Layer: models.LayerAPI, Direction: models.HigherIsWorse,
			WarningValue: 1, CriticalValue: 5, Enabled: true, AlertOnWarning: true, AlertOnCritical: true},
		{MetricName: "cache_hit_rate", Layer: models.LayerCache, Direction: models.LowerIsWorse,
			WarningValue: 80, CriticalValue: 50, Enabled: true, AlertOnWarning: false, AlertOnCritical: true},
	}
}

// InitializeDefaults seeds default thresholds for common metric families.
// Idempotent: families that already have a threshold are skipped.
func (m *Manager) InitializeDefaults(ctx context.Context) error {
	existing, err := m.store.ListThresholds(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(existing))
	for _, t := range existing {
		present[t.Key()] = true
	}

	seeded := 0
	for _, t := range defaultThresholds() {
		if present[t.Key()] {
			continue
		}
		if err := m.CreateOrUpdate(ctx, &t); err != nil {
			return err
		}
		seeded++
	}

	if seeded > 0 {
		m.logger.Info("seeded default thresholds", zap.Int("count", seeded))
	}

	return nil
}
