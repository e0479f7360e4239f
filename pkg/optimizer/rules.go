package optimizer

import (
	"github.com/cartops/perf-monitor/pkg/models"
)

// Aggregate selects which group statistic a rule compares.
type Aggregate string

const (
	AggAvg Aggregate = "avg"
	AggMax Aggregate = "max"
	AggMin Aggregate = "min"
)

// Rule is one declarative optimization check: it fires when the selected
// aggregate of a matching metric group crosses the trigger value. New rules
// are added here without touching the evaluation loop.
type Rule struct {
	Category   models.RecommendationCategory
	MetricName string
	Layer      models.Layer // empty matches any layer
	Aggregate  Aggregate
	// TriggerAbove fires when the aggregate exceeds Trigger; otherwise the
	// rule fires when the aggregate falls below it.
	Trigger      float64
	TriggerAbove bool
	Priority     models.RecommendationPriority

	Title               string
	Description         string
	Steps               []string
	ExpectedImprovement string
}

// defaultRules covers the storage, API, system and cache categories.
func defaultRules() []Rule {
	return []Rule{
		{
			Category:     models.CategoryStorage,
			MetricName:   "query_time",
			Layer:        models.LayerStorage,
			Aggregate:    AggAvg,
			Trigger:      200,
			TriggerAbove: true,
			Priority:     models.PriorityHigh,
			Title:        "Slow storage queries",
			Description:  "Mean storage-layer query time exceeds 200ms over the analysis window.",
			Steps: []string{
				"Inspect the slowest queries in the storage layer",
				"Add or adjust indexes for the dominant query shapes",
				"Consider caching hot read paths",
			},
			ExpectedImprovement: "30-60% query time reduction",
		},
		{
			Category:     models.CategoryStorage,
			MetricName:   "query_time",
			Layer:        models.LayerStorage,
			Aggregate:    AggMax,
			Trigger:      1000,
			TriggerAbove: true,
			Priority:     models.PriorityMedium,
			Title:        "Storage query spikes",
			Description:  "Peak storage-layer query time exceeded 1s during the analysis window.",
			Steps: []string{
				"Correlate the spike timestamps with batch jobs or migrations",
				"Move heavy maintenance queries off the hot path",
			},
			ExpectedImprovement: "Eliminates multi-second outliers",
		},
		{
			Category:     models.CategoryAPI,
			MetricName:   "response_time",
			Layer:        models.LayerAPI,
			Aggregate:    AggAvg,
			Trigger:      300,
			TriggerAbove: true,
			Priority:     models.PriorityHigh,
			Title:        "Slow API responses",
			Description:  "Mean API response time exceeds 300ms over the analysis window.",
			Steps: []string{
				"Profile the slowest endpoints",
				"Reduce per-request storage round trips",
				"Enable response compression for large payloads",
			},
			ExpectedImprovement: "25-50% latency reduction",
		},
		{
			Category:     models.CategoryAPI,
			MetricName:   "error_rate",
			Layer:        models.LayerAPI,
			Aggregate:    AggAvg,
			Trigger:      2,
			TriggerAbove: true,
			Priority:     models.PriorityHigh,
			Title:        "Elevated API error rate",
			Description:  "Mean API error rate exceeds 2% over the analysis window.",
			Steps: []string{
				"Break errors down by endpoint and status code",
				"Add retries with backoff for transient downstream failures",
			},
			ExpectedImprovement: "Error rate below 1%",
		},
		{
			Category:     models.CategorySystem,
			MetricName:   "cpu_usage",
			Layer:        models.LayerSystem,
			Aggregate:    AggAvg,
			Trigger:      70,
			TriggerAbove: true,
			Priority:     models.PriorityMedium,
			Title:        "Sustained high CPU",
			Description:  "Mean CPU usage exceeds 70% over the analysis window.",
			Steps: []string{
				"Profile CPU hotspots during peak traffic",
				"Scale out the affected service or add capacity",
			},
			ExpectedImprovement: "Headroom for traffic spikes",
		},
		{
			Category:     models.CategorySystem,
			MetricName:   "memory_usage",
			Layer:        models.LayerSystem,
			Aggregate:    AggAvg,
			Trigger:      80,
			TriggerAbove: true,
			Priority:     models.PriorityMedium,
			Title:        "High memory pressure",
			Description:  "Mean memory usage exceeds 80% over the analysis window.",
			Steps: []string{
				"Check for unbounded caches or buffers",
				"Right-size the process memory limit",
			},
			ExpectedImprovement: "Reduced OOM risk",
		},
		{
			Category:     models.CategoryCache,
			MetricName:   "cache_hit_rate",
			Layer:        models.LayerCache,
			Aggregate:    AggAvg,
			Trigger:      80,
			TriggerAbove: false,
			Priority:     models.PriorityMedium,
			Title:        "Low cache hit rate",
			Description:  "Mean cache hit rate fell below 80% over the analysis window.",
			Steps: []string{
				"Review cache key TTLs for premature expiry",
				"Pre-warm caches for predictable hot keys",
				"Increase cache capacity if evictions dominate",
			},
			ExpectedImprovement: "Hit rate above 90%",
		},
	}
}
