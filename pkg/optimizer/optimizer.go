package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
)

// confidenceCeiling caps the confidence score regardless of sample volume.
const confidenceCeiling = 0.95

// Engine evaluates the declarative rule table against aggregated metric
// groups and emits prioritized recommendations.
type Engine struct {
	store  storage.MetricStore
	logger *zap.Logger
	rules  []Rule
}

// NewEngine creates an optimization engine with the default rule set.
func NewEngine(store storage.MetricStore, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		rules:  defaultRules(),
	}
}

// AddRule registers an additional rule.
func (e *Engine) AddRule(r Rule) {
	e.rules = append(e.rules, r)
}

// Analyze evaluates every rule against the group aggregates for the lookback
// window. Output is sorted by priority then confidence, both descending.
func (e *Engine) Analyze(ctx context.Context, hours int) ([]models.Recommendation, error) {
	if hours <= 0 {
		hours = 24
	}

	now := time.Now()
	tr := models.TimeRange{Start: now.Add(-time.Duration(hours) * time.Hour), End: now}

	groups, err := e.store.QueryGroups(ctx, models.MetricFilter{}, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric groups: %w", err)
	}

	var recs []models.Recommendation
	for _, rule := range e.rules {
		if rec := e.evaluate(rule, groups); rec != nil {
			recs = append(recs, *rec)
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() > recs[j].Priority.Rank()
		}
		return recs[i].ConfidenceScore > recs[j].ConfidenceScore
	})

	return recs, nil
}

// evaluate checks one rule against all matching groups. Components that
// trip the trigger are collected into a single recommendation.
func (e *Engine) evaluate(rule Rule, groups []models.MetricGroup) *models.Recommendation {
	var affected []string
	totalSamples := 0

	for _, g := range groups {
		if g.MetricName != rule.MetricName {
			continue
		}
		if rule.Layer != "" && g.Layer != rule.Layer {
			continue
		}

		value := g.Avg
		switch rule.Aggregate {
		case AggMax:
			value = g.Max
		case AggMin:
			value = g.Min
		}

		tripped := value > rule.Trigger
		if !rule.TriggerAbove {
			tripped = value < rule.Trigger
		}
		if !tripped {
			continue
		}

		component := g.Component
		if component == "" {
			component = string(g.Layer)
		}
		affected = append(affected, component)
		totalSamples += g.SampleCount
	}

	if len(affected) == 0 {
		return nil
	}

	return &models.Recommendation{
		Category:            rule.Category,
		Priority:            rule.Priority,
		Title:               rule.Title,
		Description:         rule.Description,
		Steps:               rule.Steps,
		ExpectedImprovement: rule.ExpectedImprovement,
		AffectedComponents:  affected,
		ConfidenceScore:     confidence(totalSamples),
	}
}

// confidence grows with the data supporting a rule, capped at the ceiling.
// 30 samples is treated as a minimally trustworthy window.
func confidence(sampleCount int) float64 {
	c := 0.5 + float64(sampleCount)/200.0
	if c > confidenceCeiling {
		return confidenceCeiling
	}
	return c
}

// FilterRecommendations narrows results by priority and category; empty
// values match everything.
func FilterRecommendations(recs []models.Recommendation, priority models.RecommendationPriority, category models.RecommendationCategory) []models.Recommendation {
	var out []models.Recommendation
	for _, r := range recs {
		if priority != "" && r.Priority != priority {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, r)
	}
	return out
}
