package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
	"github.com/cartops/perf-monitor/pkg/threshold"
)

const (
	// minTrendSamples is the minimum group size for a regression fit.
	minTrendSamples = 10

	// stableEpsilon bounds the normalized hourly slope below which a
	// trend counts as stable.
	stableEpsilon = 1e-3

	// outlierZScore flags a group whose latest sample sits this many
	// standard deviations from its own window mean.
	outlierZScore = 3.0
)

// TrendAnalyzer fits per-group linear trends over metric history.
type TrendAnalyzer struct {
	store           storage.MetricStore
	thresholds      *threshold.Manager
	logger          *zap.Logger
	comparisonHours int
}

// NewTrendAnalyzer creates a trend analyzer reading from the given store.
// The threshold manager supplies the per-metric direction; it may be nil,
// in which case directions fall back to the metric-name defaults.
func NewTrendAnalyzer(store storage.MetricStore, thresholds *threshold.Manager, logger *zap.Logger) *TrendAnalyzer {
	return &TrendAnalyzer{
		store:           store,
		thresholds:      thresholds,
		logger:          logger,
		comparisonHours: 24,
	}
}

// AnalyzeTrends fits ordinary least squares per (layer, component, metric)
// group over the window and classifies each group's direction and strength.
// Groups with fewer than 10 samples are skipped.
func (a *TrendAnalyzer) AnalyzeTrends(ctx context.Context, filter models.MetricFilter, windowHours int) ([]models.TrendResult, error) {
	if windowHours <= 0 {
		windowHours = 24
	}

	now := time.Now()
	tr := models.TimeRange{Start: now.Add(-time.Duration(windowHours) * time.Hour), End: now}

	samples, err := a.fetchAll(ctx, filter, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}

	groups := make(map[string][]models.MetricSample)
	for _, s := range samples {
		key := string(s.Layer) + "/" + s.Component + "/" + s.MetricName
		groups[key] = append(groups[key], s)
	}

	var results []models.TrendResult
	for _, group := range groups {
		if len(group) < minTrendSamples {
			continue
		}
		results = append(results, a.analyzeGroup(ctx, group, now))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Strength != results[j].Strength {
			return results[i].Strength > results[j].Strength
		}
		return results[i].MetricName < results[j].MetricName
	})

	return results, nil
}

// analyzeGroup fits one metric group. Samples are re-sorted oldest first so
// elapsed-seconds regression is well defined regardless of query order.
func (a *TrendAnalyzer) analyzeGroup(ctx context.Context, group []models.MetricSample, now time.Time) models.TrendResult {
	sort.Slice(group, func(i, j int) bool {
		return group[i].Timestamp.Before(group[j].Timestamp)
	})

	start := group[0].Timestamp
	x := make([]float64, len(group)) // elapsed seconds
	y := make([]float64, len(group))
	for i, s := range group {
		x[i] = s.Timestamp.Sub(start).Seconds()
		y[i] = s.Value
	}

	slope, intercept, r := linearRegression(x, y)
	strength := math.Abs(r)

	historicalAvg := calculateAverage(y)

	// Mean over the comparison window (default last 24h)
	cutoff := now.Add(-time.Duration(a.comparisonHours) * time.Hour)
	var recent []float64
	for i, s := range group {
		if !s.Timestamp.Before(cutoff) {
			recent = append(recent, y[i])
		}
	}
	currentAvg := historicalAvg
	if len(recent) > 0 {
		currentAvg = calculateAverage(recent)
	}

	pctChange := 0.0
	if historicalAvg != 0 {
		pctChange = (currentAvg - historicalAvg) / historicalAvg * 100
	}

	direction := classifyDirection(slope, historicalAvg, a.metricDirection(ctx, group[0]))

	elapsed := x[len(x)-1]
	projected24h := projectValue(slope, intercept, elapsed+24*3600, currentAvg)
	projected72h := projectValue(slope, intercept, elapsed+72*3600, currentAvg)

	return models.TrendResult{
		MetricName:    group[0].MetricName,
		Layer:         group[0].Layer,
		Component:     group[0].Component,
		Direction:     direction,
		Strength:      strength,
		Slope:         slope,
		CurrentAvg:    currentAvg,
		HistoricalAvg: historicalAvg,
		PctChange:     pctChange,
		SampleCount:   len(group),
		Projected24h:  projected24h,
		Projected72h:  projected72h,
	}
}

// metricDirection resolves which way is worse for a sample's metric. The
// configured threshold wins; the metric-name default is only a fallback.
func (a *TrendAnalyzer) metricDirection(ctx context.Context, s models.MetricSample) models.MetricDirection {
	if a.thresholds != nil {
		th, err := a.thresholds.GetThreshold(ctx, s.MetricName, s.Layer, s.Component)
		if err != nil {
			a.logger.Warn("threshold lookup failed during trend classification", zap.Error(err))
		} else if th != nil && th.Direction != "" {
			return th.Direction
		}
	}
	return threshold.DirectionFor(s.MetricName)
}

// classifyDirection maps a slope to improving/degrading/stable, honoring the
// metric's direction so a falling cache hit rate reads as degrading.
func classifyDirection(slope, mean float64, metricDir models.MetricDirection) models.TrendDirection {
	scale := math.Abs(mean)
	if scale < 1 {
		scale = 1
	}

	slopePerHour := slope * 3600
	if math.Abs(slopePerHour) < stableEpsilon*scale {
		return models.TrendStable
	}

	rising := slope > 0
	if metricDir == models.LowerIsWorse {
		if rising {
			return models.TrendImproving
		}
		return models.TrendDegrading
	}
	if rising {
		return models.TrendDegrading
	}
	return models.TrendImproving
}

// projectValue extrapolates the fitted line, clamping below zero to the
// current average (values like latency or usage cannot go negative).
func projectValue(slope, intercept, atSeconds, currentAvg float64) float64 {
	v := slope*atSeconds + intercept
	if v < 0 {
		return currentAvg
	}
	return v
}

// GetTrendSummary aggregates counts by direction and flags critical
// degradations, significant improvements and statistical outliers.
func (a *TrendAnalyzer) GetTrendSummary(ctx context.Context, hours int) (*models.TrendSummary, error) {
	results, err := a.AnalyzeTrends(ctx, models.MetricFilter{}, hours)
	if err != nil {
		return nil, err
	}

	summary := &models.TrendSummary{
		WindowHours: hours,
		TotalGroups: len(results),
	}

	for _, r := range results {
		switch r.Direction {
		case models.TrendImproving:
			summary.Improving++
			if r.Strength > 0.6 && math.Abs(r.PctChange) > 15 {
				summary.SignificantImprovements = append(summary.SignificantImprovements, r)
			}
		case models.TrendDegrading:
			summary.Degrading++
			if r.Strength > 0.6 && math.Abs(r.PctChange) > 20 {
				summary.CriticalDegradations = append(summary.CriticalDegradations, r)
			}
		default:
			summary.Stable++
		}
	}

	summary.Outliers = a.findOutliers(ctx, hours)

	return summary, nil
}

// findOutliers flags groups whose latest sample is far from the group's own
// window distribution. Best-effort: errors are logged, not fatal.
func (a *TrendAnalyzer) findOutliers(ctx context.Context, hours int) []models.TrendResult {
	now := time.Now()
	tr := models.TimeRange{Start: now.Add(-time.Duration(hours) * time.Hour), End: now}

	samples, err := a.fetchAll(ctx, models.MetricFilter{}, tr)
	if err != nil {
		a.logger.Warn("outlier scan failed", zap.Error(err))
		return nil
	}

	groups := make(map[string][]models.MetricSample)
	for _, s := range samples {
		key := string(s.Layer) + "/" + s.Component + "/" + s.MetricName
		groups[key] = append(groups[key], s)
	}

	var outliers []models.TrendResult
	for _, group := range groups {
		if len(group) < minTrendSamples {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		values := make([]float64, len(group))
		for i, s := range group {
			values[i] = s.Value
		}

		latest := group[len(group)-1]
		if math.Abs(zScore(latest.Value, values)) >= outlierZScore {
			outliers = append(outliers, models.TrendResult{
				MetricName:    latest.MetricName,
				Layer:         latest.Layer,
				Component:     latest.Component,
				Direction:     models.TrendStable,
				CurrentAvg:    latest.Value,
				HistoricalAvg: calculateAverage(values),
				SampleCount:   len(group),
			})
		}
	}

	return outliers
}

// fetchAll pages through QuerySamples until the window is exhausted.
func (a *TrendAnalyzer) fetchAll(ctx context.Context, filter models.MetricFilter, tr models.TimeRange) ([]models.MetricSample, error) {
	const pageSize = 1000
	const maxPages = 100

	var all []models.MetricSample
	for page := 1; page <= maxPages; page++ {
		batch, err := a.store.QuerySamples(ctx, filter, tr, models.Page{Number: page, Size: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	return all, nil
}
