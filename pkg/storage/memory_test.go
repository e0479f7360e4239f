package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartops/perf-monitor/pkg/models"
)

func seed(t *testing.T, s *MemoryStore, metric string, layer models.Layer, component string, values []float64, step time.Duration) {
	t.Helper()
	now := time.Now()
	samples := make([]models.MetricSample, len(values))
	for i, v := range values {
		samples[i] = models.MetricSample{
			MetricName: metric,
			Layer:      layer,
			Component:  component,
			Value:      v,
			Timestamp:  now.Add(-time.Duration(len(values)-1-i) * step),
		}
	}
	require.NoError(t, s.InsertSamples(context.Background(), samples))
}

func fullRange() models.TimeRange {
	now := time.Now()
	return models.TimeRange{Start: now.Add(-24 * time.Hour), End: now.Add(time.Minute)}
}

func TestQuerySamplesFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seed(t, s, "response_time", models.LayerAPI, "checkout", []float64{100, 200, 300}, time.Minute)
	seed(t, s, "query_time", models.LayerStorage, "orders-db", []float64{50}, time.Minute)

	got, err := s.QuerySamples(ctx, models.MetricFilter{Layer: models.LayerAPI}, fullRange(), models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, 300.0, got[0].Value)
	assert.Equal(t, 100.0, got[2].Value)

	got, err = s.QuerySamples(ctx, models.MetricFilter{MetricName: "query_time"}, fullRange(), models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "orders-db", got[0].Component)
}

func TestQuerySamplesPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	values := make([]float64, 25)
	for i := range values {
		values[i] = float64(i)
	}
	seed(t, s, "response_time", models.LayerAPI, "checkout", values, time.Minute)

	page1, err := s.QuerySamples(ctx, models.MetricFilter{}, fullRange(), models.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, page1, 10)

	page3, err := s.QuerySamples(ctx, models.MetricFilter{}, fullRange(), models.Page{Number: 3, Size: 10})
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	page4, err := s.QuerySamples(ctx, models.MetricFilter{}, fullRange(), models.Page{Number: 4, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestQueryGroupsAggregates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seed(t, s, "response_time", models.LayerAPI, "checkout", []float64{100, 200, 300}, time.Minute)
	seed(t, s, "response_time", models.LayerAPI, "catalog", []float64{50, 70}, time.Minute)

	groups, err := s.QueryGroups(ctx, models.MetricFilter{}, fullRange())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byComponent := make(map[string]models.MetricGroup, len(groups))
	for _, g := range groups {
		byComponent[g.Component] = g
	}

	checkout := byComponent["checkout"]
	assert.Equal(t, 200.0, checkout.Avg)
	assert.Equal(t, 300.0, checkout.Max)
	assert.Equal(t, 100.0, checkout.Min)
	assert.Equal(t, 3, checkout.SampleCount)

	catalog := byComponent["catalog"]
	assert.Equal(t, 60.0, catalog.Avg)
	assert.Equal(t, 2, catalog.SampleCount)
}

func TestWorstValueHonorsDirection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seed(t, s, "cache_hit_rate", models.LayerCache, "redis", []float64{90, 65, 85}, time.Minute)

	filter := models.MetricFilter{MetricName: "cache_hit_rate"}
	since := time.Now().Add(-time.Hour)

	worst, count, err := s.WorstValue(ctx, filter, since, models.LowerIsWorse)
	require.NoError(t, err)
	assert.Equal(t, 65.0, worst)
	assert.Equal(t, 3, count)

	worst, _, err = s.WorstValue(ctx, filter, since, models.HigherIsWorse)
	require.NoError(t, err)
	assert.Equal(t, 90.0, worst)

	_, count, err = s.WorstValue(ctx, models.MetricFilter{MetricName: "missing"}, since, models.HigherIsWorse)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteSamplesBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.InsertSamples(ctx, []models.MetricSample{
		{MetricName: "response_time", Layer: models.LayerAPI, Value: 1, Timestamp: now.Add(-48 * time.Hour)},
		{MetricName: "response_time", Layer: models.LayerAPI, Value: 2, Timestamp: now.Add(-36 * time.Hour)},
		{MetricName: "response_time", Layer: models.LayerAPI, Value: 3, Timestamp: now.Add(-time.Hour)},
	}))

	deleted, err := s.DeleteSamplesBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	left, err := s.QuerySamples(ctx, models.MetricFilter{}, models.TimeRange{Start: now.Add(-72 * time.Hour), End: now}, models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, 3.0, left[0].Value)
}

func TestUpsertThresholdAssignsAndKeepsID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	th := models.Threshold{
		MetricName: "response_time", Layer: models.LayerAPI,
		Direction:    models.HigherIsWorse,
		WarningValue: 200, CriticalValue: 500, Enabled: true,
	}
	require.NoError(t, s.UpsertThreshold(ctx, &th))
	require.NotZero(t, th.ID)
	firstID := th.ID

	th.WarningValue = 250
	require.NoError(t, s.UpsertThreshold(ctx, &th))
	assert.Equal(t, firstID, th.ID, "upsert keeps the original row identity")

	all, err := s.ListThresholds(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 250.0, all[0].WarningValue)
}

func TestAlertLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := models.Alert{
		ID:        "a1",
		Type:      models.AlertThresholdCritical,
		Severity:  models.SeverityCritical,
		Layer:     models.LayerAPI,
		Component: "checkout",
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.InsertAlert(ctx, &a))

	active, err := s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	ok, err := s.ResolveAlert(ctx, "a1", time.Now(), "ops")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ResolveAlert(ctx, "a1", time.Now(), "ops")
	require.NoError(t, err)
	assert.False(t, ok, "resolving twice reports no change")

	ok, err = s.ResolveAlert(ctx, "missing", time.Now(), "ops")
	require.NoError(t, err)
	assert.False(t, ok)

	active, err = s.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := s.AlertHistory(ctx, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Resolved)
	assert.Equal(t, "ops", history[0].ResolvedBy)
}
