package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
	"github.com/cartops/perf-monitor/pkg/threshold"
)

type staticSource struct {
	name    string
	samples []models.MetricSample
	err     error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Collect(ctx context.Context) ([]models.MetricSample, error) {
	return s.samples, s.err
}

// failingStore wraps a MemoryStore and fails the first N inserts.
type failingStore struct {
	*storage.MemoryStore
	failures int
	calls    int
}

func (f *failingStore) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("store unavailable")
	}
	return f.MemoryStore.InsertSamples(ctx, samples)
}

func apiSample(metric string, value float64) models.MetricSample {
	return models.MetricSample{
		MetricName: metric,
		Layer:      models.LayerAPI,
		Component:  "checkout",
		Value:      value,
		Timestamp:  time.Now(),
	}
}

func TestCollectOnceBuffersAndFlushes(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{}, zap.NewNop())
	ctx := context.Background()

	c.RegisterSource(staticSource{
		name: "api",
		samples: []models.MetricSample{
			apiSample("response_time", 120),
			apiSample("error_rate", 0.5),
		},
	})

	c.CollectOnce(ctx)
	assert.Equal(t, 2, c.BufferedCount())

	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, c.BufferedCount())

	now := time.Now()
	stored, err := store.QuerySamples(ctx, models.MetricFilter{},
		models.TimeRange{Start: now.Add(-time.Minute), End: now.Add(time.Minute)},
		models.Page{Size: 100})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCollectOnceSkipsFailingSource(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{}, zap.NewNop())

	c.RegisterSource(staticSource{name: "broken", err: errors.New("probe gone")})
	c.RegisterSource(staticSource{
		name:    "api",
		samples: []models.MetricSample{apiSample("response_time", 100)},
	})

	c.CollectOnce(context.Background())
	assert.Equal(t, 1, c.BufferedCount(), "a failing source must not abort the cycle")
}

func TestCollectManualDefaultsTimestamp(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{}, zap.NewNop())

	c.CollectManual(models.MetricSample{
		MetricName: "checkout_latency",
		Layer:      models.LayerFrontend,
		Component:  "web",
		Value:      420,
	})
	require.NoError(t, c.Flush(context.Background()))

	now := time.Now()
	stored, err := store.QuerySamples(context.Background(), models.MetricFilter{},
		models.TimeRange{Start: now.Add(-time.Minute), End: now.Add(time.Minute)},
		models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Timestamp.IsZero())
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{FlushBatchSize: 2, BufferCapacity: 3}, zap.NewNop())

	for i := 0; i < 5; i++ {
		c.CollectManual(apiSample("response_time", float64(100+i)))
	}

	assert.Equal(t, 3, c.BufferedCount())
	require.NoError(t, c.Flush(context.Background()))

	now := time.Now()
	stored, err := store.QuerySamples(context.Background(), models.MetricFilter{},
		models.TimeRange{Start: now.Add(-time.Minute), End: now.Add(time.Minute)},
		models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, stored, 3)

	// The two oldest values were dropped; 102..104 survive.
	values := make(map[float64]bool, len(stored))
	for _, s := range stored {
		values[s.Value] = true
	}
	assert.True(t, values[102] && values[103] && values[104], "expected newest samples, got %v", values)
}

func TestFlushRetriesThenSucceeds(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failures: 1}
	c := New(store, nil, Options{FlushRetries: 2}, zap.NewNop())

	c.CollectManual(apiSample("response_time", 100))
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 2, store.calls)
	assert.Zero(t, c.BufferedCount())
}

func TestFlushDropsBatchAfterRetryBudget(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failures: 100}
	c := New(store, nil, Options{FlushRetries: 1}, zap.NewNop())

	c.CollectManual(apiSample("response_time", 100))
	err := c.Flush(context.Background())
	require.Error(t, err)
	assert.Zero(t, c.BufferedCount(), "an undeliverable batch is dropped, not re-buffered")

	// The next flush starts clean.
	require.NoError(t, c.Flush(context.Background()))
}

func TestFlushCancelledLogsDroppedBatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failures: 100}
	c := New(store, nil, Options{FlushRetries: 3}, zap.New(core))

	c.CollectManual(apiSample("response_time", 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Flush(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.BufferedCount())

	// The batch is gone either way; cancellation must say so like the
	// exhausted-budget path does.
	entries := logs.FilterMessage("flush cancelled, dropping batch").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["batch_size"])
}

func TestFlushStampsThresholds(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	tm := threshold.NewManager(store, time.Minute, zap.NewNop())
	require.NoError(t, tm.CreateOrUpdate(ctx, &models.Threshold{
		MetricName: "response_time", Layer: models.LayerAPI,
		WarningValue: 200, CriticalValue: 500,
		Enabled: true, AlertOnWarning: true, AlertOnCritical: true,
	}))

	c := New(store, tm, Options{}, zap.NewNop())
	c.CollectManual(apiSample("response_time", 300))
	require.NoError(t, c.Flush(ctx))

	now := time.Now()
	stored, err := store.QuerySamples(ctx, models.MetricFilter{MetricName: "response_time"},
		models.TimeRange{Start: now.Add(-time.Minute), End: now.Add(time.Minute)},
		models.Page{Size: 10})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 200.0, stored[0].WarningAt)
	assert.Equal(t, 500.0, stored[0].CriticalAt)
}

func TestFlushInvokesOnFlushInBufferOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{}, zap.NewNop())

	var got []float64
	c.SetOnFlush(func(ctx context.Context, batch []models.MetricSample) {
		for _, s := range batch {
			got = append(got, s.Value)
		}
	})

	for _, v := range []float64{150, 600, 610} {
		c.CollectManual(apiSample("response_time", v))
	}
	require.NoError(t, c.Flush(context.Background()))

	assert.Equal(t, []float64{150, 600, 610}, got)
}

func TestOnFlushNotCalledWhenInsertFails(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), failures: 100}
	c := New(store, nil, Options{FlushRetries: 1}, zap.NewNop())

	called := false
	c.SetOnFlush(func(ctx context.Context, batch []models.MetricSample) { called = true })

	c.CollectManual(apiSample("response_time", 100))
	require.Error(t, c.Flush(context.Background()))
	assert.False(t, called, "the alerting hook only sees persisted batches")
}

func TestStartStopIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	c := New(store, nil, Options{FlushInterval: time.Hour}, zap.NewNop())
	c.RegisterSource(staticSource{
		name:    "api",
		samples: []models.MetricSample{apiSample("response_time", 100)},
	})

	c.StartContinuous(time.Hour)
	c.StartContinuous(time.Hour) // no-op
	c.Stop()
	c.Stop() // no-op

	// The prime cycle collected and force-flushed once before Stop.
	now := time.Now()
	stored, err := store.QuerySamples(context.Background(), models.MetricFilter{},
		models.TimeRange{Start: now.Add(-time.Minute), End: now.Add(time.Minute)},
		models.Page{Size: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}
