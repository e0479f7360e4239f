package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cartops/perf-monitor/pkg/models"
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("not found")

// MetricStore is the durable, queryable time-series store for samples.
type MetricStore interface {
	InsertSamples(ctx context.Context, samples []models.MetricSample) error
	QuerySamples(ctx context.Context, filter models.MetricFilter, tr models.TimeRange, page models.Page) ([]models.MetricSample, error)
	// QueryGroups returns per-(layer, component, metric) aggregates for the range.
	QueryGroups(ctx context.Context, filter models.MetricFilter, tr models.TimeRange) ([]models.MetricGroup, error)
	// WorstValue returns the worst observed value for the group since the
	// given time, where "worst" depends on the metric direction. The
	// returned count is the number of samples considered.
	WorstValue(ctx context.Context, filter models.MetricFilter, since time.Time, direction models.MetricDirection) (float64, int, error)
	// DeleteSamplesBefore removes samples older than the cutoff. Maintenance
	// operation, not part of the hot path.
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ThresholdStore persists the threshold registry.
type ThresholdStore interface {
	UpsertThreshold(ctx context.Context, t *models.Threshold) error
	ListThresholds(ctx context.Context) ([]models.Threshold, error)
}

// AlertStore persists alerts and their resolved/active state.
type AlertStore interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	// ResolveAlert flips an alert to resolved. Returns false without error
	// when the alert is unknown or already resolved.
	ResolveAlert(ctx context.Context, id string, at time.Time, by string) (bool, error)
	ActiveAlerts(ctx context.Context) ([]models.Alert, error)
	AlertHistory(ctx context.Context, since time.Time) ([]models.Alert, error)
}

// Store combines all repositories behind one connection.
type Store interface {
	MetricStore
	ThresholdStore
	AlertStore

	Ping(ctx context.Context) error
	Close() error
}
