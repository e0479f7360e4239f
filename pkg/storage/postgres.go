package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/cartops/perf-monitor/pkg/models"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate runs database migrations
func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// InsertSamples bulk-inserts a batch of metric samples in one transaction.
func (s *PostgresStore) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_samples (
			layer, component, metric_name, value, ts,
			correlation_id, metadata, warning_at, critical_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		var metadata []byte
		if len(sample.Metadata) > 0 {
			metadata, err = json.Marshal(sample.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
		}

		_, err = stmt.ExecContext(ctx,
			sample.Layer, sample.Component, sample.MetricName, sample.Value,
			sample.Timestamp, sample.CorrelationID, metadata,
			sample.WarningAt, sample.CriticalAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// QuerySamples retrieves samples matching the filter within the time range,
// newest first, paginated.
func (s *PostgresStore) QuerySamples(ctx context.Context, filter models.MetricFilter, tr models.TimeRange, page models.Page) ([]models.MetricSample, error) {
	query := `
		SELECT id, layer, component, metric_name, value, ts,
			correlation_id, metadata, warning_at, critical_at
		FROM metric_samples
		WHERE ts >= $1 AND ts <= $2
			AND ($3 = '' OR layer = $3)
			AND ($4 = '' OR component = $4)
			AND ($5 = '' OR metric_name = $5)
		ORDER BY ts DESC
		LIMIT $6 OFFSET $7
	`

	rows, err := s.db.QueryContext(ctx, query,
		tr.Start, tr.End, string(filter.Layer), filter.Component, filter.MetricName,
		page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var sample models.MetricSample
		var metadata []byte

		err := rows.Scan(
			&sample.ID, &sample.Layer, &sample.Component, &sample.MetricName,
			&sample.Value, &sample.Timestamp, &sample.CorrelationID,
			&metadata, &sample.WarningAt, &sample.CriticalAt,
		)
		if err != nil {
			return nil, err
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sample.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}

		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// QueryGroups returns per-group aggregates for the time range.
func (s *PostgresStore) QueryGroups(ctx context.Context, filter models.MetricFilter, tr models.TimeRange) ([]models.MetricGroup, error) {
	query := `
		SELECT layer, component, metric_name,
			AVG(value), MAX(value), MIN(value), COUNT(*)
		FROM metric_samples
		WHERE ts >= $1 AND ts <= $2
			AND ($3 = '' OR layer = $3)
			AND ($4 = '' OR component = $4)
			AND ($5 = '' OR metric_name = $5)
		GROUP BY layer, component, metric_name
	`

	rows, err := s.db.QueryContext(ctx, query,
		tr.Start, tr.End, string(filter.Layer), filter.Component, filter.MetricName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.MetricGroup
	for rows.Next() {
		var g models.MetricGroup
		err := rows.Scan(&g.Layer, &g.Component, &g.MetricName,
			&g.Avg, &g.Max, &g.Min, &g.SampleCount)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// WorstValue returns the worst observed value for a group since the given time.
func (s *PostgresStore) WorstValue(ctx context.Context, filter models.MetricFilter, since time.Time, direction models.MetricDirection) (float64, int, error) {
	agg := "MAX(value)"
	if direction == models.LowerIsWorse {
		agg = "MIN(value)"
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(%s, 0), COUNT(*)
		FROM metric_samples
		WHERE ts >= $1
			AND ($2 = '' OR layer = $2)
			AND ($3 = '' OR component = $3)
			AND ($4 = '' OR metric_name = $4)
	`, agg)

	var worst float64
	var count int
	err := s.db.QueryRowContext(ctx, query,
		since, string(filter.Layer), filter.Component, filter.MetricName,
	).Scan(&worst, &count)
	if err != nil {
		return 0, 0, err
	}

	return worst, count, nil
}

// DeleteSamplesBefore removes samples older than the cutoff.
func (s *PostgresStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpsertThreshold inserts or updates a threshold keyed by (metric_name, layer, component).
func (s *PostgresStore) UpsertThreshold(ctx context.Context, t *models.Threshold) error {
	query := `
		INSERT INTO thresholds (
			metric_name, layer, component, direction,
			warning_value, critical_value, enabled,
			alert_on_warning, alert_on_critical, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (metric_name, layer, component) DO UPDATE SET
			direction = EXCLUDED.direction,
			warning_value = EXCLUDED.warning_value,
			critical_value = EXCLUDED.critical_value,
			enabled = EXCLUDED.enabled,
			alert_on_warning = EXCLUDED.alert_on_warning,
			alert_on_critical = EXCLUDED.alert_on_critical,
			updated_at = NOW()
		RETURNING id
	`

	return s.db.QueryRowContext(ctx, query,
		t.MetricName, t.Layer, t.Component, t.Direction,
		t.WarningValue, t.CriticalValue, t.Enabled,
		t.AlertOnWarning, t.AlertOnCritical,
	).Scan(&t.ID)
}

// ListThresholds returns all thresholds.
func (s *PostgresStore) ListThresholds(ctx context.Context) ([]models.Threshold, error) {
	query := `
		SELECT id, metric_name, layer, component, direction,
			warning_value, critical_value, enabled,
			alert_on_warning, alert_on_critical, updated_at
		FROM thresholds
		ORDER BY metric_name, layer, component
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var thresholds []models.Threshold
	for rows.Next() {
		var t models.Threshold
		err := rows.Scan(&t.ID, &t.MetricName, &t.Layer, &t.Component, &t.Direction,
			&t.WarningValue, &t.CriticalValue, &t.Enabled,
			&t.AlertOnWarning, &t.AlertOnCritical, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		thresholds = append(thresholds, t)
	}

	return thresholds, rows.Err()
}

// InsertAlert persists a new alert.
func (s *PostgresStore) InsertAlert(ctx context.Context, a *models.Alert) error {
	query := `
		INSERT INTO alerts (
			id, alert_type, severity, title, message,
			layer, component, metric_name, current_value, threshold_value,
			direction, correlation_id, created_at, resolved, resolved_at, resolved_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var resolvedAt *time.Time
	if a.ResolvedAt != nil {
		resolvedAt = a.ResolvedAt
	}

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Severity, a.Title, a.Message,
		a.Layer, a.Component, a.MetricName, a.CurrentValue, a.ThresholdValue,
		a.Direction, a.CorrelationID, a.CreatedAt, a.Resolved, resolvedAt, a.ResolvedBy,
	)

	return err
}

// ResolveAlert flips an alert to resolved. Returns false when the alert is
// unknown or already resolved.
func (s *PostgresStore) ResolveAlert(ctx context.Context, id string, at time.Time, by string) (bool, error) {
	query := `
		UPDATE alerts
		SET resolved = TRUE, resolved_at = $1, resolved_by = $2
		WHERE id = $3 AND resolved = FALSE
	`

	result, err := s.db.ExecContext(ctx, query, at, by, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// ActiveAlerts returns all unresolved alerts, newest first.
func (s *PostgresStore) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `
		SELECT id, alert_type, severity, title, message,
			layer, component, metric_name, current_value, threshold_value,
			direction, correlation_id, created_at, resolved, resolved_at, resolved_by
		FROM alerts
		WHERE resolved = FALSE
		ORDER BY created_at DESC
	`)
}

// AlertHistory returns all alerts created since the given time, newest first.
func (s *PostgresStore) AlertHistory(ctx context.Context, since time.Time) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `
		SELECT id, alert_type, severity, title, message,
			layer, component, metric_name, current_value, threshold_value,
			direction, correlation_id, created_at, resolved, resolved_at, resolved_by
		FROM alerts
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`, since)
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var resolvedAt sql.NullTime

		err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Title, &a.Message,
			&a.Layer, &a.Component, &a.MetricName, &a.CurrentValue, &a.ThresholdValue,
			&a.Direction, &a.CorrelationID, &a.CreatedAt, &a.Resolved, &resolvedAt, &a.ResolvedBy)
		if err != nil {
			return nil, err
		}

		if resolvedAt.Valid {
			a.ResolvedAt = &resolvedAt.Time
		}

		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
