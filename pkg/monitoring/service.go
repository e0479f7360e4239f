package monitoring

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/alerting"
	"github.com/cartops/perf-monitor/pkg/analyzer"
	"github.com/cartops/perf-monitor/pkg/collector"
	"github.com/cartops/perf-monitor/pkg/config"
	"github.com/cartops/perf-monitor/pkg/export"
	"github.com/cartops/perf-monitor/pkg/health"
	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/optimizer"
	"github.com/cartops/perf-monitor/pkg/storage"
	"github.com/cartops/perf-monitor/pkg/threshold"
)

// Service composes the monitoring subsystem: collector, threshold manager,
// trend analyzer, optimization engine, alerting, health checks and metric
// export, behind one lifecycle and one query surface.
type Service struct {
	cfg    *config.Config
	store  storage.Store
	cache  *redis.Client
	logger *zap.Logger

	thresholds *threshold.Manager
	collector  *collector.Collector
	trends     *analyzer.TrendAnalyzer
	optimizer  *optimizer.Engine
	alerts     *alerting.Manager
	health     *health.Service
	exporter   *export.Exporter

	mu          sync.Mutex
	initialized bool
}

// NewService wires the sub-components. cache may be nil; the cache
// telemetry source and cache probe are skipped without it.
func NewService(cfg *config.Config, store storage.Store, cache *redis.Client, logger *zap.Logger) *Service {
	thresholds := threshold.NewManager(store, cfg.ThresholdCacheTTL, logger)

	col := collector.New(store, thresholds, collector.Options{
		FlushInterval:  cfg.FlushInterval,
		FlushBatchSize: cfg.FlushBatchSize,
		BufferCapacity: cfg.BufferCapacity,
		FlushRetries:   cfg.FlushRetries,
	}, logger)
	col.RegisterSource(collector.NewSystemSource(""))
	col.RegisterSource(collector.NewRuntimeSource())
	if cache != nil {
		col.RegisterSource(collector.NewCacheSource(cache))
	}

	alerts := alerting.NewManager(store, store, alerting.Options{
		Cooldown:      cfg.AlertCooldown,
		MinAlertAge:   cfg.MinAlertAge,
		SweepInterval: cfg.AutoResolveEvery,
	}, logger)
	alerts.AddNotifier(alerting.NewLogNotifier(logger))
	if cfg.WebhookURL != "" {
		alerts.AddNotifier(alerting.NewWebhookNotifier(cfg.WebhookURL))
	}

	hc := health.NewService(cfg.ProbeTimeout, cfg.HealthDeadline, logger)
	hc.Register(health.NewStoreProbe(store))
	if cache != nil {
		hc.Register(health.NewCacheProbe(cache))
	}
	hc.Register(health.NewDiskProbe("", 85, 95))
	hc.Register(health.NewMemoryProbe(85, 95))

	svc := &Service{
		cfg:        cfg,
		store:      store,
		cache:      cache,
		logger:     logger,
		thresholds: thresholds,
		collector:  col,
		trends:     analyzer.NewTrendAnalyzer(store, thresholds, logger),
		optimizer:  optimizer.NewEngine(store, logger),
		alerts:     alerts,
		health:     hc,
		exporter:   export.NewExporter(store, 15*time.Minute, logger),
	}

	// Flushed samples feed threshold evaluation, which feeds alerting.
	col.SetOnFlush(svc.evaluateBatch)

	return svc
}

// evaluateBatch checks one flushed batch for threshold violations and hands
// them to the alert manager.
func (s *Service) evaluateBatch(ctx context.Context, batch []models.MetricSample) {
	violations, err := s.thresholds.CheckViolations(ctx, batch)
	if err != nil {
		s.logger.Warn("violation check failed", zap.Error(err))
		return
	}
	if len(violations) > 0 {
		s.alerts.Evaluate(ctx, violations)
	}
}

// Initialize seeds default thresholds, restores active alert state and
// starts the background loops. Idempotent.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if err := s.thresholds.InitializeDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed default thresholds: %w", err)
	}
	if err := s.alerts.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore active alerts: %w", err)
	}

	s.collector.StartContinuous(s.cfg.CollectInterval)
	s.alerts.StartAutoResolve()
	s.initialized = true

	s.logger.Info("monitoring service started",
		zap.Duration("collect_interval", s.cfg.CollectInterval),
		zap.Duration("alert_cooldown", s.cfg.AlertCooldown))

	return nil
}

// Shutdown stops the background loops and flushes buffered samples.
// Idempotent.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}

	s.collector.Stop()
	s.alerts.Stop()
	err := s.collector.Flush(ctx)
	s.initialized = false

	s.logger.Info("monitoring service stopped")
	return err
}

// RecordMetric accepts a sample at any time, fire-and-forget: buffered and
// asynchronously flushed.
func (s *Service) RecordMetric(layer models.Layer, component, metricName string, value float64, correlationID string, metadata map[string]string) {
	s.collector.CollectManual(models.MetricSample{
		Layer:         layer,
		Component:     component,
		MetricName:    metricName,
		Value:         value,
		CorrelationID: correlationID,
		Metadata:      metadata,
		Timestamp:     time.Now(),
	})
}

// FlushNow forces a synchronous flush of buffered samples, running the
// threshold evaluation pipeline on the batch.
func (s *Service) FlushNow(ctx context.Context) error {
	return s.collector.Flush(ctx)
}

// UpsertThreshold validates and persists a threshold, visible to reads
// immediately.
func (s *Service) UpsertThreshold(ctx context.Context, t *models.Threshold) error {
	return s.thresholds.CreateOrUpdate(ctx, t)
}

// SeedDefaultThresholds seeds the default threshold families without
// starting the background loops. Idempotent, same as Initialize's seeding.
func (s *Service) SeedDefaultThresholds(ctx context.Context) error {
	return s.thresholds.InitializeDefaults(ctx)
}

// GetThreshold resolves the effective threshold for a metric.
func (s *Service) GetThreshold(ctx context.Context, metric string, layer models.Layer, component string) (*models.Threshold, error) {
	return s.thresholds.GetThreshold(ctx, metric, layer, component)
}

// GetMetrics queries stored samples.
func (s *Service) GetMetrics(ctx context.Context, filter models.MetricFilter, tr models.TimeRange, page models.Page) ([]models.MetricSample, error) {
	return s.store.QuerySamples(ctx, filter, tr, page)
}

// GetTrends analyzes per-group trends over the window.
func (s *Service) GetTrends(ctx context.Context, filter models.MetricFilter, hours int) ([]models.TrendResult, error) {
	return s.trends.AnalyzeTrends(ctx, filter, hours)
}

// GetTrendSummary aggregates trend directions for dashboards.
func (s *Service) GetTrendSummary(ctx context.Context, hours int) (*models.TrendSummary, error) {
	return s.trends.GetTrendSummary(ctx, hours)
}

// GetRecommendations runs the optimization engine, optionally filtered by
// priority and category.
func (s *Service) GetRecommendations(ctx context.Context, hours int, priority models.RecommendationPriority, category models.RecommendationCategory) ([]models.Recommendation, error) {
	recs, err := s.optimizer.Analyze(ctx, hours)
	if err != nil {
		return nil, err
	}
	if priority == "" && category == "" {
		return recs, nil
	}
	return optimizer.FilterRecommendations(recs, priority, category), nil
}

// GetSystemHealth runs all probes and reduces them with the active alert
// list into one verdict.
func (s *Service) GetSystemHealth(ctx context.Context) (models.SystemStatus, error) {
	results := s.health.RunAll(ctx)

	active, err := s.alerts.ActiveAlerts(ctx)
	if err != nil {
		// Health must still answer; fold the store failure in as a check.
		s.logger.Warn("failed to list active alerts", zap.Error(err))
		results = append(results, models.HealthCheckResult{
			Name:      "alert_store",
			State:     models.HealthUnhealthy,
			Error:     err.Error(),
			CheckedAt: time.Now(),
		})
	}

	return health.Reduce(results, active), nil
}

// GetActiveAlerts returns all unresolved alerts.
func (s *Service) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	return s.alerts.ActiveAlerts(ctx)
}

// GetAlertHistory returns alerts created within the last given hours.
func (s *Service) GetAlertHistory(ctx context.Context, hours int) ([]models.Alert, error) {
	return s.alerts.History(ctx, hours)
}

// ResolveAlert resolves an alert by ID. Returns false when the ID is
// unknown or the alert is already resolved.
func (s *Service) ResolveAlert(ctx context.Context, alertID, actor string) bool {
	return s.alerts.ResolveManually(ctx, alertID, actor)
}

// TriggerAlert raises an alert programmatically, subject to cooldown
// deduplication.
func (s *Service) TriggerAlert(ctx context.Context, alert models.Alert) bool {
	return s.alerts.Trigger(ctx, alert)
}

// PruneMetrics deletes samples past the configured retention. Maintenance
// operation, intended for a cron-style caller.
func (s *Service) PruneMetrics(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.MetricRetention)
	deleted, err := s.store.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune metrics: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("pruned metric samples",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// ExportMetrics writes the Prometheus text exposition of current metrics.
func (s *Service) ExportMetrics(w io.Writer) error {
	return s.exporter.WriteText(w)
}
