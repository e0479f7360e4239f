package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
	"github.com/cartops/perf-monitor/pkg/threshold"
)

const (
	// resolveBuffer keeps an alert active until the metric has cleared its
	// threshold by 10%, preventing flapping at the boundary.
	resolveBuffer = 0.1

	// resolveWindow is how far back the sweep looks for recent samples.
	resolveWindow = 10 * time.Minute

	stopWait = 10 * time.Second
)

// Options tunes alert deduplication and auto-resolution.
type Options struct {
	Cooldown      time.Duration // minimum time between alerts for one key
	MinAlertAge   time.Duration // alerts younger than this are never swept
	SweepInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Cooldown <= 0 {
		o.Cooldown = 15 * time.Minute
	}
	if o.MinAlertAge <= 0 {
		o.MinAlertAge = 10 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	return o
}

// Manager owns the alert lifecycle: creation with cooldown deduplication,
// notification fan-out, periodic auto-resolution and manual resolution.
// The active-alert map is the single source of dedup truth; every mutation
// is atomic with its check under one mutex so a concurrent create and
// auto-resolve on the same key cannot race.
type Manager struct {
	alerts  storage.AlertStore
	metrics storage.MetricStore
	logger  *zap.Logger
	opts    Options

	mu        sync.Mutex
	active    map[string]models.Alert // keyed by Alert.DedupKey
	notifiers []Notifier

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewManager creates an alert manager. The metric store is consulted by the
// auto-resolve sweep to check whether a triggering condition has cleared.
func NewManager(alerts storage.AlertStore, metrics storage.MetricStore, opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		alerts:  alerts,
		metrics: metrics,
		logger:  logger,
		opts:    opts.withDefaults(),
		active:  make(map[string]models.Alert),
	}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Restore loads unresolved alerts from the store into the dedup map,
// so cooldown state survives a restart.
func (m *Manager) Restore(ctx context.Context) error {
	active, err := m.alerts.ActiveAlerts(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range active {
		m.active[a.DedupKey()] = a
	}
	return nil
}

// Evaluate consumes threshold-violation events. A violation whose key
// already has an active alert inside the cooldown window is suppressed;
// otherwise a new alert is created, persisted and dispatched.
func (m *Manager) Evaluate(ctx context.Context, violations []models.ViolationEvent) {
	for _, v := range violations {
		alert := alertFromViolation(v)
		m.Trigger(ctx, alert)
	}
}

// Trigger creates an alert directly, applying the same deduplication as
// threshold violations. Programmatic callers use this for non-threshold
// conditions.
func (m *Manager) Trigger(ctx context.Context, alert models.Alert) bool {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if alert.Direction == "" && alert.MetricName != "" {
		alert.Direction = threshold.DirectionFor(alert.MetricName)
	}

	key := alert.DedupKey()

	m.mu.Lock()
	if existing, ok := m.active[key]; ok && time.Since(existing.CreatedAt) < m.opts.Cooldown {
		m.mu.Unlock()
		m.logger.Debug("alert suppressed by cooldown",
			zap.String("key", key),
			zap.String("existing_id", existing.ID))
		return false
	}

	if err := m.alerts.InsertAlert(ctx, &alert); err != nil {
		m.mu.Unlock()
		m.logger.Error("failed to persist alert",
			zap.String("key", key), zap.Error(err))
		return false
	}
	m.active[key] = alert
	notifiers := make([]Notifier, len(m.notifiers))
	copy(notifiers, m.notifiers)
	m.mu.Unlock()

	// Notification is best-effort and never rolls back alert creation.
	for _, n := range notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			m.logger.Warn("notification failed",
				zap.String("channel", n.Name()),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}

	return true
}

// alertFromViolation maps a violation event to an alert.
func alertFromViolation(v models.ViolationEvent) models.Alert {
	alertType := models.AlertThresholdWarning
	severity := models.SeverityMedium
	if v.Severity == models.ViolationCritical {
		alertType = models.AlertThresholdCritical
		severity = models.SeverityCritical
	}

	return models.Alert{
		Type:           alertType,
		Severity:       severity,
		Title:          v.Sample.MetricName + " threshold exceeded",
		Message:        describeViolation(v),
		Layer:          v.Sample.Layer,
		Component:      v.Sample.Component,
		MetricName:     v.Sample.MetricName,
		CurrentValue:   v.Sample.Value,
		ThresholdValue: v.ThresholdValue,
		Direction:      v.Threshold.Direction,
		CorrelationID:  v.Sample.CorrelationID,
		CreatedAt:      v.Sample.Timestamp,
	}
}

func describeViolation(v models.ViolationEvent) string {
	side := "above"
	if v.Threshold.Direction == models.LowerIsWorse {
		side = "below"
	}
	return v.Sample.MetricName + " on " + string(v.Sample.Layer) + "/" + v.Sample.Component +
		" is " + side + " the " + string(v.Severity) + " threshold"
}

// AutoResolveSweep re-queries recent metrics for every active alert older
// than the minimum age and resolves alerts whose condition has cleared with
// a 10% buffer. Idempotent: a second sweep over resolved alerts is a no-op.
func (m *Manager) AutoResolveSweep(ctx context.Context) {
	m.mu.Lock()
	candidates := make([]models.Alert, 0, len(m.active))
	for _, a := range m.active {
		if time.Since(a.CreatedAt) >= m.opts.MinAlertAge && a.MetricName != "" {
			candidates = append(candidates, a)
		}
	}
	m.mu.Unlock()

	for _, a := range candidates {
		cleared, err := m.conditionCleared(ctx, a)
		if err != nil {
			m.logger.Warn("auto-resolve query failed",
				zap.String("alert_id", a.ID), zap.Error(err))
			continue
		}
		if !cleared {
			continue
		}
		m.resolve(ctx, a, "auto-resolve")
	}
}

// conditionCleared checks whether the worst recent value for the alert's
// metric has moved past the threshold by the anti-flap buffer. The
// comparison uses the direction frozen on the alert at creation time.
func (m *Manager) conditionCleared(ctx context.Context, a models.Alert) (bool, error) {
	direction := a.Direction
	if direction == "" {
		direction = threshold.DirectionFor(a.MetricName)
	}
	filter := models.MetricFilter{
		Layer:      a.Layer,
		Component:  a.Component,
		MetricName: a.MetricName,
	}

	worst, count, err := m.metrics.WorstValue(ctx, filter, time.Now().Add(-resolveWindow), direction)
	if err != nil {
		return false, err
	}
	if count == 0 {
		// No recent data: cannot confirm the condition cleared.
		return false, nil
	}

	if direction == models.LowerIsWorse {
		return worst > a.ThresholdValue*(1+resolveBuffer), nil
	}
	return worst < a.ThresholdValue*(1-resolveBuffer), nil
}

// resolve transitions one alert to resolved and drops it from the dedup map.
// Creation and resolution for a key are serialized on the manager mutex.
func (m *Manager) resolve(ctx context.Context, a models.Alert, actor string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.alerts.ResolveAlert(ctx, a.ID, time.Now(), actor)
	if err != nil {
		m.logger.Error("failed to resolve alert",
			zap.String("alert_id", a.ID), zap.Error(err))
		return false
	}
	if ok {
		delete(m.active, a.DedupKey())
		m.logger.Info("alert resolved",
			zap.String("alert_id", a.ID),
			zap.String("by", actor))
	}
	return ok
}

// ResolveManually performs an immediate, idempotent resolution. Returns
// false for an unknown or already-resolved alert ID.
func (m *Manager) ResolveManually(ctx context.Context, alertID, actor string) bool {
	m.mu.Lock()
	var target *models.Alert
	for _, a := range m.active {
		if a.ID == alertID {
			copied := a
			target = &copied
			break
		}
	}
	m.mu.Unlock()

	if target != nil {
		return m.resolve(ctx, *target, actor)
	}

	// Not in the active map; the store still owns idempotency.
	ok, err := m.alerts.ResolveAlert(ctx, alertID, time.Now(), actor)
	if err != nil {
		m.logger.Error("failed to resolve alert",
			zap.String("alert_id", alertID), zap.Error(err))
		return false
	}
	return ok
}

// ActiveAlerts returns all unresolved alerts.
func (m *Manager) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	return m.alerts.ActiveAlerts(ctx)
}

// History returns alerts created within the last given hours.
func (m *Manager) History(ctx context.Context, hours int) ([]models.Alert, error) {
	if hours <= 0 {
		hours = 24
	}
	return m.alerts.AlertHistory(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
}

// StartAutoResolve runs the sweep on a fixed period until Stop.
func (m *Manager) StartAutoResolve() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.sweepLoop(ctx)
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.guardedSweep(ctx)
		}
	}
}

// guardedSweep recovers panics so the loop survives to the next tick.
func (m *Manager) guardedSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("auto-resolve sweep panic", zap.Any("panic", r))
		}
	}()
	m.AutoResolveSweep(ctx)
}

// Stop cancels the sweep loop and waits, bounded, for the in-flight sweep.
// Safe to call concurrently and more than once.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}

	m.cancel()
	select {
	case <-m.done:
	case <-time.After(stopWait):
		m.logger.Warn("alert manager stop timed out waiting for sweep")
	}
	m.running = false
}
