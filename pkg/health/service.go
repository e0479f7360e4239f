package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cartops/perf-monitor/pkg/models"
)

// Service runs a fixed, extensible set of named probes and reduces their
// results plus the active alert list into one system verdict.
type Service struct {
	probes       []Probe
	probeTimeout time.Duration
	deadline     time.Duration
	logger       *zap.Logger
}

// NewService creates a health check service. probeTimeout bounds each probe,
// deadline bounds the whole fan-out.
func NewService(probeTimeout, deadline time.Duration, logger *zap.Logger) *Service {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	return &Service{
		probeTimeout: probeTimeout,
		deadline:     deadline,
		logger:       logger,
	}
}

// Register adds a probe to the fixed set.
func (s *Service) Register(p Probe) {
	s.probes = append(s.probes, p)
}

// RunAll executes every probe concurrently with a per-probe timeout and an
// overall deadline. A probe that times out, errors or panics yields an
// unhealthy result with the error captured; the caller never panics.
func (s *Service) RunAll(ctx context.Context) []models.HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	results := make([]models.HealthCheckResult, len(s.probes))
	g, ctx := errgroup.WithContext(ctx)

	for i, probe := range s.probes {
		i, probe := i, probe
		g.Go(func() error {
			results[i] = s.runProbe(ctx, probe)
			return nil
		})
	}

	g.Wait()
	return results
}

// runProbe executes one probe under its timeout, converting timeouts,
// errors and panics into an unhealthy result.
func (s *Service) runProbe(ctx context.Context, probe Probe) (result models.HealthCheckResult) {
	start := time.Now()
	result = models.HealthCheckResult{
		Name:      probe.Name(),
		CheckedAt: start,
	}

	defer func() {
		result.Latency = time.Since(start)
		if r := recover(); r != nil {
			result.State = models.HealthUnhealthy
			result.Error = fmt.Sprintf("probe panic: %v", r)
			s.logger.Error("health probe panic",
				zap.String("probe", probe.Name()), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	type outcome struct {
		state models.HealthState
		msg   string
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{models.HealthUnhealthy, "", fmt.Errorf("probe panic: %v", r)}
			}
		}()
		state, msg, err := probe.Check(ctx)
		ch <- outcome{state, msg, err}
	}()

	select {
	case <-ctx.Done():
		result.State = models.HealthUnhealthy
		result.Error = "probe timed out"
	case o := <-ch:
		result.State = o.state
		result.Message = o.msg
		if o.err != nil {
			result.State = models.HealthUnhealthy
			result.Error = o.err.Error()
		}
	}

	return result
}

// Reduce folds probe results and active alerts into the system verdict:
// any unhealthy probe or critical alert is unhealthy; any degraded probe or
// high/medium alert is degraded; otherwise healthy.
func Reduce(results []models.HealthCheckResult, activeAlerts []models.Alert) models.SystemStatus {
	status := models.SystemStatus{
		Status:       models.HealthHealthy,
		Checks:       results,
		ActiveAlerts: len(activeAlerts),
		CheckedAt:    time.Now(),
	}

	degraded := false
	for _, r := range results {
		switch r.State {
		case models.HealthUnhealthy:
			status.Status = models.HealthUnhealthy
			return status
		case models.HealthDegraded:
			degraded = true
		}
	}

	for _, a := range activeAlerts {
		switch a.Severity {
		case models.SeverityCritical:
			status.Status = models.HealthUnhealthy
			return status
		case models.SeverityHigh, models.SeverityMedium:
			degraded = true
		}
	}

	if degraded {
		status.Status = models.HealthDegraded
	}
	return status
}
