package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
)

func staticProbe(name string, state models.HealthState, err error) Probe {
	return ProbeFunc{
		ProbeName: name,
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			return state, "static", err
		},
	}
}

func TestRunAllAllHealthy(t *testing.T) {
	s := NewService(time.Second, 5*time.Second, zap.NewNop())
	s.Register(staticProbe("store", models.HealthHealthy, nil))
	s.Register(staticProbe("cache", models.HealthHealthy, nil))

	results := s.RunAll(context.Background())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.HealthHealthy, r.State, "probe %s", r.Name)
		assert.Empty(t, r.Error)
		assert.False(t, r.CheckedAt.IsZero())
	}
}

func TestRunAllTimedOutProbeIsUnhealthy(t *testing.T) {
	s := NewService(50*time.Millisecond, 5*time.Second, zap.NewNop())
	s.Register(staticProbe("store", models.HealthHealthy, nil))
	s.Register(ProbeFunc{
		ProbeName: "slow",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			return models.HealthHealthy, "", nil
		},
	})

	results := s.RunAll(context.Background())
	require.Len(t, results, 2)

	byName := make(map[string]models.HealthCheckResult, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.Equal(t, models.HealthHealthy, byName["store"].State,
		"a slow probe must not poison independent probes")
	assert.Equal(t, models.HealthUnhealthy, byName["slow"].State)
	assert.Equal(t, "probe timed out", byName["slow"].Error)

	status := Reduce(results, nil)
	assert.Equal(t, models.HealthUnhealthy, status.Status,
		"one timed-out dependency marks the system unhealthy")
}

func TestRunAllProbeErrorIsUnhealthy(t *testing.T) {
	s := NewService(time.Second, 5*time.Second, zap.NewNop())
	s.Register(staticProbe("store", models.HealthHealthy, errors.New("connection refused")))

	results := s.RunAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, models.HealthUnhealthy, results[0].State)
	assert.Equal(t, "connection refused", results[0].Error)
}

func TestRunAllProbePanicIsCaptured(t *testing.T) {
	s := NewService(time.Second, 5*time.Second, zap.NewNop())
	s.Register(ProbeFunc{
		ProbeName: "broken",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			panic("nil map write")
		},
	})
	s.Register(staticProbe("store", models.HealthHealthy, nil))

	results := s.RunAll(context.Background())
	require.Len(t, results, 2)

	byName := make(map[string]models.HealthCheckResult, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, models.HealthUnhealthy, byName["broken"].State)
	assert.Contains(t, byName["broken"].Error, "probe panic")
	assert.Equal(t, models.HealthHealthy, byName["store"].State)
}

func TestReduceDegradedProbe(t *testing.T) {
	results := []models.HealthCheckResult{
		{Name: "store", State: models.HealthHealthy},
		{Name: "disk", State: models.HealthDegraded},
	}
	status := Reduce(results, nil)
	assert.Equal(t, models.HealthDegraded, status.Status)
}

func TestReduceAlertSeverityFolding(t *testing.T) {
	healthy := []models.HealthCheckResult{
		{Name: "store", State: models.HealthHealthy},
	}

	status := Reduce(healthy, []models.Alert{{Severity: models.SeverityCritical}})
	assert.Equal(t, models.HealthUnhealthy, status.Status,
		"a critical active alert marks the system unhealthy")

	status = Reduce(healthy, []models.Alert{{Severity: models.SeverityHigh}})
	assert.Equal(t, models.HealthDegraded, status.Status)

	status = Reduce(healthy, []models.Alert{{Severity: models.SeverityMedium}})
	assert.Equal(t, models.HealthDegraded, status.Status)

	status = Reduce(healthy, []models.Alert{{Severity: models.SeverityLow}})
	assert.Equal(t, models.HealthHealthy, status.Status,
		"low severity alerts do not change the verdict")
	assert.Equal(t, 1, status.ActiveAlerts)
}

func TestReduceUnhealthyBeatsDegraded(t *testing.T) {
	results := []models.HealthCheckResult{
		{Name: "disk", State: models.HealthDegraded},
		{Name: "store", State: models.HealthUnhealthy},
	}
	status := Reduce(results, []models.Alert{{Severity: models.SeverityMedium}})
	assert.Equal(t, models.HealthUnhealthy, status.Status)
}

func TestReduceEmpty(t *testing.T) {
	status := Reduce(nil, nil)
	assert.Equal(t, models.HealthHealthy, status.Status)
	assert.Zero(t, status.ActiveAlerts)
}
