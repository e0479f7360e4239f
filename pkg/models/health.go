package models

import "time"

// HealthState is the verdict of one probe or of the whole system.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthCheckResult is the point-in-time outcome of a single named probe.
type HealthCheckResult struct {
	Name      string        `json:"name"`
	State     HealthState   `json:"state"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// SystemStatus is the reduced, single verdict consumed by dashboards.
type SystemStatus struct {
	Status       HealthState         `json:"status"`
	Checks       []HealthCheckResult `json:"checks"`
	ActiveAlerts int                 `json:"active_alerts"`
	CheckedAt    time.Time           `json:"checked_at"`
}
