package models

import "time"

// AlertSeverity represents the severity level of an alert.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType names the condition class that produced an alert.
type AlertType string

const (
	AlertThresholdWarning  AlertType = "threshold_warning"
	AlertThresholdCritical AlertType = "threshold_critical"
	AlertManual            AlertType = "manual"
)

// Alert is a persisted alerting event. Lifecycle is active -> resolved;
// an alert is never mutated except to flip Resolved.
type Alert struct {
	ID             string        `json:"id"`
	Type           AlertType     `json:"alert_type"`
	Severity       AlertSeverity `json:"severity"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	Layer          Layer         `json:"layer"`
	Component      string        `json:"component"`
	MetricName     string        `json:"metric_name,omitempty"`
	CurrentValue   float64       `json:"current_value,omitempty"`
	ThresholdValue float64       `json:"threshold_value,omitempty"`
	// Direction of the threshold the alert fired on, frozen at creation
	// so auto-resolution compares the same way the trigger did.
	Direction MetricDirection `json:"direction,omitempty"`
	CorrelationID  string        `json:"correlation_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Resolved       bool          `json:"resolved"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
}

// DedupKey returns the logical alert identity used for cooldown
// deduplication and auto-resolution.
func (a Alert) DedupKey() string {
	return string(a.Type) + "/" + string(a.Layer) + "/" + a.Component + "/" + a.MetricName
}
