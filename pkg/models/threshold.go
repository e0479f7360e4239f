package models

import (
	"fmt"
	"time"
)

// MetricDirection says which way is "bad" for a metric family.
type MetricDirection string

const (
	// HigherIsWorse applies to latency, CPU, memory, error rates.
	HigherIsWorse MetricDirection = "higher_is_worse"
	// LowerIsWorse applies to rates that should stay high, e.g. cache hit rate.
	LowerIsWorse MetricDirection = "lower_is_worse"
)

// Threshold defines warning/critical limits for one metric, optionally
// scoped to a single component. An empty Component is a layer-wide wildcard.
type Threshold struct {
	ID              int64           `json:"id,omitempty"`
	MetricName      string          `json:"metric_name"`
	Layer           Layer           `json:"layer"`
	Component       string          `json:"component,omitempty"`
	Direction       MetricDirection `json:"direction"`
	WarningValue    float64         `json:"warning_value"`
	CriticalValue   float64         `json:"critical_value"`
	Enabled         bool            `json:"enabled"`
	AlertOnWarning  bool            `json:"alert_on_warning"`
	AlertOnCritical bool            `json:"alert_on_critical"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// Key returns the upsert identity (metric_name, layer, component).
func (t Threshold) Key() string {
	return t.MetricName + "/" + string(t.Layer) + "/" + t.Component
}

// Validate rejects malformed thresholds before they reach the store.
func (t Threshold) Validate() error {
	if t.MetricName == "" {
		return fmt.Errorf("threshold missing metric_name")
	}
	if t.Layer == "" {
		return fmt.Errorf("threshold missing layer")
	}
	switch t.Direction {
	case HigherIsWorse:
		if t.WarningValue >= t.CriticalValue {
			return fmt.Errorf("warning value %.2f must be below critical value %.2f for %s",
				t.WarningValue, t.CriticalValue, t.MetricName)
		}
	case LowerIsWorse:
		if t.WarningValue <= t.CriticalValue {
			return fmt.Errorf("warning value %.2f must be above critical value %.2f for %s",
				t.WarningValue, t.CriticalValue, t.MetricName)
		}
	default:
		return fmt.Errorf("threshold for %s has unknown direction %q", t.MetricName, t.Direction)
	}
	return nil
}

// ViolationSeverity classifies a threshold breach.
type ViolationSeverity string

const (
	ViolationWarning  ViolationSeverity = "warning"
	ViolationCritical ViolationSeverity = "critical"
)

// ViolationEvent is the result of one sample breaching its resolved threshold.
// A critical breach produces a single critical event, never an extra warning.
type ViolationEvent struct {
	Sample         MetricSample      `json:"sample"`
	Threshold      Threshold         `json:"threshold"`
	Severity       ViolationSeverity `json:"severity"`
	ThresholdValue float64           `json:"threshold_value"`
}
