package models

import "time"

// Layer identifies the architectural tier a metric belongs to.
type Layer string

const (
	LayerFrontend Layer = "frontend"
	LayerAPI      Layer = "api"
	LayerStorage  Layer = "storage"
	LayerCache    Layer = "cache"
	LayerSystem   Layer = "system"
)

// MetricSample is a single immutable metric data point.
type MetricSample struct {
	ID            int64             `json:"id,omitempty"`
	Layer         Layer             `json:"layer"`
	Component     string            `json:"component"`
	MetricName    string            `json:"metric_name"`
	Value         float64           `json:"value"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// Threshold values in effect when the sample was flushed,
	// stamped for later audit. Zero when no threshold matched.
	WarningAt  float64 `json:"warning_at,omitempty"`
	CriticalAt float64 `json:"critical_at,omitempty"`
}

// MetricFilter narrows metric queries. Zero-value fields match everything.
type MetricFilter struct {
	Layer      Layer
	Component  string
	MetricName string
}

// TimeRange bounds a metric query.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Page describes pagination for metric queries.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page, treating page numbers as 1-based.
func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Limit()
}

// Limit returns the page size with a sane default and upper bound.
func (p Page) Limit() int {
	if p.Size <= 0 {
		return 100
	}
	if p.Size > 1000 {
		return 1000
	}
	return p.Size
}

// MetricGroup aggregates samples sharing (layer, component, metric_name).
type MetricGroup struct {
	Layer       Layer
	Component   string
	MetricName  string
	Avg         float64
	Max         float64
	Min         float64
	SampleCount int
}

// Key returns the canonical group identity string.
func (g MetricGroup) Key() string {
	return string(g.Layer) + "/" + g.Component + "/" + g.MetricName
}
