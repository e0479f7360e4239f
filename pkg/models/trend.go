package models

// TrendDirection classifies the slope of a fitted metric series.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDegrading TrendDirection = "degrading"
	TrendStable    TrendDirection = "stable"
)

// TrendResult describes the fitted trend for one metric group.
// Derived, recomputed per query; not persisted.
type TrendResult struct {
	MetricName    string         `json:"metric_name"`
	Layer         Layer          `json:"layer"`
	Component     string         `json:"component"`
	Direction     TrendDirection `json:"direction"`
	Strength      float64        `json:"strength"` // |Pearson r|, clamped to [0,1]
	Slope         float64        `json:"slope"`    // units per second
	CurrentAvg    float64        `json:"current_avg"`
	HistoricalAvg float64        `json:"historical_avg"`
	PctChange     float64        `json:"pct_change"`
	SampleCount   int            `json:"sample_count"`

	// Forecasts projected from the fitted line, for capacity planning.
	Projected24h float64 `json:"projected_24h"`
	Projected72h float64 `json:"projected_72h"`
}

// TrendSummary aggregates trend results for dashboard consumption.
type TrendSummary struct {
	WindowHours             int           `json:"window_hours"`
	TotalGroups             int           `json:"total_groups"`
	Improving               int           `json:"improving"`
	Degrading               int           `json:"degrading"`
	Stable                  int           `json:"stable"`
	CriticalDegradations    []TrendResult `json:"critical_degradations"`
	SignificantImprovements []TrendResult `json:"significant_improvements"`
	Outliers                []TrendResult `json:"outliers,omitempty"`
}
