package reporter

import (
	"context"
	"time"

	"github.com/cartops/perf-monitor/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatMarkdown ReportFormat = "markdown"
	FormatCSV      ReportFormat = "csv"
)

// Report contains all data for one operations report
type Report struct {
	GeneratedAt     time.Time
	WindowHours     int
	Status          models.SystemStatus
	TrendSummary    *models.TrendSummary
	Recommendations []models.Recommendation
	ActiveAlerts    []models.Alert
}

// Source supplies the report inputs; the monitoring façade satisfies it.
type Source interface {
	GetSystemHealth(ctx context.Context) (models.SystemStatus, error)
	GetTrendSummary(ctx context.Context, hours int) (*models.TrendSummary, error)
	GetRecommendations(ctx context.Context, hours int, priority models.RecommendationPriority, category models.RecommendationCategory) ([]models.Recommendation, error)
	GetActiveAlerts(ctx context.Context) ([]models.Alert, error)
}

// Build assembles a report over the given window.
func Build(ctx context.Context, src Source, hours int) (*Report, error) {
	status, err := src.GetSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := src.GetTrendSummary(ctx, hours)
	if err != nil {
		return nil, err
	}

	recs, err := src.GetRecommendations(ctx, hours, "", "")
	if err != nil {
		return nil, err
	}

	alerts, err := src.GetActiveAlerts(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:     time.Now(),
		WindowHours:     hours,
		Status:          status,
		TrendSummary:    summary,
		Recommendations: recs,
		ActiveAlerts:    alerts,
	}, nil
}
