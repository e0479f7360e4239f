package reporter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cartops/perf-monitor/pkg/models"
)

type fakeSource struct {
	status models.SystemStatus
	trends *models.TrendSummary
	recs   []models.Recommendation
	alerts []models.Alert
}

func (f fakeSource) GetSystemHealth(ctx context.Context) (models.SystemStatus, error) {
	return f.status, nil
}

func (f fakeSource) GetTrendSummary(ctx context.Context, hours int) (*models.TrendSummary, error) {
	return f.trends, nil
}

func (f fakeSource) GetRecommendations(ctx context.Context, hours int, priority models.RecommendationPriority, category models.RecommendationCategory) ([]models.Recommendation, error) {
	return f.recs, nil
}

func (f fakeSource) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	return f.alerts, nil
}

func testSource() fakeSource {
	return fakeSource{
		status: models.SystemStatus{
			Status: models.HealthDegraded,
			Checks: []models.HealthCheckResult{
				{Name: "store", State: models.HealthHealthy, Message: "store reachable"},
				{Name: "disk", State: models.HealthDegraded, Message: "disk usage 88.0%"},
			},
		},
		trends: &models.TrendSummary{
			WindowHours: 24,
			TotalGroups: 3,
			Improving:   1,
			Degrading:   1,
			Stable:      1,
			CriticalDegradations: []models.TrendResult{
				{MetricName: "query_time", Layer: models.LayerStorage, Component: "orders-db",
					Direction: models.TrendDegrading, Strength: 0.9, PctChange: 35},
			},
		},
		recs: []models.Recommendation{
			{
				Category:            models.CategoryStorage,
				Priority:            models.PriorityHigh,
				Title:               "Slow storage queries",
				Description:         "Mean query time exceeds 200ms.",
				Steps:               []string{"Add indexes", "Cache hot reads"},
				ExpectedImprovement: "30-60% query time reduction",
				AffectedComponents:  []string{"orders-db"},
				ConfidenceScore:     0.75,
			},
		},
		alerts: []models.Alert{
			{
				Severity:       models.SeverityCritical,
				Layer:          models.LayerAPI,
				Component:      "checkout",
				MetricName:     "response_time",
				CurrentValue:   600,
				ThresholdValue: 500,
				CreatedAt:      time.Now().Add(-time.Hour),
			},
		},
	}
}

func TestBuild(t *testing.T) {
	report, err := Build(context.Background(), testSource(), 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if report.WindowHours != 24 {
		t.Errorf("Expected window 24h, got %d", report.WindowHours)
	}
	if report.Status.Status != models.HealthDegraded {
		t.Errorf("Expected degraded status, got %s", report.Status.Status)
	}
	if len(report.Recommendations) != 1 {
		t.Errorf("Expected 1 recommendation, got %d", len(report.Recommendations))
	}
	if len(report.ActiveAlerts) != 1 {
		t.Errorf("Expected 1 active alert, got %d", len(report.ActiveAlerts))
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}
}

func TestGenerateMarkdown(t *testing.T) {
	report, err := Build(context.Background(), testSource(), 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := GenerateMarkdown(report, &buf); err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Performance Report",
		"## System Status: DEGRADED",
		"disk usage 88.0%",
		"## Active Alerts (1)",
		"response_time",
		"## Trends",
		"3 metric groups analyzed",
		"[HIGH] Slow storage queries",
		"Add indexes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Markdown report missing %q", want)
		}
	}
}

func TestGenerateCSV(t *testing.T) {
	report, err := Build(context.Background(), testSource(), 24)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := GenerateCSV(report, &buf); err != nil {
		t.Fatalf("GenerateCSV failed: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasPrefix(lines[0], "Priority,Category,Title") {
		t.Errorf("Unexpected CSV header: %s", lines[0])
	}
	if !strings.Contains(out, "high,storage,Slow storage queries") {
		t.Errorf("CSV missing recommendation row:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY") {
		t.Errorf("CSV missing summary section:\n%s", out)
	}
	if !strings.Contains(out, "System Status,degraded") {
		t.Errorf("CSV missing status row:\n%s", out)
	}
}
