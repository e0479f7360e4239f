package reporter

import (
	"fmt"
	"io"
	"strings"
)

// GenerateMarkdown writes the full report as a Markdown document
func GenerateMarkdown(report *Report, writer io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Performance Report\n\n")
	fmt.Fprintf(&b, "Generated: %s | Window: %dh\n\n",
		report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.WindowHours)

	fmt.Fprintf(&b, "## System Status: %s\n\n", strings.ToUpper(string(report.Status.Status)))
	for _, check := range report.Status.Checks {
		line := fmt.Sprintf("- **%s**: %s", check.Name, check.State)
		if check.Message != "" {
			line += " - " + check.Message
		}
		if check.Error != "" {
			line += " (error: " + check.Error + ")"
		}
		fmt.Fprintln(&b, line)
	}
	fmt.Fprintln(&b)

	if len(report.ActiveAlerts) > 0 {
		fmt.Fprintf(&b, "## Active Alerts (%d)\n\n", len(report.ActiveAlerts))
		fmt.Fprintln(&b, "| Severity | Component | Metric | Value | Threshold | Since |")
		fmt.Fprintln(&b, "|----------|-----------|--------|-------|-----------|-------|")
		for _, a := range report.ActiveAlerts {
			fmt.Fprintf(&b, "| %s | %s/%s | %s | %.2f | %.2f | %s |\n",
				a.Severity, a.Layer, a.Component, a.MetricName,
				a.CurrentValue, a.ThresholdValue, a.CreatedAt.Format("01-02 15:04"))
		}
		fmt.Fprintln(&b)
	}

	ts := report.TrendSummary
	fmt.Fprintf(&b, "## Trends\n\n")
	fmt.Fprintf(&b, "%d metric groups analyzed: %d improving, %d degrading, %d stable.\n\n",
		ts.TotalGroups, ts.Improving, ts.Degrading, ts.Stable)
	for _, t := range ts.CriticalDegradations {
		fmt.Fprintf(&b, "- **Degrading**: %s/%s/%s %+.1f%% (strength %.2f)\n",
			t.Layer, t.Component, t.MetricName, t.PctChange, t.Strength)
	}
	for _, t := range ts.SignificantImprovements {
		fmt.Fprintf(&b, "- Improving: %s/%s/%s %+.1f%% (strength %.2f)\n",
			t.Layer, t.Component, t.MetricName, t.PctChange, t.Strength)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "## Recommendations (%d)\n\n", len(report.Recommendations))
	for _, rec := range report.Recommendations {
		fmt.Fprintf(&b, "### [%s] %s\n\n", strings.ToUpper(string(rec.Priority)), rec.Title)
		fmt.Fprintf(&b, "%s\n\n", rec.Description)
		fmt.Fprintf(&b, "Affected: %s | Confidence: %.2f | Expected: %s\n\n",
			strings.Join(rec.AffectedComponents, ", "), rec.ConfidenceScore, rec.ExpectedImprovement)
		for _, step := range rec.Steps {
			fmt.Fprintf(&b, "1. %s\n", step)
		}
		fmt.Fprintln(&b)
	}

	_, err := io.WriteString(writer, b.String())
	return err
}
