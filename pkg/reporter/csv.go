package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// GenerateCSV writes the recommendations section of a report as CSV
func GenerateCSV(report *Report, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"Priority",
		"Category",
		"Title",
		"Affected Components",
		"Confidence",
		"Expected Improvement",
		"Description",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range report.Recommendations {
		row := []string{
			string(rec.Priority),
			string(rec.Category),
			rec.Title,
			strings.Join(rec.AffectedComponents, "; "),
			fmt.Sprintf("%.2f", rec.ConfidenceScore),
			rec.ExpectedImprovement,
			rec.Description,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	// Summary rows
	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"System Status", string(report.Status.Status)})
	w.Write([]string{"Active Alerts", fmt.Sprintf("%d", len(report.ActiveAlerts))})
	w.Write([]string{"Metric Groups", fmt.Sprintf("%d", report.TrendSummary.TotalGroups)})
	w.Write([]string{"Degrading Trends", fmt.Sprintf("%d", report.TrendSummary.Degrading)})
	w.Write([]string{"Recommendations", fmt.Sprintf("%d", len(report.Recommendations))})

	return nil
}
