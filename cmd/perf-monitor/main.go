package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/config"
	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/monitoring"
	"github.com/cartops/perf-monitor/pkg/reporter"
	"github.com/cartops/perf-monitor/pkg/storage"
)

var (
	outputFormat string
	reportFormat string
	hours        int
	priority     string
	category     string
	verbose      bool

	// Threshold flags
	thMetric    string
	thLayer     string
	thComponent string
	thWarning   float64
	thCritical  float64
	thOnWarning bool

	cfg *config.Config
)

func main() {
	cfg = config.NewConfig()

	rootCmd := &cobra.Command{
		Use:   "perf-monitor",
		Short: "Performance monitoring and alerting engine",
		Long:  `Samples operational metrics, evaluates thresholds, detects trends, raises deduplicated alerts and produces optimization recommendations.`,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the monitoring service and block until interrupted",
		RunE:  runService,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "One-shot system health summary",
		RunE:  runStatus,
	}

	trendsCmd := &cobra.Command{
		Use:   "trends",
		Short: "Analyze metric trends over a window",
		RunE:  runTrends,
	}
	trendsCmd.Flags().IntVar(&hours, "hours", 24, "Analysis window in hours")

	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate optimization recommendations",
		RunE:  runRecommend,
	}
	recommendCmd.Flags().IntVar(&hours, "hours", 24, "Lookback window in hours")
	recommendCmd.Flags().StringVar(&priority, "priority", "", "Filter by priority: low, medium, high")
	recommendCmd.Flags().StringVar(&category, "category", "", "Filter by category: storage, api, system, cache")

	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List active alerts and history",
		RunE:  runAlerts,
	}
	alertsCmd.Flags().IntVar(&hours, "hours", 0, "Include history for the last N hours (0 = active only)")

	resolveCmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Manually resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print metrics in Prometheus text exposition format",
		RunE:  runExport,
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an operations report",
		RunE:  runReport,
	}
	reportCmd.Flags().IntVar(&hours, "hours", 24, "Report window in hours")
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "Report format: markdown, csv")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete metric samples past the retention window",
		RunE:  runPrune,
	}

	thresholdsCmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Manage alert thresholds",
	}
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed default thresholds for common metric families",
		RunE:  runSeed,
	}
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a threshold",
		RunE:  runSetThreshold,
	}
	setCmd.Flags().StringVar(&thMetric, "metric", "", "Metric name (required)")
	setCmd.Flags().StringVar(&thLayer, "layer", "", "Layer: frontend, api, storage, cache, system (required)")
	setCmd.Flags().StringVar(&thComponent, "component", "", "Component (empty = layer-wide wildcard)")
	setCmd.Flags().Float64Var(&thWarning, "warning", 0, "Warning value (required)")
	setCmd.Flags().Float64Var(&thCritical, "critical", 0, "Critical value (required)")
	setCmd.Flags().BoolVar(&thOnWarning, "alert-on-warning", false, "Raise alerts for warning breaches")
	setCmd.MarkFlagRequired("metric")
	setCmd.MarkFlagRequired("layer")
	setCmd.MarkFlagRequired("warning")
	setCmd.MarkFlagRequired("critical")
	thresholdsCmd.AddCommand(seedCmd, setCmd)

	rootCmd.AddCommand(runCmd, statusCmd, trendsCmd, recommendCmd,
		alertsCmd, resolveCmd, exportCmd, reportCmd, pruneCmd, thresholdsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newService builds the service with its store and logger.
func newService() (*monitoring.Service, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var store storage.Store
	if cfg.StorageEnabled {
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to store: %w", err)
		}
	} else {
		store = storage.NewMemoryStore()
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	svc := monitoring.NewService(cfg, store, cache, logger)
	cleanup := func() {
		store.Close()
		if cache != nil {
			cache.Close()
		}
		logger.Sync()
	}
	return svc, cleanup, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose || cfg.Verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runService(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := svc.Initialize(ctx); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := svc.GetSystemHealth(context.Background())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(status)
	}

	fmt.Printf("System status: %s (%d active alerts)\n", status.Status, status.ActiveAlerts)
	for _, check := range status.Checks {
		line := fmt.Sprintf("  [%s] %s", check.State, check.Name)
		if check.Message != "" {
			line += ": " + check.Message
		}
		if check.Error != "" {
			line += " (" + check.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func runTrends(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := svc.GetTrendSummary(context.Background(), hours)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(summary)
	}

	fmt.Printf("Trends over %dh: %d groups (%d improving, %d degrading, %d stable)\n",
		summary.WindowHours, summary.TotalGroups,
		summary.Improving, summary.Degrading, summary.Stable)
	for _, t := range summary.CriticalDegradations {
		fmt.Printf("  DEGRADING %s/%s/%s: %+.1f%% (strength %.2f)\n",
			t.Layer, t.Component, t.MetricName, t.PctChange, t.Strength)
	}
	for _, t := range summary.SignificantImprovements {
		fmt.Printf("  improving %s/%s/%s: %+.1f%% (strength %.2f)\n",
			t.Layer, t.Component, t.MetricName, t.PctChange, t.Strength)
	}
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	recs, err := svc.GetRecommendations(context.Background(), hours,
		models.RecommendationPriority(priority), models.RecommendationCategory(category))
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(recs)
	}

	if len(recs) == 0 {
		fmt.Println("No recommendations for the window.")
		return nil
	}
	for _, r := range recs {
		fmt.Printf("[%s] %s (%s, confidence %.2f)\n", r.Priority, r.Title, r.Category, r.ConfidenceScore)
		fmt.Printf("  %s\n", r.Description)
		fmt.Printf("  Affected: %v\n", r.AffectedComponents)
		for _, step := range r.Steps {
			fmt.Printf("  - %s\n", step)
		}
	}
	return nil
}

func runAlerts(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	var alerts []models.Alert
	if hours > 0 {
		alerts, err = svc.GetAlertHistory(ctx, hours)
	} else {
		alerts, err = svc.GetActiveAlerts(ctx)
	}
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(alerts)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts.")
		return nil
	}
	for _, a := range alerts {
		state := "ACTIVE"
		if a.Resolved {
			state = "resolved"
		}
		fmt.Printf("[%s] %s %s %s/%s value=%.2f threshold=%.2f (%s)\n",
			state, a.ID, a.Severity, a.Layer, a.Component,
			a.CurrentValue, a.ThresholdValue, a.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	if !svc.ResolveAlert(context.Background(), args[0], "cli") {
		return fmt.Errorf("alert %s not found or already resolved", args[0])
	}
	fmt.Printf("Alert %s resolved.\n", args[0])
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	return svc.ExportMetrics(os.Stdout)
}

func runReport(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := reporter.Build(context.Background(), svc, hours)
	if err != nil {
		return err
	}

	if reportFormat == string(reporter.FormatCSV) {
		return reporter.GenerateCSV(report, os.Stdout)
	}
	return reporter.GenerateMarkdown(report, os.Stdout)
}

func runPrune(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	deleted, err := svc.PruneMetrics(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d samples.\n", deleted)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.SeedDefaultThresholds(context.Background()); err != nil {
		return err
	}
	fmt.Println("Default thresholds seeded.")
	return nil
}

func runSetThreshold(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	t := &models.Threshold{
		MetricName:      thMetric,
		Layer:           models.Layer(thLayer),
		Component:       thComponent,
		WarningValue:    thWarning,
		CriticalValue:   thCritical,
		Enabled:         true,
		AlertOnWarning:  thOnWarning,
		AlertOnCritical: true,
	}
	if err := svc.UpsertThreshold(context.Background(), t); err != nil {
		return err
	}
	fmt.Printf("Threshold %s set (warning=%.2f critical=%.2f).\n", t.Key(), thWarning, thCritical)
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
