package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
)

// namespace prefixes every exported metric family.
const namespace = "perfmon"

// Exporter renders the most recent sample of every metric group in the
// Prometheus text exposition format, suitable for external scraping.
type Exporter struct {
	store  storage.MetricStore
	logger *zap.Logger
	window time.Duration
}

// NewExporter creates an exporter reading from the given store. window is
// how far back to look for the latest sample per group.
func NewExporter(store storage.MetricStore, window time.Duration, logger *zap.Logger) *Exporter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Exporter{
		store:  store,
		logger: logger,
		window: window,
	}
}

// Describe implements prometheus.Collector. Metric families are dynamic,
// so the exporter registers as an unchecked collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector: it emits the latest sample per
// (layer, component, metric) group as a timestamped gauge.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	tr := models.TimeRange{Start: now.Add(-e.window), End: now}

	samples, err := e.fetchAll(ctx, tr)
	if err != nil {
		e.logger.Warn("export query failed", zap.Error(err))
		return
	}

	// Samples arrive newest first; keep only the latest per group.
	latest := make(map[string]models.MetricSample)
	for _, s := range samples {
		key := string(s.Layer) + "/" + s.Component + "/" + s.MetricName
		if _, ok := latest[key]; !ok {
			latest[key] = s
		}
	}

	for _, s := range latest {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", sanitize(s.MetricName)),
			fmt.Sprintf("Latest observed value of %s", s.MetricName),
			[]string{"layer", "component"}, nil,
		)
		metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue,
			s.Value, string(s.Layer), s.Component)
		if err != nil {
			e.logger.Warn("failed to build exported metric",
				zap.String("metric", s.MetricName), zap.Error(err))
			continue
		}
		ch <- prometheus.NewMetricWithTimestamp(s.Timestamp, metric)
	}
}

// WriteText renders the exposition to w in the plain text format with
// help/type headers and timestamped sample lines.
func (e *Exporter) WriteText(w io.Writer) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(e); err != nil {
		return fmt.Errorf("failed to register exporter: %w", err)
	}

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("failed to encode metric family: %w", err)
		}
	}

	return nil
}

// fetchAll pages through QuerySamples so groups whose latest sample sits
// beyond the first page are still exported.
func (e *Exporter) fetchAll(ctx context.Context, tr models.TimeRange) ([]models.MetricSample, error) {
	const pageSize = 1000
	const maxPages = 100

	var all []models.MetricSample
	for page := 1; page <= maxPages; page++ {
		batch, err := e.store.QuerySamples(ctx, models.MetricFilter{}, tr, models.Page{Number: page, Size: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	return all, nil
}

// sanitize maps a metric name onto the Prometheus name charset.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
