package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
)

// Notifier delivers a newly created alert to one channel. Delivery is
// best-effort: a failing notifier is logged and never blocks alert creation.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, alert models.Alert) error {
	n.logger.Warn("alert raised",
		zap.String("id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title),
		zap.String("layer", string(alert.Layer)),
		zap.String("component", alert.Component),
		zap.String("metric", alert.MetricName),
		zap.Float64("current_value", alert.CurrentValue),
		zap.Float64("threshold_value", alert.ThresholdValue))
	return nil
}

// WebhookNotifier posts alerts as JSON to an HTTP receiver.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier with a bounded timeout.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, alert models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
