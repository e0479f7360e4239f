package collector

import (
	"context"

	"github.com/cartops/perf-monitor/pkg/models"
)

// Source produces one batch of metric samples per collection cycle.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]models.MetricSample, error)
}
