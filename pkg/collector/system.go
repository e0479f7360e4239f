package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/cartops/perf-monitor/pkg/models"
)

// systemSource samples host-level CPU, memory and disk usage percentages.
type systemSource struct {
	diskPath string
}

// NewSystemSource creates a source for host telemetry. diskPath is the
// mount point to report usage for, "/" when empty.
func NewSystemSource(diskPath string) Source {
	if diskPath == "" {
		diskPath = "/"
	}
	return &systemSource{diskPath: diskPath}
}

func (s *systemSource) Name() string { return "system" }

func (s *systemSource) Collect(ctx context.Context) ([]models.MetricSample, error) {
	now := time.Now()
	var samples []models.MetricSample

	add := func(metric string, value float64) {
		samples = append(samples, models.MetricSample{
			Layer:      models.LayerSystem,
			Component:  "host",
			MetricName: metric,
			Value:      value,
			Timestamp:  now,
		})
	}

	// Instantaneous CPU percentage since the previous call.
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		add("cpu_usage", percents[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		add("memory_usage", vm.UsedPercent)
	}

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		add("disk_usage", du.UsedPercent)
	}

	return samples, nil
}
