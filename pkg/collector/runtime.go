package collector

import (
	"context"
	"runtime"
	"time"

	"github.com/cartops/perf-monitor/pkg/models"
)

// runtimeSource samples the Go process itself: goroutines, heap, GC pauses.
type runtimeSource struct {
	lastPauseTotal uint64
}

// NewRuntimeSource creates a source for Go runtime telemetry.
func NewRuntimeSource() Source {
	return &runtimeSource{}
}

func (r *runtimeSource) Name() string { return "runtime" }

func (r *runtimeSource) Collect(ctx context.Context) ([]models.MetricSample, error) {
	now := time.Now()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	samples := []models.MetricSample{
		{
			Layer: models.LayerSystem, Component: "process",
			MetricName: "goroutines", Value: float64(runtime.NumGoroutine()), Timestamp: now,
		},
		{
			Layer: models.LayerSystem, Component: "process",
			MetricName: "heap_alloc_mb", Value: float64(ms.HeapAlloc) / (1024 * 1024), Timestamp: now,
		},
	}

	// GC pause delta since the previous cycle, in milliseconds.
	if r.lastPauseTotal > 0 && ms.PauseTotalNs >= r.lastPauseTotal {
		pauseMs := float64(ms.PauseTotalNs-r.lastPauseTotal) / 1e6
		samples = append(samples, models.MetricSample{
			Layer: models.LayerSystem, Component: "process",
			MetricName: "gc_pause_ms", Value: pauseMs, Timestamp: now,
		})
	}
	r.lastPauseTotal = ms.PauseTotalNs

	return samples, nil
}
