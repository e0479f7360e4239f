package health

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
)

// Probe is one named, synchronous health check. It returns the probe state
// and a human-readable message; an error marks the probe unhealthy.
type Probe interface {
	Name() string
	Check(ctx context.Context) (models.HealthState, string, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) (models.HealthState, string, error)
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context) (models.HealthState, string, error) {
	return p.Fn(ctx)
}

// NewStoreProbe checks metric store reachability.
func NewStoreProbe(store storage.Store) Probe {
	return ProbeFunc{
		ProbeName: "store",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			if err := store.Ping(ctx); err != nil {
				return models.HealthUnhealthy, "", err
			}
			return models.HealthHealthy, "store reachable", nil
		},
	}
}

// NewCacheProbe checks cache reachability via Redis PING.
func NewCacheProbe(client *redis.Client) Probe {
	return ProbeFunc{
		ProbeName: "cache",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			if err := client.Ping(ctx).Err(); err != nil {
				return models.HealthUnhealthy, "", err
			}
			return models.HealthHealthy, "cache reachable", nil
		},
	}
}

// NewDiskProbe checks disk headroom on the given mount point.
// Above degradedPct is degraded, above unhealthyPct is unhealthy.
func NewDiskProbe(path string, degradedPct, unhealthyPct float64) Probe {
	if path == "" {
		path = "/"
	}
	return ProbeFunc{
		ProbeName: "disk",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			du, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return models.HealthUnhealthy, "", err
			}
			msg := fmt.Sprintf("disk usage %.1f%%", du.UsedPercent)
			switch {
			case du.UsedPercent >= unhealthyPct:
				return models.HealthUnhealthy, msg, nil
			case du.UsedPercent >= degradedPct:
				return models.HealthDegraded, msg, nil
			}
			return models.HealthHealthy, msg, nil
		},
	}
}

// NewMemoryProbe checks memory headroom on the host.
func NewMemoryProbe(degradedPct, unhealthyPct float64) Probe {
	return ProbeFunc{
		ProbeName: "memory",
		Fn: func(ctx context.Context) (models.HealthState, string, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return models.HealthUnhealthy, "", err
			}
			msg := fmt.Sprintf("memory usage %.1f%%", vm.UsedPercent)
			switch {
			case vm.UsedPercent >= unhealthyPct:
				return models.HealthUnhealthy, msg, nil
			case vm.UsedPercent >= degradedPct:
				return models.HealthDegraded, msg, nil
			}
			return models.HealthHealthy, msg, nil
		},
	}
}
