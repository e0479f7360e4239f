package collector

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cartops/perf-monitor/pkg/models"
)

// cacheSource samples Redis round-trip latency and keyspace hit rate.
type cacheSource struct {
	client *redis.Client
}

// NewCacheSource creates a source reading telemetry from a Redis instance.
func NewCacheSource(client *redis.Client) Source {
	return &cacheSource{client: client}
}

func (c *cacheSource) Name() string { return "cache" }

func (c *cacheSource) Collect(ctx context.Context) ([]models.MetricSample, error) {
	now := time.Now()
	var samples []models.MetricSample

	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	samples = append(samples, models.MetricSample{
		Layer: models.LayerCache, Component: "redis",
		MetricName: "cache_latency_ms",
		Value:      float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:  now,
	})

	info, err := c.client.Info(ctx, "stats").Result()
	if err != nil {
		return samples, nil // latency alone is still useful
	}

	hits, misses := parseKeyspaceStats(info)
	if hits+misses > 0 {
		samples = append(samples, models.MetricSample{
			Layer: models.LayerCache, Component: "redis",
			MetricName: "cache_hit_rate",
			Value:      float64(hits) / float64(hits+misses) * 100,
			Timestamp:  now,
		})
	}

	return samples, nil
}

// parseKeyspaceStats pulls keyspace_hits/keyspace_misses out of INFO stats.
func parseKeyspaceStats(info string) (hits, misses int64) {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "keyspace_hits:"); ok {
			hits, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		}
		if v, ok := strings.CutPrefix(line, "keyspace_misses:"); ok {
			misses, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		}
	}
	return hits, misses
}
