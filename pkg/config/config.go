package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the monitoring service configuration
type Config struct {
	// Storage
	DatabaseURL    string
	StorageEnabled bool

	// Cache (used by the cache telemetry source and health probe)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Collector
	CollectInterval time.Duration
	FlushInterval   time.Duration
	FlushBatchSize  int
	BufferCapacity  int
	FlushRetries    int

	// Alerting
	AlertCooldown    time.Duration
	AutoResolveEvery time.Duration
	MinAlertAge      time.Duration
	WebhookURL       string

	// Thresholds
	ThresholdCacheTTL time.Duration

	// Health checks
	ProbeTimeout   time.Duration
	HealthDeadline time.Duration

	// Retention
	MetricRetention time.Duration

	Verbose bool
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	return &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "host=localhost port=5432 user=monitor password=devpassword dbname=perfmonitor sslmode=disable"),
		StorageEnabled:    getEnvBool("STORAGE_ENABLED", true),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		CollectInterval:   getEnvDuration("COLLECT_INTERVAL", 30*time.Second),
		FlushInterval:     getEnvDuration("FLUSH_INTERVAL", 10*time.Second),
		FlushBatchSize:    getEnvInt("FLUSH_BATCH_SIZE", 100),
		BufferCapacity:    getEnvInt("BUFFER_CAPACITY", 5000),
		FlushRetries:      getEnvInt("FLUSH_RETRIES", 3),
		AlertCooldown:     getEnvDuration("ALERT_COOLDOWN", 15*time.Minute),
		AutoResolveEvery:  getEnvDuration("AUTO_RESOLVE_INTERVAL", 5*time.Minute),
		MinAlertAge:       getEnvDuration("MIN_ALERT_AGE", 10*time.Minute),
		WebhookURL:        getEnv("ALERT_WEBHOOK_URL", ""),
		ThresholdCacheTTL: getEnvDuration("THRESHOLD_CACHE_TTL", 5*time.Minute),
		ProbeTimeout:      getEnvDuration("PROBE_TIMEOUT", 3*time.Second),
		HealthDeadline:    getEnvDuration("HEALTH_DEADLINE", 10*time.Second),
		MetricRetention:   getEnvDuration("METRIC_RETENTION", 30*24*time.Hour),
		Verbose:           getEnvBool("VERBOSE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	if c.CollectInterval < time.Second {
		return fmt.Errorf("collect interval must be at least 1s")
	}
	if c.FlushBatchSize < 1 {
		return fmt.Errorf("flush batch size must be positive")
	}
	if c.BufferCapacity < c.FlushBatchSize {
		return fmt.Errorf("buffer capacity must be >= flush batch size")
	}
	if c.AlertCooldown < time.Minute {
		return fmt.Errorf("alert cooldown must be at least 1m")
	}
	if c.ThresholdCacheTTL < time.Second {
		return fmt.Errorf("threshold cache TTL must be at least 1s")
	}
	return nil
}
