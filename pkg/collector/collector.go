package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartops/perf-monitor/pkg/models"
	"github.com/cartops/perf-monitor/pkg/storage"
	"github.com/cartops/perf-monitor/pkg/threshold"
)

// stopWait bounds how long Stop blocks for an in-flight cycle.
const stopWait = 10 * time.Second

// Options tunes the collector's buffering and flushing behavior.
type Options struct {
	FlushInterval  time.Duration
	FlushBatchSize int
	BufferCapacity int
	FlushRetries   int
}

func (o Options) withDefaults() Options {
	if o.FlushInterval <= 0 {
		o.FlushInterval = 10 * time.Second
	}
	if o.FlushBatchSize <= 0 {
		o.FlushBatchSize = 100
	}
	if o.BufferCapacity < o.FlushBatchSize {
		o.BufferCapacity = o.FlushBatchSize * 50
	}
	if o.FlushRetries <= 0 {
		o.FlushRetries = 3
	}
	return o
}

// Collector samples registered telemetry sources on a fixed interval and
// batch-writes samples to the metric store. Samples are buffered and flushed
// on a timer or once the batch size threshold is reached.
type Collector struct {
	store      storage.MetricStore
	thresholds *threshold.Manager
	logger     *zap.Logger
	opts       Options

	mu      sync.Mutex
	sources []Source
	buffer  []models.MetricSample
	dropped int64
	onFlush func(ctx context.Context, batch []models.MetricSample)

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a collector. thresholds may be nil; when present, flushed
// samples are stamped with the warning/critical values in effect at write
// time for later audit.
func New(store storage.MetricStore, thresholds *threshold.Manager, opts Options, logger *zap.Logger) *Collector {
	return &Collector{
		store:      store,
		thresholds: thresholds,
		logger:     logger,
		opts:       opts.withDefaults(),
	}
}

// SetOnFlush registers a callback invoked with each batch after a
// successful store write, in buffer order. The alerting pipeline hangs off
// this hook.
func (c *Collector) SetOnFlush(fn func(ctx context.Context, batch []models.MetricSample)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFlush = fn
}

// RegisterSource adds a telemetry source to the collection cycle.
func (c *Collector) RegisterSource(s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, s)
}

// CollectOnce gathers one sample set from all registered sources into the
// buffer. A failing source is logged and skipped, never fatal for the cycle.
func (c *Collector) CollectOnce(ctx context.Context) {
	c.mu.Lock()
	sources := make([]Source, len(c.sources))
	copy(sources, c.sources)
	c.mu.Unlock()

	for _, src := range sources {
		samples, err := src.Collect(ctx)
		if err != nil {
			c.logger.Warn("source collection failed",
				zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		c.append(samples)
	}
}

// CollectManual injects a single sample immediately, bypassing the schedule.
func (c *Collector) CollectManual(sample models.MetricSample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	c.append([]models.MetricSample{sample})
}

// append adds samples to the bounded buffer, dropping the oldest entries
// once capacity is exceeded.
func (c *Collector) append(samples []models.MetricSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, samples...)
	if over := len(c.buffer) - c.opts.BufferCapacity; over > 0 {
		c.buffer = c.buffer[over:]
		c.dropped += int64(over)
		c.logger.Warn("collector buffer overflow, oldest samples dropped",
			zap.Int("dropped", over))
	}
}

// BufferedCount returns the number of samples awaiting flush.
func (c *Collector) BufferedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// StartContinuous runs CollectOnce on a fixed period and flushes the buffer
// until Stop is called. Calling it twice is a no-op.
func (c *Collector) StartContinuous(interval time.Duration) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.loop(ctx, interval)
}

func (c *Collector) loop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	collectTicker := time.NewTicker(interval)
	defer collectTicker.Stop()
	flushTicker := time.NewTicker(c.opts.FlushInterval)
	defer flushTicker.Stop()

	// Prime one cycle immediately
	c.cycle(ctx, true)

	for {
		select {
		case <-ctx.Done():
			// Final flush so buffered samples survive shutdown
			c.Flush(context.Background())
			return
		case <-collectTicker.C:
			c.cycle(ctx, false)
		case <-flushTicker.C:
			c.guarded(func() { c.Flush(ctx) })
		}
	}
}

// cycle runs one collection pass, flushing early when the buffer has
// reached the batch size threshold.
func (c *Collector) cycle(ctx context.Context, force bool) {
	c.guarded(func() {
		c.CollectOnce(ctx)
		if force || c.BufferedCount() >= c.opts.FlushBatchSize {
			c.Flush(ctx)
		}
	})
}

// guarded runs fn, recovering panics so the loop survives to the next tick.
func (c *Collector) guarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collector cycle panic", zap.Any("panic", r))
		}
	}()
	fn()
}

// Flush writes the buffered samples to the store, retrying with backoff up
// to the retry budget. After the budget is exhausted the batch is logged and
// discarded so the buffer cannot grow without bound.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.buffer
	c.buffer = nil
	onFlush := c.onFlush
	c.mu.Unlock()

	c.stampThresholds(ctx, batch)

	var err error
	for attempt := 1; attempt <= c.opts.FlushRetries; attempt++ {
		if err = c.store.InsertSamples(ctx, batch); err == nil {
			if onFlush != nil {
				onFlush(ctx, batch)
			}
			return nil
		}
		c.logger.Warn("flush attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))

		if attempt == c.opts.FlushRetries {
			break
		}
		select {
		case <-ctx.Done():
			// The batch is already detached from the buffer; make the
			// loss visible like the exhausted-budget path does.
			c.logger.Error("flush cancelled, dropping batch",
				zap.Int("batch_size", len(batch)), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	c.logger.Error("flush retry budget exhausted, dropping batch",
		zap.Int("batch_size", len(batch)), zap.Error(err))
	return fmt.Errorf("flush failed after %d attempts: %w", c.opts.FlushRetries, err)
}

// stampThresholds records the warning/critical values in effect at write
// time on each sample. Audit metadata only; live alerting reads the
// threshold manager directly.
func (c *Collector) stampThresholds(ctx context.Context, batch []models.MetricSample) {
	if c.thresholds == nil {
		return
	}
	for i := range batch {
		t, err := c.thresholds.GetThreshold(ctx, batch[i].MetricName, batch[i].Layer, batch[i].Component)
		if err != nil || t == nil {
			continue
		}
		batch[i].WarningAt = t.WarningValue
		batch[i].CriticalAt = t.CriticalValue
	}
}

// Stop cancels the collection loop and waits, bounded, for the in-flight
// cycle to finish. Safe to call concurrently and more than once.
func (c *Collector) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}

	c.cancel()
	select {
	case <-c.done:
	case <-time.After(stopWait):
		c.logger.Warn("collector stop timed out waiting for cycle")
	}
	c.running = false
}
