// Package memory watches process memory against a configured ceiling and
// asks the display cache to shed entries when usage crosses it.
package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
)

// Config holds memory monitor configuration.
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or disable).
	LimitBytes int64

	// HighWaterMark is the fraction of the limit at which the cache is
	// asked to shrink (0.0-1.0).
	HighWaterMark float64

	// CheckInterval is how often usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the default monitor settings.
func DefaultConfig() Config {
	return Config{
		LimitBytes:    0,
		HighWaterMark: 0.7,
		CheckInterval: 5 * time.Second,
	}
}

// Shrinker is the slice of the display cache the monitor drives.
type Shrinker interface {
	EstimatedBytes() int64
	Shrink(targetBytes int64) int
}

// Monitor samples memory usage on a ticker and shrinks the target cache
// when usage crosses the high water mark.
type Monitor struct {
	config   Config
	limit    int64
	target   Shrinker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor driving target. With no explicit limit the
// process GOMEMLIMIT is used; with neither, the monitor is inert.
func NewMonitor(config Config, target Shrinker) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < 1<<62 {
			limit = goLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %.1f MB", float64(limit)/(1024*1024))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no limit configured, cache shrinking disabled")
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		target:   target,
		stopChan: make(chan struct{}),
	}
}

// Start begins monitoring. No-op when no limit is configured.
func (m *Monitor) Start() {
	if m.limit == 0 || m.target == nil {
		return
	}
	go m.loop()
}

// Stop stops the monitor.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) check() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	if usage < m.config.HighWaterMark {
		return
	}

	held := m.target.EstimatedBytes()
	if held == 0 {
		return
	}

	// Halve the cache footprint and let the next tick decide again.
	evicted := m.target.Shrink(held / 2)
	if evicted > 0 {
		metrics.MemoryShrinks.Inc()
		logging.Info("Memory at %.1f%% of limit, shrank display cache by %d entries",
			usage*100, evicted)
		runtime.GC()
	}
}
