// Package monitoring samples process health and the gauges registered by
// server components.
package monitoring

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Gauge reports the current value of one component metric
type Gauge func() int64

// Config controls sampling and alerting
type Config struct {
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	AlertThreshold int           `mapstructure:"alert_threshold"`
	AlertCooldown  time.Duration `mapstructure:"alert_cooldown"`
}

// DefaultConfig returns the stock monitor configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval:  30 * time.Second,
		AlertThreshold: 1000,
		AlertCooldown:  5 * time.Minute,
	}
}

// Monitor samples the goroutine count and registered gauges
type Monitor struct {
	mu        sync.RWMutex
	cfg       Config
	baseline  int
	current   int
	peak      int
	lastAlert time.Time
	gauges    map[string]Gauge
	values    map[string]int64
	now       func() time.Time
	logger    zerolog.Logger
}

// NewMonitor creates a monitor with the current goroutine count as baseline
func NewMonitor(cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	baseline := runtime.NumGoroutine()
	return &Monitor{
		cfg:      cfg,
		baseline: baseline,
		current:  baseline,
		peak:     baseline,
		gauges:   make(map[string]Gauge),
		values:   make(map[string]int64),
		now:      time.Now,
		logger:   logger.With().Str("component", "Monitor").Logger(),
	}
}

// Register adds a named gauge. Registering a name again replaces the gauge.
func (m *Monitor) Register(name string, g Gauge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = g
}

// Run samples on every interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().
		Int("baseline", m.baseline).
		Dur("interval", m.cfg.CheckInterval).
		Msg("Started monitoring")

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-ctx.Done():
			return
		}
	}
}

// Check takes one sample and logs a warning when the goroutine count is
// above the alert threshold.
func (m *Monitor) Check() Metrics {
	current := runtime.NumGoroutine()

	m.mu.RLock()
	gauges := make(map[string]Gauge, len(m.gauges))
	for name, g := range m.gauges {
		gauges[name] = g
	}
	m.mu.RUnlock()

	// gauges may take component locks, so they run outside mu
	values := make(map[string]int64, len(gauges))
	for name, g := range gauges {
		values[name] = g()
	}

	now := m.now()
	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	m.values = values
	shouldAlert := m.cfg.AlertThreshold > 0 && current > m.cfg.AlertThreshold &&
		now.Sub(m.lastAlert) > m.cfg.AlertCooldown
	if shouldAlert {
		m.lastAlert = now
	}
	metrics := m.metricsLocked()
	m.mu.Unlock()

	event := m.logger.Debug().
		Int("current", current).
		Int("baseline", metrics.Baseline).
		Int("peak", metrics.Peak)
	for _, name := range sortedKeys(values) {
		event = event.Int64(name, values[name])
	}
	event.Msg("Runtime metrics")

	if shouldAlert {
		m.logger.Warn().
			Int("current", current).
			Int("threshold", m.cfg.AlertThreshold).
			Msg("High goroutine count detected - possible leak")
	}
	return metrics
}

// Metrics returns the last sample
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsLocked()
}

func (m *Monitor) metricsLocked() Metrics {
	values := make(map[string]int64, len(m.values))
	for k, v := range m.values {
		values[k] = v
	}
	return Metrics{
		Goroutines: m.current,
		Baseline:   m.baseline,
		Peak:       m.peak,
		Growth:     m.current - m.baseline,
		Components: values,
	}
}

// Metrics contains one sample
type Metrics struct {
	Goroutines int              `json:"goroutines"`
	Baseline   int              `json:"baseline"`
	Peak       int              `json:"peak"`
	Growth     int              `json:"growth"`
	Components map[string]int64 `json:"components"`
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
