package pipeline

import (
	"time"

	"firestige.xyz/pcaplens/internal/core"
)

// anomalyLimiter caps per-layer anomaly log lines within a window of capture
// time. Counts are stored per window and rotated when the window expires.
// One limiter belongs to one pass and is not safe for concurrent use.
type anomalyLimiter struct {
	current      map[core.Layer]int
	started      bool
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int

	suppressed int
}

// anomalyLimiterConfig configures per-layer log limiting.
type anomalyLimiterConfig struct {
	MaxPerLayer int           // lines per layer per window (0 = disabled)
	Window      time.Duration // window size in capture time (default 1s)
}

// newAnomalyLimiter creates a limiter. Returns nil if disabled (MaxPerLayer <= 0).
func newAnomalyLimiter(cfg anomalyLimiterConfig) *anomalyLimiter {
	if cfg.MaxPerLayer <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &anomalyLimiter{
		current:      make(map[core.Layer]int),
		windowSize:   cfg.Window,
		maxPerWindow: cfg.MaxPerLayer,
	}
}

// Allow reports whether an anomaly at layer, seen at capture time ts, may be
// logged. A nil limiter allows everything.
func (l *anomalyLimiter) Allow(layer core.Layer, ts time.Time) bool {
	if l == nil {
		return true
	}

	// First call opens the window; captures running backwards never rotate it.
	if !l.started || ts.Sub(l.windowStart) >= l.windowSize {
		clear(l.current)
		l.started = true
		l.windowStart = ts
	}

	l.current[layer]++
	if l.current[layer] > l.maxPerWindow {
		l.suppressed++
		return false
	}
	return true
}

// Suppressed returns the number of rejected log lines.
func (l *anomalyLimiter) Suppressed() int {
	if l == nil {
		return 0
	}
	return l.suppressed
}
