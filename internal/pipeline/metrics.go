package pipeline

import (
	"sync/atomic"
)

// Metrics contains cumulative counters across all runs of one Pipeline.
type Metrics struct {
	Runs      atomic.Uint64 // successful passes
	Failures  atomic.Uint64
	Frames    atomic.Uint64
	Malformed atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Runs      uint64 `json:"runs"`
	Failures  uint64 `json:"failures"`
	Frames    uint64 `json:"frames"`
	Malformed uint64 `json:"malformed"`
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Runs:      m.Runs.Load(),
		Failures:  m.Failures.Load(),
		Frames:    m.Frames.Load(),
		Malformed: m.Malformed.Load(),
	}
}
