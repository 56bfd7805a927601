package core

import "time"

// Severity of an Issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarn     Severity = "warn"
	SeverityInfo     Severity = "info"
)

// Issue is one finding produced by a satisfied rule.
type Issue struct {
	Rule        string     `json:"rule" yaml:"rule"`
	Severity    Severity   `json:"severity" yaml:"severity"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Timestamp   *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Hit is an occurrence counter that remembers when it first fired.
type Hit struct {
	Count int
	First time.Time
}

// Record counts one occurrence at ts.
func (h *Hit) Record(ts time.Time) {
	if h.Count == 0 {
		h.First = ts
	}
	h.Count++
}

// FirstSeen returns the first occurrence time, or nil if the counter never fired
// or the capture carried no timestamp.
func (h Hit) FirstSeen() *time.Time {
	if h.Count == 0 || h.First.IsZero() {
		return nil
	}
	t := h.First
	return &t
}
