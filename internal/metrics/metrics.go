// Package metrics implements Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run results.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

var (
	// AnalysisRunsTotal counts finished analysis passes by result
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcaplens_analysis_runs_total",
			Help: "Total number of analysis passes by result",
		},
		[]string{"result"},
	)

	// FramesTotal counts frames read across all passes
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pcaplens_frames_total",
			Help: "Total number of capture frames analyzed",
		},
	)

	// MalformedFramesTotal counts frames whose decode stopped early
	MalformedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pcaplens_malformed_frames_total",
			Help: "Total number of frames counted as Malformed/Unknown",
		},
	)

	// IssuesTotal counts emitted issues by rule and severity
	IssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcaplens_issues_total",
			Help: "Total number of issues emitted by the rule engine",
		},
		[]string{"rule", "severity"},
	)

	// AnalysisDurationSeconds measures wall-clock time of a pass
	AnalysisDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pcaplens_analysis_duration_seconds",
			Help:    "Wall-clock duration of analysis passes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
	)

	// LastRunFlows tracks the flow directions seen by the latest successful pass
	LastRunFlows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcaplens_last_run_flows",
			Help: "Number of TCP flow directions tracked by the last successful pass",
		},
	)

	// LastRunConversations tracks the address pairs seen by the latest successful pass
	LastRunConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcaplens_last_run_conversations",
			Help: "Number of conversations aggregated by the last successful pass",
		},
	)
)

// Run is the observation of one pass.
type Run struct {
	Result        string
	Frames        int
	Malformed     int
	Flows         int
	Conversations int
	Issues        []IssueLabel
	Elapsed       time.Duration
}

// IssueLabel identifies one emitted issue.
type IssueLabel struct {
	Rule     string
	Severity string
}

// ObserveRun records one pass. Gauges are only updated on success.
func ObserveRun(r Run) {
	AnalysisRunsTotal.WithLabelValues(r.Result).Inc()
	FramesTotal.Add(float64(r.Frames))
	MalformedFramesTotal.Add(float64(r.Malformed))
	AnalysisDurationSeconds.Observe(r.Elapsed.Seconds())
	for _, is := range r.Issues {
		IssuesTotal.WithLabelValues(is.Rule, is.Severity).Inc()
	}
	if r.Result == ResultOK {
		LastRunFlows.Set(float64(r.Flows))
		LastRunConversations.Set(float64(r.Conversations))
	}
}
