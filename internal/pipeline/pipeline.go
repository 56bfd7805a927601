// Package pipeline implements the one-pass analysis engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/core/decoder"
	"firestige.xyz/pcaplens/internal/flow"
	"firestige.xyz/pcaplens/internal/log"
	"firestige.xyz/pcaplens/internal/metrics"
	"firestige.xyz/pcaplens/internal/report"
	"firestige.xyz/pcaplens/internal/rules"
	"firestige.xyz/pcaplens/internal/source/file"
	"firestige.xyz/pcaplens/internal/stats"
)

// Pipeline runs reader, decoder, tracker, aggregator, rules and report in
// sequence. It holds configuration only; every Run owns its own state, so a
// Pipeline may serve concurrent runs.
type Pipeline struct {
	readBufferSize int
	engine         *rules.Engine
	metrics        *Metrics
}

// Config contains pipeline configuration.
type Config struct {
	ExtendedRules  bool
	ReadBufferSize int          // bytes, 0 = reader default
	Rules          []rules.Rule // appended after the built-in tables
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		readBufferSize: cfg.ReadBufferSize,
		engine:         rules.NewEngine(rules.WithExtended(cfg.ExtendedRules), rules.WithRules(cfg.Rules...)),
		metrics:        NewMetrics(),
	}
}

// RuleNames returns the active rule table in evaluation order.
func (p *Pipeline) RuleNames() []string {
	return p.engine.Names()
}

// Stats returns the cumulative counters of this pipeline.
func (p *Pipeline) Stats() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// Run analyzes the pcap stream r.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*report.AnalysisReport, error) {
	start := time.Now()
	rd, err := file.NewReader(r, file.WithBufferSize(p.readBufferSize))
	if err != nil {
		p.finish(nil, nil, err, start)
		return nil, err
	}
	return p.analyze(ctx, rd, start)
}

// RunFile analyzes the capture file at path.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*report.AnalysisReport, error) {
	start := time.Now()
	fs, err := file.Open(path, file.WithBufferSize(p.readBufferSize))
	if err != nil {
		p.finish(nil, nil, err, start)
		return nil, err
	}
	defer fs.Close()

	rep, err := p.analyze(ctx, fs.Reader, start)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rep, nil
}

// Anomaly log lines allowed per layer per second of capture time.
const anomalyLogsPerSecond = 10

type pass struct {
	tracker   *flow.Tracker
	agg       *stats.Aggregator
	limiter   *anomalyLimiter
	frames    int
	malformed int
}

func (p *Pipeline) analyze(ctx context.Context, rd *file.Reader, start time.Time) (*report.AnalysisReport, error) {
	dec := decoder.NewStandardDecoder(decoder.Config{LinkType: rd.LinkType()})
	ps := &pass{
		tracker: flow.NewTracker(),
		agg:     stats.NewAggregator(),
		limiter: newAnomalyLimiter(anomalyLimiterConfig{MaxPerLayer: anomalyLogsPerSecond}),
	}

	for {
		frame, err := rd.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.finish(ps, nil, err, start)
			return nil, err
		}

		pkt := dec.Decode(frame)
		ps.frames++
		if pkt.Anomaly.IsSet() {
			ps.malformed++
			if l := log.GetLogger(); l.IsDebugEnabled() && ps.limiter.Allow(pkt.Anomaly.Layer, frame.Timestamp) {
				l.WithFields(log.Fields{
					"frame":   rd.Frames(),
					"layer":   pkt.Anomaly.Layer.String(),
					"caplen":  frame.CaptureLen,
					"origlen": frame.OrigLen,
				}).Debug("frame decode stopped early")
			}
		}

		ps.tracker.Observe(&pkt)
		ps.agg.Add(&pkt)
	}

	snap := ps.agg.Snapshot()
	snap.TCP = ps.tracker.Counters()

	issues := p.engine.Evaluate(snap)
	rep := report.Build(snap, issues)
	rep.Capture = report.CaptureInfo{
		LinkType:  rd.LinkType().String(),
		SnapLen:   rd.SnapLen(),
		Truncated: rd.Truncated(),
	}

	if n := ps.limiter.Suppressed(); n > 0 {
		log.GetLogger().WithField("suppressed", n).Debug("anomaly log lines suppressed")
	}

	p.finish(ps, rep, nil, start)
	return rep, nil
}

// finish records one pass in the pipeline counters, Prometheus and the log.
func (p *Pipeline) finish(ps *pass, rep *report.AnalysisReport, err error, start time.Time) {
	run := metrics.Run{
		Result:  resultOf(err),
		Elapsed: time.Since(start),
	}
	if ps != nil {
		run.Flows = ps.tracker.Flows()
		run.Conversations = ps.agg.Conversations()
		run.Frames = ps.frames
		run.Malformed = ps.malformed
		p.metrics.Frames.Add(uint64(ps.frames))
		p.metrics.Malformed.Add(uint64(ps.malformed))
	}

	if err != nil {
		p.metrics.Failures.Add(1)
		metrics.ObserveRun(run)
		log.GetLogger().WithError(err).WithField("result", run.Result).Warn("analysis failed")
		return
	}

	p.metrics.Runs.Add(1)
	for _, is := range rep.Issues {
		run.Issues = append(run.Issues, metrics.IssueLabel{Rule: is.Rule, Severity: string(is.Severity)})
	}
	metrics.ObserveRun(run)

	log.GetLogger().WithFields(log.Fields{
		"packets":       rep.PacketCount,
		"issues":        len(rep.Issues),
		"flows":         run.Flows,
		"tcp_segments":  ps.tracker.Segments(),
		"conversations": run.Conversations,
		"truncated":     rep.Capture.Truncated,
		"elapsed":       run.Elapsed.String(),
	}).Info("analysis finished")
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, core.ErrAnalysisCancelled):
		return metrics.ResultCancelled
	case errors.Is(err, core.ErrInvalidCapture), errors.Is(err, core.ErrUnsupportedFormat):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
