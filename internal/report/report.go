// Package report assembles and renders the result of one analysis pass.
package report

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/flow"
	"firestige.xyz/pcaplens/internal/stats"
)

// TopN bounds the conversation and source lists.
const TopN = 5

// AnalysisReport is the terminal aggregate of a pass.
type AnalysisReport struct {
	PacketCount          int                 `json:"packet_count" yaml:"packet_count"`
	DurationSec          float64             `json:"duration_sec" yaml:"duration_sec"`
	Issues               []core.Issue        `json:"issues" yaml:"issues"`
	TopConversations     []ConversationStats `json:"top_conversations" yaml:"top_conversations"`
	TopSources           []SourceStats       `json:"top_sources" yaml:"top_sources"`
	ProtocolDistribution map[string]int      `json:"protocol_distribution" yaml:"protocol_distribution"`
	TCP                  TCPStats            `json:"tcp_stats" yaml:"tcp_stats"`
	Capture              CaptureInfo         `json:"capture" yaml:"capture"`
}

// ConversationStats is one address pair of the top list.
type ConversationStats struct {
	Src      string `json:"src" yaml:"src"`
	Dst      string `json:"dst" yaml:"dst"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Bytes    uint64 `json:"bytes" yaml:"bytes"`
	Packets  uint64 `json:"packets" yaml:"packets"`
}

// SourceStats is one source address of the top talkers list.
type SourceStats struct {
	Address string `json:"address" yaml:"address"`
	Packets uint64 `json:"packets" yaml:"packets"`
	Bytes   uint64 `json:"bytes" yaml:"bytes"`
}

// TCPStats summarises the flow tracker counters.
type TCPStats struct {
	Retransmissions int      `json:"retransmissions" yaml:"retransmissions"`
	Resets          int      `json:"resets" yaml:"resets"`
	ZeroWindow      int      `json:"zero_window" yaml:"zero_window"`
	AvgRTTMs        *float64 `json:"avg_rtt_ms,omitempty" yaml:"avg_rtt_ms,omitempty"`
}

// CaptureInfo describes the input stream.
type CaptureInfo struct {
	LinkType  string `json:"link_type" yaml:"link_type"`
	SnapLen   uint32 `json:"snap_len" yaml:"snap_len"`
	Truncated bool   `json:"truncated" yaml:"truncated"`
}

// Build assembles the report from a finished snapshot and the rule output.
func Build(snap *stats.Snapshot, issues []core.Issue) *AnalysisReport {
	if snap == nil {
		snap = &stats.Snapshot{}
	}
	if issues == nil {
		issues = make([]core.Issue, 0)
	}

	rep := &AnalysisReport{
		PacketCount:          snap.Packets,
		DurationSec:          snap.Duration().Seconds(),
		Issues:               issues,
		TopConversations:     topConversations(snap.Conversations),
		TopSources:           topSources(snap.Sources),
		ProtocolDistribution: make(map[string]int, len(snap.Protocols)),
		TCP: TCPStats{
			Retransmissions: snap.TCP.Retransmissions.Count,
			Resets:          snap.TCP.Resets.Count,
			ZeroWindow:      snap.TCP.ZeroWindow.Count,
		},
	}
	maps.Copy(rep.ProtocolDistribution, snap.Protocols)
	if avg, ok := flow.Average(snap.TCP.RTTSamples); ok {
		ms := float64(avg) / float64(time.Millisecond)
		rep.TCP.AvgRTTMs = &ms
	}
	return rep
}

// topConversations keeps first-seen order among equal byte counts.
func topConversations(convs []stats.Conversation) []ConversationStats {
	sorted := slices.Clone(convs)
	slices.SortStableFunc(sorted, func(a, b stats.Conversation) int {
		return cmp.Compare(b.Bytes, a.Bytes)
	})

	out := make([]ConversationStats, 0, min(len(sorted), TopN))
	for _, c := range sorted[:min(len(sorted), TopN)] {
		out = append(out, ConversationStats{
			Src:      c.Src.String(),
			Dst:      c.Dst.String(),
			Protocol: c.Protocol,
			Bytes:    c.Bytes,
			Packets:  c.Packets,
		})
	}
	return out
}

func topSources(srcs []stats.Talker) []SourceStats {
	sorted := slices.Clone(srcs)
	slices.SortStableFunc(sorted, func(a, b stats.Talker) int {
		return cmp.Compare(b.Packets, a.Packets)
	})

	out := make([]SourceStats, 0, min(len(sorted), TopN))
	for _, s := range sorted[:min(len(sorted), TopN)] {
		out = append(out, SourceStats{
			Address: s.Addr.String(),
			Packets: s.Packets,
			Bytes:   s.Bytes,
		})
	}
	return out
}
