package rules

import (
	"fmt"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/stats"
)

// Rule names.
const (
	SuspiciousPorts      = "suspicious_ports"
	CleartextCredentials = "cleartext_credentials"
	TCPRetransmissions   = "tcp_retransmissions"
	TCPZeroWindow        = "tcp_zero_window"
	DeprecatedTLS        = "deprecated_tls"
	IPFragmentation      = "ip_fragmentation"

	DNSTunneling     = "dns_tunneling"
	TCPResetRate     = "tcp_reset_rate"
	BroadcastStorm   = "broadcast_storm"
	DHCPActivity     = "dhcp_activity"
	ARPTraffic       = "arp_traffic"
	MulticastTraffic = "multicast_traffic"
	DNSActivity      = "dns_activity"
)

// Thresholds.
const (
	RetransmissionWarn     = 10
	RetransmissionCritical = 100
	LargeDNSThreshold      = 5
	ResetThreshold         = 10
	DHCPThreshold          = 15

	// ratio rules only fire on captures larger than this
	RatioMinPackets = 500
)

func issue(name string, sev core.Severity, title string, h core.Hit, format string, args ...any) core.Issue {
	return core.Issue{
		Rule:        name,
		Severity:    sev,
		Title:       title,
		Description: fmt.Sprintf(format, args...),
		Timestamp:   h.FirstSeen(),
	}
}

// Default returns the fixed default table.
func Default() []Rule {
	return []Rule{
		{
			Name:     SuspiciousPorts,
			Severity: core.SeverityCritical,
			Match:    func(s *stats.Snapshot) bool { return s.SuspiciousPorts.Count > 0 },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.SuspiciousPorts
				return issue(SuspiciousPorts, core.SeverityCritical, "Suspicious Port Activity", h,
					"Detected %d packets to known malware or insecure ports (21, 23, 4444, 6667, 1337, 31337). Check for C2 or unauthorized access.", h.Count)
			},
		},
		{
			Name:     CleartextCredentials,
			Severity: core.SeverityCritical,
			Match:    func(s *stats.Snapshot) bool { return s.CleartextAuth.Count > 0 },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.CleartextAuth
				return issue(CleartextCredentials, core.SeverityCritical, "Cleartext Credentials Leaked", h,
					"Found %d packets carrying 'Authorization: Basic'. Credentials are sent in plain text.", h.Count)
			},
		},
		{
			Name:     TCPRetransmissions,
			Severity: core.SeverityWarn,
			Match:    func(s *stats.Snapshot) bool { return s.TCP.Retransmissions.Count > RetransmissionWarn },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.TCP.Retransmissions
				sev := core.SeverityWarn
				if h.Count > RetransmissionCritical {
					sev = core.SeverityCritical
				}
				return issue(TCPRetransmissions, sev, "TCP Retransmissions", h,
					"Congestion detected: %d retransmissions. Expect application lag or stalls.", h.Count)
			},
		},
		{
			Name:     TCPZeroWindow,
			Severity: core.SeverityCritical,
			Match:    func(s *stats.Snapshot) bool { return s.TCP.ZeroWindow.Count > 0 },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.TCP.ZeroWindow
				return issue(TCPZeroWindow, core.SeverityCritical, "TCP Zero Window", h,
					"Found %d zero-window segments. A receiver cannot keep up with incoming data.", h.Count)
			},
		},
		{
			Name:     DeprecatedTLS,
			Severity: core.SeverityWarn,
			Match:    func(s *stats.Snapshot) bool { return s.DeprecatedTLS.Count > 0 },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.DeprecatedTLS
				return issue(DeprecatedTLS, core.SeverityWarn, "Deprecated TLS Usage", h,
					"Found %d handshake records using SSL 3.0 or TLS 1.0 (POODLE/BEAST).", h.Count)
			},
		},
		{
			Name:     IPFragmentation,
			Severity: core.SeverityWarn,
			Match:    func(s *stats.Snapshot) bool { return s.Fragments.Count > 0 },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.Fragments
				return issue(IPFragmentation, core.SeverityWarn, "IP Fragmentation Detected", h,
					"Found %d fragmented packets. Fragmentation causes audio dropouts and jitter.", h.Count)
			},
		},
	}
}

// Extended returns the size and ratio heuristics.
func Extended() []Rule {
	return []Rule{
		{
			Name:     DNSTunneling,
			Severity: core.SeverityCritical,
			Match:    func(s *stats.Snapshot) bool { return s.LargeDNS.Count > LargeDNSThreshold },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.LargeDNS
				return issue(DNSTunneling, core.SeverityCritical, "Potential DNS Tunneling", h,
					"Found %d unusually large DNS queries, a common sign of exfiltration or tunneling.", h.Count)
			},
		},
		{
			Name:     TCPResetRate,
			Severity: core.SeverityWarn,
			Match:    func(s *stats.Snapshot) bool { return s.TCP.Resets.Count > ResetThreshold },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.TCP.Resets
				return issue(TCPResetRate, core.SeverityWarn, "High TCP Reset Rate", h,
					"Found %d TCP resets. Firewalls may be blocking traffic or services are crashing.", h.Count)
			},
		},
		{
			Name:     BroadcastStorm,
			Severity: core.SeverityCritical,
			Match:    ratioAbove(func(s *stats.Snapshot) core.Hit { return s.Broadcast }, 10),
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.Broadcast
				return issue(BroadcastStorm, core.SeverityCritical, "Broadcast Storm", h,
					"Broadcast traffic is %.1f%% of %d packets.", s.Ratio(h)*100, s.Packets)
			},
		},
		{
			Name:     DHCPActivity,
			Severity: core.SeverityInfo,
			Match:    func(s *stats.Snapshot) bool { return s.DHCP.Count > DHCPThreshold },
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.DHCP
				return issue(DHCPActivity, core.SeverityInfo, "High DHCP Activity", h,
					"Found %d DHCP packets. Check for rogue DHCP servers or boot loops.", h.Count)
			},
		},
		{
			Name:     ARPTraffic,
			Severity: core.SeverityWarn,
			Match:    ratioAbove(func(s *stats.Snapshot) core.Hit { return s.ARP }, 5),
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.ARP
				return issue(ARPTraffic, core.SeverityWarn, "Excessive ARP Traffic", h,
					"Found %d ARP packets. Could indicate a scanner or a misconfigured subnet mask.", h.Count)
			},
		},
		{
			Name:     MulticastTraffic,
			Severity: core.SeverityInfo,
			Match:    ratioAbove(func(s *stats.Snapshot) core.Hit { return s.Multicast }, 5),
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.Multicast
				return issue(MulticastTraffic, core.SeverityInfo, "High Multicast Traffic", h,
					"Found %d multicast packets. Ensure IGMP snooping is enabled.", h.Count)
			},
		},
		{
			Name:     DNSActivity,
			Severity: core.SeverityInfo,
			Match:    ratioAbove(func(s *stats.Snapshot) core.Hit { return s.DNSQueries }, 10),
			Issue: func(s *stats.Snapshot) core.Issue {
				h := s.DNSQueries
				return issue(DNSActivity, core.SeverityInfo, "High DNS Activity", h,
					"Found %d DNS queries. Possible malware beaconing or misconfiguration.", h.Count)
			},
		},
	}
}

// ratioAbove matches when the counter exceeds packets/divisor on a capture of
// more than RatioMinPackets packets.
func ratioAbove(counter func(*stats.Snapshot) core.Hit, divisor int) func(*stats.Snapshot) bool {
	return func(s *stats.Snapshot) bool {
		return s.Packets > RatioMinPackets && counter(s).Count > s.Packets/divisor
	}
}
