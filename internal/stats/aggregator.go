// Package stats accumulates protocol, conversation and heuristic tallies over one pass.
package stats

import (
	"maps"
	"net/netip"
	"time"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/flow"
)

// SuspiciousPorts are destination ports associated with insecure services or
// common backdoors.
var SuspiciousPorts = []uint16{21, 23, 4444, 6667, 1337, 31337}

// ConversationKey is an unordered address pair in canonical order.
type ConversationKey struct {
	A netip.Addr
	B netip.Addr
}

// NewConversationKey sorts the two addresses so that both directions map to one key.
func NewConversationKey(x, y netip.Addr) ConversationKey {
	if y.Compare(x) < 0 {
		x, y = y, x
	}
	return ConversationKey{A: x, B: y}
}

// Conversation is the running tally of one address pair.
type Conversation struct {
	Key      ConversationKey
	Src      netip.Addr // as first observed
	Dst      netip.Addr
	Protocol string
	Bytes    uint64
	Packets  uint64

	labels     map[string]uint64
	labelOrder []string
}

func (c *Conversation) add(label string, length int) {
	c.Packets++
	c.Bytes += uint64(length)
	if _, ok := c.labels[label]; !ok {
		c.labelOrder = append(c.labelOrder, label)
	}
	c.labels[label]++

	// ties keep the label seen first
	best := c.labelOrder[0]
	for _, l := range c.labelOrder[1:] {
		if c.labels[l] > c.labels[best] {
			best = l
		}
	}
	c.Protocol = best
}

// Talker counts packets sent by one source address.
type Talker struct {
	Addr    netip.Addr
	Packets uint64
	Bytes   uint64
}

// Snapshot is the read-only aggregate consumed by the rule engine and the report.
type Snapshot struct {
	Packets   int
	Malformed int
	First     time.Time
	Last      time.Time

	Protocols     map[string]int
	Conversations []Conversation // first-seen order
	Sources       []Talker       // first-seen order

	SuspiciousPorts core.Hit
	CleartextAuth   core.Hit
	DeprecatedTLS   core.Hit
	Fragments       core.Hit

	ARP        core.Hit
	Broadcast  core.Hit
	Multicast  core.Hit
	DNSQueries core.Hit
	LargeDNS   core.Hit
	DHCP       core.Hit

	TCP flow.Counters
}

// Duration returns last minus first, floored at zero.
func (s *Snapshot) Duration() time.Duration {
	if s.Packets < 2 {
		return 0
	}
	return max(s.Last.Sub(s.First), 0)
}

// Ratio returns h.Count over the packet count, or 0 for an empty pass.
func (s *Snapshot) Ratio(h core.Hit) float64 {
	if s.Packets == 0 {
		return 0
	}
	return float64(h.Count) / float64(s.Packets)
}

// Aggregator accumulates tallies for a single pass. It is not safe for
// concurrent use.
type Aggregator struct {
	snap Snapshot

	convs   map[ConversationKey]*Conversation
	order   []ConversationKey
	sources map[netip.Addr]*Talker
	srcSeq  []netip.Addr
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		snap:    Snapshot{Protocols: make(map[string]int)},
		convs:   make(map[ConversationKey]*Conversation),
		sources: make(map[netip.Addr]*Talker),
	}
}

// Add folds one decoded packet into the tallies.
func (a *Aggregator) Add(pkt *core.DecodedPacket) {
	s := &a.snap
	ts := pkt.Timestamp

	if s.Packets == 0 {
		s.First = ts
	}
	s.Last = ts
	s.Packets++

	a.label(pkt)

	if l := pkt.Link; l != nil {
		if l.IsBroadcast() {
			s.Broadcast.Record(ts)
		}
		if l.IsMulticast() {
			s.Multicast.Record(ts)
		}
	}
	if pkt.ARP {
		s.ARP.Record(ts)
	}

	ip := pkt.Network
	if ip == nil {
		return
	}
	a.source(ip.SrcIP, pkt.Length)
	if ip.Version == 4 && ip.Fragmented() {
		s.Fragments.Record(ts)
	}

	th := pkt.Transport
	if th == nil || !th.HasPorts() {
		return
	}
	a.conversation(ip, th, pkt.Length)

	for _, p := range SuspiciousPorts {
		if th.DstPort == p {
			s.SuspiciousPorts.Record(ts)
			break
		}
	}
	if pkt.App.BasicAuth {
		s.CleartextAuth.Record(ts)
	}
	if v := pkt.App.TLS; v != nil && v.Deprecated() {
		s.DeprecatedTLS.Record(ts)
	}

	if th.Protocol == core.ProtoUDP {
		switch th.DstPort {
		case 53:
			s.DNSQueries.Record(ts)
			if th.UDPLength > 100 {
				s.LargeDNS.Record(ts)
			}
		case 67, 68:
			s.DHCP.Record(ts)
		}
	}
}

func (a *Aggregator) label(pkt *core.DecodedPacket) {
	p := a.snap.Protocols
	if pkt.Network != nil {
		if l := core.NetworkLabel(pkt.Network.Version); l != "" {
			p[l]++
		}
	}
	if pkt.Transport != nil {
		if l := core.TransportLabel(pkt.Transport.Protocol); l != "" {
			p[l]++
		}
		if pkt.App.DNS {
			p[core.LabelDNS]++
		}
	}
	if pkt.Anomaly.IsSet() {
		p[core.LabelMalformed]++
		a.snap.Malformed++
	}
}

func (a *Aggregator) conversation(ip *core.IPHeader, th *core.TransportHeader, length int) {
	key := NewConversationKey(ip.SrcIP, ip.DstIP)
	c, ok := a.convs[key]
	if !ok {
		c = &Conversation{
			Key:    key,
			Src:    ip.SrcIP,
			Dst:    ip.DstIP,
			labels: make(map[string]uint64),
		}
		a.convs[key] = c
		a.order = append(a.order, key)
	}
	c.add(conversationLabel(th), length)
}

func (a *Aggregator) source(addr netip.Addr, length int) {
	t, ok := a.sources[addr]
	if !ok {
		t = &Talker{Addr: addr}
		a.sources[addr] = t
		a.srcSeq = append(a.srcSeq, addr)
	}
	t.Packets++
	t.Bytes += uint64(length)
}

// Packets returns the number of packets added so far.
func (a *Aggregator) Packets() int { return a.snap.Packets }

// Conversations returns the number of distinct address pairs.
func (a *Aggregator) Conversations() int { return len(a.order) }

// Snapshot returns a copy of the current tallies.
func (a *Aggregator) Snapshot() *Snapshot {
	snap := a.snap

	snap.Protocols = maps.Clone(a.snap.Protocols)

	snap.Conversations = make([]Conversation, 0, len(a.order))
	for _, k := range a.order {
		c := *a.convs[k]
		c.labels, c.labelOrder = nil, nil
		snap.Conversations = append(snap.Conversations, c)
	}

	snap.Sources = make([]Talker, 0, len(a.srcSeq))
	for _, addr := range a.srcSeq {
		snap.Sources = append(snap.Sources, *a.sources[addr])
	}
	return &snap
}
