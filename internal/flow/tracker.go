// Package flow tracks per-direction TCP state for retransmission and RTT detection.
package flow

import (
	"fmt"
	"net/netip"
	"time"

	"firestige.xyz/pcaplens/internal/core"
)

// MaxRTT is the upper bound of a handshake sample; larger gaps are not
// representative of an in-capture handshake.
const MaxRTT = 10 * time.Second

// Key identifies one direction of a flow.
type Key struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// KeyOf returns the forward key of a packet. ok is false when the packet has
// no network or port-carrying transport layer.
func KeyOf(pkt *core.DecodedPacket) (Key, bool) {
	if pkt == nil || pkt.Network == nil || pkt.Transport == nil || !pkt.Transport.HasPorts() {
		return Key{}, false
	}
	return Key{
		SrcIP:   pkt.Network.SrcIP,
		DstIP:   pkt.Network.DstIP,
		SrcPort: pkt.Transport.SrcPort,
		DstPort: pkt.Transport.DstPort,
		Proto:   pkt.Transport.Protocol,
	}, true
}

// Reverse returns the key of the opposite direction.
func (k Key) Reverse() Key {
	return Key{
		SrcIP:   k.DstIP,
		DstIP:   k.SrcIP,
		SrcPort: k.DstPort,
		DstPort: k.SrcPort,
		Proto:   k.Proto,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s -> %s/%d",
		netip.AddrPortFrom(k.SrcIP, k.SrcPort), netip.AddrPortFrom(k.DstIP, k.DstPort), k.Proto)
}

// State is the rolling state of one flow direction.
type State struct {
	LastSeq    uint32
	HasSeq     bool
	SYNSeen    bool
	SYNTime    time.Time
	RTTSamples []time.Duration
}

// Counters are the global TCP counters of one pass.
type Counters struct {
	Retransmissions core.Hit
	Resets          core.Hit
	ZeroWindow      core.Hit

	// RTTSamples holds every accepted sample in flow creation order.
	RTTSamples []time.Duration
}

// Tracker owns the flow table of a single analysis pass. It is not safe for
// concurrent use.
type Tracker struct {
	flows map[Key]*State
	order []Key

	retrans  core.Hit
	resets   core.Hit
	zeroWin  core.Hit
	segments uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{flows: make(map[Key]*State)}
}

// Observe feeds one decoded packet. Anything but TCP is ignored; otherwise
// only the forward key's state is mutated, plus the SYN-seen state of the
// reverse key when a SYN+ACK completes a sample.
func (t *Tracker) Observe(pkt *core.DecodedPacket) {
	if pkt == nil || !pkt.IsTCP() {
		return
	}
	key, ok := KeyOf(pkt)
	if !ok {
		return
	}
	th := pkt.Transport
	ts := pkt.Timestamp
	st := t.state(key)
	t.segments++

	syn, rst := th.SYN(), th.RST()

	if !syn && !rst {
		if st.HasSeq && st.LastSeq == th.SeqNum {
			t.retrans.Record(ts)
		}
		if th.Window == 0 {
			t.zeroWin.Record(ts)
		}
	}
	st.LastSeq = th.SeqNum
	st.HasSeq = true

	if rst {
		t.resets.Record(ts)
	}

	switch {
	case syn && !th.ACK():
		st.SYNSeen = true
		st.SYNTime = ts
	case syn:
		rev, ok := t.flows[key.Reverse()]
		if !ok || !rev.SYNSeen {
			return
		}
		rtt := ts.Sub(rev.SYNTime)
		if rtt <= 0 || rtt > MaxRTT {
			return
		}
		rev.RTTSamples = append(rev.RTTSamples, rtt)
		rev.SYNSeen = false
	}
}

func (t *Tracker) state(key Key) *State {
	if st, ok := t.flows[key]; ok {
		return st
	}
	st := &State{}
	t.flows[key] = st
	t.order = append(t.order, key)
	return st
}

// State returns a copy of the state for key.
func (t *Tracker) State(key Key) (State, bool) {
	st, ok := t.flows[key]
	if !ok {
		return State{}, false
	}
	cp := *st
	cp.RTTSamples = append([]time.Duration(nil), st.RTTSamples...)
	return cp, true
}

// Flows returns the number of flow directions seen.
func (t *Tracker) Flows() int { return len(t.order) }

// Segments returns the number of TCP segments observed.
func (t *Tracker) Segments() uint64 { return t.segments }

// Counters returns the global counters and all RTT samples.
func (t *Tracker) Counters() Counters {
	c := Counters{
		Retransmissions: t.retrans,
		Resets:          t.resets,
		ZeroWindow:      t.zeroWin,
	}
	for _, k := range t.order {
		c.RTTSamples = append(c.RTTSamples, t.flows[k].RTTSamples...)
	}
	return c
}

// Average returns the mean of samples; ok is false when samples is empty.
func Average(samples []time.Duration) (time.Duration, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return sum / time.Duration(len(samples)), true
}
