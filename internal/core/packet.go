package core

import "time"

// Frame is one record read from a capture; Data is only valid until the next read.
type Frame struct {
	Data       []byte
	Timestamp  time.Time
	CaptureLen uint32 // Actual captured length
	OrigLen    uint32 // Original frame length on the wire
}

// Length returns the frame's total length, preferring the wire length.
func (f Frame) Length() int {
	if f.OrigLen > 0 {
		return int(f.OrigLen)
	}
	return len(f.Data)
}

// Layer identifies the protocol layer where decoding stopped.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerLink
	LayerNetwork
	LayerTransport
)

func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "link"
	case LayerNetwork:
		return "network"
	case LayerTransport:
		return "transport"
	default:
		return "none"
	}
}

// AnomalyKind classifies a decode anomaly.
type AnomalyKind uint8

const (
	AnomalyNone AnomalyKind = iota
	AnomalyTruncated
	AnomalyUnsupported
)

// Anomaly records why and where layered decoding short-circuited.
type Anomaly struct {
	Kind  AnomalyKind
	Layer Layer
}

// IsSet reports whether decoding stopped early.
func (a Anomaly) IsSet() bool { return a.Kind != AnomalyNone }

// TLSVersion is the version advertised by a TLS record header.
type TLSVersion struct {
	Major uint8
	Minor uint8
}

// Deprecated reports SSL 3.0 and TLS 1.0.
func (v TLSVersion) Deprecated() bool {
	return v.Major == 3 && (v.Minor == 0 || v.Minor == 1)
}

// AppHints hold the results of the shallow application-layer peek.
type AppHints struct {
	DNS       bool
	BasicAuth bool
	TLS       *TLSVersion // nil when the payload is not a TLS handshake record
}

// DecodedPacket is the result of L2-L4 protocol stack decoding.
// A nil layer pointer means that layer is absent.
type DecodedPacket struct {
	Timestamp time.Time
	Length    int // total frame length

	Link      *EthernetHeader
	Network   *IPHeader
	Transport *TransportHeader
	Payload   []byte // application payload, aliases the frame buffer
	App       AppHints

	ARP     bool
	Anomaly Anomaly
}

// Unparsed reports the empty decode: no layer could be read at all.
func (p *DecodedPacket) Unparsed() bool {
	return p.Link == nil && p.Network == nil && p.Transport == nil
}

// IsTCP reports whether a TCP header was decoded.
func (p *DecodedPacket) IsTCP() bool {
	return p.Transport != nil && p.Transport.Protocol == ProtoTCP
}

// IsUDP reports whether a UDP header was decoded.
func (p *DecodedPacket) IsUDP() bool {
	return p.Transport != nil && p.Transport.Protocol == ProtoUDP
}
