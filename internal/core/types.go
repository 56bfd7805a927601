// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// IP protocol numbers used across the decoder and the analyzers.
const (
	ProtoICMP   uint8 = 1
	ProtoTCP    uint8 = 6
	ProtoUDP    uint8 = 17
	ProtoICMPv6 uint8 = 58
)

// TCP flag bits as they appear in byte 13 of the TCP header.
const (
	TCPFlagFIN uint8 = 0x01
	TCPFlagSYN uint8 = 0x02
	TCPFlagRST uint8 = 0x04
	TCPFlagPSH uint8 = 0x08
	TCPFlagACK uint8 = 0x10
	TCPFlagURG uint8 = 0x20
)

// EtherType values recognised by the decoder.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86DD
)

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // innermost EtherType after VLAN tags
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ scenarios have 2)
}

// IsBroadcast reports whether the destination is ff:ff:ff:ff:ff:ff.
func (e *EthernetHeader) IsBroadcast() bool {
	return e.DstMAC == [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// IsMulticast reports whether the destination has the group bit set and is not broadcast.
func (e *EthernetHeader) IsMulticast() bool {
	return e.DstMAC[0]&0x01 != 0 && !e.IsBroadcast()
}

// IPHeader represents L3 IP header (IPv4/IPv6).
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // upper-layer protocol after IPv6 extension headers
	TTL      uint8
	TotalLen uint16

	// IPv4 fragmentation
	MoreFragments  bool
	FragmentOffset uint16 // in 8-byte units
}

// Fragmented reports whether the IPv4 datagram is a fragment.
func (h *IPHeader) Fragmented() bool {
	return h.MoreFragments || h.FragmentOffset != 0
}

// TransportHeader represents L4 transport layer header (TCP/UDP/ICMP).
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	// TCP-specific fields (only populated for TCP)
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32
	Window   uint16

	// UDP length field, header included
	UDPLength uint16

	// ICMP / ICMPv6
	ICMPType uint8
	ICMPCode uint8
}

// HasPorts reports whether the header carries port numbers.
func (t *TransportHeader) HasPorts() bool {
	return t.Protocol == ProtoTCP || t.Protocol == ProtoUDP
}

// HasFlag reports whether all bits of flag are set.
func (t *TransportHeader) HasFlag(flag uint8) bool {
	return t.TCPFlags&flag == flag
}

// SYN reports a SYN segment.
func (t *TransportHeader) SYN() bool { return t.HasFlag(TCPFlagSYN) }

// ACK reports an ACK segment.
func (t *TransportHeader) ACK() bool { return t.HasFlag(TCPFlagACK) }

// RST reports a RST segment.
func (t *TransportHeader) RST() bool { return t.HasFlag(TCPFlagRST) }
