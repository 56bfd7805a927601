// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/pcaplens/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
	icmpHeaderLen   = 4
)

// decodeTransport decodes transport layer header (TCP/UDP/ICMP/ICMPv6).
// Returns TransportHeader and remaining payload.
func decodeTransport(data []byte, protocol uint8) (core.TransportHeader, []byte, error) {
	switch protocol {
	case core.ProtoTCP:
		return decodeTCP(data)
	case core.ProtoUDP:
		return decodeUDP(data)
	case core.ProtoICMP, core.ProtoICMPv6:
		return decodeICMP(data, protocol)
	default:
		return core.TransportHeader{}, nil, core.ErrUnsupportedProto
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol:  core.ProtoUDP,
		SrcPort:   binary.BigEndian.Uint16(data[0:2]),
		DstPort:   binary.BigEndian.Uint16(data[2:4]),
		UDPLength: binary.BigEndian.Uint16(data[4:6]), // header and data
	}

	return transport, data[udpHeaderLen:], nil
}

// decodeTCP decodes TCP header.
func decodeTCP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	// Data offset is in 32-bit words, upper 4 bits of byte 12
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: core.ProtoTCP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		SeqNum:   binary.BigEndian.Uint32(data[4:8]),
		AckNum:   binary.BigEndian.Uint32(data[8:12]),
		// Flags: URG, ACK, PSH, RST, SYN, FIN in the lower 6 bits of byte 13
		TCPFlags: data[13] & 0x3F,
		Window:   binary.BigEndian.Uint16(data[14:16]),
	}

	return transport, data[headerLen:], nil
}

// decodeICMP decodes the type/code/checksum prefix shared by ICMP and ICMPv6.
func decodeICMP(data []byte, protocol uint8) (core.TransportHeader, []byte, error) {
	if len(data) < icmpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{
		Protocol: protocol,
		ICMPType: data[0],
		ICMPCode: data[1],
	}

	return transport, data[icmpHeaderLen:], nil
}
