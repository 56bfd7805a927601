// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"golang.org/x/net/ipv6"

	"firestige.xyz/pcaplens/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = ipv6.HeaderLen

	// IPv6 extension headers walked to reach the upper-layer protocol
	ipv6HopByHop    = 0
	ipv6Routing     = 43
	ipv6DestOptions = 60
)

// decodeIP decodes IP header (IPv4 or IPv6).
// Returns IPHeader and remaining payload.
func decodeIP(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < 1 {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	case 6:
		return decodeIPv6(data)
	default:
		return core.IPHeader{}, nil, core.ErrUnsupportedProto
	}
}

// decodeIPv4 decodes IPv4 header.
func decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version:  4,
		TotalLen: binary.BigEndian.Uint16(data[2:4]),
		TTL:      data[8],
		Protocol: data[9],
	}

	flagsOffset := binary.BigEndian.Uint16(data[6:8])
	ip.MoreFragments = flagsOffset&0x2000 != 0
	ip.FragmentOffset = flagsOffset & 0x1FFF

	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	// Drop link-layer padding when the datagram is shorter than the frame.
	end := len(data)
	if total := int(ip.TotalLen); total >= headerLen && total < end {
		end = total
	}

	return ip, data[headerLen:end], nil
}

// decodeIPv6 decodes the IPv6 fixed header and skips hop-by-hop, routing and
// destination options headers. Protocol is left at the first header that is not
// walked, so a fragment header surfaces as protocol 44.
func decodeIPv6(data []byte) (core.IPHeader, []byte, error) {
	h, err := ipv6.ParseHeader(data)
	if err != nil {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{
		Version:  6,
		TotalLen: uint16(ipv6HeaderLen + h.PayloadLen),
		TTL:      uint8(h.HopLimit),
	}

	src, _ := netip.AddrFromSlice(h.Src)
	dst, _ := netip.AddrFromSlice(h.Dst)
	ip.SrcIP, ip.DstIP = src, dst

	end := len(data)
	if total := ipv6HeaderLen + h.PayloadLen; h.PayloadLen > 0 && total < end {
		end = total
	}
	data = data[:end]

	next := uint8(h.NextHeader)
	offset := ipv6HeaderLen
	for next == ipv6HopByHop || next == ipv6Routing || next == ipv6DestOptions {
		if len(data) < offset+2 {
			break
		}
		extLen := (int(data[offset+1]) + 1) * 8
		if len(data) < offset+extLen {
			break
		}
		next = data[offset]
		offset += extLen
	}
	ip.Protocol = next

	return ip, data[offset:], nil
}
