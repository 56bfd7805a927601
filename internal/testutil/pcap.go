// Package testutil builds legacy pcap captures in memory for tests.
package testutil

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// SnapLen used for generated captures.
const SnapLen = 65535

var (
	ClientMAC    = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	ServerMAC    = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
	BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	MulticastMAC = net.HardwareAddr{0x01, 0x00, 0x5e, 0x00, 0x00, 0xfb}
)

// Base is the timestamp of the first generated frame.
var Base = time.Unix(1700000000, 0).UTC()

// Capture accumulates frames into an in-memory pcap file.
type Capture struct {
	t   testing.TB
	buf bytes.Buffer
	w   *pcapgo.Writer
	n   int
}

// NewCapture starts an Ethernet capture.
func NewCapture(t testing.TB) *Capture {
	return NewCaptureLink(t, layers.LinkTypeEthernet)
}

// NewCaptureLink starts a capture with the given link type.
func NewCaptureLink(t testing.TB, lt layers.LinkType) *Capture {
	t.Helper()
	c := &Capture{t: t}
	c.w = pcapgo.NewWriter(&c.buf)
	if err := c.w.WriteFileHeader(SnapLen, lt); err != nil {
		t.Fatalf("write pcap header: %v", err)
	}
	return c
}

// Add appends one frame captured at ts.
func (c *Capture) Add(ts time.Time, data []byte) *Capture {
	c.t.Helper()
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := c.w.WritePacket(ci, data); err != nil {
		c.t.Fatalf("write packet: %v", err)
	}
	c.n++
	return c
}

// AddAt appends a frame at Base plus offset.
func (c *Capture) AddAt(offset time.Duration, data []byte) *Capture {
	c.t.Helper()
	return c.Add(Base.Add(offset), data)
}

// Frames returns the number of frames written so far.
func (c *Capture) Frames() int { return c.n }

// Bytes returns the pcap file contents.
func (c *Capture) Bytes() []byte { return c.buf.Bytes() }

// Reader returns a fresh reader over the pcap file contents.
func (c *Capture) Reader() io.Reader { return bytes.NewReader(c.buf.Bytes()) }

// TCPSpec describes one TCP segment over IPv4.
type TCPSpec struct {
	Src, Dst         string
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	SYN, ACK         bool
	RST, PSH, FIN    bool
	Window           uint16 // zero means 65535 unless ZeroWindow is set
	ZeroWindow       bool
	Payload          []byte
}

// TCP serializes an Ethernet/IPv4/TCP frame.
func TCP(t testing.TB, s TCPSpec) []byte {
	t.Helper()
	ip := ipv4(s.Src, s.Dst, layers.IPProtocolTCP)
	window := s.Window
	if window == 0 && !s.ZeroWindow {
		window = 65535
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(s.SrcPort),
		DstPort: layers.TCPPort(s.DstPort),
		Seq:     s.Seq,
		Ack:     s.Ack,
		SYN:     s.SYN,
		ACK:     s.ACK,
		RST:     s.RST,
		PSH:     s.PSH,
		FIN:     s.FIN,
		Window:  window,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("tcp checksum layer: %v", err)
	}
	return Serialize(t, ether(ClientMAC, ServerMAC, layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(s.Payload))
}

// UDPSpec describes one UDP datagram over IPv4.
type UDPSpec struct {
	Src, Dst         string
	SrcPort, DstPort uint16
	DstMAC           net.HardwareAddr // nil means ServerMAC
	Payload          []byte
}

// UDP serializes an Ethernet/IPv4/UDP frame.
func UDP(t testing.TB, s UDPSpec) []byte {
	t.Helper()
	ip := ipv4(s.Src, s.Dst, layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(s.SrcPort),
		DstPort: layers.UDPPort(s.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp checksum layer: %v", err)
	}
	dst := s.DstMAC
	if dst == nil {
		dst = ServerMAC
	}
	return Serialize(t, ether(ClientMAC, dst, layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(s.Payload))
}

// UDP6 serializes an Ethernet/IPv6/UDP frame.
func UDP6(t testing.TB, s UDPSpec) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      net.ParseIP(s.Src),
		DstIP:      net.ParseIP(s.Dst),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(s.SrcPort),
		DstPort: layers.UDPPort(s.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("udp checksum layer: %v", err)
	}
	return Serialize(t, ether(ClientMAC, ServerMAC, layers.EthernetTypeIPv6), ip, udp, gopacket.Payload(s.Payload))
}

// ICMPEcho serializes an Ethernet/IPv4/ICMP echo request.
func ICMPEcho(t testing.TB, src, dst string) []byte {
	t.Helper()
	ip := ipv4(src, dst, layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       1,
		Seq:      1,
	}
	return Serialize(t, ether(ClientMAC, ServerMAC, layers.EthernetTypeIPv4), ip, icmp, gopacket.Payload([]byte("ping")))
}

// Fragment serializes an IPv4 fragment carrying raw bytes.
func Fragment(t testing.TB, src, dst string, more bool, offset uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	ip.FragOffset = offset
	if more {
		ip.Flags = layers.IPv4MoreFragments
	}
	return Serialize(t, ether(ClientMAC, ServerMAC, layers.EthernetTypeIPv4), ip, gopacket.Payload(payload))
}

// ARP serializes a broadcast ARP request.
func ARP(t testing.TB, src, target string) []byte {
	t.Helper()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   ClientMAC,
		SourceProtAddress: net.ParseIP(src).To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.ParseIP(target).To4(),
	}
	return Serialize(t, ether(ClientMAC, BroadcastMAC, layers.EthernetTypeARP), arp)
}

// Serialize runs gopacket.SerializeLayers with lengths and checksums fixed.
func Serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize packet: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func ether(src, dst net.HardwareAddr, et layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: et}
}

func ipv4(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}
