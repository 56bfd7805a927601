// Package decoder implements L2-L4 protocol stack decoding.
//
// Decoding is strictly layered. Each layer either yields a header or stops, and a
// stop is recorded on the packet as an Anomaly instead of being returned as an error.
package decoder

import (
	"errors"

	"github.com/google/gopacket/layers"

	"firestige.xyz/pcaplens/internal/core"
)

// Decoder decodes raw frames into structured format.
type Decoder interface {
	Decode(frame core.Frame) core.DecodedPacket
}

// Config selects the link layer the frames start at.
type Config struct {
	LinkType layers.LinkType // zero means Ethernet
}

// SupportsLinkType reports whether frames of the given link type can be decoded.
func SupportsLinkType(lt layers.LinkType) bool {
	switch lt {
	case layers.LinkTypeEthernet, layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		return true
	default:
		return false
	}
}

// StandardDecoder decodes Ethernet or raw IP frames.
type StandardDecoder struct {
	linkType layers.LinkType
}

// NewStandardDecoder creates a decoder for cfg.LinkType.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	lt := cfg.LinkType
	if lt == layers.LinkTypeNull {
		lt = layers.LinkTypeEthernet
	}
	return &StandardDecoder{linkType: lt}
}

// Decode decodes one frame. It never fails; decode problems are reported in Anomaly.
func (d *StandardDecoder) Decode(frame core.Frame) core.DecodedPacket {
	pkt := core.DecodedPacket{
		Timestamp: frame.Timestamp,
		Length:    frame.Length(),
	}

	data := frame.Data
	if d.linkType == layers.LinkTypeEthernet {
		eth, payload, err := decodeEthernet(data)
		if err != nil {
			pkt.Anomaly = anomalyOf(err, core.LayerLink)
			return pkt
		}
		pkt.Link = &eth

		switch eth.EtherType {
		case core.EtherTypeIPv4, core.EtherTypeIPv6:
			data = payload
		case core.EtherTypeARP:
			pkt.ARP = true
			pkt.Anomaly = core.Anomaly{Kind: core.AnomalyUnsupported, Layer: core.LayerNetwork}
			return pkt
		default:
			pkt.Anomaly = core.Anomaly{Kind: core.AnomalyUnsupported, Layer: core.LayerNetwork}
			return pkt
		}
	}

	ip, payload, err := decodeIP(data)
	if err != nil {
		pkt.Anomaly = anomalyOf(err, core.LayerNetwork)
		return pkt
	}
	pkt.Network = &ip

	// Non-first fragments carry no transport header.
	if ip.FragmentOffset != 0 {
		pkt.Payload = payload
		return pkt
	}

	th, appPayload, err := decodeTransport(payload, ip.Protocol)
	if err != nil {
		pkt.Anomaly = anomalyOf(err, core.LayerTransport)
		pkt.Payload = payload
		return pkt
	}
	pkt.Transport = &th
	pkt.Payload = appPayload
	pkt.App = peekApplication(&th, appPayload)

	return pkt
}

func anomalyOf(err error, layer core.Layer) core.Anomaly {
	kind := core.AnomalyTruncated
	if errors.Is(err, core.ErrUnsupportedProto) {
		kind = core.AnomalyUnsupported
	}
	return core.Anomaly{Kind: kind, Layer: layer}
}
