package decoder

import (
	"bytes"
	"encoding/binary"

	"firestige.xyz/pcaplens/internal/core"
)

const (
	dnsPort = 53

	tlsRecordHeaderLen  = 5
	tlsContentHandshake = 22
	tlsMaxRecordLen     = 16384 + 2048 // TLSCiphertext upper bound
)

var basicAuthMarker = []byte("Authorization: Basic")

// peekApplication inspects the first bytes of the payload without parsing
// the application protocol.
func peekApplication(th *core.TransportHeader, payload []byte) core.AppHints {
	var hints core.AppHints
	switch th.Protocol {
	case core.ProtoUDP:
		hints.DNS = th.SrcPort == dnsPort || th.DstPort == dnsPort
	case core.ProtoTCP:
		hints.BasicAuth = bytes.Contains(payload, basicAuthMarker)
		hints.TLS = peekTLSHandshake(payload)
	}
	return hints
}

// peekTLSHandshake returns the record-layer version when payload starts
// with a TLS handshake record header.
func peekTLSHandshake(payload []byte) *core.TLSVersion {
	if len(payload) < tlsRecordHeaderLen {
		return nil
	}
	if payload[0] != tlsContentHandshake || payload[1] != 3 {
		return nil
	}
	recordLen := binary.BigEndian.Uint16(payload[3:5])
	if recordLen == 0 || recordLen > tlsMaxRecordLen {
		return nil
	}
	return &core.TLSVersion{Major: payload[1], Minor: payload[2]}
}
