// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers match them with errors.Is; producers wrap them with %w.
var (
	// Input-level errors, fatal for an analysis run
	ErrSourceOpen        = errors.New("pcaplens: cannot open capture source")
	ErrInvalidCapture    = errors.New("pcaplens: invalid capture header")
	ErrUnsupportedFormat = errors.New("pcaplens: unsupported capture format (pcapng)")
	ErrUnsupportedLink   = errors.New("pcaplens: unsupported link type")
	ErrCaptureRead       = errors.New("pcaplens: capture read failed")
	ErrAnalysisCancelled = errors.New("pcaplens: analysis cancelled")

	// Packet decoding errors, absorbed into DecodedPacket.Anomaly
	ErrPacketTooShort   = errors.New("pcaplens: packet too short")
	ErrUnsupportedProto = errors.New("pcaplens: unsupported protocol")

	// Output errors
	ErrUnknownFormat = errors.New("pcaplens: unknown report format")

	// Configuration errors
	ErrConfigInvalid = errors.New("pcaplens: invalid configuration")
)
