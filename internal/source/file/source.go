// Package file reads frames from legacy pcap capture streams.
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/core/decoder"
	"firestige.xyz/pcaplens/internal/log"
)

const (
	Name = "file"

	// DefaultBufferSize is the read-ahead buffer in front of the source stream.
	DefaultBufferSize = 64 * 1024
	minBufferSize     = 4 * 1024

	// minSnapLen is the record length accepted even when the global header
	// advertises a smaller snaplen, as tcpdump and wireshark do.
	minSnapLen = 262144
)

// pcapngMagic is the Section Header Block type that opens every pcapng file.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

type options struct {
	bufferSize int
}

// Option configures a Reader.
type Option func(*options)

// WithBufferSize sets the read-ahead buffer size. Values below 4 KiB are raised to 4 KiB.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = max(n, minBufferSize)
		}
	}
}

// Reader yields frames from a legacy pcap stream in file order.
type Reader struct {
	r         *pcapgo.Reader
	linkType  layers.LinkType
	snapLen   uint32
	frames    uint64
	truncated bool
	done      bool
}

// NewReader parses the pcap global header from src. Header problems fail here,
// never mid-stream.
func NewReader(src io.Reader, opts ...Option) (*Reader, error) {
	o := options{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	// Short reads from pipes and sockets are absorbed by the buffer refill.
	br := bufio.NewReaderSize(src, o.bufferSize)

	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: reading magic: %w", core.ErrInvalidCapture, err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		return nil, core.ErrUnsupportedFormat
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidCapture, err)
	}
	// pcapgo rejects records longer than the header snaplen; some writers store 0.
	snapLen := pr.Snaplen()
	if snapLen < minSnapLen {
		pr.SetSnaplen(minSnapLen)
	}

	lt := pr.LinkType()
	if !decoder.SupportsLinkType(lt) {
		return nil, fmt.Errorf("%w: %w: %s", core.ErrInvalidCapture, core.ErrUnsupportedLink, lt)
	}

	return &Reader{
		r:        pr,
		linkType: lt,
		snapLen:  snapLen,
	}, nil
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
// A record cut off at the end of the stream ends the sequence like EOF;
// Truncated reports whether that happened.
func (r *Reader) Next(ctx context.Context) (core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return core.Frame{}, fmt.Errorf("%w: %w", core.ErrAnalysisCancelled, err)
	}
	if r.done {
		return core.Frame{}, io.EOF
	}

	data, ci, err := r.r.ReadPacketData()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.done = true
		return core.Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
		r.truncated = true
		log.GetLogger().WithField("frames", r.frames).Warn("capture ends inside a record, dropping partial frame")
		return core.Frame{}, io.EOF
	default:
		return core.Frame{}, fmt.Errorf("%w: after %d frames: %w", core.ErrCaptureRead, r.frames, err)
	}

	r.frames++
	return core.Frame{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

// LinkType returns the capture's link-layer type.
func (r *Reader) LinkType() layers.LinkType { return r.linkType }

// SnapLen returns the capture's snapshot length.
func (r *Reader) SnapLen() uint32 { return r.snapLen }

// Frames returns the number of frames read so far.
func (r *Reader) Frames() uint64 { return r.frames }

// Truncated reports whether a partial trailing record was dropped.
func (r *Reader) Truncated() bool { return r.truncated }

// FileSource is a Reader over a capture file on disk.
type FileSource struct {
	*Reader
	path string
	f    *os.File
}

// Open opens path and parses its pcap header.
func Open(path string, opts ...Option) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceOpen, err)
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FileSource{Reader: r, path: path, f: f}, nil
}

// Path returns the file path.
func (fs *FileSource) Path() string { return fs.path }

// Close closes the underlying file.
func (fs *FileSource) Close() error {
	if fs.f == nil {
		return nil
	}
	err := fs.f.Close()
	fs.f = nil
	return err
}
