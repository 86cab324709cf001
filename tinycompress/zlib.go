// Package tinycompress produces zlib streams made of deflate stored blocks.
// Nothing is compressed; the output is a valid zlib stream any inflater
// accepts, built without the tables and window a real compressor needs on
// the firmware heap.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// MaxBlock is the largest stored block payload
const MaxBlock = 0xFFFF

// zlib CMF/FLG: deflate, 32K window, default level, check bits valid
var header = [2]byte{0x78, 0x9C}

var ErrClosed = errors.New("tinycompress: write after close")

// Store returns p wrapped as a complete zlib stream
func Store(p []byte) []byte {
	blocks := (len(p) + MaxBlock - 1) / MaxBlock
	if blocks == 0 {
		blocks = 1
	}
	out := make([]byte, 0, len(header)+len(p)+5*blocks+4)
	out = append(out, header[:]...)

	rest := p
	for {
		n := len(rest)
		if n > MaxBlock {
			n = MaxBlock
		}
		final := byte(0)
		if n == len(rest) {
			final = 1
		}
		out = append(out, final, byte(n), byte(n>>8), ^byte(n), ^byte(n>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(p)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// Writer collects everything written and emits one stored stream on Close
type Writer struct {
	w      io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a Writer flushing to w on Close
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosed
	}
	z.buf = append(z.buf, p...)
	return len(p), nil
}

// Close writes the stream. Closing twice is a no-op.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	_, err := z.w.Write(Store(z.buf))
	z.buf = nil
	return err
}
