package protocol

import "errors"

var (
	// ErrFrameIncomplete means more bytes are needed before a frame can be judged
	ErrFrameIncomplete = errors.New("protocol: incomplete frame")
	// ErrFrameInvalid means the bytes at the read position are not a frame
	ErrFrameInvalid = errors.New("protocol: invalid frame")

	errHandlerPanic = errors.New("protocol: command handler panicked")
)

// Frame is one decoded message block
type Frame struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Aliases the input
	CRC      uint16
}

// DecodeFrame validates the frame at the start of data and returns it with
// the number of bytes it occupies. Sequence bytes are not checked.
func DecodeFrame(data []byte) (Frame, int, error) {
	if len(data) < MessageLengthMin {
		return Frame{}, 0, ErrFrameIncomplete
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return Frame{}, 0, ErrFrameInvalid
	}
	if len(data) < n {
		return Frame{}, 0, ErrFrameIncomplete
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return Frame{}, 0, ErrFrameInvalid
	}

	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return Frame{}, 0, ErrFrameInvalid
	}

	return Frame{
		Length:   uint8(n),
		Sequence: data[MessagePositionSeq],
		Payload:  data[MessageHeaderSize : n-MessageTrailerSize],
		CRC:      crc,
	}, n, nil
}

// WriteFrame appends a complete frame carrying whatever body writes and
// returns the frame length. A nil body writes an ACK/NAK.
func WriteFrame(out OutputBuffer, seq uint8, body func(OutputBuffer)) int {
	start := out.CurPosition()
	out.Output([]byte{0, seq})
	if body != nil {
		body(out)
	}

	n := len(out.DataSince(start)) + MessageTrailerSize
	out.Update(start, uint8(n))

	crc := CRC16(out.DataSince(start))
	out.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return n
}
