package protocol

import (
	"bytes"
	"sync/atomic"
)

// CommandHandler handles one decoded command. It consumes its own
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device end of the link: it validates incoming frames,
// acknowledges them and frames outgoing responses into an OutputBuffer
type Transport struct {
	synced  uint32 // atomic bool
	nextSeq uint32 // atomic, expected host sequence (0x10-0x1F)

	output  OutputBuffer
	handler CommandHandler
	onReset func()
	onFlush func()
	errors  uint32 // atomic, handler errors and malformed frames
}

// NewTransport returns a synchronised transport expecting sequence 0x10
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synced:  1,
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame in input. Partial frames stay in
// input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.isSynced() {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			t.setSynced(true)
			t.encodeAckNak()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		f, n, err := DecodeFrame(data)
		if err == ErrFrameIncomplete {
			break
		}
		if err != nil || f.Sequence&^MessageSeqMask != MessageDest {
			t.setSynced(false)
			continue
		}
		data = data[n:]

		expected := uint8(atomic.LoadUint32(&t.nextSeq))
		if f.Sequence == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			atomic.StoreUint32(&t.nextSeq, MessageDest)
			expected = MessageDest
			if t.onReset != nil {
				t.onReset()
			}
		}

		if f.Sequence == expected {
			atomic.StoreUint32(&t.nextSeq, uint32(NextSequence(f.Sequence)))
			if err := t.parseFrame(f.Payload); err != nil {
				atomic.AddUint32(&t.errors, 1)
			}
		}
		// A stale sequence gets the expected one back, which is the NAK
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command packed in a frame payload
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynced(false)
			err = errHandlerPanic
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynced(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			// Remaining arguments can no longer be located
			return err
		}
	}
	return nil
}

// encodeAckNak writes an empty frame carrying the next expected sequence
// and flushes it ahead of any response
func (t *Transport) encodeAckNak() {
	WriteFrame(t.output, uint8(atomic.LoadUint32(&t.nextSeq)), nil)
	if t.onFlush != nil {
		t.onFlush()
	}
}

// SendCommand frames one response message
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	WriteFrame(t.output, uint8(atomic.LoadUint32(&t.nextSeq)), func(out OutputBuffer) {
		EncodeVLQUint(out, uint32(cmdID))
		if args != nil {
			args(out)
		}
	})
}

// Errors returns the number of frames whose commands failed
func (t *Transport) Errors() uint32 {
	return atomic.LoadUint32(&t.errors)
}

// Reset returns to the power-on state, as after a USB reconnect
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.synced, 1)
	atomic.StoreUint32(&t.nextSeq, MessageDest)
	if t.onReset != nil {
		t.onReset()
	}
}

// SetResetCallback registers fn to run when the host restarts its sequence
func (t *Transport) SetResetCallback(fn func()) {
	t.onReset = fn
}

// SetFlushCallback registers fn to push ACKs out immediately
func (t *Transport) SetFlushCallback(fn func()) {
	t.onFlush = fn
}

func (t *Transport) isSynced() bool {
	return atomic.LoadUint32(&t.synced) != 0
}

func (t *Transport) setSynced(v bool) {
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32(&t.synced, n)
}
