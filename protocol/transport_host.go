package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrAckTimeout      = errors.New("protocol: ACK timeout")
	ErrResponseTimeout = errors.New("protocol: response timeout")
	ErrClosed          = errors.New("protocol: transport closed")
	ErrFrameTooLong    = errors.New("protocol: frame too long")
)

// DefaultAckTimeout bounds the wait for an ACK in SendCommand
const DefaultAckTimeout = 2 * time.Second

// ResponseHandler observes every response frame as it arrives
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host end of the link. A background goroutine reads
// the port, ACKs are matched against the outstanding sequence and responses
// are queued for ReceiveResponse.
type HostTransport struct {
	port  io.ReadWriteCloser
	clock clockwork.Clock

	seq    uint32 // atomic, sequence of the next command
	synced uint32 // atomic bool

	input *FifoBuffer

	ackCh  chan *Frame
	respCh chan *Frame

	handler ResponseHandler

	writeMu sync.Mutex
	readMu  sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// HostOption configures a HostTransport
type HostOption func(*HostTransport)

// WithClock replaces the clock used for timeouts
func WithClock(clock clockwork.Clock) HostOption {
	return func(t *HostTransport) {
		t.clock = clock
	}
}

// WithResponseHandler installs h before the reader starts
func WithResponseHandler(h ResponseHandler) HostOption {
	return func(t *HostTransport) {
		t.handler = h
	}
}

// NewHostTransport starts reading port. Close stops the reader and closes
// the port.
func NewHostTransport(port io.ReadWriteCloser, opts ...HostOption) *HostTransport {
	t := &HostTransport{
		port:   port,
		clock:  clockwork.NewRealClock(),
		seq:    MessageDest,
		synced: 1,
		input:  NewFifoBuffer(1024),
		ackCh:  make(chan *Frame, 1),
		respCh: make(chan *Frame, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.readLoop()
	return t
}

// SendCommand sends one command and waits DefaultAckTimeout for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends one command and waits for its ACK
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	msg, err := t.buildCommandMessage(cmdID, args)
	if err != nil {
		return err
	}
	if err := t.writeMessage(msg); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	return t.waitForAck(timeout)
}

// buildCommandMessage frames cmdID and its arguments with the current sequence
func (t *HostTransport) buildCommandMessage(cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	n := WriteFrame(scratch, uint8(atomic.LoadUint32(&t.seq)), func(out OutputBuffer) {
		EncodeVLQUint(out, uint32(cmdID))
		if args != nil {
			args(out)
		}
	})
	if n > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, n, MessageLengthMax)
	}

	msg := make([]byte, n)
	copy(msg, scratch.Result())
	return msg, nil
}

func (t *HostTransport) writeMessage(msg []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

// waitForAck consumes the ACK for the outstanding command and advances the
// sequence
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	want := NextSequence(uint8(atomic.LoadUint32(&t.seq)))
	select {
	case ack := <-t.ackCh:
		if ack.Sequence != want {
			return fmt.Errorf("protocol: NAK, device expects sequence 0x%02x, want 0x%02x", ack.Sequence, want)
		}
		atomic.StoreUint32(&t.seq, uint32(want))
		return nil
	case <-t.clock.After(timeout):
		return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
	case <-t.stop:
		return ErrClosed
	}
}

// ReceiveResponse returns the oldest queued response frame
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Frame, error) {
	select {
	case resp := <-t.respCh:
		return resp, nil
	case <-t.clock.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)
	case <-t.stop:
		return nil, ErrClosed
	}
}

// SetResponseHandler installs an asynchronous response observer
func (t *HostTransport) SetResponseHandler(h ResponseHandler) {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	t.handler = h
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.readMu.Lock()
			t.input.Write(buf[:n])
			t.processMessages()
			t.readMu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			t.clock.Sleep(10 * time.Millisecond)
		}
	}
}

// processMessages parses every complete frame in the input ring.
// Called with readMu held.
func (t *HostTransport) processMessages() {
	data := t.input.Data()

	for len(data) > 0 {
		if atomic.LoadUint32(&t.synced) == 0 {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			atomic.StoreUint32(&t.synced, 1)
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
		if err != nil {
			atomic.StoreUint32(&t.synced, 0)
			continue
		}
		f.Payload = append([]byte(nil), f.Payload...)
		data = data[n:]
		t.dispatch(&f)
	}

	if consumed := t.input.Available() - len(data); consumed > 0 {
		t.input.Pop(consumed)
	}
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// dispatch routes empty frames to the ACK channel and the rest to the
// response queue, dropping the oldest response when the queue is full
func (t *HostTransport) dispatch(f *Frame) {
	if len(f.Payload) == 0 {
		select {
		case t.ackCh <- f:
		default:
		}
		return
	}

	if t.handler != nil {
		p := f.Payload
		if cmdID, err := DecodeVLQUint(&p); err == nil {
			_ = t.handler(uint16(cmdID), &p)
		}
	}

	select {
	case t.respCh <- f:
	default:
		select {
		case <-t.respCh:
		default:
		}
		t.respCh <- f
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		// Closing the port unblocks a pending Read
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.done
	})
	return err
}

// Reset restarts the sequence at 0x10 and drops everything queued. The
// device treats a frame with sequence 0x10 as a host restart.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.synced, 1)
	atomic.StoreUint32(&t.seq, MessageDest)

	for len(t.ackCh) > 0 {
		<-t.ackCh
	}
	for len(t.respCh) > 0 {
		<-t.respCh
	}

	t.readMu.Lock()
	t.input.Reset()
	t.readMu.Unlock()
}

// Sequence returns the sequence byte of the next command
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.seq))
}
