package protocol

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDevice runs a device Transport on the far end of a pipe. Every
// command is echoed back as a response with the same id and its first
// argument doubled.
func pipeDevice(t *testing.T) net.Conn {
	host, dev := net.Pipe()

	out := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(out, func(id uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		tr.SendCommand(id, func(o OutputBuffer) { EncodeVLQUint(o, 2*v) })
		return nil
	})

	go func() {
		defer dev.Close()
		in := NewFifoBuffer(1024)
		buf := make([]byte, 128)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			in.Write(buf[:n])

			data := NewSliceInputBuffer(in.Data())
			tr.Receive(data)
			in.Pop(in.Available() - data.Available())

			if res := out.Result(); len(res) > 0 {
				if _, err := dev.Write(res); err != nil {
					return
				}
				out.Reset()
			}
		}
	}()
	return host
}

func TestHostTransportRoundTrip(t *testing.T) {
	ht := NewHostTransport(pipeDevice(t))
	defer ht.Close()

	for i := uint32(0); i < 20; i++ {
		require.NoError(t, ht.SendCommand(7, func(o OutputBuffer) { EncodeVLQUint(o, i) }))

		resp, err := ht.ReceiveResponse(time.Second)
		require.NoError(t, err)
		p := resp.Payload
		id, err := DecodeVLQUint(&p)
		require.NoError(t, err)
		v, err := DecodeVLQUint(&p)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), id)
		assert.Equal(t, 2*i, v)
	}
	assert.Equal(t, uint8(MessageDest|20&MessageSeqMask), ht.Sequence(), "sequence wraps within 0x10-0x1F")
}

func TestHostTransportResponseHandler(t *testing.T) {
	seen := make(chan uint32, 1)
	ht := NewHostTransport(pipeDevice(t), WithResponseHandler(func(id uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		seen <- v
		return err
	}))
	defer ht.Close()

	require.NoError(t, ht.SendCommand(3, func(o OutputBuffer) { EncodeVLQUint(o, 21) }))
	assert.Equal(t, uint32(42), <-seen)
}

func TestHostTransportAckTimeout(t *testing.T) {
	host, dev := net.Pipe()
	go io.Copy(io.Discard, dev)
	defer dev.Close()

	clock := clockwork.NewFakeClock()
	ht := NewHostTransport(host, WithClock(clock))
	defer ht.Close()

	errc := make(chan error, 1)
	go func() { errc <- ht.SendCommand(1, nil) }()

	clock.BlockUntil(1)
	clock.Advance(DefaultAckTimeout)
	assert.ErrorIs(t, <-errc, ErrAckTimeout)
	assert.Equal(t, uint8(MessageDest), ht.Sequence(), "sequence only advances on ACK")
}

func TestHostTransportResponseTimeout(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()

	clock := clockwork.NewFakeClock()
	ht := NewHostTransport(host, WithClock(clock))
	defer ht.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := ht.ReceiveResponse(time.Second)
		errc <- err
	}()
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	assert.ErrorIs(t, <-errc, ErrResponseTimeout)
}

func TestHostTransportFrameTooLong(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()
	ht := NewHostTransport(host)
	defer ht.Close()

	err := ht.SendCommand(1, func(o OutputBuffer) { EncodeVLQBytes(o, make([]byte, MessageLengthMax)) })
	assert.ErrorIs(t, err, ErrFrameTooLong)
}

func TestHostTransportClose(t *testing.T) {
	ht := NewHostTransport(pipeDevice(t))
	require.NoError(t, ht.Close())
	assert.NoError(t, ht.Close(), "second close is a no-op")

	_, err := ht.ReceiveResponse(time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}
