// Package device is the host-side client of a caprand board: it reads the
// data dictionary and wraps each firmware command in a typed call.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"

	"caprand/core"
	"caprand/host/serial"
	"caprand/protocol"
)

// Timeouts. Seeding and calibration run inside the command handler, so
// their ACK only arrives once the device is done.
const (
	DefaultTimeout     = 2 * time.Second
	DefaultSlowTimeout = 60 * time.Second

	identifyChunk   = 40
	defaultMaxChunk = 48
)

var (
	ErrNotConnected  = errors.New("device: not connected")
	ErrNoDictionary  = errors.New("device: dictionary not loaded")
	ErrUnknownMsg    = errors.New("device: message not in dictionary")
	ErrShortResponse = errors.New("device: short response")

	// ErrDevice is a failure the firmware reported without a core code
	ErrDevice = errors.New("device: firmware error")
)

// Client talks to one board
type Client struct {
	transport *protocol.HostTransport
	clock     clockwork.Clock

	timeout     time.Duration
	slowTimeout time.Duration

	dict     *Dictionary
	dictData []byte
	maxChunk int
}

// Option configures a Client
type Option func(*Client)

// WithClock replaces the clock used for timeouts
func WithClock(c clockwork.Clock) Option {
	return func(cl *Client) {
		cl.clock = c
	}
}

// WithTimeouts sets the timeout of ordinary and of seeding commands
func WithTimeouts(normal, slow time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = normal
		cl.slowTimeout = slow
	}
}

// New wraps an open port. The dictionary is not loaded yet.
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		clock:       clockwork.NewRealClock(),
		timeout:     DefaultTimeout,
		slowTimeout: DefaultSlowTimeout,
		maxChunk:    defaultMaxChunk,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = protocol.NewHostTransport(port, protocol.WithClock(c.clock))
	return c
}

// Connect opens the serial port and loads the dictionary
func Connect(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	c := New(port, opts...)
	if err := c.RetrieveDictionary(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the transport and the port
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// RetrieveDictionary reads the dictionary in identify chunks
func (c *Client) RetrieveDictionary() error {
	if c.transport == nil {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	for {
		chunk, err := c.identify(uint32(buf.Len()))
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", buf.Len(), err)
		}
		buf.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	c.dictData = buf.Bytes()
	c.dict = dict
	c.maxChunk = int(dict.ConstantUint("MAX_DATA_CHUNK", defaultMaxChunk))
	return nil
}

// identify uses the fixed ids 1 and 0 since no dictionary is known yet
func (c *Client) identify(offset uint32) ([]byte, error) {
	args, err := c.exchange(1, 0, c.timeout, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQUint(out, identifyChunk)
	})
	if err != nil {
		return nil, err
	}

	got, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return nil, err
	}
	if got != offset {
		return nil, fmt.Errorf("identify offset mismatch: sent %d, got %d", offset, got)
	}
	return protocol.DecodeVLQBytes(&args)
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary
func (c *Client) Dictionary() *Dictionary {
	return c.dict
}

// DictionaryData returns the compressed dictionary as served
func (c *Client) DictionaryData() []byte {
	return c.dictData
}

// call sends command name and returns the arguments of response respName
func (c *Client) call(name, respName string, timeout time.Duration, args func(protocol.OutputBuffer)) ([]byte, error) {
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	cmdID, ok := c.dict.CommandID(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMsg, name)
	}
	respID, ok := c.dict.ResponseID(respName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMsg, respName)
	}
	return c.exchange(cmdID, respID, timeout, args)
}

// exchange sends one command and skips responses until one with respID
func (c *Client) exchange(cmdID, respID uint16, timeout time.Duration, args func(protocol.OutputBuffer)) ([]byte, error) {
	if err := c.transport.SendCommandWithTimeout(cmdID, args, timeout); err != nil {
		return nil, err
	}
	for {
		f, err := c.transport.ReceiveResponse(timeout)
		if err != nil {
			return nil, err
		}
		p := f.Payload
		id, err := protocol.DecodeVLQUint(&p)
		if err != nil {
			return nil, err
		}
		if uint16(id) == respID {
			return p, nil
		}
	}
}

// send issues a command that has no response
func (c *Client) send(name string, args func(protocol.OutputBuffer)) error {
	if c.dict == nil {
		return ErrNoDictionary
	}
	cmdID, ok := c.dict.CommandID(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMsg, name)
	}
	return c.transport.SendCommandWithTimeout(cmdID, args, c.timeout)
}

// decodeUints reads n VLQ arguments
func decodeUints(args []byte, n int) ([]uint32, []byte, error) {
	vals := make([]uint32, n)
	for i := range vals {
		v, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrShortResponse, err)
		}
		vals[i] = v
	}
	return vals, args, nil
}

// CodeError turns an error=%c field back into an error; nil for none
func CodeError(code uint32) error {
	switch c := core.Code(code); c {
	case core.CodeNone:
		return nil
	case core.CodeTimingOverflow, core.CodeCapacitorOutOfRange,
		core.CodeHealthTestExhausted, core.CodeNotSeeded:
		return &core.Error{Code: c}
	}
	return fmt.Errorf("%w: code %d", ErrDevice, code)
}
