package device

import (
	"bytes"
	"compress/zlib"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caprand/core"
	"caprand/firmware"
	"caprand/protocol"
	"caprand/sim"
)

// serve runs a firmware service over the device end of a pipe
func serve(t *testing.T, mutate func(*firmware.Config)) (net.Conn, *sim.Pin) {
	pads := sim.New(sim.DefaultParams())
	cfg := firmware.Config{
		Driver:      pads,
		Pin:         3,
		LowCycles:   10,
		SeedSamples: 2048,
		MCU:         "sim",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := firmware.NewService(cfg)

	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, svc.Dispatch)
	svc.SetSender(tr)

	host, dev := net.Pipe()
	go func() {
		defer dev.Close()
		in := protocol.NewFifoBuffer(1024)
		buf := make([]byte, 128)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			in.Write(buf[:n])

			data := protocol.NewSliceInputBuffer(in.Data())
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
	return host, pads
}

func connect(t *testing.T, mutate func(*firmware.Config)) (*Client, *sim.Pin) {
	port, pads := serve(t, mutate)
	c := New(port)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.RetrieveDictionary())
	return c, pads
}

func TestRetrieveDictionary(t *testing.T) {
	c, _ := connect(t, nil)

	dict := c.Dictionary()
	require.NotNil(t, dict)
	assert.Equal(t, "caprand-"+protocol.Version, dict.Version)
	assert.Equal(t, "sim", dict.Config["MCU"])
	assert.Equal(t, uint32(firmware.MaxDataChunk), dict.ConstantUint("MAX_DATA_CHUNK", 0))
	assert.Equal(t, uint32(7), dict.ConstantUint("MISSING", 7))
	assert.Equal(t, "health_test_exhausted", dict.EnumName("error", int(core.CodeHealthTestExhausted)))

	id, ok := dict.CommandID("get_random")
	assert.True(t, ok)
	assert.NotZero(t, id)
	_, ok = dict.CommandID("get")
	assert.False(t, ok, "lookup is by whole name")
	id, ok = dict.ResponseID("identify_response")
	assert.True(t, ok)
	assert.Zero(t, id)

	zr, err := zlib.NewReader(bytes.NewReader(c.DictionaryData()))
	require.NoError(t, err)
	zr.Close()
}

func TestParseDictionaryRejectsGarbage(t *testing.T) {
	_, err := ParseDictionary([]byte(`{"version":"x"}`))
	assert.Error(t, err)
}

func TestCallsNeedDictionary(t *testing.T) {
	port, _ := serve(t, nil)
	c := New(port)
	defer c.Close()

	_, err := c.Status()
	assert.ErrorIs(t, err, ErrNoDictionary)
	assert.ErrorIs(t, c.Reset(), ErrNoDictionary)
}

func TestRandomBeforeSeed(t *testing.T) {
	c, _ := connect(t, nil)

	_, err := c.Random(16)
	assert.ErrorIs(t, err, core.ErrNotSeeded)

	st, err := c.Status()
	require.NoError(t, err)
	assert.False(t, st.Seeded)
	assert.NoError(t, st.Err)
}

func TestReseedAndRandom(t *testing.T) {
	c, _ := connect(t, nil)

	st, err := c.Reseed(0, false)
	require.NoError(t, err)
	assert.True(t, st.Seeded)
	assert.Equal(t, uint32(3), st.Pin)
	assert.Equal(t, uint32(10), st.LowCycles)
	assert.GreaterOrEqual(t, st.Validated, uint32(2048))

	data, err := c.Random(100)
	require.NoError(t, err)
	assert.Len(t, data, 100, "spans several chunks")

	more, err := c.Random(100)
	require.NoError(t, err)
	assert.NotEqual(t, data, more)
}

func TestReseedFailureKeepsGenerator(t *testing.T) {
	c, pads := connect(t, nil)
	_, err := c.Reseed(0, false)
	require.NoError(t, err)

	pads.SetStuck(true)
	st, err := c.Reseed(0, false)
	require.NoError(t, err)
	assert.True(t, st.Seeded)
	assert.ErrorIs(t, st.Err, core.ErrHealthTestExhausted)

	_, err = c.Random(8)
	assert.NoError(t, err)
}

func TestRaw(t *testing.T) {
	c, _ := connect(t, nil)

	data, err := c.Raw(10, 200, false)
	require.NoError(t, err)
	assert.Len(t, data, 200)

	_, err = c.Raw(10, 10, true)
	assert.ErrorIs(t, err, ErrDevice, "no timer configured")

	_, err = c.Raw(0, 10, false)
	assert.ErrorIs(t, err, core.ErrCapacitorOutOfRange)
}

func TestRawTimer(t *testing.T) {
	c, _ := connect(t, func(cfg *firmware.Config) {
		cfg.Timer = cfg.Driver.(*sim.Pin).Timer()
	})
	data, err := c.Raw(10, 64, true)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestCalibrate(t *testing.T) {
	c, _ := connect(t, nil)

	res, err := c.Calibrate(4, 12, 4)
	require.NoError(t, err)
	assert.Contains(t, []uint32{4, 8, 12}, res.LowCycles)
	assert.Positive(t, res.MaxBucket)
	assert.Positive(t, res.MinEntropy)

	_, err = c.Calibrate(5, 4, 1)
	assert.ErrorIs(t, err, ErrDevice)
}

func TestCheckCapacitor(t *testing.T) {
	c, _ := connect(t, func(cfg *firmware.Config) {
		cfg.CheckTimer = cfg.Driver.(*sim.Pin).Timer()
	})
	ticks, err := c.CheckCapacitor()
	require.NoError(t, err)
	assert.Greater(t, ticks, uint32(15000))
}

func TestEvents(t *testing.T) {
	core.ClearEvents()
	c, _ := connect(t, nil)

	_, err := c.Random(1)
	require.Error(t, err)

	events, err := c.Events()
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, uint8(core.EvtNotSeeded), events[len(events)-1].Type)
}

func TestCodeError(t *testing.T) {
	assert.NoError(t, CodeError(0))
	assert.ErrorIs(t, CodeError(uint32(core.CodeTimingOverflow)), core.ErrTimingOverflow)
	assert.ErrorIs(t, CodeError(uint32(core.CodeCapacitorOutOfRange)), core.ErrCapacitorOutOfRange)
	assert.ErrorIs(t, CodeError(uint32(core.CodeNotSeeded)), core.ErrNotSeeded)
	assert.ErrorIs(t, CodeError(uint32(core.CodeUnknown)), ErrDevice)
}

func TestAckTimeout(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := dev.Read(buf); err != nil {
				return
			}
		}
	}()

	clock := clockwork.NewFakeClock()
	c := New(host, WithClock(clock), WithTimeouts(time.Second, time.Minute))
	defer c.Close()

	errc := make(chan error, 1)
	go func() { errc <- c.RetrieveDictionary() }()
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	err := <-errc
	assert.True(t, errors.Is(err, protocol.ErrAckTimeout), "%v", err)
}
