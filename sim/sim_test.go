package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caprand/core"
)

func sioPad() core.PadConfig {
	return core.PadConfig{InputEnable: true, Function: core.FuncSIO, PullUp: true}
}

func TestPulseLowChargesPlanCycles(t *testing.T) {
	s := New(DefaultParams())
	for _, n := range []uint32{1, 2, 3, 7, 100} {
		s.PulseLow(4, n)
	}
	assert.Equal(t, []uint32{1, 2, 3, 7, 100}, s.Pulses())
	assert.Equal(t, uint64(113), s.Cycle())
}

func TestReadRiseEndsHigh(t *testing.T) {
	s := New(DefaultParams())
	const pin = core.GPIOPin(9)
	s.WritePad(pin, sioPad())

	for i := 0; i < 100; i++ {
		s.PulseLow(pin, 20)
		b := s.ReadRise(pin)
		require.NotZero(t, b[core.BurstLen-1]&(1<<pin), "last read of the returned burst is high")
	}
	assert.Equal(t, uint64(100), s.Rises())
}

func TestReadRiseNeedsSIO(t *testing.T) {
	s := New(DefaultParams())
	assert.Panics(t, func() { s.ReadRise(3) }, "reset pad is not routed to SIO")
}

func TestStuckReadsHighImmediately(t *testing.T) {
	s := New(DefaultParams())
	s.SetStuck(true)
	s.WritePad(2, sioPad())
	before := s.Cycle()
	b := s.ReadRise(2)
	for i := range b {
		assert.NotZero(t, b[i]&(1<<2))
	}
	assert.Equal(t, uint64(PollPeriod), s.Cycle()-before)
}

func TestTimerOverflow(t *testing.T) {
	p := DefaultParams()
	p.TimerBits = 8
	s := New(p)
	tm := s.Timer()

	tm.Start()
	s.PulseLow(0, 100)
	d, err := tm.Elapsed()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), d)

	tm.Start()
	s.PulseLow(0, 300)
	_, err = tm.Elapsed()
	assert.ErrorIs(t, err, core.ErrTimingOverflow)
}

func TestEmptySequence(t *testing.T) {
	seq := NewSequence(nil)
	_, err := seq.Next()
	assert.ErrorIs(t, err, ErrEmptySequence)

	var zero Sequence
	_, err = zero.Next()
	assert.ErrorIs(t, err, ErrEmptySequence)
}

func TestSequenceWraps(t *testing.T) {
	seq := NewSequence([]uint8{1, 2})
	a, _ := seq.Next()
	b, _ := seq.Next()
	c, _ := seq.Next()
	assert.False(t, a.Valid)
	assert.True(t, b.Valid)
	assert.Equal(t, a, c)
}
