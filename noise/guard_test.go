package noise_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"caprand/core"
	"caprand/noise"
	"caprand/sim"
)

func allPadConfigs() []core.PadConfig {
	var out []core.PadConfig
	for flags := 0; flags < 32; flags++ {
		for _, fn := range []uint8{0, 1, core.FuncSIO, 6, 0x1f} {
			out = append(out, core.PadConfig{
				Schmitt:     flags&1 != 0,
				InputEnable: flags&2 != 0,
				PullDown:    flags&4 != 0,
				PullUp:      flags&8 != 0,
				SyncBypass:  flags&16 != 0,
				Function:    fn,
			})
		}
	}
	return out
}

func TestGuardRestoresEveryConfiguration(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	const pin = core.GPIOPin(14)

	for _, start := range allPadConfigs() {
		pads.WritePad(pin, start)

		g := noise.Acquire(pads, pin)
		live := pads.ReadPad(pin)
		assert.False(t, live.Schmitt)
		assert.True(t, live.InputEnable)
		assert.False(t, live.PullDown)
		assert.False(t, live.SyncBypass)
		assert.Equal(t, core.FuncSIO, live.Function)
		assert.Equal(t, start.PullUp, live.PullUp, "pull-up is left to the sampler")
		assert.Equal(t, start, g.Saved())

		g.Release()
		assert.Equal(t, start, pads.ReadPad(pin))
	}
}

func TestGuardReleaseTwice(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	start := core.PadConfig{Schmitt: true, Function: 2}
	pads.WritePad(1, start)

	g := noise.Acquire(pads, 1)
	g.Release()
	pads.WritePad(1, core.PadConfig{Function: 9})
	g.Release()
	assert.Equal(t, uint8(9), pads.ReadPad(1).Function, "second release must not write")
}

func TestGuardOtherPinsUntouched(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	other := core.PadConfig{Schmitt: true, PullDown: true, Function: 3}
	pads.WritePad(5, other)

	g := noise.Acquire(pads, 6)
	defer g.Release()
	assert.Equal(t, other, pads.ReadPad(5))
}
