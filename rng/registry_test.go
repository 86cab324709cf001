package rng_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caprand/core"
	"caprand/noise"
	"caprand/rng"
	"caprand/sim"
)

func TestFillBeforeSetup(t *testing.T) {
	reg := rng.NewRegistry()
	p := make([]byte, 16)
	err := reg.Fill(p)
	assert.ErrorIs(t, err, core.ErrNotSeeded)
	assert.False(t, reg.Seeded())

	n, err := reg.Read(p)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, core.ErrNotSeeded)
}

func TestSetupOnSimulatedPin(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	reg := rng.NewRegistry()
	require.NoError(t, reg.Setup(pads, 5, rng.WithLowCycles(10)))
	require.True(t, reg.Seeded())

	st := reg.Status()
	assert.True(t, st.Seeded)
	assert.Equal(t, core.GPIOPin(5), st.Pin)
	assert.Equal(t, uint32(10), st.LowCycles)
	assert.Equal(t, rng.DefaultSeedSamples, st.Stats.Validated)
	assert.Equal(t, core.CodeNone, st.LastError)

	p := make([]byte, 4096)
	require.NoError(t, reg.Fill(p))
	var h noise.Histogram
	h.AddBytes(p)
	assert.Less(t, int(h.Max()), 64)

	// Pad is back in its reset state after seeding
	assert.Equal(t, sim.New(sim.DefaultParams()).ReadPad(5), pads.ReadPad(5))
}

func TestSetupTimerMode(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	reg := rng.NewRegistry()
	err := reg.Setup(pads, 2,
		rng.WithLowCycles(10),
		rng.WithTimer(pads.Timer()),
		rng.WithCapacitorCheck(pads.Timer()),
		rng.WithSeedSamples(4096),
	)
	require.NoError(t, err)
	assert.Equal(t, 4096, reg.Status().Stats.Validated)
}

func TestSetupWithCalibration(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	reg := rng.NewRegistry()
	candidates := noise.Candidates(1, 20, 1)
	require.NoError(t, reg.Setup(pads, 9, rng.WithCalibration(candidates), rng.WithSeedSamples(2048)))
	assert.Contains(t, candidates, reg.Status().LowCycles)
}

func TestFailedSetupKeepsPreviousGenerator(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	reg := rng.NewRegistry()
	require.NoError(t, reg.Setup(pads, 4, rng.WithLowCycles(10), rng.WithSeedSamples(2048)))
	before := reg.Status()

	pads.SetStuck(true)
	err := reg.Setup(pads, 4, rng.WithLowCycles(10), rng.WithSeedSamples(2048))
	assert.ErrorIs(t, err, core.ErrHealthTestExhausted)

	after := reg.Status()
	assert.True(t, after.Seeded)
	assert.Equal(t, before.Stats, after.Stats)
	assert.Equal(t, core.CodeHealthTestExhausted, after.LastError)
	assert.NoError(t, reg.Fill(make([]byte, 8)))
}

func TestFailedFirstSetupStaysUnseeded(t *testing.T) {
	p := sim.DefaultParams()
	p.ChargeTau = 2000
	pads := sim.New(p)
	reg := rng.NewRegistry()

	err := reg.Setup(pads, 1, rng.WithCapacitorCheck(pads.Timer()))
	assert.ErrorIs(t, err, core.ErrCapacitorOutOfRange)
	assert.False(t, reg.Seeded())
	assert.ErrorIs(t, reg.Fill(make([]byte, 1)), core.ErrNotSeeded)
	assert.Equal(t, core.CodeCapacitorOutOfRange, reg.Status().LastError)
}

func TestSetupRejectsEmptySeedTarget(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	pads.SetStuck(true)
	reg := rng.NewRegistry()

	for _, n := range []int{0, -1} {
		err := reg.Setup(pads, 3, rng.WithLowCycles(10), rng.WithSeedSamples(n))
		assert.ErrorIs(t, err, rng.ErrBadSeedTarget)
		assert.False(t, reg.Seeded())
		assert.ErrorIs(t, reg.Fill(make([]byte, 1)), core.ErrNotSeeded)
	}

	err := reg.SetupSource(sim.NewSequence([]uint8{0, 1, 2}), rng.WithSeedSamples(0))
	assert.ErrorIs(t, err, rng.ErrBadSeedTarget)
	assert.False(t, reg.Seeded())
}

func TestSetupRejectsLowCycles(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	reg := rng.NewRegistry()
	err := reg.Setup(pads, 1, rng.WithLowCycles(0))
	assert.ErrorIs(t, err, core.ErrCapacitorTooSmall)
}

func TestSetupSourceAndWrapper(t *testing.T) {
	values := make([]uint8, 700)
	for i := range values {
		values[i] = uint8(i)
	}

	var pulled int
	wrap := func(s noise.Sampler) noise.Sampler {
		return samplerFunc(func() (noise.Sample, error) {
			pulled++
			return s.Next()
		})
	}

	reg := rng.NewRegistry()
	require.NoError(t, reg.SetupSource(sim.NewSequence(values), rng.WithSeedSamples(600), rng.WithSourceWrapper(wrap)))
	assert.Equal(t, 601, pulled)

	p := make([]byte, 32)
	_, err := io.ReadFull(reg, p)
	require.NoError(t, err)
}

func TestSetupSourceOptions(t *testing.T) {
	values := []uint8{0}
	for i := 0; i < 5; i++ {
		values = append(values, 3)
	}
	values = append(values, 1, 2)

	reg := rng.NewRegistry()
	err := reg.SetupSource(sim.NewSequence(values),
		rng.WithSeedSamples(100),
		rng.WithMaxFailures(1),
		rng.WithHealth(rng.DefaultConfig().Health),
	)
	require.NoError(t, err, "runs of five stay well under the default cutoff")

	strict := rng.DefaultConfig().Health
	strict.RepetitionCutoff = 4
	err = reg.SetupSource(sim.NewSequence(values), rng.WithSeedSamples(100), rng.WithMaxFailures(1), rng.WithHealth(strict))
	assert.ErrorIs(t, err, core.ErrHealthTestExhausted)
}

func TestReset(t *testing.T) {
	reg := rng.NewRegistry()
	require.NoError(t, reg.SetupSource(sim.NewSequence([]uint8{0, 1, 2, 3, 4}), rng.WithSeedSamples(10)))
	reg.Reset()
	assert.False(t, reg.Seeded())
	assert.Equal(t, rng.Status{}, reg.Status())
}

func TestRandCallback(t *testing.T) {
	reg := rng.NewRegistry()
	cb := rng.RandCallback(reg)

	assert.Equal(t, core.RandErrorBase+uint32(core.CodeNotSeeded), cb(make([]byte, 4)))

	require.NoError(t, reg.SetupSource(sim.NewSequence([]uint8{0, 1, 2, 3, 4}), rng.WithSeedSamples(10)))
	p := make([]byte, 4)
	assert.Zero(t, cb(p))
}

type samplerFunc func() (noise.Sample, error)

func (f samplerFunc) Next() (noise.Sample, error) { return f() }
