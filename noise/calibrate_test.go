package noise_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caprand/core"
	"caprand/noise"
	"caprand/sim"
)

// trialsWithMax builds warm-up junk followed by trial samples whose most
// frequent value occurs exactly max times
func trialsWithMax(warmup, trials, max int) []uint8 {
	out := make([]uint8, 0, warmup+trials)
	for i := 0; i < warmup; i++ {
		out = append(out, 0) // Would dominate every histogram if counted
	}
	for i := 0; i < max; i++ {
		out = append(out, 200)
	}
	for i := 0; len(out) < warmup+trials; i++ {
		out = append(out, uint8(i%100))
	}
	return out
}

func syntheticCalibrator(maxByCandidate map[uint32]int) *noise.Calibrator {
	return &noise.Calibrator{
		Warmup: noise.CalibrationWarmup,
		Trials: noise.CalibrationTrials,
		Open: func(lowCycles uint32) (noise.Sampler, error) {
			max := maxByCandidate[lowCycles]
			return sim.NewSequence(trialsWithMax(noise.CalibrationWarmup, noise.CalibrationTrials, max)), nil
		},
	}
}

func TestCalibratorPicksSmallestMaxBucket(t *testing.T) {
	c := syntheticCalibrator(map[uint32]int{10: 120, 20: 45, 30: 80, 40: 150})

	res, err := c.Best([]uint32{10, 20, 30, 40})
	require.NoError(t, err)
	assert.Equal(t, uint32(20), res.LowCycles)
	assert.Equal(t, uint32(45), res.MaxBucket)
	assert.InDelta(t, 2.152, res.MinEntropy, 0.01) // -log2(45/200)
}

func TestCalibratorKeepsFirstOnTie(t *testing.T) {
	c := syntheticCalibrator(map[uint32]int{5: 90, 6: 60, 7: 60, 8: 61})

	res, err := c.Best([]uint32{5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, uint32(6), res.LowCycles)
}

func TestCalibratorRecordsEvents(t *testing.T) {
	core.ClearEvents()
	c := syntheticCalibrator(map[uint32]int{1: 50, 2: 40, 3: 70})
	c.Pin = 11

	_, err := c.Best([]uint32{1, 2, 3})
	require.NoError(t, err)

	events := core.Events()
	require.Len(t, events, 4)
	assert.Equal(t, uint8(core.EvtCalibrated), events[3].Type)
	assert.Equal(t, uint32(2), events[3].Value1)
	assert.Equal(t, uint8(11), events[3].Pin)
}

func TestCalibratorSourceFailure(t *testing.T) {
	boom := errors.New("boom")
	c := &noise.Calibrator{
		Warmup: 4,
		Trials: 10,
		Open: func(lowCycles uint32) (noise.Sampler, error) {
			return &sim.Failing{Sampler: sim.NewSequence([]uint8{1, 2, 3}), After: 8, Err: boom}, nil
		},
	}
	_, err := c.Best([]uint32{1})
	assert.ErrorIs(t, err, boom)

	_, err = c.Best(nil)
	assert.ErrorIs(t, err, noise.ErrNoCandidates)
}

func TestBestLowTimeOnSimulator(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	lowCycles, err := noise.BestLowTime(pads, 4, noise.Candidates(1, 9, 4))
	require.NoError(t, err)
	assert.Contains(t, []uint32{1, 5, 9}, lowCycles)
	assert.Equal(t, core.PadConfig{Schmitt: true, InputEnable: true, PullDown: true, Function: 0x1f}, pads.ReadPad(4))
}

func TestBestLowTimeRejectsBadCandidate(t *testing.T) {
	pads := sim.New(sim.DefaultParams())
	_, err := noise.BestLowTime(pads, 4, []uint32{0})
	assert.ErrorIs(t, err, core.ErrCapacitorTooSmall)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []uint32{30, 35, 40, 45, 50}, noise.Candidates(30, 50, 5))
	assert.Equal(t, []uint32{7}, noise.Candidates(7, 7, 0))
	assert.Empty(t, noise.Candidates(9, 3, 1))
	assert.Equal(t, []uint32{0xFFFFFFFE, 0xFFFFFFFF}, noise.Candidates(0xFFFFFFFE, 0xFFFFFFFF, 1))
	assert.Len(t, noise.DefaultCandidates(), noise.DefaultSweepHigh-noise.DefaultSweepLow+1)
}
