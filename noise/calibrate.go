package noise

import (
	"errors"

	"caprand/core"
)

// Calibration sweep defaults
const (
	CalibrationWarmup = 16  // Samples discarded per candidate
	CalibrationTrials = 200 // Samples histogrammed per candidate

	DefaultSweepLow  = 1
	DefaultSweepHigh = 50
)

var ErrNoCandidates = errors.New("noise: no calibration candidates")

// Result is the outcome of a calibration sweep
type Result struct {
	LowCycles  uint32
	MaxBucket  uint32
	MinEntropy float64
}

// Calibrator sweeps forced-low durations and keeps the one whose most
// frequent sample value is least frequent.
type Calibrator struct {
	Pin    core.GPIOPin
	Warmup int
	Trials int

	// Open returns a fresh source for one candidate
	Open func(lowCycles uint32) (Sampler, error)
}

// NewCalibrator returns a calibrator sampling pin through drv
func NewCalibrator(drv core.SampleDriver, pin core.GPIOPin, opts ...SourceOption) *Calibrator {
	return &Calibrator{
		Pin:    pin,
		Warmup: CalibrationWarmup,
		Trials: CalibrationTrials,
		Open: func(lowCycles uint32) (Sampler, error) {
			return NewSource(drv, pin, lowCycles, opts...)
		},
	}
}

// Best histograms every candidate and returns the one with the smallest
// maximum bucket, keeping the first on ties
func (c *Calibrator) Best(candidates []uint32) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates
	}

	var best Result
	for i, lowCycles := range candidates {
		h, err := c.histogram(lowCycles)
		if err != nil {
			return Result{}, err
		}

		max := h.Max()
		core.RecordEvent(core.EvtCalibrationCandidate, c.Pin, lowCycles, max)
		if i == 0 || max < best.MaxBucket {
			best = Result{LowCycles: lowCycles, MaxBucket: max, MinEntropy: h.MinEntropy()}
		}
	}

	core.RecordEvent(core.EvtCalibrated, c.Pin, best.LowCycles, best.MaxBucket)
	return best, nil
}

// histogram collects the trial samples of one candidate
func (c *Calibrator) histogram(lowCycles uint32) (*Histogram, error) {
	src, err := c.Open(lowCycles)
	if err != nil {
		return nil, err
	}

	for i := 0; i < c.Warmup; i++ {
		if _, err := src.Next(); err != nil {
			return nil, err
		}
	}

	h := new(Histogram)
	for i := 0; i < c.Trials; i++ {
		smp, err := src.Next()
		if err != nil {
			return nil, err
		}
		h.Add(uint8(smp.Value))
	}
	return h, nil
}

// BestLowTime runs the default sweep parameters over candidates on pin
func BestLowTime(drv core.SampleDriver, pin core.GPIOPin, candidates []uint32, opts ...SourceOption) (uint32, error) {
	res, err := NewCalibrator(drv, pin, opts...).Best(candidates)
	if err != nil {
		return 0, err
	}
	return res.LowCycles, nil
}

// Candidates returns lo, lo+step, ... up to and including hi
func Candidates(lo, hi, step uint32) []uint32 {
	if step == 0 {
		step = 1
	}
	var out []uint32
	for c := lo; c <= hi; c += step {
		out = append(out, c)
		if c > hi-step {
			break // Avoid wrapping past the top of the range
		}
	}
	return out
}

// DefaultCandidates returns the sweep used when none is configured
func DefaultCandidates() []uint32 {
	return Candidates(DefaultSweepLow, DefaultSweepHigh, 1)
}
