package noise

import "caprand/core"

// Bounds on the forced-low phase. Below the minimum the pad cannot
// discharge anything, above the maximum the sample is dominated by the
// discharge instead of the recharge.
const (
	MinLowCycles = 1
	MaxLowCycles = 4096
)

// RawSample is the digitized outcome of one discharge/recharge cycle
type RawSample uint8

// Sample is a raw sample and whether it may be health tested.
// The first sample of a source is never valid.
type Sample struct {
	Value RawSample
	Valid bool
}

// Sampler is an infinite stream of raw samples. Pulls mutate physical pin
// state, so a stream cannot be restarted.
type Sampler interface {
	Next() (Sample, error)
}

// Source samples one pin with a fixed forced-low duration
type Source struct {
	drv       core.SampleDriver
	pin       core.GPIOPin
	lowCycles uint32
	timer     core.CycleTimer

	count uint32
	err   error
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithTimer switches the source to timer-augmented mode: each sample is the
// rise time in timer ticks with the burst position folded in.
func WithTimer(t core.CycleTimer) SourceOption {
	return func(s *Source) {
		s.timer = t
	}
}

// NewSource validates lowCycles and returns a source for pin
func NewSource(drv core.SampleDriver, pin core.GPIOPin, lowCycles uint32, opts ...SourceOption) (*Source, error) {
	if lowCycles < MinLowCycles {
		core.RecordEvent(core.EvtCapacitorRange, pin, lowCycles, 0)
		return nil, core.ErrCapacitorTooSmall
	}
	if lowCycles > MaxLowCycles {
		core.RecordEvent(core.EvtCapacitorRange, pin, lowCycles, 1)
		return nil, core.ErrCapacitorTooLarge
	}

	s := &Source{drv: drv, pin: pin, lowCycles: lowCycles}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next runs one sampling cycle with interrupts masked and the pad guarded.
// A wrapped timer is terminal for the source.
func (s *Source) Next() (Sample, error) {
	if s.err != nil {
		return Sample{}, s.err
	}

	var (
		burst core.Burst
		ticks uint32
		err   error
	)
	core.WithCritical(func() {
		g := Acquire(s.drv, s.pin)
		defer g.Release()

		s.drv.SetPullUp(s.pin, true)
		s.drv.PulseLow(s.pin, s.lowCycles)
		if s.timer != nil {
			s.timer.Start()
		}
		burst = s.drv.ReadRise(s.pin)
		if s.timer != nil {
			ticks, err = s.timer.Elapsed()
		}
		// Residual charge carries over into the next sample
		s.drv.SetPullUp(s.pin, false)
	})
	if err != nil {
		s.err = err
		core.RecordEvent(core.EvtTimingOverflow, s.pin, s.lowCycles, ticks)
		return Sample{}, err
	}

	m := Combine(burst, s.pin)
	v := RawSample(m)
	if s.timer != nil {
		v = RawSample(ticks + uint32(Position(m)))
	}

	valid := s.count > 0
	s.count++
	return Sample{Value: v, Valid: valid}, nil
}

// LowCycles returns the forced-low duration of every sample
func (s *Source) LowCycles() uint32 {
	return s.lowCycles
}

// Pin returns the sampled pin
func (s *Source) Pin() core.GPIOPin {
	return s.pin
}

// Count returns the number of samples produced so far
func (s *Source) Count() uint32 {
	return s.count
}
