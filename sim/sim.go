// Package sim models a capacitor on a GPIO pin on a virtual cycle clock.
// It implements the sampling and timer interfaces of package core so the
// noise source, calibrator and seeding pipeline run unchanged on a host.
package sim

import (
	"math"
	"math/rand/v2"

	"caprand/core"
)

// PollPeriod is the cycle cost of one poll iteration on the target: five
// loads, a test and a taken branch
const PollPeriod = 8

// Params describes the simulated circuit. Times are in core clock cycles.
type Params struct {
	Seed         uint64
	ChargeTau    float64 // Pull-up RC time constant
	DischargeTau float64 // Output driver RC time constant
	Threshold    float64 // Input high threshold as a fraction of supply
	Jitter       float64 // Standard deviation of the rise time noise
	Bias         float64 // Constant rise time offset
	TimerBits    uint    // Width of the cycle timer
}

// DefaultParams is a 4.7nF capacitor on a ~50k pull-up at 125MHz
func DefaultParams() Params {
	return Params{
		Seed:         1,
		ChargeTau:    30000,
		DischargeTau: 15,
		Threshold:    0.5,
		Jitter:       4,
		TimerBits:    24,
	}
}

// Pin is a simulated pad bank with one capacitor attached to every pin
type Pin struct {
	p   Params
	rng *rand.Rand

	cycle  uint64
	charge map[core.GPIOPin]float64
	pads   map[core.GPIOPin]core.PadConfig

	stuck  bool
	pulses []uint32
	rises  uint64
}

// New returns a simulated pad bank; every capacitor starts fully charged
func New(p Params) *Pin {
	return &Pin{
		p:      p,
		rng:    rand.New(rand.NewPCG(p.Seed, p.Seed^0x9E3779B97F4A7C15)),
		charge: make(map[core.GPIOPin]float64),
		pads:   make(map[core.GPIOPin]core.PadConfig),
	}
}

// SetStuck makes every pin read high immediately, as a shorted or
// disconnected line would
func (s *Pin) SetStuck(stuck bool) {
	s.stuck = stuck
}

// Cycle returns the virtual clock
func (s *Pin) Cycle() uint64 {
	return s.cycle
}

// Pulses returns the duration of every forced-low phase so far
func (s *Pin) Pulses() []uint32 {
	return s.pulses
}

// Rises returns how many rise measurements were taken
func (s *Pin) Rises() uint64 {
	return s.rises
}

// ReadPad returns the pad configuration; unset pads read as the reset
// state: Schmitt and input enabled, pull-down on, null function
func (s *Pin) ReadPad(pin core.GPIOPin) core.PadConfig {
	cfg, ok := s.pads[pin]
	if !ok {
		return core.PadConfig{Schmitt: true, InputEnable: true, PullDown: true, Function: 0x1f}
	}
	return cfg
}

// WritePad replaces the pad configuration
func (s *Pin) WritePad(pin core.GPIOPin, cfg core.PadConfig) {
	s.pads[pin] = cfg
}

// SetPullUp switches the pull-up of pin
func (s *Pin) SetPullUp(pin core.GPIOPin, on bool) {
	cfg := s.ReadPad(pin)
	cfg.PullUp = on
	s.pads[pin] = cfg
}

// PulseLow discharges the capacitor for exactly the cycles the target's
// instruction plan takes
func (s *Pin) PulseLow(pin core.GPIOPin, cycles uint32) {
	d := core.PlanPulse(cycles).Cycles()
	s.pulses = append(s.pulses, d)
	s.cycle += uint64(d)
	s.charge[pin] = s.level(pin) * math.Exp(-float64(d)/s.p.DischargeTau)
}

// ReadRise charges the capacitor until the input reads high and returns the
// burst that saw it, with unrelated pins set at random
func (s *Pin) ReadRise(pin core.GPIOPin) core.Burst {
	cfg := s.ReadPad(pin)
	if cfg.Function != core.FuncSIO || !cfg.InputEnable {
		panic("sim: rise polled on a pad not configured for software input")
	}
	if !cfg.PullUp && !s.stuck {
		panic("sim: rise polled with the pull-up off")
	}
	s.rises++

	t := 0.0
	if !s.stuck {
		t = s.riseTime(pin)
	}

	iter := uint64(t / PollPeriod)
	offset := t - float64(iter*PollPeriod)
	if offset > core.BurstLen-1 {
		// Rise lands after the last read of this iteration
		iter++
		offset = 0
	}

	var b core.Burst
	bit := uint32(1) << (pin & 31)
	for i := range b {
		b[i] = s.rng.Uint32() &^ bit
		if float64(i) >= offset {
			b[i] |= bit
		}
	}

	elapsed := (iter + 1) * PollPeriod
	s.cycle += elapsed
	if !s.stuck {
		over := float64(elapsed) - t
		s.charge[pin] = 1 - (1-s.p.Threshold)*math.Exp(-over/s.p.ChargeTau)
	}
	return b
}

// level returns the capacitor charge of pin
func (s *Pin) level(pin core.GPIOPin) float64 {
	v, ok := s.charge[pin]
	if !ok {
		return 1
	}
	return v
}

// riseTime returns the cycles until the input crosses the threshold
func (s *Pin) riseTime(pin core.GPIOPin) float64 {
	v := s.level(pin)
	t := 0.0
	if v < s.p.Threshold {
		t = s.p.ChargeTau * math.Log((1-v)/(1-s.p.Threshold))
	}
	t += s.p.Bias + s.rng.NormFloat64()*s.p.Jitter
	if t < 0 {
		t = 0
	}
	return t
}
