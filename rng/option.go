package rng

import (
	"caprand/core"
	"caprand/health"
	"caprand/noise"
)

// Option modifies how Registry.Setup samples and seeds
type Option func(*options)

type options struct {
	lowCycles  uint32
	candidates []uint32
	timer      core.CycleTimer
	checkTimer core.CycleTimer
	cfg        Config
	wrap       func(noise.Sampler) noise.Sampler
}

func defaultOptions() options {
	return options{
		lowCycles: DefaultLowCycles,
		cfg:       DefaultConfig(),
	}
}

// WithLowCycles fixes the forced-low duration
func WithLowCycles(lowCycles uint32) Option {
	return func(o *options) {
		o.lowCycles = lowCycles
	}
}

// WithCalibration sweeps candidates and seeds with the best one, overriding
// WithLowCycles
func WithCalibration(candidates []uint32) Option {
	return func(o *options) {
		o.candidates = candidates
	}
}

// WithTimer samples in timer-augmented mode
func WithTimer(t core.CycleTimer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithCapacitorCheck times a full recharge with t before sampling and
// rejects capacitors outside the plausible window
func WithCapacitorCheck(t core.CycleTimer) Option {
	return func(o *options) {
		o.checkTimer = t
	}
}

// WithSeedSamples overrides the validated-sample target
func WithSeedSamples(n int) Option {
	return func(o *options) {
		o.cfg.SeedSamples = n
	}
}

// WithMaxFailures overrides the number of health failures tolerated
func WithMaxFailures(n int) Option {
	return func(o *options) {
		o.cfg.MaxFailures = n
	}
}

// WithHealth overrides the health test cutoffs
func WithHealth(cfg health.Config) Option {
	return func(o *options) {
		o.cfg.Health = cfg
	}
}

// WithSourceWrapper decorates the sample stream before it is hashed
func WithSourceWrapper(wrap func(noise.Sampler) noise.Sampler) Option {
	return func(o *options) {
		o.wrap = wrap
	}
}
