package rng

import (
	"sync"

	"caprand/core"
	"caprand/noise"
)

// Status describes the registry slot
type Status struct {
	Seeded    bool
	Pin       core.GPIOPin
	LowCycles uint32
	Stats     Stats
	LastError core.Code // Outcome of the last Setup
}

// Registry holds at most one seeded generator. Setup replaces it, Fill
// draws from it; both are serialized by one mutex. Sampling itself masks
// interrupts per sample on the calling core only.
type Registry struct {
	mu     sync.Mutex
	rng    *CapRng
	status Status
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Setup samples pin through drv, seeds a generator and installs it.
// On failure the previous generator, if any, stays installed.
func (r *Registry) Setup(drv core.SampleDriver, pin core.GPIOPin, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg.Pin = pin

	r.mu.Lock()
	defer r.mu.Unlock()

	if o.checkTimer != nil {
		if _, err := noise.CheckCapacitor(drv, pin, o.checkTimer); err != nil {
			r.status.LastError = core.CodeOf(err)
			return err
		}
	}

	var srcOpts []noise.SourceOption
	if o.timer != nil {
		srcOpts = append(srcOpts, noise.WithTimer(o.timer))
	}

	lowCycles := o.lowCycles
	if len(o.candidates) > 0 {
		res, err := noise.NewCalibrator(drv, pin, srcOpts...).Best(o.candidates)
		if err != nil {
			r.status.LastError = core.CodeOf(err)
			return err
		}
		lowCycles = res.LowCycles
	}

	src, err := noise.NewSource(drv, pin, lowCycles, srcOpts...)
	if err != nil {
		r.status.LastError = core.CodeOf(err)
		return err
	}
	if err := r.installLocked(src, o); err != nil {
		return err
	}
	r.status.LowCycles = lowCycles
	return nil
}

// SetupSource seeds from an arbitrary sample stream and installs the result
func (r *Registry) SetupSource(src noise.Sampler, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installLocked(src, o)
}

// installLocked runs the extractor and swaps the generator in
func (r *Registry) installLocked(src noise.Sampler, o options) error {
	if o.wrap != nil {
		src = o.wrap(src)
	}
	g, err := NewCapRng(src, o.cfg)
	if err != nil {
		r.status.LastError = core.CodeOf(err)
		return err
	}

	r.rng = g
	r.status = Status{
		Seeded: true,
		Pin:    o.cfg.Pin,
		Stats:  g.Stats(),
	}
	return nil
}

// Fill writes random bytes into p, or fails with ErrNotSeeded
func (r *Registry) Fill(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rng == nil {
		core.RecordEvent(core.EvtNotSeeded, 0, uint32(len(p)), 0)
		return core.ErrNotSeeded
	}
	r.rng.Fill(p)
	return nil
}

// Read implements io.Reader on top of Fill
func (r *Registry) Read(p []byte) (int, error) {
	if err := r.Fill(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Seeded reports whether a generator is installed
func (r *Registry) Seeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng != nil
}

// Status returns a copy of the slot state
func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Reset drops the installed generator
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng = nil
	r.status = Status{}
}

// RandCallback adapts the registry to a randomness provider hook that takes
// a buffer and returns 0 on success or an error number from the custom range
func RandCallback(r *Registry) func(p []byte) uint32 {
	return func(p []byte) uint32 {
		return core.CodeOf(r.Fill(p)).RandError()
	}
}
