package sim

import (
	"errors"

	"caprand/noise"
)

// ErrEmptySequence is returned by Next on a sequence with no samples
var ErrEmptySequence = errors.New("sim: empty sample sequence")

// Sequence replays a fixed list of samples forever
type Sequence struct {
	Samples []noise.Sample
	pos     int
}

// NewSequence builds a sequence from values; the first one is marked invalid
// like the first sample of a real source
func NewSequence(values []uint8) *Sequence {
	s := &Sequence{Samples: make([]noise.Sample, len(values))}
	for i, v := range values {
		s.Samples[i] = noise.Sample{Value: noise.RawSample(v), Valid: i > 0}
	}
	return s
}

// Next returns the next sample, wrapping at the end
func (s *Sequence) Next() (noise.Sample, error) {
	if len(s.Samples) == 0 {
		return noise.Sample{}, ErrEmptySequence
	}
	smp := s.Samples[s.pos]
	s.pos = (s.pos + 1) % len(s.Samples)
	return smp, nil
}

// Failing is a sampler that returns Err after After good samples
type Failing struct {
	Sampler noise.Sampler
	After   int
	Err     error
	n       int
}

// Next forwards to the wrapped sampler until the failure point
func (f *Failing) Next() (noise.Sample, error) {
	if f.n >= f.After {
		return noise.Sample{}, f.Err
	}
	f.n++
	return f.Sampler.Next()
}
