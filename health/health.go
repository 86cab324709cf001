// Package health implements the online entropy source health tests of
// NIST SP 800-90B section 4.4: the repetition count test and the adaptive
// proportion test, run on every raw sample.
package health

import "errors"

var (
	ErrRepetition         = errors.New("health: repetition count test failed")
	ErrAdaptiveProportion = errors.New("health: adaptive proportion test failed")
	ErrBadConfig          = errors.New("health: invalid test configuration")
)

// Defaults for a false-positive probability of 2^-20 per test
const (
	DefaultAlphaLog2        = 20
	DefaultWindow           = 512
	DefaultRepetitionCutoff = 201 // H = 0.1 bit per sample
	DefaultAdaptiveCutoff   = 410 // H = 0.5 bit per sample, W = 512
)

// Config sizes both tests
type Config struct {
	Window           int
	AdaptiveCutoff   int
	RepetitionCutoff int
}

// DefaultConfig returns the cutoffs used when seeding
func DefaultConfig() Config {
	return Config{
		Window:           DefaultWindow,
		AdaptiveCutoff:   DefaultAdaptiveCutoff,
		RepetitionCutoff: DefaultRepetitionCutoff,
	}
}

// ConfigFor derives both cutoffs from assumed min-entropies per sample.
// repH feeds the repetition test, aptH the adaptive proportion test.
func ConfigFor(window int, repH, aptH float64, alphaLog2 int) Config {
	return Config{
		Window:           window,
		AdaptiveCutoff:   AdaptiveProportionCutoff(window, aptH, alphaLog2),
		RepetitionCutoff: RepetitionCutoff(repH, alphaLog2),
	}
}

// Validate reports whether the tests can be built from c
func (c Config) Validate() error {
	if c.Window < 2 || c.AdaptiveCutoff < 1 || c.AdaptiveCutoff > c.Window || c.RepetitionCutoff < 2 {
		return ErrBadConfig
	}
	return nil
}
