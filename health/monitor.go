package health

import "errors"

// Monitor runs both tests on every sample for the lifetime of a session
type Monitor struct {
	repetition *RepetitionTest
	adaptive   *AdaptiveProportionTest

	repFailures uint32
	aptFailures uint32
}

// New builds a monitor; cfg should pass Validate
func New(cfg Config) *Monitor {
	return &Monitor{
		repetition: NewRepetitionTest(cfg.RepetitionCutoff),
		adaptive:   NewAdaptiveProportionTest(cfg.Window, cfg.AdaptiveCutoff),
	}
}

// Default builds a monitor with DefaultConfig
func Default() *Monitor {
	return New(DefaultConfig())
}

// Test feeds v to both tests. Both always see the sample; the result joins
// whichever failed. A failure is only reported, the caller decides what to
// do with the session.
func (m *Monitor) Test(v uint8) error {
	aptErr := m.adaptive.Test(v)
	repErr := m.repetition.Test(v)
	if aptErr != nil {
		m.aptFailures++
	}
	if repErr != nil {
		m.repFailures++
	}
	if aptErr == nil && repErr == nil {
		return nil
	}
	return errors.Join(aptErr, repErr)
}

// Failures returns the failure counts of the repetition and adaptive tests
func (m *Monitor) Failures() (repetition, adaptive uint32) {
	return m.repFailures, m.aptFailures
}

// Reset clears both tests and the failure counts
func (m *Monitor) Reset() {
	m.repetition.Reset()
	m.adaptive.Reset()
	m.repFailures = 0
	m.aptFailures = 0
}
