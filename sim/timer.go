package sim

import "caprand/core"

// Timer is a cycle timer running on the simulated clock
type Timer struct {
	pin   *Pin
	start uint64
}

// Timer returns a cycle timer as wide as Params.TimerBits
func (s *Pin) Timer() *Timer {
	return &Timer{pin: s}
}

// Start marks the beginning of a measurement
func (t *Timer) Start() {
	t.start = t.pin.cycle
}

// Elapsed returns cycles since Start or ErrTimingOverflow when the counter
// would have wrapped
func (t *Timer) Elapsed() (uint32, error) {
	d := t.pin.cycle - t.start
	if t.pin.p.TimerBits < 64 && d >= uint64(1)<<t.pin.p.TimerBits {
		return uint32(d), core.ErrTimingOverflow
	}
	return uint32(d), nil
}
