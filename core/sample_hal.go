package core

// BurstLen is the number of consecutive input reads per poll iteration
const BurstLen = 5

// Burst holds the raw GPIO input words of one poll iteration, oldest first
type Burst [BurstLen]uint32

// SampleDriver is the platform interface behind the noise source.
// Implementations must be cycle exact: a single cycle of difference in
// PulseLow is the signal being measured.
type SampleDriver interface {
	PadDriver

	// SetPullUp switches the pad pull-up on or off without touching other fields
	SetPullUp(pin GPIOPin, on bool)

	// PulseLow drives the pin low for exactly cycles core clock cycles, then
	// releases it back to input. The plan returned by PlanPulse(cycles) is
	// what gets executed.
	PulseLow(pin GPIOPin, cycles uint32)

	// ReadRise polls the pin in bursts of BurstLen reads until the last read
	// of a burst sees the pin high, and returns that burst. A pin that never
	// rises keeps this spinning.
	ReadRise(pin GPIOPin) Burst
}

// CycleTimer is a free-running cycle counter used in timer-augmented sampling
type CycleTimer interface {
	// Start marks the beginning of a measurement
	Start()

	// Elapsed returns the cycles since Start, or ErrTimingOverflow when the
	// counter wrapped in between
	Elapsed() (uint32, error)
}

// Pulse is the instruction plan for one forced-low phase.
//
// The pin is driven low by one store and released by another. Between them
// the plan runs Loops iterations of a subtract/branch loop (3 cycles each,
// 2 for the last one since the final branch falls through) and Fill single
// cycle filler instructions.
type Pulse struct {
	Loops uint32
	Fill  uint32
}

// PlanPulse picks the instruction plan that keeps the pin low for exactly
// cycles cycles. Zero is treated as one.
func PlanPulse(cycles uint32) Pulse {
	if cycles == 0 {
		cycles = 1
	}
	if cycles < 3 {
		return Pulse{Fill: cycles - 1}
	}
	return Pulse{Loops: cycles / 3, Fill: cycles % 3}
}

// Cycles returns how long the pin stays low under this plan
func (p Pulse) Cycles() uint32 {
	c := 1 + p.Fill
	if p.Loops > 0 {
		c += 3*p.Loops - 1
	}
	return c
}
