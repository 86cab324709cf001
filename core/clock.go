package core

// Clock frequencies for the RP2040 as configured by the targets
const (
	CPUFreq   = 125000000 // Core clock the cycle-exact primitives assume
	TimerFreq = 1000000   // Microsecond system timer
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// CyclesFromNS converts nanoseconds to core clock cycles, rounding down
func CyclesFromNS(ns uint32) uint32 {
	return uint32(uint64(ns) * CPUFreq / 1000000000)
}

// CyclesToNS converts core clock cycles to nanoseconds
func CyclesToNS(cycles uint32) uint32 {
	return uint32(uint64(cycles) * 1000000000 / CPUFreq)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}
