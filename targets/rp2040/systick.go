//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"caprand/core"
)

// Cortex-M0+ SysTick
const (
	sysTickCSR = 0xe000e010
	sysTickRVR = 0xe000e014
	sysTickCVR = 0xe000e018

	sysTickEnable    = 1 << 0
	sysTickClkSource = 1 << 2  // Processor clock
	sysTickCountFlag = 1 << 16 // Counted to zero since last read

	sysTickMax = 0xffffff
)

var (
	stCSR = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickCSR)))
	stRVR = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickRVR)))
	stCVR = (*volatile.Register32)(unsafe.Pointer(uintptr(sysTickCVR)))
)

// SysTickTimer is a core.CycleTimer on the 24-bit SysTick counter. It wraps
// after about 134ms at 125MHz.
type SysTickTimer struct{}

// NewSysTickTimer configures SysTick to count core clock cycles
func NewSysTickTimer() *SysTickTimer {
	stRVR.Set(sysTickMax)
	stCSR.Set(sysTickEnable | sysTickClkSource)
	return &SysTickTimer{}
}

// Start reloads the counter. Writing CVR also clears COUNTFLAG.
func (t *SysTickTimer) Start() {
	stCVR.Set(0)
}

// Elapsed implements core.CycleTimer
func (t *SysTickTimer) Elapsed() (uint32, error) {
	cur := stCVR.Get()
	if stCSR.HasBits(sysTickCountFlag) {
		return sysTickMax - cur, core.ErrTimingOverflow
	}
	return sysTickMax - cur, nil
}
