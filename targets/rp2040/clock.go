//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"caprand/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// GetHardwareTime returns the low 32 bits of the 1MHz timer
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime feeds the core clock that stamps events
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
