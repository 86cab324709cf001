//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"caprand/core"
)

// RP2040 pad, IO bank and syscfg memory map
const (
	padsBank0Base = 0x4001c000
	padsGPIO0     = padsBank0Base + 0x04 // GPIO0 pad, 4 bytes per pin

	ioBank0Base  = 0x40014000
	ioGPIO0Ctrl  = ioBank0Base + 0x04 // GPIO0_CTRL, 8 bytes per pin
	syscfgBase   = 0x40004000
	syscfgSyncBP = syscfgBase + 0x0c // PROC_IN_SYNC_BYPASS
)

// Pad register bits
const (
	padSchmitt = 1 << 1
	padPDE     = 1 << 2
	padPUE     = 1 << 3
	padIE      = 1 << 6

	ctrlFuncSelMask = 0x1f
)

var syncBypass = (*volatile.Register32)(unsafe.Pointer(uintptr(syscfgSyncBP)))

func padReg(pin core.GPIOPin) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(padsGPIO0 + 4*uint32(pin))))
}

func ctrlReg(pin core.GPIOPin) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(ioGPIO0Ctrl + 8*uint32(pin))))
}

// RPSampleDriver is the RP2040 core.SampleDriver: pad registers plus the
// SIO primitives in sio.go
type RPSampleDriver struct{}

// NewRPSampleDriver creates the sampling driver
func NewRPSampleDriver() *RPSampleDriver {
	return &RPSampleDriver{}
}

// ReadPad implements core.PadDriver
func (d *RPSampleDriver) ReadPad(pin core.GPIOPin) core.PadConfig {
	pad := padReg(pin).Get()
	return core.PadConfig{
		Schmitt:     pad&padSchmitt != 0,
		InputEnable: pad&padIE != 0,
		PullDown:    pad&padPDE != 0,
		PullUp:      pad&padPUE != 0,
		Function:    uint8(ctrlReg(pin).Get() & ctrlFuncSelMask),
		SyncBypass:  syncBypass.HasBits(1 << pin),
	}
}

// WritePad implements core.PadDriver. Drive strength, slew and output
// disable bits are left alone.
func (d *RPSampleDriver) WritePad(pin core.GPIOPin, cfg core.PadConfig) {
	pad := padReg(pin)
	v := pad.Get() &^ (padSchmitt | padPDE | padPUE | padIE)
	if cfg.Schmitt {
		v |= padSchmitt
	}
	if cfg.InputEnable {
		v |= padIE
	}
	if cfg.PullDown {
		v |= padPDE
	}
	if cfg.PullUp {
		v |= padPUE
	}
	pad.Set(v)

	ctrl := ctrlReg(pin)
	ctrl.Set(ctrl.Get()&^ctrlFuncSelMask | uint32(cfg.Function&ctrlFuncSelMask))

	if cfg.SyncBypass {
		syncBypass.SetBits(1 << pin)
	} else {
		syncBypass.ClearBits(1 << pin)
	}
}

// SetPullUp implements core.SampleDriver
func (d *RPSampleDriver) SetPullUp(pin core.GPIOPin, on bool) {
	if on {
		padReg(pin).SetBits(padPUE)
	} else {
		padReg(pin).ClearBits(padPUE)
	}
}
