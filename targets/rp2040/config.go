//go:build rp2040

package main

import "caprand/core"

// Board configuration. The Pico LED pin has enough pad and trace
// capacitance on its own to act as the timing capacitor.
const (
	capPin core.GPIOPin = 25

	// Forced-low cycles used when calibration is off
	lowCycles = 1

	// Calibration sweep run at boot; calibrateAtBoot=false keeps lowCycles
	calibrateAtBoot = false
	sweepLow        = 1
	sweepHigh       = 50
	sweepStep       = 1

	// Timer-augmented sampling through the PIO edge timer
	timerMode = false

	// Run the SysTick capacitor check before seeding. The check expects an
	// external capacitor of 0.01uF or more; pad capacitance on the LED pin
	// rises in a few hundred cycles and would fail it on every boot. Set
	// this when capPin carries a real capacitor. check_capacitor works
	// either way.
	checkCapacitor = false

	// Debug UART, GPIO4/GPIO5 on UART1
	debugUART = false
)
