// Package noise turns the charge time of a capacitor on a GPIO pin into raw
// samples. It holds the pad guard, the sampling state machine, the
// calibration sweep and the histogram helpers used to judge a capacitor.
package noise

import "caprand/core"

// Guard holds a pad configured for timing together with the configuration
// it replaced. Not reentrant for the same pin.
type Guard struct {
	drv      core.PadDriver
	pin      core.GPIOPin
	saved    core.PadConfig
	released bool
}

// Acquire snapshots the pad and configures it for timing: Schmitt trigger
// off, input buffer on, pull-down off, SIO function, synchronizer bypass off.
// Callers defer Release.
func Acquire(drv core.PadDriver, pin core.GPIOPin) *Guard {
	saved := drv.ReadPad(pin)

	cfg := saved
	cfg.Schmitt = false
	cfg.InputEnable = true
	cfg.PullDown = false
	cfg.Function = core.FuncSIO
	cfg.SyncBypass = false
	drv.WritePad(pin, cfg)

	return &Guard{drv: drv, pin: pin, saved: saved}
}

// Release writes back the snapshot taken by Acquire. Further calls do nothing.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.drv.WritePad(g.pin, g.saved)
	g.released = true
}

// Saved returns the configuration that Release restores
func (g *Guard) Saved() core.PadConfig {
	return g.saved
}
