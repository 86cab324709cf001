package noise

import "caprand/core"

// Capacitor presence check thresholds, in timer ticks at the core clock
const (
	DischargeCycles   = 2000    // Forced-low time that fully empties the capacitor
	MinCapacitorTicks = 15000   // Faster full rise: capacitor too small or missing
	MaxCapacitorTicks = 8000000 // Slower full rise: capacitor too large
)

// CheckCapacitor fully discharges the capacitor and times a complete
// recharge through the pull-up. It returns the measured ticks.
func CheckCapacitor(drv core.SampleDriver, pin core.GPIOPin, timer core.CycleTimer) (uint32, error) {
	var (
		ticks uint32
		err   error
	)
	core.WithCritical(func() {
		g := Acquire(drv, pin)
		defer g.Release()

		drv.SetPullUp(pin, false)
		drv.PulseLow(pin, DischargeCycles)
		drv.SetPullUp(pin, true)
		timer.Start()
		drv.ReadRise(pin)
		ticks, err = timer.Elapsed()
		drv.SetPullUp(pin, false)
	})

	switch {
	case err != nil:
		core.RecordEvent(core.EvtTimingOverflow, pin, DischargeCycles, ticks)
		return ticks, err
	case ticks < MinCapacitorTicks:
		core.RecordEvent(core.EvtCapacitorRange, pin, ticks, 0)
		return ticks, core.ErrCapacitorTooSmall
	case ticks > MaxCapacitorTicks:
		core.RecordEvent(core.EvtCapacitorRange, pin, ticks, 1)
		return ticks, core.ErrCapacitorTooLarge
	}
	return ticks, nil
}
