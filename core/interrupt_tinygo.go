//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts on this core and returns the previous state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts puts back the state returned by disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
