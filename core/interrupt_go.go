//go:build !tinygo

package core

// State is a placeholder for interrupt state on hosted builds
type State uintptr

// disableInterrupts is a no-op on hosted builds; callers that share state
// across goroutines use a mutex on top
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on hosted builds
func restoreInterrupts(state State) {
	_ = state
}
