package core

// WithCritical runs fn with interrupts masked on the calling core.
// Not reentrant, and says nothing about the other core.
func WithCritical(fn func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	fn()
}
