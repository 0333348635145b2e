package core

// CriticalSection runs f with interrupts disabled and restores the
// previous interrupt-enable state afterwards. Sections nest.
func CriticalSection(f func()) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	f()
}
