//go:build !tinygo

package core

import "math/bits"

// State is the saved global interrupt enable flag.
type State uint8

// The host models the AVR status register I flag and the interrupt
// request lines. Everything runs on the caller's goroutine: a raised
// vector is serviced immediately while the flag is set, otherwise it stays
// pending until the flag is set again. Handlers run with the flag cleared,
// so they never nest.
var (
	globalIE   bool
	pendingIRQ uint32
	irqAck     func(v Vector)
)

// disableInterrupts clears the I flag and returns its previous value
func disableInterrupts() State {
	var s State
	if globalIE {
		s = 1
	}
	globalIE = false
	return s
}

// restoreInterrupts restores the I flag, servicing anything that became
// pending while it was clear
func restoreInterrupts(state State) {
	if state != 0 {
		globalIE = true
		servicePending()
	}
}

// EnableInterrupts sets the global interrupt enable flag.
func EnableInterrupts() {
	globalIE = true
	servicePending()
}

// InterruptsEnabled reports the global interrupt enable flag.
func InterruptsEnabled() bool {
	return globalIE
}

// RaiseIRQ requests vector v. The simulator calls it when a flag and its
// mask bit are both set.
func RaiseIRQ(v Vector) {
	if v == 0 || v >= NumVectors {
		return
	}
	pendingIRQ |= 1 << v
	servicePending()
}

// CancelIRQ withdraws a request that has not been serviced yet.
func CancelIRQ(v Vector) {
	pendingIRQ &^= 1 << v
}

// IRQPending reports whether v is waiting for service.
func IRQPending(v Vector) bool {
	return pendingIRQ&(1<<v) != 0
}

// SetIRQAckHook installs a callback run as each vector is entered, the
// point where the hardware clears the corresponding flag.
func SetIRQAckHook(f func(v Vector)) {
	irqAck = f
}

// ResetInterrupts clears the I flag and all pending requests.
func ResetInterrupts() {
	globalIE = false
	pendingIRQ = 0
}

// servicePending runs pending vectors lowest number first, which is the
// AVR priority order
func servicePending() {
	for globalIE && pendingIRQ != 0 {
		v := Vector(bits.TrailingZeros32(pendingIRQ))
		pendingIRQ &^= 1 << v
		globalIE = false
		if irqAck != nil {
			irqAck(v)
		}
		DispatchIRQ(v)
		globalIE = true
	}
}
