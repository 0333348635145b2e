//go:build tinygo && avr

package core

import "device/avr"

const sregI = 7

// EnableInterrupts sets the global interrupt enable flag.
func EnableInterrupts() {
	avr.Asm("sei")
}

// InterruptsEnabled reports the global interrupt enable flag.
func InterruptsEnabled() bool {
	return avr.SREG.Get()&(1<<sregI) != 0
}
