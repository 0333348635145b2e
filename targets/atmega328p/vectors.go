//go:build tinygo && avr

package main

import (
	"device/avr"
	"runtime/interrupt"

	"avrcore/core"
)

// bindVectors routes the hardware vectors to the core vector table.
// TIMER0_OVF is left to the TinyGo runtime, which keeps its clock there;
// the tick uses compare match A.
func bindVectors() {
	interrupt.New(avr.IRQ_INT0, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorInt0) })
	interrupt.New(avr.IRQ_INT1, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorInt1) })
	interrupt.New(avr.IRQ_TIMER2_COMPA, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer2CompA) })
	interrupt.New(avr.IRQ_TIMER2_COMPB, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer2CompB) })
	interrupt.New(avr.IRQ_TIMER2_OVF, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer2Ovf) })
	interrupt.New(avr.IRQ_TIMER1_CAPT, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer1Capt) })
	interrupt.New(avr.IRQ_TIMER1_COMPA, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer1CompA) })
	interrupt.New(avr.IRQ_TIMER1_COMPB, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer1CompB) })
	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer1Ovf) })
	interrupt.New(avr.IRQ_TIMER0_COMPA, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer0CompA) })
	interrupt.New(avr.IRQ_TIMER0_COMPB, func(interrupt.Interrupt) { core.DispatchIRQ(core.VectorTimer0CompB) })
}
