package core

// Vector is an ATmega328P interrupt vector number. Lower numbers have
// higher priority.
type Vector uint8

const (
	VectorInt0        Vector = 1
	VectorInt1        Vector = 2
	VectorTimer2CompA Vector = 7
	VectorTimer2CompB Vector = 8
	VectorTimer2Ovf   Vector = 9
	VectorTimer1Capt  Vector = 10
	VectorTimer1CompA Vector = 11
	VectorTimer1CompB Vector = 12
	VectorTimer1Ovf   Vector = 13
	VectorTimer0CompA Vector = 14
	VectorTimer0CompB Vector = 15
	VectorTimer0Ovf   Vector = 16

	NumVectors = 26
)

// IRQHandler runs in interrupt context. It must be short and must not
// block or call Delay.
type IRQHandler func()

var irqHandlers [NumVectors][]IRQHandler

// AttachInterrupt adds h to the handlers of vector v. Handlers run in
// registration order.
func AttachInterrupt(v Vector, h IRQHandler) {
	if v == 0 || v >= NumVectors || h == nil {
		precondition("irq: invalid vector or handler")
		return
	}
	CriticalSection(func() {
		irqHandlers[v] = append(irqHandlers[v], h)
	})
}

// DetachInterrupts removes every handler of vector v.
func DetachInterrupts(v Vector) {
	if v >= NumVectors {
		return
	}
	CriticalSection(func() {
		irqHandlers[v] = nil
		for ch := range tickSlot {
			if compA, _, _ := TimerChannel(ch).Vectors(); compA == v {
				tickSlot[ch] = 0
			}
		}
	})
}

// DispatchIRQ runs the handlers bound to v. Targets call it from their
// hardware vector stubs.
func DispatchIRQ(v Vector) {
	for _, h := range irqHandlers[v] {
		h()
	}
}

func (v Vector) String() string {
	switch v {
	case VectorInt0:
		return "INT0"
	case VectorInt1:
		return "INT1"
	case VectorTimer2CompA:
		return "TIMER2_COMPA"
	case VectorTimer2CompB:
		return "TIMER2_COMPB"
	case VectorTimer2Ovf:
		return "TIMER2_OVF"
	case VectorTimer1Capt:
		return "TIMER1_CAPT"
	case VectorTimer1CompA:
		return "TIMER1_COMPA"
	case VectorTimer1CompB:
		return "TIMER1_COMPB"
	case VectorTimer1Ovf:
		return "TIMER1_OVF"
	case VectorTimer0CompA:
		return "TIMER0_COMPA"
	case VectorTimer0CompB:
		return "TIMER0_COMPB"
	case VectorTimer0Ovf:
		return "TIMER0_OVF"
	}
	return "VECTOR_" + itoa(int(v))
}
