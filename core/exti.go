package core

import "avrcore/bits"

// ExtiLine is an external interrupt line with a dedicated input pin.
type ExtiLine uint8

const (
	ExtiInt0 ExtiLine = iota // PD2
	ExtiInt1                 // PD3

	numExtiLines = 2
)

// Trigger selects the transition that raises an EXTI event. The values are
// the ISCn1:ISCn0 sense-control encoding.
type Trigger uint8

const (
	LowLevel    Trigger = 0
	AnyEdge     Trigger = 1
	FallingEdge Trigger = 2
	RisingEdge  Trigger = 3
)

func (t Trigger) String() string {
	switch t {
	case LowLevel:
		return "low-level"
	case AnyEdge:
		return "any-edge"
	case FallingEdge:
		return "falling-edge"
	case RisingEdge:
		return "rising-edge"
	}
	return "invalid"
}

// ParseTrigger maps a trigger name back to its value.
func ParseTrigger(s string) (Trigger, bool) {
	for t := LowLevel; t <= RisingEdge; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Valid reports whether l names an existing line.
func (l ExtiLine) Valid() bool {
	return l < numExtiLines
}

// Pin returns the input pin wired to the line.
func (l ExtiLine) Pin() Pin {
	if l == ExtiInt1 {
		return PD3
	}
	return PD2
}

// Vector returns the interrupt vector of the line.
func (l ExtiLine) Vector() Vector {
	if l == ExtiInt1 {
		return VectorInt1
	}
	return VectorInt0
}

func (l ExtiLine) String() string {
	switch l {
	case ExtiInt0:
		return "INT0"
	case ExtiInt1:
		return "INT1"
	}
	return "INT?"
}

// ExtiLineForPin returns the line wired to pin p.
func ExtiLineForPin(p Pin) (ExtiLine, bool) {
	switch p {
	case PD2:
		return ExtiInt0, true
	case PD3:
		return ExtiInt1, true
	}
	return 0, false
}

func senseShift(l ExtiLine) uint8 {
	return uint8(l) * 2
}

// ExtiInit selects the trigger of line, discards any event latched before
// this call, unmasks the line and enables global interrupts. Calling it
// again is harmless and leaves other lines untouched.
func ExtiInit(line ExtiLine, trigger Trigger) {
	if !line.Valid() || trigger > RisingEdge {
		precondition("exti: invalid line or trigger")
		return
	}
	r := Registers()
	CriticalSection(func() {
		r.EICRA.Set(bits.WithField(r.EICRA.Get(), senseShift(line), 0x03, uint8(trigger)))
		r.EIFR.Set(1 << line)
		setBit(r.EIMSK, uint8(line))
	})
	EnableInterrupts()
}

// ExtiSetTrigger changes the trigger of line without changing whether it
// is enabled. A transition that happened before the change does not
// produce an event.
func ExtiSetTrigger(line ExtiLine, trigger Trigger) {
	if !line.Valid() || trigger > RisingEdge {
		precondition("exti: invalid line or trigger")
		return
	}
	r := Registers()
	CriticalSection(func() {
		enabled := readBit(r.EIMSK, uint8(line))
		if enabled {
			clearBit(r.EIMSK, uint8(line))
		}
		r.EICRA.Set(bits.WithField(r.EICRA.Get(), senseShift(line), 0x03, uint8(trigger)))
		r.EIFR.Set(1 << line)
		if enabled {
			setBit(r.EIMSK, uint8(line))
		}
	})
}

// ExtiDisable masks line only. Its trigger, the other line and global
// interrupt delivery are left as they are.
func ExtiDisable(line ExtiLine) {
	if !line.Valid() {
		precondition("exti: invalid line")
		return
	}
	r := Registers()
	CriticalSection(func() {
		clearBit(r.EIMSK, uint8(line))
	})
}

// ExtiEnabled reports whether line is unmasked.
func ExtiEnabled(line ExtiLine) bool {
	if !line.Valid() {
		return false
	}
	return readBit(Registers().EIMSK, uint8(line))
}

// ExtiTriggerOf returns the trigger currently selected for line.
func ExtiTriggerOf(line ExtiLine) Trigger {
	if !line.Valid() {
		return LowLevel
	}
	return Trigger(bits.Field(Registers().EICRA.Get(), senseShift(line), 0x03))
}

// ExtiAttach binds h to the vector of line.
func ExtiAttach(line ExtiLine, h IRQHandler) {
	if !line.Valid() {
		precondition("exti: invalid line")
		return
	}
	AttachInterrupt(line.Vector(), h)
}
