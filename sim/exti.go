package sim

import (
	"avrcore/bits"
	"avrcore/core"
)

type extiState struct {
	line  core.ExtiLine
	edges uint32 // transitions that matched the sense control
}

// ExtiEdges returns how many pin transitions on line matched its sense
// control, masked or not.
func (m *Machine) ExtiEdges(l core.ExtiLine) uint32 {
	return m.exti[l].edges
}

func (m *Machine) wireExti() {
	for l := core.ExtiInt0; l <= core.ExtiInt1; l++ {
		m.exti[l].line = l
	}
	mem(m.regs.EIFR).SetWriteHook(func(old, written uint8) uint8 {
		for l := core.ExtiInt0; l <= core.ExtiInt1; l++ {
			if bits.IsSet(old&written, uint8(l)) {
				core.CancelIRQ(l.Vector())
			}
		}
		return old &^ written
	})
	mem(m.regs.EIMSK).OnWrite(func(_, mask uint8) {
		flags := m.regs.EIFR.Get()
		for l := core.ExtiInt0; l <= core.ExtiInt1; l++ {
			switch {
			case !bits.IsSet(mask, uint8(l)):
				core.CancelIRQ(l.Vector())
			case bits.IsSet(flags, uint8(l)):
				core.RaiseIRQ(l.Vector())
			}
		}
	})
}

func (m *Machine) sense(l core.ExtiLine) core.Trigger {
	return core.Trigger(bits.Field(m.regs.EICRA.Get(), uint8(l)*2, 0x03))
}

// extiEdge latches INTFn when the transition matches the sense control.
// The flag is set whether or not the line is masked.
func (m *Machine) extiEdge(l core.ExtiLine, level core.Level) {
	var hit bool
	switch m.sense(l) {
	case core.AnyEdge:
		hit = true
	case core.FallingEdge:
		hit = level == core.Low
	case core.RisingEdge:
		hit = level == core.High
	case core.LowLevel:
		// Level interrupts have no flag; levelTriggers requests them.
		if level == core.Low && bits.IsSet(m.regs.EIMSK.Get(), uint8(l)) {
			core.RaiseIRQ(l.Vector())
		}
		return
	}
	if !hit {
		return
	}
	m.exti[l].edges++
	eifr := mem(m.regs.EIFR)
	eifr.Poke(bits.Set(eifr.Get(), uint8(l)))
	if bits.IsSet(m.regs.EIMSK.Get(), uint8(l)) {
		core.RaiseIRQ(l.Vector())
	}
}

// levelTriggers keeps requesting low-level lines while their pin is low.
func (m *Machine) levelTriggers() {
	for l := core.ExtiInt0; l <= core.ExtiInt1; l++ {
		if m.sense(l) == core.LowLevel && bits.IsSet(m.regs.EIMSK.Get(), uint8(l)) && m.Level(l.Pin()) == core.Low {
			core.RaiseIRQ(l.Vector())
		}
	}
}

func (m *Machine) clearExtiFlag(l core.ExtiLine) {
	eifr := mem(m.regs.EIFR)
	eifr.Poke(bits.Clear(eifr.Get(), uint8(l)))
}
