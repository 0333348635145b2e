package sim

import (
	"avrcore/bits"
	"avrcore/core"
)

type portState struct {
	regs   *core.PortRegisters
	pin    *core.MemRegister8
	driven uint8 // bits held by an external source
	ext    uint8 // level of the driven bits
}

func (m *Machine) wirePorts() {
	for p := core.PortB; p <= core.PortD; p++ {
		p := p
		ps := &m.ports[p]
		ps.regs = &m.regs.Ports[p]
		ps.pin = mem(ps.regs.PIN)

		mem(ps.regs.DDR).OnWrite(func(_, _ uint8) { m.refreshPort(p) })
		mem(ps.regs.PORT).OnWrite(func(_, _ uint8) { m.refreshPort(p) })
		// Writing a one to PINxn toggles PORTxn.
		ps.pin.SetWriteHook(func(old, written uint8) uint8 {
			port := mem(ps.regs.PORT)
			port.Poke(port.Get() ^ written)
			return old
		})
		ps.pin.OnWrite(func(_, _ uint8) { m.refreshPort(p) })
	}
}

// OnPinChange registers f to run whenever a pin level changes, from either
// side.
func (m *Machine) OnPinChange(f func(pin core.Pin, level core.Level)) {
	m.listeners = append(m.listeners, f)
}

// Drive holds pin at level from outside the chip, like a button or a
// signal generator. An output pin ignores it.
func (m *Machine) Drive(pin core.Pin, level core.Level) {
	ps := &m.ports[pin.Port()]
	ps.driven = bits.Set(ps.driven, pin.Bit())
	if level == core.High {
		ps.ext = bits.Set(ps.ext, pin.Bit())
	} else {
		ps.ext = bits.Clear(ps.ext, pin.Bit())
	}
	m.refreshPort(pin.Port())
}

// Release stops driving pin externally.
func (m *Machine) Release(pin core.Pin) {
	ps := &m.ports[pin.Port()]
	ps.driven = bits.Clear(ps.driven, pin.Bit())
	m.refreshPort(pin.Port())
}

// Press drives an active-low button: low for hold, then released.
func (m *Machine) Press(pin core.Pin, hold uint64) {
	m.Drive(pin, core.Low)
	m.Advance(hold)
	m.Drive(pin, core.High)
}

// Level returns the electrical level of pin.
func (m *Machine) Level(pin core.Pin) core.Level {
	return core.LevelOf(bits.IsSet(m.ports[pin.Port()].pin.Get(), pin.Bit()))
}

// IsOutput reports whether pin is configured as an output.
func (m *Machine) IsOutput(pin core.Pin) bool {
	return bits.IsSet(m.ports[pin.Port()].regs.DDR.Get(), pin.Bit())
}

// level computes a pin from its direction, drivers and pull-up. A
// floating input reads low.
func (m *Machine) level(pin core.Pin) bool {
	ps := &m.ports[pin.Port()]
	b := pin.Bit()
	if bits.IsSet(ps.regs.DDR.Get(), b) {
		if lv, ok := m.ocOverride(pin); ok {
			return lv == core.High
		}
		return bits.IsSet(ps.regs.PORT.Get(), b)
	}
	if bits.IsSet(ps.driven, b) {
		return bits.IsSet(ps.ext, b)
	}
	return bits.IsSet(ps.regs.PORT.Get(), b)
}

func (m *Machine) refreshPorts() {
	for p := core.PortB; p <= core.PortD; p++ {
		m.refreshPort(p)
	}
}

// refreshPort recomputes PINx and reports every changed bit.
func (m *Machine) refreshPort(p core.Port) {
	ps := &m.ports[p]
	var now uint8
	for b := uint8(0); b < 8; b++ {
		if m.level(core.MakePin(p, b)) {
			now = bits.Set(now, b)
		}
	}
	old := ps.pin.Get()
	if now == old {
		return
	}
	ps.pin.Poke(now)
	changed := old ^ now
	for b := uint8(0); b < 8; b++ {
		if bits.IsSet(changed, b) {
			m.edge(core.MakePin(p, b), core.LevelOf(bits.IsSet(now, b)))
		}
	}
}

// edge routes a pin transition to the peripherals sharing the pin.
func (m *Machine) edge(pin core.Pin, level core.Level) {
	switch pin {
	case core.PD2:
		m.extiEdge(core.ExtiInt0, level)
	case core.PD3:
		m.extiEdge(core.ExtiInt1, level)
	case core.PD4:
		m.externalClock(core.Timer0, level)
	case core.PD5:
		m.externalClock(core.Timer1, level)
	case core.PB0:
		m.capture(level)
	}
	for _, f := range m.listeners {
		f(pin, level)
	}
}
