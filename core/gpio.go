package core

// RegisterGPIO drives pins through the DDRx, PORTx and PINx registers.
// An input with its PORTx bit set has the internal pull-up enabled.
type RegisterGPIO struct {
	regs *RegisterFile
}

// NewRegisterGPIO returns a driver over rf.
func NewRegisterGPIO(rf *RegisterFile) *RegisterGPIO {
	return &RegisterGPIO{regs: rf}
}

func (g *RegisterGPIO) port(pin Pin) *PortRegisters {
	return &g.regs.Ports[pin.Port()]
}

// Configure sets the direction of pin.
func (g *RegisterGPIO) Configure(pin Pin, mode Mode) {
	if !pin.Valid() {
		precondition("gpio: invalid pin")
		return
	}
	p := g.port(pin)
	CriticalSection(func() {
		switch mode {
		case Output:
			setBit(p.DDR, pin.Bit())
		case InputPullUp:
			clearBit(p.DDR, pin.Bit())
			setBit(p.PORT, pin.Bit())
		default:
			clearBit(p.DDR, pin.Bit())
			clearBit(p.PORT, pin.Bit())
		}
	})
}

// Set drives an output pin, or switches the pull-up of an input pin.
func (g *RegisterGPIO) Set(pin Pin, level Level) {
	if !pin.Valid() {
		precondition("gpio: invalid pin")
		return
	}
	p := g.port(pin)
	CriticalSection(func() {
		if level == High {
			setBit(p.PORT, pin.Bit())
		} else {
			clearBit(p.PORT, pin.Bit())
		}
	})
}

// Toggle inverts the PORTx bit of pin.
func (g *RegisterGPIO) Toggle(pin Pin) {
	if !pin.Valid() {
		precondition("gpio: invalid pin")
		return
	}
	p := g.port(pin)
	CriticalSection(func() {
		toggleBit(p.PORT, pin.Bit())
	})
}

// Get samples PINx.
func (g *RegisterGPIO) Get(pin Pin) Level {
	if !pin.Valid() {
		precondition("gpio: invalid pin")
		return Low
	}
	return LevelOf(readBit(g.port(pin).PIN, pin.Bit()))
}

// PinMode configures pin on the global driver.
func PinMode(pin Pin, mode Mode) {
	MustGPIO().Configure(pin, mode)
}

// WritePin drives pin on the global driver.
func WritePin(pin Pin, level Level) {
	MustGPIO().Set(pin, level)
}

// TogglePin toggles pin on the global driver.
func TogglePin(pin Pin) {
	MustGPIO().Toggle(pin)
}

// ReadPin samples pin on the global driver.
func ReadPin(pin Pin) Level {
	return MustGPIO().Get(pin)
}
