package core

// Port is one of the ATmega328P GPIO ports.
type Port uint8

const (
	PortB Port = iota
	PortC
	PortD

	numPorts = 3
)

func (p Port) String() string {
	return string(rune('B' + p))
}

// Pin identifies a GPIO pin as port*8 + bit.
type Pin uint8

const (
	PB0 Pin = iota
	PB1
	PB2
	PB3
	PB4
	PB5
	PB6
	PB7
	PC0
	PC1
	PC2
	PC3
	PC4
	PC5
	PC6
	PC7
	PD0
	PD1
	PD2
	PD3
	PD4
	PD5
	PD6
	PD7

	NumPins = 24
)

// MakePin builds a pin from a port and a bit number.
func MakePin(port Port, bit uint8) Pin {
	return Pin(uint8(port)*8 + bit&7)
}

// Port returns the port of p.
func (p Pin) Port() Port {
	return Port(p / 8)
}

// Bit returns the bit of p within its port.
func (p Pin) Bit() uint8 {
	return uint8(p % 8)
}

// Valid reports whether p exists.
func (p Pin) Valid() bool {
	return p < NumPins
}

func (p Pin) String() string {
	if !p.Valid() {
		return "P??"
	}
	return "P" + p.Port().String() + string(rune('0'+p.Bit()))
}

// ParsePin accepts names such as "PB5" or "pd2".
func ParsePin(s string) (Pin, bool) {
	if len(s) != 3 || (s[0] != 'P' && s[0] != 'p') {
		return 0, false
	}
	port := s[1]
	if port >= 'a' {
		port -= 'a' - 'A'
	}
	if port < 'B' || port > 'D' || s[2] < '0' || s[2] > '7' {
		return 0, false
	}
	return MakePin(Port(port-'B'), s[2]-'0'), true
}

// Mode is a pin direction.
type Mode uint8

const (
	Input Mode = iota
	InputPullUp
	Output
)

// Level is a logic level.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Not returns the opposite level.
func (l Level) Not() Level {
	return l ^ 1
}

// LevelOf converts a bool to a Level.
func LevelOf(b bool) Level {
	if b {
		return High
	}
	return Low
}

// GPIODriver is the pin interface drivers and applications use.
type GPIODriver interface {
	Configure(pin Pin, mode Mode)
	Set(pin Pin, level Level)
	Toggle(pin Pin)
	Get(pin Pin) Level
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
