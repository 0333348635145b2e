package serial

import (
	"io"
	"net"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - An in-process pipe to the simulator
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; the ATmega328P UART runs 115200 with U2X at 16 MHz
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud is the firmware UART rate.
const DefaultBaud = 115200

// DefaultConfig returns the configuration the firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}

// pipePort is one end of an in-memory serial link
type pipePort struct {
	net.Conn
}

func (p pipePort) Flush() error { return nil }

// Pipe returns two connected ports. Bytes written to one are read from the
// other, with no buffering: a write blocks until the peer reads.
func Pipe() (Port, Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}
