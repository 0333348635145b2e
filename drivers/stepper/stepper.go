// Package stepper sequences the four coils of a unipolar 28BYJ-48 motor
// through a ULN2003 driver.
package stepper

import "avrcore/core"

// Mode selects the phase table.
type Mode uint8

const (
	FullStep Mode = iota // one coil at a time, 4 phases
	HalfStep             // alternating one and two coils, 8 phases
)

// Direction is the stepping direction.
type Direction uint8

const (
	CW Direction = iota
	CCW
)

func (d Direction) String() string {
	if d == CCW {
		return "CCW"
	}
	return "CW"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == CW {
		return CCW
	}
	return CW
}

// Phase tables; bit i drives coil i.
var (
	fullStep = [4]uint8{0x08, 0x04, 0x02, 0x01}
	halfStep = [8]uint8{0x08, 0x0C, 0x04, 0x06, 0x02, 0x03, 0x01, 0x09}
)

// Motor is one stepper. Step may be called from an interrupt handler.
type Motor struct {
	pins      [4]core.Pin
	mode      Mode
	dir       Direction
	active    bool
	index     uint8
	position  int32
	lastCoils uint8
}

// New configures pins as outputs and returns a stopped motor.
func New(pins [4]core.Pin, mode Mode) *Motor {
	m := &Motor{pins: pins, mode: mode}
	for _, p := range pins {
		core.PinMode(p, core.Output)
	}
	m.Stop()
	return m
}

func (m *Motor) phases() uint8 {
	if m.mode == HalfStep {
		return uint8(len(halfStep))
	}
	return uint8(len(fullStep))
}

// Step advances one phase in the current direction. It does nothing while
// the motor is stopped.
func (m *Motor) Step() {
	if !m.active {
		return
	}
	n := m.phases()
	if m.dir == CW {
		m.index = (m.index + 1) % n
		m.position++
	} else {
		m.index = (m.index + n - 1) % n
		m.position--
	}
	if m.mode == HalfStep {
		m.write(halfStep[m.index])
	} else {
		m.write(fullStep[m.index])
	}
}

func (m *Motor) write(coils uint8) {
	for i, p := range m.pins {
		core.WritePin(p, core.LevelOf(coils&(1<<i) != 0))
	}
	m.lastCoils = coils
}

// SetDirection takes effect at the next step.
func (m *Motor) SetDirection(d Direction) {
	m.dir = d
}

// Direction returns the current direction.
func (m *Motor) Direction() Direction {
	return m.dir
}

// Start enables stepping.
func (m *Motor) Start() {
	m.active = true
}

// Stop disables stepping and de-energises every coil.
func (m *Motor) Stop() {
	m.active = false
	m.write(0)
}

// Active reports whether the motor is stepping.
func (m *Motor) Active() bool {
	return m.active
}

// Position returns the phases stepped, CW positive.
func (m *Motor) Position() int32 {
	return m.position
}

// Coils returns the coil pattern last written.
func (m *Motor) Coils() uint8 {
	return m.lastCoils
}
