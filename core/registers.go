package core

import "avrcore/bits"

// Register8 is an 8-bit I/O register. *volatile.Register8 from TinyGo's
// device/avr package satisfies it, as does MemRegister8 on the host.
type Register8 interface {
	Get() uint8
	Set(value uint8)
}

// WriteHook intercepts a write to a MemRegister8. It receives the current
// content and the written value and returns the value to store.
type WriteHook func(old, written uint8) uint8

// MemRegister8 is a plain memory-backed register used by host builds and
// the simulator.
type MemRegister8 struct {
	value  uint8
	hook   WriteHook
	notify func(old, stored uint8)
}

// Get returns the register content.
func (r *MemRegister8) Get() uint8 {
	return r.value
}

// Set writes the register, passing through the write hook if one is installed.
func (r *MemRegister8) Set(value uint8) {
	old := r.value
	if r.hook != nil {
		value = r.hook(old, value)
	}
	r.value = value
	if r.notify != nil {
		r.notify(old, value)
	}
}

// Poke stores value without running hooks. Hardware-side updates (flags,
// input pins, counters) use it.
func (r *MemRegister8) Poke(value uint8) {
	r.value = value
}

// SetWriteHook installs a filter applied to every Set.
func (r *MemRegister8) SetWriteHook(h WriteHook) {
	r.hook = h
}

// OnWrite installs a callback run after every Set.
func (r *MemRegister8) OnWrite(f func(old, stored uint8)) {
	r.notify = f
}

// Register16 is a 16-bit register made of two 8-bit halves. The AVR
// latches the high byte in a shared temp register, so the high half is
// written first and the low half is read first. A nil H models an 8-bit
// register.
type Register16 struct {
	H Register8
	L Register8
}

// Get reads the register low byte first.
func (r Register16) Get() uint16 {
	lo := r.L.Get()
	if r.H == nil {
		return uint16(lo)
	}
	return uint16(r.H.Get())<<8 | uint16(lo)
}

// Set writes the register high byte first.
func (r Register16) Set(value uint16) {
	if r.H != nil {
		r.H.Set(uint8(value >> 8))
	}
	r.L.Set(uint8(value))
}

// Wide reports whether both halves are present.
func (r Register16) Wide() bool {
	return r.H != nil
}

// TimerRegisters groups the registers of one timer/counter unit.
type TimerRegisters struct {
	TCCRA Register8
	TCCRB Register8
	TCNT  Register16
	OCRA  Register16
	OCRB  Register16
	ICR   Register16 // Timer1 only
	TIMSK Register8
	TIFR  Register8
}

// PortRegisters groups the three registers of one GPIO port.
type PortRegisters struct {
	PIN  Register8
	DDR  Register8
	PORT Register8
}

// RegisterFile is every register the core drives.
type RegisterFile struct {
	Timers [numTimerChannels]TimerRegisters
	ASSR   Register8
	EICRA  Register8
	EIMSK  Register8
	EIFR   Register8
	Ports  [numPorts]PortRegisters
}

var registerFile *RegisterFile

// SetRegisterFile installs the register file used by the core. AVR builds
// bind device/avr at init; host builds install a memory-backed file.
func SetRegisterFile(rf *RegisterFile) {
	registerFile = rf
}

// Registers returns the installed register file or panics if missing.
func Registers() *RegisterFile {
	if registerFile == nil {
		panic("register file not configured")
	}
	return registerFile
}

// NewMemoryRegisterFile returns a register file backed by MemRegister8 cells.
func NewMemoryRegisterFile() *RegisterFile {
	r8 := func() Register8 { return &MemRegister8{} }
	r16 := func() Register16 { return Register16{H: r8(), L: r8()} }
	r16n := func() Register16 { return Register16{L: r8()} }

	rf := &RegisterFile{
		ASSR:  r8(),
		EICRA: r8(),
		EIMSK: r8(),
		EIFR:  r8(),
	}
	for ch := range rf.Timers {
		t := &rf.Timers[ch]
		t.TCCRA, t.TCCRB = r8(), r8()
		t.TIMSK, t.TIFR = r8(), r8()
		if TimerChannel(ch).Is16Bit() {
			t.TCNT, t.OCRA, t.OCRB, t.ICR = r16(), r16(), r16(), r16()
		} else {
			t.TCNT, t.OCRA, t.OCRB = r16n(), r16n(), r16n()
		}
	}
	for p := range rf.Ports {
		rf.Ports[p] = PortRegisters{PIN: r8(), DDR: r8(), PORT: r8()}
	}
	return rf
}

func setBit(r Register8, n uint8) {
	r.Set(bits.Set(r.Get(), n))
}

func clearBit(r Register8, n uint8) {
	r.Set(bits.Clear(r.Get(), n))
}

func toggleBit(r Register8, n uint8) {
	r.Set(bits.Toggle(r.Get(), n))
}

func readBit(r Register8, n uint8) bool {
	return bits.IsSet(r.Get(), n)
}
