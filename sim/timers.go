package sim

import (
	"avrcore/bits"
	"avrcore/core"
)

// Timer register bits, duplicated from the datasheet rather than exported
// by core.
const (
	bitTOV  = 0
	bitOCFA = 1
	bitOCFB = 2
	bitICF  = 5

	bitTOIE  = 0
	bitOCIEA = 1
	bitOCIEB = 2
	bitICIE  = 5

	bitICES1 = 6
	bitAS2   = 5

	crystalHz = 32768
)

type timerState struct {
	ch   core.TimerChannel
	regs *core.TimerRegisters
	tifr *core.MemRegister8

	residue    uint64 // prescaler input ticks not yet turned into counts
	crystalAcc uint64 // async Timer2: crystal phase in CPU-cycle units

	compA, compB, ovf core.Vector

	// Output compare pins and their latched levels.
	ocPin   [2]core.Pin
	ocLevel [2]core.Level
}

var ocPins = [3][2]core.Pin{
	core.Timer0: {core.PD6, core.PD5},
	core.Timer1: {core.PB1, core.PB2},
	core.Timer2: {core.PB3, core.PD3},
}

func (m *Machine) wireTimers() {
	for ch := core.Timer0; ch <= core.Timer2; ch++ {
		t := &m.timers[ch]
		t.ch = ch
		t.regs = &m.regs.Timers[ch]
		t.tifr = mem(t.regs.TIFR)
		t.compA, t.compB, t.ovf = ch.Vectors()
		t.ocPin = ocPins[ch]

		t.tifr.SetWriteHook(func(old, written uint8) uint8 {
			cleared := old & written
			for b := uint8(0); b < 8; b++ {
				if bits.IsSet(cleared, b) {
					if v, ok := t.vectorFor(b); ok {
						core.CancelIRQ(v)
					}
				}
			}
			return old &^ written
		})
		mem(t.regs.TIMSK).OnWrite(func(_, mask uint8) {
			t.raisePending(mask)
		})
		mem(t.regs.TCCRA).OnWrite(func(_, _ uint8) {
			m.refreshPorts()
		})
	}
}

// vectorFor maps a TIFR bit to its vector.
func (t *timerState) vectorFor(flag uint8) (core.Vector, bool) {
	switch flag {
	case bitTOV:
		return t.ovf, true
	case bitOCFA:
		return t.compA, true
	case bitOCFB:
		return t.compB, true
	case bitICF:
		if t.ch == core.Timer1 {
			return core.VectorTimer1Capt, true
		}
	}
	return 0, false
}

// raisePending requests every vector whose flag and mask bit are both set
// and withdraws the ones that were masked.
func (t *timerState) raisePending(mask uint8) {
	flags := t.tifr.Get()
	for _, b := range [...]uint8{bitTOV, bitOCFA, bitOCFB, bitICF} {
		v, ok := t.vectorFor(b)
		if !ok {
			continue
		}
		if !bits.IsSet(mask, b) {
			core.CancelIRQ(v)
		} else if bits.IsSet(flags, b) {
			core.RaiseIRQ(v)
		}
	}
}

// setFlag latches a TIFR flag and requests the vector if it is unmasked.
func (t *timerState) setFlag(b uint8) {
	t.tifr.Poke(bits.Set(t.tifr.Get(), b))
	if bits.IsSet(t.regs.TIMSK.Get(), b) {
		if v, ok := t.vectorFor(b); ok {
			core.RaiseIRQ(v)
		}
	}
}

func (m *Machine) ackTimer(v core.Vector) {
	for i := range m.timers {
		t := &m.timers[i]
		for _, b := range [...]uint8{bitTOV, bitOCFA, bitOCFB, bitICF} {
			if fv, ok := t.vectorFor(b); ok && fv == v {
				t.tifr.Poke(bits.Clear(t.tifr.Get(), b))
				return
			}
		}
	}
}

func (t *timerState) clockSelect() uint8 {
	return t.regs.TCCRB.Get() & 0x07
}

// divisor returns the prescaler of an internally clocked timer, or 0 when
// stopped or clocked from a pin.
func (t *timerState) divisor() uint64 {
	return uint64(core.PrescalerFromClockSelect(t.ch, t.clockSelect()).Divisor())
}

func (t *timerState) async(m *Machine) bool {
	return t.ch == core.Timer2 && bits.IsSet(m.regs.ASSR.Get(), bitAS2)
}

// ctc reports whether the timer clears on compare match A.
func (t *timerState) ctc() bool {
	a, b := t.regs.TCCRA.Get(), t.regs.TCCRB.Get()
	if t.ch == core.Timer1 {
		return a&0x03 == 0 && b&0x18 == 0x08
	}
	return a&0x03 == 0x02 && b&0x08 == 0
}

func (t *timerState) max() uint32 {
	return t.ch.Max()
}

// wrapAt is the value after which the counter returns to zero.
func (t *timerState) wrapAt(cur uint32) uint32 {
	if t.ctc() {
		if top := uint32(t.regs.OCRA.Get()); cur <= top {
			return top
		}
	}
	return t.max()
}

// countsToEvent returns the counts until the next flag is set.
func (t *timerState) countsToEvent() uint64 {
	cur := uint32(t.regs.TCNT.Get())
	wrap := t.wrapAt(cur)
	d := uint64(wrap-cur) + 1
	for _, ocr := range [...]uint32{uint32(t.regs.OCRA.Get()), uint32(t.regs.OCRB.Get())} {
		if ocr > cur && ocr <= wrap && uint64(ocr-cur) < d {
			d = uint64(ocr - cur)
		}
	}
	return d
}

// nextTimerEvent returns the CPU cycles until the earliest timer flag, or
// 0 when no timer is running.
func (m *Machine) nextTimerEvent() uint64 {
	var next uint64
	for i := range m.timers {
		t := &m.timers[i]
		div := t.divisor()
		if div == 0 {
			continue
		}
		need := t.countsToEvent()*div - t.residue
		var cycles uint64
		if t.async(m) {
			// need crystal ticks, converted to CPU cycles rounding up
			cycles = (need*uint64(m.cpuHz) - t.crystalAcc + crystalHz - 1) / crystalHz
		} else {
			cycles = need
		}
		if cycles == 0 {
			cycles = 1
		}
		if next == 0 || cycles < next {
			next = cycles
		}
	}
	return next
}

func (m *Machine) clockTimers(cycles uint64) {
	for i := range m.timers {
		t := &m.timers[i]
		div := t.divisor()
		if div == 0 {
			continue
		}
		in := cycles
		if t.async(m) {
			t.crystalAcc += cycles * crystalHz
			in = t.crystalAcc / uint64(m.cpuHz)
			t.crystalAcc %= uint64(m.cpuHz)
		}
		t.residue += in
		counts := t.residue / div
		t.residue %= div
		if counts > 0 {
			m.count(t, counts)
		}
	}
}

// count advances the counter by n, setting flags at each compare match and
// wrap on the way.
func (m *Machine) count(t *timerState, n uint64) {
	for n > 0 {
		cur := uint32(t.regs.TCNT.Get())
		wrap := t.wrapAt(cur)
		d := t.countsToEvent()
		if n < d {
			t.regs.TCNT.Set(uint16(cur + uint32(n)))
			return
		}
		n -= d
		next := uint32(0)
		if uint64(wrap-cur)+1 != d {
			next = cur + uint32(d)
		}
		t.regs.TCNT.Set(uint16(next))
		if next == 0 && wrap == t.max() {
			t.setFlag(bitTOV)
		}
		if next == uint32(t.regs.OCRA.Get()) {
			m.compareMatch(t, 0)
			t.setFlag(bitOCFA)
		}
		if next == uint32(t.regs.OCRB.Get()) {
			m.compareMatch(t, 1)
			t.setFlag(bitOCFB)
		}
	}
}

// compareMatch applies the COMnx action to the output compare latch.
func (m *Machine) compareMatch(t *timerState, unit int) {
	shift := uint8(6 - 2*unit)
	switch bits.Field(t.regs.TCCRA.Get(), shift, 0x03) {
	case uint8(core.OutputToggle):
		t.ocLevel[unit] = t.ocLevel[unit].Not()
	case uint8(core.OutputClear):
		t.ocLevel[unit] = core.Low
	case uint8(core.OutputSet):
		t.ocLevel[unit] = core.High
	default:
		return
	}
	m.refreshPort(t.ocPin[unit].Port())
}

// ocOverride reports whether pin is driven by a compare output unit and at
// which level.
func (m *Machine) ocOverride(pin core.Pin) (core.Level, bool) {
	for i := range m.timers {
		t := &m.timers[i]
		for unit, p := range t.ocPin {
			if p != pin {
				continue
			}
			shift := uint8(6 - 2*unit)
			if bits.Field(t.regs.TCCRA.Get(), shift, 0x03) != 0 {
				return t.ocLevel[unit], true
			}
		}
	}
	return core.Low, false
}

// externalClock counts one edge of a T0/T1 pin.
func (m *Machine) externalClock(ch core.TimerChannel, level core.Level) {
	t := &m.timers[ch]
	switch t.clockSelect() {
	case 6:
		if level == core.Low {
			m.count(t, 1)
		}
	case 7:
		if level == core.High {
			m.count(t, 1)
		}
	}
}

// capture latches TCNT1 into ICR1 on the selected ICP1 edge.
func (m *Machine) capture(level core.Level) {
	t := &m.timers[core.Timer1]
	rising := bits.IsSet(t.regs.TCCRB.Get(), bitICES1)
	if rising != (level == core.High) {
		return
	}
	t.regs.ICR.Set(t.regs.TCNT.Get())
	t.setFlag(bitICF)
}
