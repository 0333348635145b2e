package core

// CompareOutput is the action on the OCnx pin at a compare match
// (COMnx1:0).
type CompareOutput uint8

const (
	OutputDisconnect CompareOutput = 0
	OutputToggle     CompareOutput = 1
	OutputClear      CompareOutput = 2
	OutputSet        CompareOutput = 3
)

// CompareChannel selects output compare unit A or B.
type CompareChannel uint8

const (
	CompareA CompareChannel = iota
	CompareB
)

func (c CompareChannel) String() string {
	if c == CompareB {
		return "B"
	}
	return "A"
}

func compareRegs(ch TimerChannel, cc CompareChannel) (ocr Register16, flag, mask uint8, vec Vector) {
	regs := &Registers().Timers[ch]
	compA, compB, _ := ch.Vectors()
	if cc == CompareB {
		return regs.OCRB, ocfb, ocieb, compB
	}
	return regs.OCRA, ocfa, ociea, compA
}

// NormalInit runs ch in normal mode (count 0..MAX and wrap) from the
// given clock, with the compare outputs set to outA and outB. The counter
// is reset and stale flags are cleared.
func NormalInit(ch TimerChannel, p Prescaler, outA, outB CompareOutput) {
	cs, ok := p.ClockSelect(ch)
	if !ch.Valid() || !ok {
		precondition("timer: invalid channel or prescaler")
		return
	}
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		regs.TCCRB.Set(0)
		regs.TCCRA.Set(uint8(outA&0x03)<<comA | uint8(outB&0x03)<<comB)
		regs.TCNT.Set(0)
		regs.TIFR.Set(1<<tov | 1<<ocfa | 1<<ocfb | 1<<icf1)
		regs.TCCRB.Set(cs)
	})
}

// TimerStop removes the clock source of ch.
func TimerStop(ch TimerChannel) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		regs.TCCRB.Set(regs.TCCRB.Get() &^ csMask)
	})
}

// SetAlarm loads the compare register and unmasks its interrupt. The
// match fires when the counter next reaches value.
func SetAlarm(ch TimerChannel, cc CompareChannel, value uint16) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	ocr, flag, mask, _ := compareRegs(ch, cc)
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		ocr.Set(value)
		regs.TIFR.Set(1 << flag)
		setBit(regs.TIMSK, mask)
	})
}

// SetAlarmA is SetAlarm on compare unit A.
func SetAlarmA(ch TimerChannel, value uint16) { SetAlarm(ch, CompareA, value) }

// SetAlarmB is SetAlarm on compare unit B.
func SetAlarmB(ch TimerChannel, value uint16) { SetAlarm(ch, CompareB, value) }

// DisableAlarm masks the compare interrupt.
func DisableAlarm(ch TimerChannel, cc CompareChannel) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	_, _, mask, _ := compareRegs(ch, cc)
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		clearBit(regs.TIMSK, mask)
	})
}

// ReadCounter returns TCNTn. The 16-bit read goes through the shared temp
// register, so it is done with interrupts off.
func ReadCounter(ch TimerChannel) uint16 {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return 0
	}
	var v uint16
	CriticalSection(func() {
		v = Registers().Timers[ch].TCNT.Get()
	})
	return v
}

// WriteCounter sets TCNTn.
func WriteCounter(ch TimerChannel, value uint16) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	CriticalSection(func() {
		Registers().Timers[ch].TCNT.Set(value)
	})
}

// EnableOverflowIRQ unmasks the overflow interrupt of ch.
func EnableOverflowIRQ(ch TimerChannel) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		regs.TIFR.Set(1 << tov)
		setBit(regs.TIMSK, toie)
	})
}

// DisableOverflowIRQ masks the overflow interrupt of ch.
func DisableOverflowIRQ(ch TimerChannel) {
	if !ch.Valid() {
		precondition("timer: invalid channel")
		return
	}
	regs := &Registers().Timers[ch]
	CriticalSection(func() {
		clearBit(regs.TIMSK, toie)
	})
}

// InputCaptureInit arms Timer1 input capture on ICP1 (PB0). The counter
// value is latched into ICR1 on the selected edge.
func InputCaptureInit(risingEdge, noiseCanceller bool) {
	regs := &Registers().Timers[Timer1]
	CriticalSection(func() {
		b := regs.TCCRB.Get() &^ (1<<ices1 | 1<<icnc1)
		if risingEdge {
			b |= 1 << ices1
		}
		if noiseCanceller {
			b |= 1 << icnc1
		}
		regs.TCCRB.Set(b)
		regs.TIFR.Set(1 << icf1)
		setBit(regs.TIMSK, icie1)
	})
}

// InputCaptureDisable masks the input capture interrupt.
func InputCaptureDisable() {
	regs := &Registers().Timers[Timer1]
	CriticalSection(func() {
		clearBit(regs.TIMSK, icie1)
	})
}

// ReadCapture returns ICR1.
func ReadCapture() uint16 {
	var v uint16
	CriticalSection(func() {
		v = Registers().Timers[Timer1].ICR.Get()
	})
	return v
}

// Timer2EnableAsync clocks Timer2 from the 32.768 kHz crystal on TOSC1/2.
func Timer2EnableAsync() {
	CriticalSection(func() {
		setBit(Registers().ASSR, as2)
	})
}

// PeriodicAlarm re-arms a compare unit relative to its previous match
// (OCR += Period), giving a fixed cadence on a free-running normal-mode
// timer. Handler runs in interrupt context.
type PeriodicAlarm struct {
	Channel TimerChannel
	Compare CompareChannel
	Period  uint16
	Handler IRQHandler

	attached bool
	fired    uint32
}

// Start arms the first match one period from now.
func (a *PeriodicAlarm) Start() {
	if !a.Channel.Valid() {
		precondition("timer: invalid channel")
		return
	}
	_, _, _, vec := compareRegs(a.Channel, a.Compare)
	if !a.attached {
		AttachInterrupt(vec, a.fire)
		a.attached = true
	}
	SetAlarm(a.Channel, a.Compare, ReadCounter(a.Channel)+a.Period)
}

// Stop masks the compare interrupt.
func (a *PeriodicAlarm) Stop() {
	DisableAlarm(a.Channel, a.Compare)
}

// Fired returns how many matches have been handled.
func (a *PeriodicAlarm) Fired() uint32 {
	var n uint32
	CriticalSection(func() { n = a.fired })
	return n
}

func (a *PeriodicAlarm) fire() {
	regs := &Registers().Timers[a.Channel]
	ocr, _, mask, _ := compareRegs(a.Channel, a.Compare)
	if !readBit(regs.TIMSK, mask) {
		return
	}
	a.fired++
	RecordTiming(EvtAlarm, uint8(a.Channel)<<1|uint8(a.Compare), loadTicks(), uint32(ocr.Get()), uint32(a.Period))
	if a.Handler != nil {
		a.Handler()
	}
	ocr.Set(ocr.Get() + a.Period)
}
