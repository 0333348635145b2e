package core

import (
	"errors"
	"time"
)

// TimerChannel selects one of the three timer/counter units.
type TimerChannel uint8

const (
	Timer0 TimerChannel = iota // 8-bit
	Timer1                     // 16-bit
	Timer2                     // 8-bit, optional asynchronous clock

	numTimerChannels = 3
)

// Valid reports whether c names an existing channel.
func (c TimerChannel) Valid() bool {
	return c < numTimerChannels
}

// Is16Bit reports whether the channel counts to 0xFFFF.
func (c TimerChannel) Is16Bit() bool {
	return c == Timer1
}

// Max returns the largest counter value of the channel.
func (c TimerChannel) Max() uint32 {
	if c.Is16Bit() {
		return 0xFFFF
	}
	return 0xFF
}

func (c TimerChannel) String() string {
	switch c {
	case Timer0:
		return "timer0"
	case Timer1:
		return "timer1"
	case Timer2:
		return "timer2"
	}
	return "timer?"
}

// Vectors returns the compare A, compare B and overflow vectors of c.
func (c TimerChannel) Vectors() (compA, compB, ovf Vector) {
	switch c {
	case Timer0:
		return VectorTimer0CompA, VectorTimer0CompB, VectorTimer0Ovf
	case Timer1:
		return VectorTimer1CompA, VectorTimer1CompB, VectorTimer1Ovf
	default:
		return VectorTimer2CompA, VectorTimer2CompB, VectorTimer2Ovf
	}
}

// Prescaler is a timer clock source. The values are opaque tags; the
// clock-select code written to TCCRnB depends on the channel.
type Prescaler uint8

const (
	PrescaleOff Prescaler = iota
	Prescale1
	Prescale8
	Prescale32 // Timer2 only
	Prescale64
	Prescale128 // Timer2 only
	Prescale256
	Prescale1024
	ExternalFalling // T0/T1 pin, Timer0 and Timer1 only
	ExternalRising
)

// Divisor returns the clock division factor, 0 when stopped or external.
func (p Prescaler) Divisor() uint32 {
	switch p {
	case Prescale1:
		return 1
	case Prescale8:
		return 8
	case Prescale32:
		return 32
	case Prescale64:
		return 64
	case Prescale128:
		return 128
	case Prescale256:
		return 256
	case Prescale1024:
		return 1024
	}
	return 0
}

// ClockSelect returns the CSn2:0 code for p on channel c.
//
//	Timer0/1: off=0 /1=1 /8=2 /64=3 /256=4 /1024=5 Tn falling=6 Tn rising=7
//	Timer2:   off=0 /1=1 /8=2 /32=3 /64=4 /128=5 /256=6 /1024=7
func (p Prescaler) ClockSelect(c TimerChannel) (uint8, bool) {
	if c == Timer2 {
		switch p {
		case PrescaleOff:
			return 0, true
		case Prescale1:
			return 1, true
		case Prescale8:
			return 2, true
		case Prescale32:
			return 3, true
		case Prescale64:
			return 4, true
		case Prescale128:
			return 5, true
		case Prescale256:
			return 6, true
		case Prescale1024:
			return 7, true
		}
		return 0, false
	}
	switch p {
	case PrescaleOff:
		return 0, true
	case Prescale1:
		return 1, true
	case Prescale8:
		return 2, true
	case Prescale64:
		return 3, true
	case Prescale256:
		return 4, true
	case Prescale1024:
		return 5, true
	case ExternalFalling:
		return 6, true
	case ExternalRising:
		return 7, true
	}
	return 0, false
}

// PrescalerFromClockSelect inverts ClockSelect.
func PrescalerFromClockSelect(c TimerChannel, cs uint8) Prescaler {
	for p := PrescaleOff; p <= ExternalRising; p++ {
		if code, ok := p.ClockSelect(c); ok && code == cs&csMask {
			return p
		}
	}
	return PrescaleOff
}

// Register bit positions shared by the three timers.
const (
	wgm01  = 1 // TCCR0A/TCCR2A: CTC when set alone
	wgm12  = 3 // TCCR1B: CTC with TOP=OCR1A
	ices1  = 6 // TCCR1B: input capture edge
	icnc1  = 7 // TCCR1B: input capture noise canceller
	comA   = 6 // TCCRnA: COMnA1:0
	comB   = 4 // TCCRnA: COMnB1:0
	csMask = 0x07

	toie  = 0 // TIMSKn
	ociea = 1
	ocieb = 2
	icie1 = 5

	tov  = 0 // TIFRn
	ocfa = 1
	ocfb = 2
	icf1 = 5

	as2 = 5 // ASSR
)

var (
	ErrInvalidChannel   = errors.New("invalid timer channel")
	ErrInvalidPrescaler = errors.New("prescaler not available on channel")
	ErrThresholdRange   = errors.New("threshold out of range for channel")
	ErrPeriodMismatch   = errors.New("threshold and prescaler do not yield the tick period")
)

// TimerChannelConfig selects the hardware backing the tick. A tick is
// raised every Threshold counts of the prescaled clock.
type TimerChannelConfig struct {
	Channel   TimerChannel
	Prescaler Prescaler
	Threshold uint32
}

// DefaultTickConfig is the 1 ms tick at 16 MHz: clock/64, 250 counts.
func DefaultTickConfig(ch TimerChannel) TimerChannelConfig {
	return TimerChannelConfig{Channel: ch, Prescaler: Prescale64, Threshold: 250}
}

// Period returns the tick period for a CPU clock of cpuHz.
func (c TimerChannelConfig) Period(cpuHz uint32) time.Duration {
	if cpuHz == 0 {
		return 0
	}
	cycles := uint64(c.Prescaler.Divisor()) * uint64(c.Threshold)
	return time.Duration(cycles * uint64(time.Second) / uint64(cpuHz))
}

// Validate checks the configuration against the channel and, when period
// is non-zero, that it yields exactly that period at cpuHz.
func (c TimerChannelConfig) Validate(cpuHz uint32, period time.Duration) error {
	if !c.Channel.Valid() {
		return ErrInvalidChannel
	}
	if _, ok := c.Prescaler.ClockSelect(c.Channel); !ok || c.Prescaler.Divisor() == 0 {
		return ErrInvalidPrescaler
	}
	if c.Threshold == 0 || c.Threshold-1 > c.Channel.Max() {
		return ErrThresholdRange
	}
	if period != 0 {
		cycles := uint64(c.Prescaler.Divisor()) * uint64(c.Threshold)
		if cycles*uint64(time.Second) != uint64(period)*uint64(cpuHz) {
			return ErrPeriodMismatch
		}
	}
	return nil
}

// TickFrequency is the tick rate of the reference configuration.
const TickFrequency = 1000

var (
	tickConfig   TimerChannelConfig
	tickSlot     [numTimerChannels]int // index+1 of tickISR in the compare A handlers
	bootTime     uint32
	uptimeHigh   uint32
	uptimeLast   uint32
	idleHook     func()
)

// TimerInit starts the tick on ch with the default 1 ms configuration.
func TimerInit(ch TimerChannel) {
	TimerInitConfig(DefaultTickConfig(ch))
}

// TimerInitConfig puts the channel in CTC mode with TOP = Threshold-1,
// binds the tick handler to its compare A vector, unmasks it and enables
// global interrupts.
func TimerInitConfig(cfg TimerChannelConfig) {
	if err := cfg.Validate(0, 0); err != nil {
		precondition("timer: " + err.Error())
		return
	}
	cs, _ := cfg.Prescaler.ClockSelect(cfg.Channel)
	regs := &Registers().Timers[cfg.Channel]
	compA, _, _ := cfg.Channel.Vectors()

	CriticalSection(func() {
		if prev := tickConfig; prev.Threshold != 0 && prev.Channel != cfg.Channel {
			stopTick(prev.Channel)
		}
		regs.TCCRB.Set(0)
		regs.TCNT.Set(0)
		regs.OCRA.Set(uint16(cfg.Threshold - 1))
		if cfg.Channel.Is16Bit() {
			regs.TCCRA.Set(0)
			regs.TCCRB.Set(1<<wgm12 | cs)
		} else {
			regs.TCCRA.Set(1 << wgm01)
			regs.TCCRB.Set(cs)
		}
		regs.TIFR.Set(1 << ocfa)
		if tickSlot[cfg.Channel] == 0 {
			irqHandlers[compA] = append(irqHandlers[compA], tickISR)
			tickSlot[cfg.Channel] = len(irqHandlers[compA])
		}
		setBit(regs.TIMSK, ociea)
		tickConfig = cfg
	})
	bootTime = ReadTick()
	RecordTiming(EvtTimerInit, uint8(cfg.Channel), bootTime, cfg.Threshold, uint32(cfg.Prescaler))
	EnableInterrupts()
}

// stopTick releases a channel that no longer drives the tick: clock off,
// compare A masked, tick handler removed. Called with interrupts off.
func stopTick(ch TimerChannel) {
	regs := &Registers().Timers[ch]
	regs.TCCRB.Set(regs.TCCRB.Get() &^ csMask)
	clearBit(regs.TIMSK, ociea)
	compA, _, _ := ch.Vectors()
	if i := tickSlot[ch] - 1; i >= 0 && i < len(irqHandlers[compA]) {
		hs := irqHandlers[compA]
		irqHandlers[compA] = append(hs[:i:i], hs[i+1:]...)
	}
	tickSlot[ch] = 0
}

// TickConfig returns the configuration passed to the last TimerInit.
func TickConfig() TimerChannelConfig {
	return tickConfig
}

// tickISR is the only writer of the tick counter
func tickISR() {
	storeTicks(loadTicksRaw() + 1)
}

// ReadTick returns a consistent snapshot of the tick counter. The counter
// is wider than a single load, so the copy is made with interrupts off.
func ReadTick() uint32 {
	state := disableInterrupts()
	t := loadTicks()
	restoreInterrupts(state)
	return t
}

// Delay spins until ms ticks have elapsed. It must not be called from an
// interrupt handler.
func Delay(ms uint32) {
	start := ReadTick()
	for ReadTick()-start < ms {
		idle()
	}
}

// Elapsed returns the ticks since since, wraparound safe.
func Elapsed(since uint32) uint32 {
	return ReadTick() - since
}

// TickDue reports whether period ticks separate last and now.
func TickDue(now, last, period uint32) bool {
	return now-last >= period
}

// SetIdleHook installs the function Delay calls while waiting.
func SetIdleHook(f func()) {
	idleHook = f
}

func idle() {
	if idleHook != nil {
		idleHook()
		return
	}
	yield()
}

// GetTime returns the current tick count.
func GetTime() uint32 {
	return ReadTick()
}

// SetTime overwrites the tick counter.
func SetTime(ticks uint32) {
	CriticalSection(func() {
		storeTicks(ticks)
	})
}

// GetUptime returns a 64-bit tick count. The high word advances when a
// call observes the low word wrapping, so it must be called at least once
// per wrap period.
func GetUptime() uint64 {
	now := ReadTick()
	if now < uptimeLast {
		uptimeHigh++
	}
	uptimeLast = now
	return uint64(uptimeHigh)<<32 | uint64(now)
}

// TimerFromUS converts microseconds to ticks.
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TickFrequency / 1000000)
}

// TimerToUS converts ticks to microseconds.
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TickFrequency)
}

// ProcessTimers dispatches one-shot timers that are due.
func ProcessTimers() {
	currentTime = ReadTick()
	TimerDispatch()
}
