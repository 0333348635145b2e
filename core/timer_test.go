package core

import (
	"errors"
	"testing"
	"time"
)

// reset gives each test a fresh host machine.
func reset(t *testing.T) *RegisterFile {
	t.Helper()
	rf := ResetHost()
	t.Cleanup(func() { ResetHost() })
	return rf
}

func tick(n int) {
	for i := 0; i < n; i++ {
		RaiseIRQ(VectorTimer0CompA)
	}
}

func expectPanic(t *testing.T, what string, f func()) {
	t.Helper()
	if !PreconditionChecks {
		t.Skip("precondition checks disabled")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", what)
		}
	}()
	f()
}

func TestTimerInitProgramsCTC(t *testing.T) {
	tests := []struct {
		ch           TimerChannel
		tccra, tccrb uint8
	}{
		{Timer0, 1 << wgm01, 3},
		{Timer1, 0, 1<<wgm12 | 3},
		{Timer2, 1 << wgm01, 4},
	}
	for _, tt := range tests {
		t.Run(tt.ch.String(), func(t *testing.T) {
			rf := reset(t)
			TimerInit(tt.ch)

			regs := &rf.Timers[tt.ch]
			if got := regs.TCCRA.Get(); got != tt.tccra {
				t.Errorf("TCCRA = %#02x, want %#02x", got, tt.tccra)
			}
			if got := regs.TCCRB.Get(); got != tt.tccrb {
				t.Errorf("TCCRB = %#02x, want %#02x", got, tt.tccrb)
			}
			if got := regs.OCRA.Get(); got != 249 {
				t.Errorf("OCRA = %d, want 249", got)
			}
			if !readBit(regs.TIMSK, ociea) {
				t.Errorf("compare A interrupt not unmasked")
			}
			if !InterruptsEnabled() {
				t.Errorf("global interrupts not enabled")
			}
		})
	}
}

func TestTickCountsCompareMatches(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	TimerInit(Timer0)

	tick(5)
	if got := ReadTick(); got != 5 {
		t.Errorf("ReadTick() = %d after 5 matches, want 5", got)
	}

	// A match while interrupts are off is serviced when they come back.
	state := disableInterrupts()
	tick(1)
	if got := loadTicks(); got != 5 {
		t.Errorf("tick advanced with interrupts off: %d", got)
	}
	restoreInterrupts(state)
	if got := ReadTick(); got != 6 {
		t.Errorf("ReadTick() = %d after restore, want 6", got)
	}
}

func TestReadTickIsAtomic(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	SetTime(0x00FF)

	raised := 0
	tickLoadHook = func(loaded int) {
		if loaded == 1 && raised == 0 {
			raised++
			tick(1)
		}
	}
	got := ReadTick()
	tickLoadHook = nil

	if raised != 1 {
		t.Fatalf("increment raised %d times during the read, want 1", raised)
	}

	if got != 0x00FF {
		t.Errorf("ReadTick() = %#x, want the pre-increment value 0xff", got)
	}
	if got := ReadTick(); got != 0x0100 {
		t.Errorf("ReadTick() = %#x after the deferred increment, want 0x100", got)
	}
}

func TestTimerInitMovesTick(t *testing.T) {
	rf := reset(t)
	TimerInit(Timer0)
	TimerInit(Timer2)

	t0 := &rf.Timers[Timer0]
	if got := t0.TCCRB.Get() & csMask; got != 0 {
		t.Errorf("Timer0 clock select = %d after moving the tick, want 0", got)
	}
	if readBit(t0.TIMSK, ociea) {
		t.Error("Timer0 compare A still unmasked after moving the tick")
	}
	if got := TickConfig().Channel; got != Timer2 {
		t.Errorf("TickConfig().Channel = %v, want timer2", got)
	}

	start := ReadTick()
	// A stray Timer0 match must not count.
	RaiseIRQ(VectorTimer0CompA)
	for i := 0; i < 10; i++ {
		RaiseIRQ(VectorTimer2CompA)
	}
	if got := ReadTick() - start; got != 10 {
		t.Errorf("ticks = %d after 10 Timer2 matches, want 10", got)
	}

	// Moving back reattaches exactly one handler.
	TimerInit(Timer0)
	start = ReadTick()
	tick(3)
	RaiseIRQ(VectorTimer2CompA)
	if got := ReadTick() - start; got != 3 {
		t.Errorf("ticks = %d after moving back to Timer0, want 3", got)
	}
}

func TestUnprotectedLoadTears(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	SetTime(0x00FF)

	tickLoadHook = func(loaded int) {
		if loaded == 1 {
			tick(1)
		}
	}
	got := loadTicks()
	tickLoadHook = nil

	// Low byte from before the carry, high byte from after.
	if got != 0x01FF {
		t.Errorf("loadTicks() = %#x, want torn value 0x1ff", got)
	}
}

func TestDelayLowerBound(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	tick(17)

	idles := 0
	SetIdleHook(func() {
		idles++
		tick(1)
	})

	for _, ms := range []uint32{0, 1, 5, 250} {
		idles = 0
		start := ReadTick()
		Delay(ms)
		if got := Elapsed(start); got < ms {
			t.Errorf("Delay(%d) returned after %d ticks", ms, got)
		}
		if idles != int(ms) {
			t.Errorf("Delay(%d) idled %d times", ms, idles)
		}
	}
}

func TestTickWraparound(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	SetTime(0xFFFFFFFE)
	start := ReadTick()

	tick(3)
	if got := ReadTick(); got != 1 {
		t.Errorf("ReadTick() = %d after wrap, want 1", got)
	}
	if got := Elapsed(start); got != 3 {
		t.Errorf("Elapsed across wrap = %d, want 3", got)
	}
	if !TickDue(1, start, 3) || TickDue(1, start, 4) {
		t.Errorf("TickDue wrong across wrap")
	}
}

func TestGetUptimeCarriesWrap(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	SetTime(0xFFFFFFFF)
	if up := GetUptime(); up != 0xFFFFFFFF {
		t.Errorf("GetUptime() = %#x", up)
	}
	tick(2)
	if up := GetUptime(); up != 1<<32|1 {
		t.Errorf("GetUptime() = %#x after wrap, want 0x100000001", up)
	}
}

func TestTimerChannelConfigValidate(t *testing.T) {
	const cpu = 16000000
	tests := []struct {
		name   string
		cfg    TimerChannelConfig
		period time.Duration
		want   error
	}{
		{"default timer0", DefaultTickConfig(Timer0), time.Millisecond, nil},
		{"default timer2", DefaultTickConfig(Timer2), time.Millisecond, nil},
		{"timer1 /8", TimerChannelConfig{Timer1, Prescale8, 2000}, time.Millisecond, nil},
		{"timer2 /32", TimerChannelConfig{Timer2, Prescale32, 250}, 500 * time.Microsecond, nil},
		{"timer0 /32", TimerChannelConfig{Timer0, Prescale32, 250}, 0, ErrInvalidPrescaler},
		{"timer2 external", TimerChannelConfig{Timer2, ExternalRising, 10}, 0, ErrInvalidPrescaler},
		{"8-bit overflow", TimerChannelConfig{Timer0, Prescale8, 2000}, 0, ErrThresholdRange},
		{"zero threshold", TimerChannelConfig{Timer1, Prescale64, 0}, 0, ErrThresholdRange},
		{"wrong period", DefaultTickConfig(Timer1), 2 * time.Millisecond, ErrPeriodMismatch},
		{"bad channel", TimerChannelConfig{Channel: 3, Prescaler: Prescale64, Threshold: 250}, 0, ErrInvalidChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(cpu, tt.period); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
	if p := DefaultTickConfig(Timer0).Period(cpu); p != time.Millisecond {
		t.Errorf("default period = %v, want 1ms", p)
	}
}

func TestPrescalerClockSelect(t *testing.T) {
	for ch := Timer0; ch <= Timer2; ch++ {
		for p := PrescaleOff; p <= ExternalRising; p++ {
			cs, ok := p.ClockSelect(ch)
			if !ok {
				continue
			}
			if back := PrescalerFromClockSelect(ch, cs); back != p {
				t.Errorf("%v: %d -> cs %d -> %d", ch, p, cs, back)
			}
		}
	}
}

func TestTimerInitInvalidChannel(t *testing.T) {
	reset(t)
	expectPanic(t, "TimerInit(3)", func() { TimerInit(TimerChannel(3)) })
}

func TestTimerConversions(t *testing.T) {
	if got := TimerFromUS(5000); got != 5 {
		t.Errorf("TimerFromUS(5000) = %d", got)
	}
	if got := TimerToUS(2); got != 2000 {
		t.Errorf("TimerToUS(2) = %d", got)
	}
}
