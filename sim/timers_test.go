package sim

import (
	"testing"
	"time"

	"avrcore/core"
)

func TestTickPeriodOnEveryChannel(t *testing.T) {
	for _, ch := range []core.TimerChannel{core.Timer0, core.Timer1, core.Timer2} {
		t.Run(ch.String(), func(t *testing.T) {
			m := newMachine(t)
			core.TimerInit(ch)

			m.Advance(15935)
			if got := core.ReadTick(); got != 0 {
				t.Fatalf("tick before the first match = %d", got)
			}
			m.Advance(1)
			if got := core.ReadTick(); got != 1 {
				t.Fatalf("tick at the first match = %d, want 1", got)
			}
			m.AdvanceTime(time.Second)
			if got := core.ReadTick(); got != 1001 {
				t.Errorf("tick after 1s more = %d, want 1001", got)
			}
		})
	}
}

func TestOverflowInterrupt(t *testing.T) {
	m := newMachine(t)
	var ovf int
	_, _, vec := core.Timer0.Vectors()
	core.AttachInterrupt(vec, func() { ovf++ })
	core.NormalInit(core.Timer0, core.Prescale8, core.OutputDisconnect, core.OutputDisconnect)
	core.EnableOverflowIRQ(core.Timer0)
	core.EnableInterrupts()

	m.Advance(256*8*3 - 1)
	if ovf != 2 {
		t.Errorf("overflows = %d, want 2", ovf)
	}
	m.Advance(1)
	if ovf != 3 {
		t.Errorf("overflows = %d, want 3", ovf)
	}
	if tifr := m.Registers().Timers[core.Timer0].TIFR.Get(); tifr&(1<<bitTOV) != 0 {
		t.Error("TOV0 still set after the handler ran")
	}
}

func TestPeriodicAlarmReschedules(t *testing.T) {
	m := newMachine(t)
	core.NormalInit(core.Timer1, core.Prescale64, core.OutputDisconnect, core.OutputDisconnect)
	steps := &core.PeriodicAlarm{Channel: core.Timer1, Compare: core.CompareA, Period: 2500}
	poll := &core.PeriodicAlarm{Channel: core.Timer1, Compare: core.CompareB, Period: 5000}
	steps.Start()
	poll.Start()
	core.EnableInterrupts()

	m.AdvanceTime(100 * time.Millisecond)
	if got := steps.Fired(); got != 10 {
		t.Errorf("10ms alarm fired %d times in 100ms, want 10", got)
	}
	if got := poll.Fired(); got != 5 {
		t.Errorf("20ms alarm fired %d times in 100ms, want 5", got)
	}

	// 16-bit wrap of the counter must not disturb the cadence.
	m.AdvanceTime(900 * time.Millisecond)
	if got := steps.Fired(); got != 100 {
		t.Errorf("10ms alarm fired %d times in 1s, want 100", got)
	}
}

func TestPendingFlagRaisedOnUnmask(t *testing.T) {
	m := newMachine(t)
	var hits int
	core.AttachInterrupt(core.VectorTimer2CompA, func() { hits++ })
	core.NormalInit(core.Timer2, core.Prescale1, core.OutputDisconnect, core.OutputDisconnect)
	regs := &m.Registers().Timers[core.Timer2]
	regs.OCRA.Set(10)
	core.EnableInterrupts()

	m.Advance(20)
	if hits != 0 {
		t.Fatalf("masked compare ran the handler")
	}
	if regs.TIFR.Get()&(1<<bitOCFA) == 0 {
		t.Fatal("OCF2A not latched while masked")
	}
	regs.TIMSK.Set(1 << bitOCIEA)
	if hits != 1 {
		t.Errorf("unmasking a latched flag ran the handler %d times, want 1", hits)
	}
}

func TestTimer2Async(t *testing.T) {
	m := newMachine(t)
	var ovf int
	core.AttachInterrupt(core.VectorTimer2Ovf, func() { ovf++ })
	core.Timer2EnableAsync()
	core.NormalInit(core.Timer2, core.Prescale128, core.OutputDisconnect, core.OutputDisconnect)
	core.EnableOverflowIRQ(core.Timer2)
	core.EnableInterrupts()

	m.AdvanceTime(999 * time.Millisecond)
	if ovf != 0 {
		t.Fatalf("overflow after 999ms")
	}
	m.AdvanceTime(time.Millisecond)
	if ovf != 1 {
		t.Errorf("overflows after 1s = %d, want 1", ovf)
	}
}

func TestInputCapture(t *testing.T) {
	m := newMachine(t)
	var captured []uint16
	core.AttachInterrupt(core.VectorTimer1Capt, func() {
		captured = append(captured, core.ReadCapture())
	})
	core.NormalInit(core.Timer1, core.Prescale8, core.OutputDisconnect, core.OutputDisconnect)
	core.InputCaptureInit(true, false)
	core.EnableInterrupts()

	m.AdvanceTime(time.Millisecond)
	m.Drive(core.PB0, core.High)
	m.AdvanceTime(time.Millisecond)
	m.Drive(core.PB0, core.Low)

	if len(captured) != 1 || captured[0] != 2000 {
		t.Errorf("captures = %v, want [2000]", captured)
	}
}

func TestExternalClock(t *testing.T) {
	m := newMachine(t)
	core.NormalInit(core.Timer0, core.ExternalFalling, core.OutputDisconnect, core.OutputDisconnect)
	for i := 0; i < 5; i++ {
		m.Drive(core.PD4, core.High)
		m.Drive(core.PD4, core.Low)
	}
	if got := core.ReadCounter(core.Timer0); got != 5 {
		t.Errorf("TCNT0 after 5 falling edges = %d, want 5", got)
	}
}

func TestCompareOutputToggle(t *testing.T) {
	m := newMachine(t)
	core.PinMode(core.PB1, core.Output)
	core.NormalInit(core.Timer1, core.Prescale1, core.OutputToggle, core.OutputDisconnect)
	m.Registers().Timers[core.Timer1].OCRA.Set(1000)

	var edges int
	m.OnPinChange(func(p core.Pin, _ core.Level) {
		if p == core.PB1 {
			edges++
		}
	})
	m.Advance(999)
	if m.Level(core.PB1) != core.Low {
		t.Fatal("OC1A toggled early")
	}
	m.Advance(1)
	if m.Level(core.PB1) != core.High {
		t.Fatal("OC1A did not toggle at the match")
	}
	m.Advance(65536)
	if m.Level(core.PB1) != core.Low || edges != 2 {
		t.Errorf("after one wrap: level %v, %d edges", m.Level(core.PB1), edges)
	}
}
