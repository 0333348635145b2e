package core

import "testing"

func TestExtiInit(t *testing.T) {
	rf := reset(t)
	ExtiInit(ExtiInt0, FallingEdge)

	if got := rf.EICRA.Get(); got != 0x02 {
		t.Errorf("EICRA = %#02x, want 0x02", got)
	}
	if got := rf.EIMSK.Get(); got != 0x01 {
		t.Errorf("EIMSK = %#02x, want 0x01", got)
	}
	if !InterruptsEnabled() {
		t.Errorf("global interrupts not enabled")
	}

	ExtiInit(ExtiInt0, FallingEdge)
	if rf.EICRA.Get() != 0x02 || rf.EIMSK.Get() != 0x01 {
		t.Errorf("second ExtiInit changed state: EICRA %#02x EIMSK %#02x", rf.EICRA.Get(), rf.EIMSK.Get())
	}
}

func TestExtiLinesAreIndependent(t *testing.T) {
	rf := reset(t)
	ExtiInit(ExtiInt0, FallingEdge)
	ExtiInit(ExtiInt1, RisingEdge)

	if got := rf.EICRA.Get(); got != 0x0E {
		t.Errorf("EICRA = %#02x, want 0x0e", got)
	}

	ExtiDisable(ExtiInt0)
	if ExtiEnabled(ExtiInt0) || !ExtiEnabled(ExtiInt1) {
		t.Errorf("ExtiDisable(INT0) touched INT1: EIMSK %#02x", rf.EIMSK.Get())
	}
	if ExtiTriggerOf(ExtiInt0) != FallingEdge || ExtiTriggerOf(ExtiInt1) != RisingEdge {
		t.Errorf("ExtiDisable changed a trigger: EICRA %#02x", rf.EICRA.Get())
	}
	if !InterruptsEnabled() {
		t.Errorf("ExtiDisable turned off global interrupts")
	}

	ExtiSetTrigger(ExtiInt1, AnyEdge)
	if ExtiTriggerOf(ExtiInt0) != FallingEdge || ExtiTriggerOf(ExtiInt1) != AnyEdge {
		t.Errorf("ExtiSetTrigger(INT1) = EICRA %#02x", rf.EICRA.Get())
	}
}

func TestExtiSetTriggerKeepsEnable(t *testing.T) {
	reset(t)
	ExtiInit(ExtiInt0, FallingEdge)
	ExtiSetTrigger(ExtiInt0, RisingEdge)
	if !ExtiEnabled(ExtiInt0) || ExtiTriggerOf(ExtiInt0) != RisingEdge {
		t.Errorf("enabled line: enabled %v trigger %v", ExtiEnabled(ExtiInt0), ExtiTriggerOf(ExtiInt0))
	}

	ExtiDisable(ExtiInt0)
	ExtiSetTrigger(ExtiInt0, LowLevel)
	if ExtiEnabled(ExtiInt0) {
		t.Errorf("ExtiSetTrigger enabled a disabled line")
	}
	if ExtiTriggerOf(ExtiInt0) != LowLevel {
		t.Errorf("trigger = %v, want low-level", ExtiTriggerOf(ExtiInt0))
	}
}

func TestExtiAttachDispatches(t *testing.T) {
	reset(t)
	var int0, int1 int
	ExtiAttach(ExtiInt0, func() { int0++ })
	ExtiAttach(ExtiInt0, func() { int0 += 10 })
	ExtiAttach(ExtiInt1, func() { int1++ })
	ExtiInit(ExtiInt0, FallingEdge)

	RaiseIRQ(ExtiInt0.Vector())
	if int0 != 11 || int1 != 0 {
		t.Errorf("INT0 dispatch: int0=%d int1=%d", int0, int1)
	}
}

func TestExtiPriority(t *testing.T) {
	reset(t)
	var order []Vector
	for _, v := range []Vector{VectorInt0, VectorInt1, VectorTimer0CompA} {
		v := v
		AttachInterrupt(v, func() { order = append(order, v) })
	}

	state := disableInterrupts()
	RaiseIRQ(VectorTimer0CompA)
	RaiseIRQ(VectorInt1)
	RaiseIRQ(VectorInt0)
	restoreInterrupts(state)
	EnableInterrupts()

	want := []Vector{VectorInt0, VectorInt1, VectorTimer0CompA}
	if len(order) != len(want) {
		t.Fatalf("serviced %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("serviced %v, want %v", order, want)
			break
		}
	}
}

func TestTriggerNames(t *testing.T) {
	for trig := LowLevel; trig <= RisingEdge; trig++ {
		got, ok := ParseTrigger(trig.String())
		if !ok || got != trig {
			t.Errorf("ParseTrigger(%q) = %v, %v", trig.String(), got, ok)
		}
	}
	if _, ok := ParseTrigger("both"); ok {
		t.Errorf("ParseTrigger accepted an unknown name")
	}
	if l, ok := ExtiLineForPin(PD3); !ok || l != ExtiInt1 || l.Pin() != PD3 {
		t.Errorf("ExtiLineForPin(PD3) = %v, %v", l, ok)
	}
	if _, ok := ExtiLineForPin(PB0); ok {
		t.Errorf("PB0 has no EXTI line")
	}
}

func TestExtiInvalidLine(t *testing.T) {
	reset(t)
	expectPanic(t, "ExtiInit(2)", func() { ExtiInit(ExtiLine(2), FallingEdge) })
}
