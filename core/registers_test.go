package core

import "testing"

func TestRegister16AccessOrder(t *testing.T) {
	var order []string
	hi, lo := &MemRegister8{}, &MemRegister8{}
	hi.OnWrite(func(_, v uint8) { order = append(order, "H") })
	lo.OnWrite(func(_, v uint8) { order = append(order, "L") })

	r := Register16{H: hi, L: lo}
	r.Set(0xABCD)
	if len(order) != 2 || order[0] != "H" || order[1] != "L" {
		t.Errorf("write order %v, want [H L]", order)
	}
	if r.Get() != 0xABCD {
		t.Errorf("Get() = %#04x", r.Get())
	}
	if !r.Wide() || (Register16{L: lo}).Wide() {
		t.Errorf("Wide() wrong")
	}
}

func TestMemRegister8Hooks(t *testing.T) {
	r := &MemRegister8{}
	r.Poke(0x06)
	// Write-one-to-clear, as interrupt flag registers behave.
	r.SetWriteHook(func(old, written uint8) uint8 { return old &^ written })
	r.Set(0x02)
	if r.Get() != 0x04 {
		t.Errorf("after clearing bit 1: %#02x, want 0x04", r.Get())
	}
}

func TestBitHelpers(t *testing.T) {
	r := &MemRegister8{}
	setBit(r, 3)
	setBit(r, 0)
	clearBit(r, 0)
	toggleBit(r, 7)
	if r.Get() != 0x88 || !readBit(r, 7) || readBit(r, 0) {
		t.Errorf("register = %#02x, want 0x88", r.Get())
	}
}

func TestRegistersUnset(t *testing.T) {
	reset(t)
	SetRegisterFile(nil)
	defer func() {
		if recover() == nil {
			t.Errorf("Registers() without a file did not panic")
		}
	}()
	Registers()
}
