package sim

import (
	"strings"
	"testing"
	"time"

	"avrcore/core"
)

var testLCDPins = LCDPins{RS: core.PB0, EN: core.PB1, D4: core.PD4, D5: core.PD5, D6: core.PD6, D7: core.PD7}

type bus struct {
	m    *Machine
	wait bool
}

func newBus(t *testing.T, cols, rows int) (*bus, *LCD) {
	m := newMachine(t)
	lcd := m.AttachLCD(testLCDPins, cols, rows)
	for _, p := range []core.Pin{core.PB0, core.PB1, core.PD4, core.PD5, core.PD6, core.PD7} {
		core.PinMode(p, core.Output)
	}
	return &bus{m: m, wait: true}, lcd
}

func (b *bus) nibble(rs bool, n uint8) {
	core.WritePin(testLCDPins.RS, core.LevelOf(rs))
	for i, p := range []core.Pin{core.PD4, core.PD5, core.PD6, core.PD7} {
		core.WritePin(p, core.LevelOf(n&(1<<i) != 0))
	}
	core.WritePin(testLCDPins.EN, core.High)
	core.WritePin(testLCDPins.EN, core.Low)
	if b.wait {
		b.m.AdvanceTime(2 * time.Millisecond)
	}
}

func (b *bus) byte(rs bool, v uint8) {
	b.nibble(rs, v>>4)
	b.nibble(rs, v&0x0F)
}

func (b *bus) setup() {
	for _, n := range []uint8{0x03, 0x03, 0x03, 0x02} {
		b.nibble(false, n)
	}
	for _, c := range []uint8{0x28, 0x0C, 0x06, 0x01} {
		b.byte(false, c)
	}
}

func (b *bus) print(s string) {
	for i := 0; i < len(s); i++ {
		b.byte(true, s[i])
	}
}

func TestLCDInitSequence(t *testing.T) {
	b, lcd := newBus(t, 16, 2)
	b.setup()

	if !lcd.FourBit() || !lcd.TwoLine() {
		t.Errorf("four-bit %v, two-line %v after init", lcd.FourBit(), lcd.TwoLine())
	}
	if !lcd.DisplayOn() {
		t.Error("display off after 0x0C")
	}
	if c, bl := lcd.CursorMode(); c || bl {
		t.Errorf("cursor %v blink %v after 0x0C", c, bl)
	}
	if lcd.BusyViolations() != 0 {
		t.Errorf("%d busy violations", lcd.BusyViolations())
	}
}

func TestLCDRowsAndCursor(t *testing.T) {
	b, lcd := newBus(t, 20, 4)
	b.setup()

	rows := []string{"row zero", "row one", "row two", "row three"}
	offsets := []uint8{0x00, 0x40, 0x14, 0x54}
	for r, s := range rows {
		b.byte(false, 0x80|offsets[r])
		b.print(s)
	}
	for r, s := range rows {
		want := s + strings.Repeat(" ", 20-len(s))
		if got := lcd.Line(r); got != want {
			t.Errorf("row %d = %q, want %q", r, got, want)
		}
	}
	if got := lcd.Address(); got != 0x54+uint8(len(rows[3])) {
		t.Errorf("address = %#02x after row three", got)
	}

	b.byte(false, 0x01)
	if got := lcd.Text(); strings.TrimSpace(got) != "" {
		t.Errorf("text after clear = %q", got)
	}
}

func TestLCDCustomCharacter(t *testing.T) {
	b, lcd := newBus(t, 16, 2)
	b.setup()

	bolt := [8]byte{0x02, 0x04, 0x08, 0x1F, 0x04, 0x08, 0x10, 0x00}
	b.byte(false, 0x40|3<<3)
	for _, row := range bolt {
		b.byte(true, row)
	}
	b.byte(false, 0x80)
	b.byte(true, 3)

	if got := lcd.Glyph(3); got != bolt {
		t.Errorf("glyph 3 = %v, want %v", got, bolt)
	}
	if got := lcd.Cell(0, 0); got != 3 {
		t.Errorf("cell (0,0) = %d, want 3", got)
	}
}

func TestLCDShiftAndCursorModes(t *testing.T) {
	b, lcd := newBus(t, 16, 2)
	b.setup()
	b.print("ab")

	b.byte(false, 0x18)
	if lcd.Shift() != 1 || lcd.Cell(0, 0) != 'b' {
		t.Errorf("after shift left: offset %d, cell %q", lcd.Shift(), lcd.Cell(0, 0))
	}
	b.byte(false, 0x1C)
	if lcd.Shift() != 0 || lcd.Cell(0, 0) != 'a' {
		t.Errorf("after shift right: offset %d, cell %q", lcd.Shift(), lcd.Cell(0, 0))
	}

	b.byte(false, 0x0F)
	if c, bl := lcd.CursorMode(); !c || !bl {
		t.Errorf("0x0F: cursor %v blink %v", c, bl)
	}
	b.byte(false, 0x0E)
	if c, bl := lcd.CursorMode(); !c || bl {
		t.Errorf("0x0E: cursor %v blink %v", c, bl)
	}
}

func TestLCDBusyViolation(t *testing.T) {
	b, lcd := newBus(t, 16, 2)
	b.setup()
	b.wait = false

	b.byte(false, 0x01)
	b.byte(true, 'x')
	if lcd.BusyViolations() == 0 {
		t.Error("write right after clear was not flagged")
	}
}
