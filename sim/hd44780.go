package sim

import (
	"strings"

	"avrcore/core"
)

// LCDPins is the 4-bit HD44780 wiring.
type LCDPins struct {
	RS, EN         core.Pin
	D4, D5, D6, D7 core.Pin
}

// HD44780 execution times in µs, from the datasheet at 270 kHz.
const (
	lcdSlowUS = 1520 // clear display, return home
	lcdFastUS = 37
)

const lineLen = 40

var lcdRowStart = [4]struct{ line, col int }{{0, 0}, {1, 0}, {0, 20}, {1, 20}}

// LCD decodes the 4-bit HD44780 bus on falling edges of E and keeps the
// controller state: DDRAM, CGRAM, address counter and display flags.
type LCD struct {
	m    *Machine
	pins LCDPins
	cols int
	rows int

	fourBit  bool
	pending  bool // high nibble latched, low nibble expected
	high     uint8
	twoLine  bool
	display  bool
	cursor   bool
	blink    bool
	inc      bool
	autoShft bool

	ddram  [2 * lineLen]byte
	cgram  [64]byte
	addr   uint8
	inCG   bool
	offset int

	busyUntil  uint64
	violations int
	commands   int
}

// AttachLCD connects an HD44780 model of cols x rows to the machine pins.
func (m *Machine) AttachLCD(pins LCDPins, cols, rows int) *LCD {
	l := &LCD{m: m, pins: pins, cols: cols, rows: rows, inc: true}
	l.clear()
	m.OnPinChange(func(pin core.Pin, level core.Level) {
		if pin == pins.EN && level == core.Low {
			l.strobe()
		}
	})
	return l
}

func (l *LCD) nibble() uint8 {
	var n uint8
	for i, p := range [...]core.Pin{l.pins.D4, l.pins.D5, l.pins.D6, l.pins.D7} {
		if l.m.Level(p) == core.High {
			n |= 1 << i
		}
	}
	return n
}

func (l *LCD) strobe() {
	if l.m.cycles < l.busyUntil {
		l.violations++
	}
	rs := l.m.Level(l.pins.RS) == core.High
	n := l.nibble()
	if !l.fourBit {
		// 8-bit mode: D0-D3 are not wired and read as zero.
		l.execute(rs, n<<4)
		return
	}
	if !l.pending {
		l.high = n
		l.pending = true
		return
	}
	l.pending = false
	l.execute(rs, l.high<<4|n)
}

func (l *LCD) busy(us uint64) {
	l.busyUntil = l.m.cycles + us*uint64(l.m.cpuHz)/1000000
}

func (l *LCD) execute(rs bool, b uint8) {
	if rs {
		l.write(b)
		l.busy(lcdFastUS)
		return
	}
	l.commands++
	switch {
	case b&0x80 != 0:
		l.inCG = false
		l.addr = b & 0x7F
	case b&0x40 != 0:
		l.inCG = true
		l.addr = b & 0x3F
	case b&0x20 != 0:
		l.fourBit = b&0x10 == 0
		l.twoLine = b&0x08 != 0
	case b&0x10 != 0:
		left := b&0x04 == 0
		if b&0x08 != 0 {
			l.shiftDisplay(left)
		} else {
			l.moveCursor(!left)
		}
	case b&0x08 != 0:
		l.display = b&0x04 != 0
		l.cursor = b&0x02 != 0
		l.blink = b&0x01 != 0
	case b&0x04 != 0:
		l.inc = b&0x02 != 0
		l.autoShft = b&0x01 != 0
	case b&0x02 != 0:
		l.inCG = false
		l.addr = 0
		l.offset = 0
		l.busy(lcdSlowUS)
		return
	case b == 0x01:
		l.clear()
		l.busy(lcdSlowUS)
		return
	}
	l.busy(lcdFastUS)
}

func (l *LCD) clear() {
	for i := range l.ddram {
		l.ddram[i] = ' '
	}
	l.inCG = false
	l.addr = 0
	l.offset = 0
	l.inc = true
}

// ddramIndex maps a DDRAM address to its cell. Two-line parts leave gaps at
// 0x28-0x3F and above 0x67.
func ddramIndex(addr uint8) int {
	if addr >= 0x40 {
		return lineLen + int(addr-0x40)%lineLen
	}
	return int(addr) % lineLen
}

func (l *LCD) write(b uint8) {
	if l.inCG {
		l.cgram[l.addr&0x3F] = b
		if l.inc {
			l.addr = (l.addr + 1) & 0x3F
		} else {
			l.addr = (l.addr - 1) & 0x3F
		}
		return
	}
	l.ddram[ddramIndex(l.addr)] = b
	l.moveCursor(l.inc)
	if l.autoShft {
		l.shiftDisplay(l.inc)
	}
}

func (l *LCD) moveCursor(right bool) {
	line, pos := 0, ddramIndex(l.addr)
	if pos >= lineLen {
		line, pos = 1, pos-lineLen
	}
	if right {
		pos++
	} else {
		pos--
	}
	switch {
	case pos >= lineLen:
		pos = 0
		line ^= 1
	case pos < 0:
		pos = lineLen - 1
		line ^= 1
	}
	if !l.twoLine {
		line = 0
	}
	l.addr = uint8(line*0x40 + pos)
}

func (l *LCD) shiftDisplay(left bool) {
	if left {
		l.offset++
	} else {
		l.offset--
	}
	l.offset = (l.offset%lineLen + lineLen) % lineLen
}

// Cell returns the character code shown at row, col.
func (l *LCD) Cell(row, col int) byte {
	start := lcdRowStart[row%4]
	pos := (start.col + col + l.offset) % lineLen
	return l.ddram[start.line*lineLen+pos]
}

// Line returns the visible text of row. Custom characters appear as
// their codes 0-7.
func (l *LCD) Line(row int) string {
	var sb strings.Builder
	for c := 0; c < l.cols; c++ {
		sb.WriteByte(l.Cell(row, c))
	}
	return sb.String()
}

// Text returns every visible row separated by newlines.
func (l *LCD) Text() string {
	lines := make([]string, l.rows)
	for r := range lines {
		lines[r] = l.Line(r)
	}
	return strings.Join(lines, "\n")
}

// Glyph returns the eight pattern rows of custom character loc.
func (l *LCD) Glyph(loc int) [8]byte {
	var g [8]byte
	copy(g[:], l.cgram[(loc&0x07)*8:])
	return g
}

// Address returns the address counter.
func (l *LCD) Address() uint8 {
	return l.addr
}

// DisplayOn reports the display-on bit.
func (l *LCD) DisplayOn() bool { return l.display }

// CursorMode returns the cursor and blink bits.
func (l *LCD) CursorMode() (cursor, blink bool) { return l.cursor, l.blink }

// FourBit reports whether the controller is in 4-bit interface mode.
func (l *LCD) FourBit() bool { return l.fourBit }

// TwoLine reports the N bit of the last function set.
func (l *LCD) TwoLine() bool { return l.twoLine }

// Shift returns the display shift offset.
func (l *LCD) Shift() int { return l.offset }

// Commands returns the number of instructions executed.
func (l *LCD) Commands() int { return l.commands }

// BusyViolations counts strobes issued while the controller was still
// executing the previous instruction.
func (l *LCD) BusyViolations() int { return l.violations }
