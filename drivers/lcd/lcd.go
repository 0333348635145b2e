// Package lcd drives HD44780 character displays over a 4-bit bus built
// from any six core GPIO pins.
package lcd

import "avrcore/core"

// Type selects the display geometry.
type Type uint8

const (
	Type16x2 Type = iota
	Type20x4
)

// Size returns the columns and rows of t.
func (t Type) Size() (cols, rows uint8) {
	if t == Type20x4 {
		return 20, 4
	}
	return 16, 2
}

func (t Type) String() string {
	if t == Type20x4 {
		return "20x4"
	}
	return "16x2"
}

// CursorMode values are display control instructions with the display on.
type CursorMode uint8

const (
	CursorOff   CursorMode = 0x0C
	CursorOn    CursorMode = 0x0E
	CursorBlink CursorMode = 0x0F
)

// ShiftDirection values are cursor/display shift instructions.
type ShiftDirection uint8

const (
	ShiftLeft  ShiftDirection = 0x18
	ShiftRight ShiftDirection = 0x1C
)

// Instructions
const (
	cmdClear       = 0x01
	cmdEntryMode   = 0x06 // increment, no shift
	cmdFunctionSet = 0x28 // 4-bit, 2 lines, 5x8
	cmdSetCGRAM    = 0x40
	cmdSetDDRAM    = 0x80
)

var rowOffsets = [4]uint8{0x00, 0x40, 0x14, 0x54}

// Display is a character display. Device implements it over GPIO; the
// TinyGo xdrivers build provides one over tinygo.org/x/drivers/hd44780.
type Display interface {
	Clear()
	SetCursor(row, col uint8)
	Print(s string)
	WriteChar(c byte)
	SetCursorMode(mode CursorMode)
	Shift(dir ShiftDirection)
	CreateCustomChar(loc uint8, charmap [8]byte)
}

// Config is the display wiring.
type Config struct {
	RS, EN         core.Pin
	D4, D5, D6, D7 core.Pin
	Type           Type
}

// Device is an HD44780 on a 4-bit GPIO bus. Timing comes from core.Delay,
// so the tick must be running.
type Device struct {
	cfg  Config
	data [4]core.Pin
}

var _ Display = (*Device)(nil)

// New returns a driver for the display wired as cfg. Call Init before use.
func New(cfg Config) *Device {
	return &Device{cfg: cfg, data: [4]core.Pin{cfg.D4, cfg.D5, cfg.D6, cfg.D7}}
}

// Config returns the wiring.
func (d *Device) Config() Config {
	return d.cfg
}

// Init configures the pins and runs the datasheet initialisation by
// instruction, ending in 4-bit, two-line mode with the cursor hidden and
// the screen cleared.
func (d *Device) Init() {
	core.PinMode(d.cfg.RS, core.Output)
	core.PinMode(d.cfg.EN, core.Output)
	for _, p := range d.data {
		core.PinMode(p, core.Output)
	}

	core.Delay(50)
	core.WritePin(d.cfg.RS, core.Low)

	d.sendNibble(0x03)
	core.Delay(5)
	d.sendNibble(0x03)
	core.Delay(1)
	d.sendNibble(0x03)
	d.sendNibble(0x02)

	d.command(cmdFunctionSet)
	d.command(uint8(CursorOff))
	d.command(cmdEntryMode)
	d.Clear()
}

func (d *Device) pulseEnable() {
	core.WritePin(d.cfg.EN, core.High)
	core.Delay(1)
	core.WritePin(d.cfg.EN, core.Low)
	core.Delay(1)
}

func (d *Device) sendNibble(n uint8) {
	for i, p := range d.data {
		core.WritePin(p, core.LevelOf(n&(1<<i) != 0))
	}
	d.pulseEnable()
}

func (d *Device) send(b uint8, rs core.Level) {
	core.WritePin(d.cfg.RS, rs)
	d.sendNibble(b >> 4)
	d.sendNibble(b & 0x0F)
}

func (d *Device) command(b uint8) {
	d.send(b, core.Low)
}

// Clear blanks the screen and homes the cursor.
func (d *Device) Clear() {
	d.command(cmdClear)
	// Delay(n) only guarantees n-1 whole ticks and clear takes 1.52 ms.
	core.Delay(3)
}

// SetCursor moves the cursor. Rows beyond the display wrap.
func (d *Device) SetCursor(row, col uint8) {
	_, rows := d.cfg.Type.Size()
	d.command(cmdSetDDRAM | (rowOffsets[row%rows] + col))
}

// WriteChar writes one character code at the cursor.
func (d *Device) WriteChar(c byte) {
	d.send(c, core.High)
}

// Print writes s at the cursor.
func (d *Device) Print(s string) {
	for i := 0; i < len(s); i++ {
		d.WriteChar(s[i])
	}
}

// SetCursorMode sets cursor visibility.
func (d *Device) SetCursorMode(mode CursorMode) {
	d.command(uint8(mode))
}

// Shift scrolls the whole display by one column.
func (d *Device) Shift(dir ShiftDirection) {
	d.command(uint8(dir))
}

// CreateCustomChar stores a 5x8 glyph in CGRAM slot loc (0-7). The
// cursor must be repositioned afterwards.
func (d *Device) CreateCustomChar(loc uint8, charmap [8]byte) {
	loc &= 0x07
	d.command(cmdSetCGRAM | loc<<3)
	for _, row := range charmap {
		d.send(row, core.High)
	}
}

// PrintPadded writes s and blanks up to width columns.
func PrintPadded(disp Display, s string, width int) {
	disp.Print(s)
	for i := len(s); i < width; i++ {
		disp.WriteChar(' ')
	}
}

// Clock renders seconds as HH:MM:SS. Hours wrap at 100.
func Clock(seconds uint32) string {
	hh := seconds / 3600 % 100
	mm := seconds % 3600 / 60
	ss := seconds % 60
	b := [8]byte{
		byte('0' + hh/10), byte('0' + hh%10), ':',
		byte('0' + mm/10), byte('0' + mm%10), ':',
		byte('0' + ss/10), byte('0' + ss%10),
	}
	return string(b[:])
}
