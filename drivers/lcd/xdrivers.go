//go:build tinygo && xdrivers

package lcd

import (
	"machine"

	"avrcore/core"

	"tinygo.org/x/drivers/hd44780"
)

var machinePins = [core.NumPins]machine.Pin{
	machine.PB0, machine.PB1, machine.PB2, machine.PB3, machine.PB4, machine.PB5, machine.PB6, machine.PB7,
	machine.PC0, machine.PC1, machine.PC2, machine.PC3, machine.PC4, machine.PC5, machine.PC6, machine.PC7,
	machine.PD0, machine.PD1, machine.PD2, machine.PD3, machine.PD4, machine.PD5, machine.PD6, machine.PD7,
}

// XDevice adapts the tinygo.org/x/drivers HD44780 driver to Display.
type XDevice struct {
	dev  hd44780.Device
	cfg  hd44780.Config
	rows uint8
}

var _ Display = (*XDevice)(nil)

// NewX configures the x/drivers device on the same wiring as Device.
func NewX(c Config) (*XDevice, error) {
	data := []machine.Pin{machinePins[c.D4], machinePins[c.D5], machinePins[c.D6], machinePins[c.D7]}
	dev, err := hd44780.NewGPIO4Bit(data, machinePins[c.EN], machinePins[c.RS], machine.NoPin)
	if err != nil {
		return nil, err
	}
	cols, rows := c.Type.Size()
	x := &XDevice{
		dev:  dev,
		cfg:  hd44780.Config{Width: int16(cols), Height: int16(rows)},
		rows: rows,
	}
	if err := x.dev.Configure(x.cfg); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *XDevice) Clear() {
	x.dev.ClearDisplay()
}

func (x *XDevice) SetCursor(row, col uint8) {
	x.dev.SetCursor(col, row%x.rows)
}

func (x *XDevice) Print(s string) {
	x.dev.Write([]byte(s))
	x.dev.Display()
}

func (x *XDevice) WriteChar(c byte) {
	x.dev.Write([]byte{c})
	x.dev.Display()
}

// SetCursorMode reconfigures the controller, which also clears it.
func (x *XDevice) SetCursorMode(mode CursorMode) {
	x.cfg.CursorOnOff = mode != CursorOff
	x.cfg.CursorBlink = mode == CursorBlink
	x.dev.Configure(x.cfg)
}

// Shift is not offered by the x/drivers device.
func (x *XDevice) Shift(ShiftDirection) {
	core.DebugPrintln("lcd: shift unsupported on xdrivers backend")
}

func (x *XDevice) CreateCustomChar(loc uint8, charmap [8]byte) {
	x.dev.CreateCharacter(loc&0x07, charmap[:])
}
