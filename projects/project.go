// Package projects holds the example applications. Each one is written
// against core and the device drivers only, so the firmware image and the
// simulator run the same code.
package projects

import (
	"errors"

	"avrcore/core"
	"avrcore/drivers/lcd"

	"golang.org/x/exp/slices"
)

// Project is an application: Setup once, then Loop forever.
type Project interface {
	Name() string
	Setup()
	Loop()
}

// Timing holds the periods of a project, in ticks unless noted. Zero
// fields take the project's default.
type Timing struct {
	Blink     uint32
	Heartbeat uint32
	Seconds   uint32
	Debounce  uint32 // polled button, press and release
	Guard     uint32 // interrupt-driven button
	Splash    uint32 // welcome screen

	// Timer1 counts at clk/64 (4 µs at 16 MHz).
	StepPeriod uint16
	PollPeriod uint16
}

// Config is the wiring and timing shared by the projects.
type Config struct {
	TickChannel  core.TimerChannel
	HeartbeatLED core.Pin
	ResponseLED  core.Pin
	Button       core.Pin // INT0 for the events project
	DirButton    core.Pin
	LCD          lcd.Config
	Motor        [4]core.Pin
	Timing       Timing

	// Display replaces the GPIO LCD driver, e.g. with an x/drivers device.
	Display lcd.Display
}

// DefaultConfig is the Arduino Uno wiring of the lab boards.
func DefaultConfig() Config {
	return Config{
		TickChannel:  core.Timer2,
		HeartbeatLED: core.PB5,
		ResponseLED:  core.PB3,
		Button:       core.PD2,
		DirButton:    core.PD3,
		LCD: lcd.Config{
			RS: core.PB0, EN: core.PB1,
			D4: core.PD4, D5: core.PD5, D6: core.PD6, D7: core.PD7,
			Type: lcd.Type16x2,
		},
		Motor: [4]core.Pin{core.PB0, core.PB1, core.PB2, core.PB3},
	}
}

func or32(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

func or16(v, def uint16) uint16 {
	if v == 0 {
		return def
	}
	return v
}

// display returns the configured display, bringing up the GPIO driver
// when none was supplied.
func (c Config) display() lcd.Display {
	if c.Display != nil {
		return c.Display
	}
	d := lcd.New(c.LCD)
	d.Init()
	return d
}

// Factory builds a project from a configuration.
type Factory func(Config) Project

var (
	ErrUnknownProject = errors.New("unknown project")

	registry = map[string]Factory{}
)

// Register makes a project available by name. It panics on duplicates.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic("projects: duplicate " + name)
	}
	registry[name] = f
}

// New builds the named project.
func New(name string, cfg Config) (Project, error) {
	f, ok := registry[name]
	if !ok {
		return nil, ErrUnknownProject
	}
	return f(cfg), nil
}

// Names returns the registered projects in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func debug(project, msg string) {
	core.DebugPrintln(project + ": " + msg)
}

// Run is the firmware main: Setup, then Loop forever.
func Run(p Project) {
	p.Setup()
	for {
		p.Loop()
	}
}
