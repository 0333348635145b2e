// Package gpio bridges host GPIO lines to simulated MCU pins: real inputs
// (buttons, sensors) drive simulated input pins, and simulated outputs
// (LEDs, motor coils) drive real lines.
package gpio

import (
	"fmt"
	"strconv"
	"strings"

	"avrcore/core"
	"avrcore/sim"
)

// Lines is a set of host GPIO lines addressed by offset.
type Lines interface {
	// Watch requests offset as a pulled-up input and calls fn with the
	// initial level and then on every edge.
	Watch(offset int, fn func(high bool)) error

	// Set requests offset as an output on first use and drives it.
	Set(offset int, high bool) error

	// Close releases all requested lines.
	Close() error
}

// Mapping assigns host line offsets to MCU pins.
type Mapping struct {
	Inputs  map[core.Pin]int
	Outputs map[core.Pin]int
}

// ParseMapping parses entries of the form "PD2=17".
func ParseMapping(entries []string) (map[core.Pin]int, error) {
	out := make(map[core.Pin]int, len(entries))
	for _, e := range entries {
		name, off, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("gpio mapping %q: want PIN=OFFSET", e)
		}
		pin, ok := core.ParsePin(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("gpio mapping %q: unknown pin %q", e, name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(off))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("gpio mapping %q: bad offset %q", e, off)
		}
		if _, dup := out[pin]; dup {
			return nil, fmt.Errorf("gpio mapping %q: %s mapped twice", e, pin)
		}
		out[pin] = n
	}
	return out, nil
}

// Bridge connects a machine to host lines.
type Bridge struct {
	m     *sim.Machine
	lines Lines
	outs  map[core.Pin]int
	errs  func(error)
}

// NewBridge wires mp between m and lines. Input edges reach the machine
// through Post. Output writes happen on the machine goroutine; their
// errors go to onErr, which may be nil.
func NewBridge(m *sim.Machine, lines Lines, mp Mapping, onErr func(error)) (*Bridge, error) {
	if onErr == nil {
		onErr = func(error) {}
	}
	b := &Bridge{m: m, lines: lines, outs: mp.Outputs, errs: onErr}
	for pin, off := range mp.Inputs {
		if _, clash := mp.Outputs[pin]; clash {
			return nil, fmt.Errorf("gpio: %s is both input and output", pin)
		}
		pin := pin
		if err := lines.Watch(off, func(high bool) {
			m.Post(func() { m.Drive(pin, core.LevelOf(high)) })
		}); err != nil {
			return nil, fmt.Errorf("watch line %d for %s: %w", off, pin, err)
		}
	}
	if len(mp.Outputs) > 0 {
		m.OnPinChange(b.pinChanged)
	}
	return b, nil
}

func (b *Bridge) pinChanged(pin core.Pin, level core.Level) {
	off, ok := b.outs[pin]
	if !ok || !b.m.IsOutput(pin) {
		return
	}
	if err := b.lines.Set(off, level == core.High); err != nil {
		b.errs(fmt.Errorf("set line %d from %s: %w", off, pin, err))
	}
}

// Close releases the host lines.
func (b *Bridge) Close() error {
	return b.lines.Close()
}
