package mcu

import (
	"context"
	"time"

	"avrcore/core"
)

// ExtiState is the reply to query_exti.
type ExtiState struct {
	Line    core.ExtiLine
	Enabled bool
	Trigger core.Trigger
}

// LatchState is the reply to query_latch.
type LatchState struct {
	OID       uint8
	Pending   bool
	Accepted  uint32
	Dropped   uint32
	Coalesced uint32
	Last      uint32
}

// Uptime returns the time since the firmware started its tick.
func (m *MCU) Uptime(ctx context.Context) (time.Duration, error) {
	freq, err := m.ClockFrequency()
	if err != nil {
		return 0, err
	}
	r, err := m.Query(ctx, "get_uptime", "uptime")
	if err != nil {
		return 0, err
	}
	ticks := uint64(r.Values["high"])<<32 | uint64(r.Values["clock"])
	sec := ticks / uint64(freq)
	rem := ticks % uint64(freq)
	return time.Duration(sec)*time.Second + time.Duration(rem*uint64(time.Second)/uint64(freq)), nil
}

// Clock returns the 32-bit tick counter.
func (m *MCU) Clock(ctx context.Context) (uint32, error) {
	r, err := m.Query(ctx, "get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return r.Values["clock"], nil
}

// ConfigExti enables line with the given trigger.
func (m *MCU) ConfigExti(ctx context.Context, line core.ExtiLine, trig core.Trigger) error {
	return m.Send(ctx, "config_exti", uint32(line), uint32(trig))
}

// DisableExti masks line.
func (m *MCU) DisableExti(ctx context.Context, line core.ExtiLine) error {
	return m.Send(ctx, "exti_disable", uint32(line))
}

// QueryExti reads back the configuration of line.
func (m *MCU) QueryExti(ctx context.Context, line core.ExtiLine) (ExtiState, error) {
	r, err := m.Query(ctx, "query_exti", "exti_state", uint32(line))
	if err != nil {
		return ExtiState{}, err
	}
	return ExtiState{
		Line:    core.ExtiLine(r.Values["line"]),
		Enabled: r.Bool("enabled"),
		Trigger: core.Trigger(r.Values["trigger"]),
	}, nil
}

// QueryLatch reads the counters of a registered event latch. The firmware
// does not answer for an unknown oid, so ctx should carry a deadline.
func (m *MCU) QueryLatch(ctx context.Context, oid uint8) (LatchState, error) {
	r, err := m.Query(ctx, "query_latch", "latch_state", uint32(oid))
	if err != nil {
		return LatchState{}, err
	}
	return LatchState{
		OID:       uint8(r.Values["oid"]),
		Pending:   r.Bool("pending"),
		Accepted:  r.Values["accepted"],
		Dropped:   r.Values["dropped"],
		Coalesced: r.Values["coalesced"],
		Last:      r.Values["last"],
	}, nil
}

func levelArg(l core.Level) uint32 {
	if l == core.High {
		return 1
	}
	return 0
}

// ConfigDigitalOut makes pin an output driven to level.
func (m *MCU) ConfigDigitalOut(ctx context.Context, pin core.Pin, level core.Level) error {
	return m.Send(ctx, "config_digital_out", uint32(pin), levelArg(level))
}

// UpdateDigitalOut drives an output pin.
func (m *MCU) UpdateDigitalOut(ctx context.Context, pin core.Pin, level core.Level) error {
	return m.Send(ctx, "update_digital_out", uint32(pin), levelArg(level))
}

// ReadDigitalIn makes pin an input, optionally pulled up, and reads it.
func (m *MCU) ReadDigitalIn(ctx context.Context, pin core.Pin, pullup bool) (core.Level, error) {
	var pu uint32
	if pullup {
		pu = 1
	}
	r, err := m.Query(ctx, "query_digital_in", "digital_in_state", uint32(pin), pu)
	if err != nil {
		return core.Low, err
	}
	return core.LevelOf(r.Bool("value")), nil
}

// SetDebug turns the firmware debug output on or off.
func (m *MCU) SetDebug(ctx context.Context, enable bool) error {
	var v uint32
	if enable {
		v = 1
	}
	return m.Send(ctx, "set_debug", v)
}

// TimingEvents dumps the firmware timing ring, oldest first.
func (m *MCU) TimingEvents(ctx context.Context) ([]core.TimingEvent, error) {
	rs, err := m.Collect(ctx, 100*time.Millisecond, "dump_timing", "timing_event")
	if err != nil {
		return nil, err
	}
	out := make([]core.TimingEvent, len(rs))
	for i, r := range rs {
		out[i] = core.TimingEvent{
			EventType: uint8(r.Values["type"]),
			Source:    uint8(r.Values["source"]),
			Clock:     r.Values["clock"],
			Value1:    r.Values["value1"],
			Value2:    r.Values["value2"],
		}
	}
	return out, nil
}
