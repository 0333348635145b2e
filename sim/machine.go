// Package sim is a host-side model of the ATmega328P peripherals used by
// avrcore: timers 0-2, the external interrupt unit and ports B-D. It runs
// on the register file of package core, so firmware code executes
// unchanged against it.
package sim

import (
	"io"
	"log"
	"sync"
	"time"

	"avrcore/core"
)

// DefaultCPUHz is the Arduino Uno crystal.
const DefaultCPUHz = 16000000

// Config parametrises a Machine.
type Config struct {
	// CPUHz is the core clock. Zero selects DefaultCPUHz.
	CPUHz uint32
	// IdleCycles is how far Idle advances simulated time when not running
	// in real time. Zero selects a quarter of a millisecond.
	IdleCycles uint64
	// Realtime paces simulated time against the wall clock.
	Realtime bool
	// Logger receives simulator messages and the core debug output.
	Logger *log.Logger
}

// Machine is one simulated microcontroller. It is not safe for concurrent
// use except for Post, which other goroutines use to inject work.
type Machine struct {
	cpuHz      uint32
	idleCycles uint64
	realtime   bool
	log        *log.Logger

	regs   *core.RegisterFile
	cycles uint64

	timers [3]timerState
	ports  [3]portState
	exti   [2]extiState

	listeners []func(pin core.Pin, level core.Level)

	wallStart  time.Time
	cycleStart uint64

	postMu sync.Mutex
	posted []func()
}

// New resets the core host model and builds a machine on its register
// file. The core idle hook is bound to the new machine, so Delay advances
// simulated time.
func New(cfg Config) *Machine {
	if cfg.CPUHz == 0 {
		cfg.CPUHz = DefaultCPUHz
	}
	if cfg.IdleCycles == 0 {
		cfg.IdleCycles = uint64(cfg.CPUHz) / 4000
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	m := &Machine{
		cpuHz:      cfg.CPUHz,
		idleCycles: cfg.IdleCycles,
		realtime:   cfg.Realtime,
		log:        cfg.Logger,
		regs:       core.ResetHost(),
	}
	m.wireTimers()
	m.wirePorts()
	m.wireExti()
	core.SetIRQAckHook(m.ack)
	core.SetIdleHook(m.Idle)
	core.SetDebugWriter(func(s string) { m.log.Print(s) })
	return m
}

// Registers returns the register file the machine simulates.
func (m *Machine) Registers() *core.RegisterFile {
	return m.regs
}

// CPUHz returns the core clock.
func (m *Machine) CPUHz() uint32 {
	return m.cpuHz
}

// Cycles returns the CPU cycles simulated so far.
func (m *Machine) Cycles() uint64 {
	return m.cycles
}

// Now returns the simulated time since power-on.
func (m *Machine) Now() time.Duration {
	return m.cyclesToDuration(m.cycles)
}

func (m *Machine) cyclesToDuration(c uint64) time.Duration {
	sec := c / uint64(m.cpuHz)
	rem := c % uint64(m.cpuHz)
	return time.Duration(sec)*time.Second + time.Duration(rem*uint64(time.Second)/uint64(m.cpuHz))
}

func (m *Machine) durationToCycles(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	sec := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return sec*uint64(m.cpuHz) + rem*uint64(m.cpuHz)/uint64(time.Second)
}

// Advance runs the peripherals for n CPU cycles. Interrupts they raise are
// serviced on the way, in the order they occur.
func (m *Machine) Advance(n uint64) {
	for n > 0 {
		step := n
		if next := m.nextTimerEvent(); next > 0 && next < step {
			step = next
		}
		m.cycles += step
		n -= step
		m.clockTimers(step)
		m.levelTriggers()
	}
}

// AdvanceTime runs the peripherals for d of simulated time.
func (m *Machine) AdvanceTime(d time.Duration) {
	m.Advance(m.durationToCycles(d))
}

// Idle is the core idle hook. It runs posted work, then moves simulated
// time forward: by IdleCycles, or in real time up to the wall clock.
func (m *Machine) Idle() {
	m.runPosted()
	if !m.realtime {
		m.Advance(m.idleCycles)
		return
	}
	if m.wallStart.IsZero() {
		m.wallStart = time.Now()
		m.cycleStart = m.cycles
	}
	target := m.cycleStart + m.durationToCycles(time.Since(m.wallStart))
	if target <= m.cycles {
		time.Sleep(m.cyclesToDuration(m.idleCycles))
		target = m.cycleStart + m.durationToCycles(time.Since(m.wallStart))
	}
	if target > m.cycles {
		m.Advance(target - m.cycles)
	}
}

// RunFor calls loop and Idle alternately until d of simulated time has
// passed. loop is one pass of an application main loop.
func (m *Machine) RunFor(d time.Duration, loop func()) {
	end := m.cycles + m.durationToCycles(d)
	for m.cycles < end {
		if loop != nil {
			loop()
		}
		if m.cycles >= end {
			break
		}
		m.Idle()
	}
}

// Run calls loop and Idle until done is closed.
func (m *Machine) Run(done <-chan struct{}, loop func()) {
	for {
		select {
		case <-done:
			return
		default:
		}
		if loop != nil {
			loop()
		}
		m.Idle()
	}
}

// Post queues f to run on the machine goroutine at the next Idle. It is
// the only method safe to call from other goroutines.
func (m *Machine) Post(f func()) {
	m.postMu.Lock()
	m.posted = append(m.posted, f)
	m.postMu.Unlock()
}

func (m *Machine) runPosted() {
	m.postMu.Lock()
	work := m.posted
	m.posted = nil
	m.postMu.Unlock()
	for _, f := range work {
		f()
	}
}

// ack clears the flag of the vector being entered, as the CPU does when
// it jumps to an interrupt handler.
func (m *Machine) ack(v core.Vector) {
	switch v {
	case core.VectorInt0, core.VectorInt1:
		m.clearExtiFlag(core.ExtiLine(v - core.VectorInt0))
	default:
		m.ackTimer(v)
	}
}

func mem(r core.Register8) *core.MemRegister8 {
	mr, ok := r.(*core.MemRegister8)
	if !ok {
		panic("sim: register file is not memory backed")
	}
	return mr
}
