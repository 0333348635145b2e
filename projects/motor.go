package projects

import (
	"avrcore/core"
	"avrcore/drivers/stepper"
)

func init() { Register("motor", NewMotor) }

// Motor drives a stepper from Timer1 in normal mode. Compare A steps the
// motor, compare B samples the start/stop and direction buttons. Both
// re-arm relative to their previous match, so the counter never stops.
type Motor struct {
	cfg   Config
	motor *stepper.Motor
	step  core.PeriodicAlarm
	poll  core.PeriodicAlarm

	// Written by the compare B handler.
	running bool
	dir     stepper.Direction

	lastRun, lastDir      core.Level
	reportedRun, reported bool
	reportedDir           stepper.Direction
}

// NewMotor builds the motor project: a half step every 10 ms, buttons
// sampled every 20 ms.
func NewMotor(cfg Config) Project {
	m := &Motor{cfg: cfg, lastRun: core.High, lastDir: core.High}
	m.step = core.PeriodicAlarm{
		Channel: core.Timer1,
		Compare: core.CompareA,
		Period:  or16(cfg.Timing.StepPeriod, 2500),
		Handler: m.onStep,
	}
	m.poll = core.PeriodicAlarm{
		Channel: core.Timer1,
		Compare: core.CompareB,
		Period:  or16(cfg.Timing.PollPeriod, 5000),
		Handler: m.onPoll,
	}
	return m
}

func (m *Motor) Name() string { return "motor" }

func (m *Motor) Setup() {
	m.motor = stepper.New(m.cfg.Motor, stepper.HalfStep)
	core.PinMode(m.cfg.Button, core.InputPullUp)
	core.PinMode(m.cfg.DirButton, core.InputPullUp)

	core.NormalInit(core.Timer1, core.Prescale64, core.OutputDisconnect, core.OutputDisconnect)
	m.step.Start()
	m.poll.Start()
	core.EnableInterrupts()
}

// Loop reports state changes made by the handlers.
func (m *Motor) Loop() {
	var running bool
	var dir stepper.Direction
	core.CriticalSection(func() {
		running, dir = m.running, m.dir
	})
	if m.reported && running == m.reportedRun && dir == m.reportedDir {
		return
	}
	m.reported, m.reportedRun, m.reportedDir = true, running, dir
	debug(m.Name(), onOff(running)+" "+dir.String())
}

func (m *Motor) onStep() {
	if !m.running {
		m.motor.Stop()
		return
	}
	m.motor.SetDirection(m.dir)
	m.motor.Start()
	m.motor.Step()
}

// onPoll toggles on falling edges between consecutive samples.
func (m *Motor) onPoll() {
	run := core.ReadPin(m.cfg.Button)
	if m.lastRun == core.High && run == core.Low {
		m.running = !m.running
	}
	m.lastRun = run

	dir := core.ReadPin(m.cfg.DirButton)
	if m.lastDir == core.High && dir == core.Low {
		m.dir = m.dir.Reverse()
	}
	m.lastDir = dir
}

// Stepper returns the driven motor.
func (m *Motor) Stepper() *stepper.Motor { return m.motor }

// Running reports the start/stop state.
func (m *Motor) Running() bool {
	var r bool
	core.CriticalSection(func() { r = m.running })
	return r
}
