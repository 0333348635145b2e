package projects

import (
	"avrcore/core"
	"avrcore/drivers/lcd"
)

func init() { Register("events", NewEvents) }

// Events is the dashboard with the button on INT0. The handler only
// debounces into an EventLatch; the main loop consumes the latch and does
// the slow LCD work.
type Events struct {
	cfg   Config
	sched *core.Scheduler
	disp  lcd.Display
	latch *core.EventLatch
	oid   uint8

	seconds uint32
	on      bool
}

// NewEvents builds the events project: falling edge on INT0 with a
// 200 ms guard window.
func NewEvents(cfg Config) Project {
	return &Events{
		cfg:   cfg,
		sched: core.NewScheduler(),
		latch: core.NewEventLatch(or32(cfg.Timing.Guard, 200)),
	}
}

func (e *Events) Name() string { return "events" }

func (e *Events) Setup() {
	core.TimerInit(e.cfg.TickChannel)
	e.disp = e.cfg.display()
	e.disp.CreateCustomChar(boltChar, bolt)

	core.PinMode(e.cfg.HeartbeatLED, core.Output)
	core.PinMode(e.cfg.ResponseLED, core.Output)
	core.PinMode(e.cfg.Button, core.InputPullUp)

	line, ok := core.ExtiLineForPin(e.cfg.Button)
	if !ok {
		panic("events: button is not an INT pin")
	}
	e.oid = core.RegisterLatch(e.latch)
	e.latch.SetSource(e.oid)
	core.ExtiAttach(line, e.latch.Handler())
	core.ExtiInit(line, core.FallingEdge)

	splash(e.disp, or32(e.cfg.Timing.Splash, 2000))
	drawFrame(e.disp)
	// Presses during the splash belong to nobody.
	e.latch.Clear()

	e.sched.Every("heartbeat", or32(e.cfg.Timing.Heartbeat, 200), func(uint32) {
		core.TogglePin(e.cfg.HeartbeatLED)
	})
	e.sched.Every("uptime", or32(e.cfg.Timing.Seconds, 1000), func(uint32) {
		e.seconds++
		drawUptime(e.disp, e.seconds)
	})
}

func (e *Events) Loop() {
	e.sched.Poll()
	if !e.latch.Take() {
		return
	}
	core.TogglePin(e.cfg.ResponseLED)
	e.on = !e.on
	drawState(e.disp, e.on)
	debug(e.Name(), "state "+onOff(e.on))
}

// Latch returns the button latch.
func (e *Events) Latch() *core.EventLatch { return e.latch }

// LatchID returns the oid query_latch knows the latch by.
func (e *Events) LatchID() uint8 { return e.oid }
