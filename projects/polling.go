package projects

import "avrcore/core"

func init() { Register("polling", NewPolling) }

// Polling runs a heartbeat task next to a polled push button that toggles
// the response LED. Press and release are both debounced, so one press
// toggles once however much the contact bounces.
type Polling struct {
	cfg      Config
	sched    *core.Scheduler
	debounce core.Debounce
	pressed  bool
	toggles  uint32
}

// NewPolling builds the polling project: 100 ms heartbeat, 50 ms
// debounce.
func NewPolling(cfg Config) Project {
	p := &Polling{cfg: cfg, sched: core.NewScheduler()}
	p.debounce.Guard = or32(cfg.Timing.Debounce, 50)
	return p
}

func (p *Polling) Name() string { return "polling" }

func (p *Polling) Setup() {
	core.PinMode(p.cfg.HeartbeatLED, core.Output)
	core.PinMode(p.cfg.ResponseLED, core.Output)
	core.PinMode(p.cfg.Button, core.InputPullUp)
	core.TimerInit(p.cfg.TickChannel)

	p.sched.Every("heartbeat", or32(p.cfg.Timing.Heartbeat, 100), func(uint32) {
		core.TogglePin(p.cfg.HeartbeatLED)
	})
	p.sched.Every("button", 1, p.pollButton)
}

func (p *Polling) Loop() {
	p.sched.Poll()
}

func (p *Polling) pollButton(now uint32) {
	down := core.ReadPin(p.cfg.Button) == core.Low
	if down == p.pressed {
		return
	}
	if !p.debounce.Accept(now) {
		return
	}
	p.pressed = down
	if down {
		core.TogglePin(p.cfg.ResponseLED)
		p.toggles++
		debug(p.Name(), "toggle "+core.Utoa(p.toggles))
	}
}

// Toggles returns how many presses were accepted.
func (p *Polling) Toggles() uint32 { return p.toggles }
