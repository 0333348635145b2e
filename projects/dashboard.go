package projects

import (
	"avrcore/core"
	"avrcore/drivers/lcd"
)

func init() { Register("dashboard", NewDashboard) }

// bolt is the custom glyph shown next to an active state.
var bolt = [8]byte{0x02, 0x04, 0x08, 0x1F, 0x04, 0x08, 0x10, 0x00}

const boltChar = 0

// Screen layout
const (
	uptimeCol = 8
	stateCol  = 7
)

// Dashboard shows the uptime on an LCD and toggles a response LED from a
// polled button.
type Dashboard struct {
	cfg   Config
	sched *core.Scheduler
	disp  lcd.Display

	seconds  uint32
	on       bool
	debounce core.Debounce
}

// NewDashboard builds the dashboard project: 200 ms heartbeat, 1 s
// uptime, 200 ms button guard.
func NewDashboard(cfg Config) Project {
	d := &Dashboard{cfg: cfg, sched: core.NewScheduler()}
	d.debounce.Guard = or32(cfg.Timing.Guard, 200)
	return d
}

func (d *Dashboard) Name() string { return "dashboard" }

func (d *Dashboard) Setup() {
	core.TimerInit(d.cfg.TickChannel)
	d.disp = d.cfg.display()
	d.disp.CreateCustomChar(boltChar, bolt)

	core.PinMode(d.cfg.HeartbeatLED, core.Output)
	core.PinMode(d.cfg.ResponseLED, core.Output)
	core.PinMode(d.cfg.Button, core.InputPullUp)

	splash(d.disp, or32(d.cfg.Timing.Splash, 2000))
	drawFrame(d.disp)

	d.sched.Every("heartbeat", or32(d.cfg.Timing.Heartbeat, 200), func(uint32) {
		core.TogglePin(d.cfg.HeartbeatLED)
	})
	d.sched.Every("uptime", or32(d.cfg.Timing.Seconds, 1000), func(uint32) {
		d.seconds++
		drawUptime(d.disp, d.seconds)
	})
	d.sched.Every("button", 1, d.pollButton)
}

func (d *Dashboard) Loop() {
	d.sched.Poll()
}

// pollButton toggles on every debounced sample that finds the button
// held, so a long press repeats once per guard window.
func (d *Dashboard) pollButton(now uint32) {
	if core.ReadPin(d.cfg.Button) != core.Low || !d.debounce.Accept(now) {
		return
	}
	d.on = !d.on
	core.WritePin(d.cfg.ResponseLED, core.LevelOf(d.on))
	drawState(d.disp, d.on)
	debug(d.Name(), "state "+onOff(d.on))
}

// Seconds returns the uptime shown on screen.
func (d *Dashboard) Seconds() uint32 { return d.seconds }

func splash(disp lcd.Display, ms uint32) {
	disp.SetCursor(0, 3)
	disp.Print("WELCOME")
	disp.SetCursor(1, 1)
	disp.Print("AVR Bare-Metal")
	core.Delay(ms)
	disp.Clear()
}

func drawFrame(disp lcd.Display) {
	disp.SetCursor(0, 0)
	disp.Print("Uptime: ")
	disp.Print(lcd.Clock(0))
	disp.SetCursor(1, 0)
	disp.Print("State: OFF")
}

func drawUptime(disp lcd.Display, seconds uint32) {
	disp.SetCursor(0, uptimeCol)
	disp.Print(lcd.Clock(seconds))
}

func drawState(disp lcd.Display, on bool) {
	disp.SetCursor(1, stateCol)
	if on {
		disp.Print("ON ")
		disp.WriteChar(boltChar)
		return
	}
	lcd.PrintPadded(disp, "OFF", 4)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
