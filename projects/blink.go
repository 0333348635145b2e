package projects

import "avrcore/core"

func init() { Register("blink", NewBlink) }

// Blink toggles the heartbeat LED with blocking delays.
type Blink struct {
	cfg    Config
	period uint32
}

// NewBlink builds the blink project. The default period is 500 ms.
func NewBlink(cfg Config) Project {
	return &Blink{cfg: cfg, period: or32(cfg.Timing.Blink, 500)}
}

func (b *Blink) Name() string { return "blink" }

func (b *Blink) Setup() {
	core.TimerInit(b.cfg.TickChannel)
	core.PinMode(b.cfg.HeartbeatLED, core.Output)
	debug(b.Name(), "period "+core.Utoa(b.period)+"ms")
}

func (b *Blink) Loop() {
	core.TogglePin(b.cfg.HeartbeatLED)
	core.Delay(b.period)
}
