package projects

import (
	"errors"
	"strings"
	"testing"
	"time"

	"avrcore/core"
	"avrcore/drivers/stepper"
	"avrcore/sim"

	"golang.org/x/exp/slices"
)

type bench struct {
	t   *testing.T
	m   *sim.Machine
	lcd *sim.LCD
	cfg Config
}

func newBench(t *testing.T) *bench {
	t.Helper()
	m := sim.New(sim.Config{})
	t.Cleanup(func() { core.ResetHost() })
	cfg := DefaultConfig()
	cfg.Timing.Splash = 100
	l := cfg.LCD
	model := m.AttachLCD(sim.LCDPins{RS: l.RS, EN: l.EN, D4: l.D4, D5: l.D5, D6: l.D6, D7: l.D7}, 16, 2)
	return &bench{t: t, m: m, lcd: model, cfg: cfg}
}

func (b *bench) start(name string) Project {
	b.t.Helper()
	p, err := New(name, b.cfg)
	if err != nil {
		b.t.Fatal(err)
	}
	p.Setup()
	return p
}

// press holds the button low for hold, bouncing once on the way down.
func (b *bench) press(p Project, pin core.Pin, hold time.Duration) {
	b.m.Drive(pin, core.Low)
	b.m.RunFor(time.Millisecond, p.Loop)
	b.m.Drive(pin, core.High)
	b.m.RunFor(time.Millisecond, p.Loop)
	b.m.Drive(pin, core.Low)
	b.m.RunFor(hold, p.Loop)
	b.m.Drive(pin, core.High)
}

func (b *bench) edges(pin core.Pin) *int {
	n := new(int)
	b.m.OnPinChange(func(p core.Pin, _ core.Level) {
		if p == pin {
			*n++
		}
	})
	return n
}

func TestRegistry(t *testing.T) {
	want := []string{"blink", "dashboard", "events", "motor", "polling"}
	if got := Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if _, err := New("nope", DefaultConfig()); !errors.Is(err, ErrUnknownProject) {
		t.Errorf("New(nope) error = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register("blink", NewBlink)
}

func TestBlink(t *testing.T) {
	b := newBench(t)
	b.cfg.Timing.Blink = 100
	led := b.edges(b.cfg.HeartbeatLED)
	p := b.start("blink")

	b.m.RunFor(time.Second, p.Loop)

	if *led < 9 || *led > 11 {
		t.Errorf("LED toggled %d times in 1s at 100ms, want about 10", *led)
	}
}

func TestPollingDebounce(t *testing.T) {
	b := newBench(t)
	heartbeat := b.edges(b.cfg.HeartbeatLED)
	p := b.start("polling")
	b.m.RunFor(50*time.Millisecond, p.Loop)

	b.press(p, b.cfg.Button, 100*time.Millisecond)
	b.m.RunFor(100*time.Millisecond, p.Loop)

	poll := p.(*Polling)
	if poll.Toggles() != 1 {
		t.Fatalf("bouncing press toggled %d times, want 1", poll.Toggles())
	}
	if b.m.Level(b.cfg.ResponseLED) != core.High {
		t.Error("response LED not on after one press")
	}

	b.press(p, b.cfg.Button, 100*time.Millisecond)
	b.m.RunFor(100*time.Millisecond, p.Loop)
	if poll.Toggles() != 2 || b.m.Level(b.cfg.ResponseLED) != core.Low {
		t.Errorf("second press: %d toggles, LED %v", poll.Toggles(), b.m.Level(b.cfg.ResponseLED))
	}
	if *heartbeat < 4 {
		t.Errorf("heartbeat toggled only %d times", *heartbeat)
	}
}

func TestDashboard(t *testing.T) {
	b := newBench(t)
	p := b.start("dashboard")

	if got := b.lcd.Line(0); got != "Uptime: 00:00:00" {
		t.Errorf("first frame row 0 = %q", got)
	}
	if got := strings.TrimRight(b.lcd.Line(1), " "); got != "State: OFF" {
		t.Errorf("first frame row 1 = %q", got)
	}

	b.m.RunFor(3100*time.Millisecond, p.Loop)
	if got := b.lcd.Line(0); got != "Uptime: 00:00:03" {
		t.Errorf("after 3s row 0 = %q", got)
	}

	b.press(p, b.cfg.Button, 50*time.Millisecond)
	b.m.RunFor(10*time.Millisecond, p.Loop)
	if got := strings.TrimRight(b.lcd.Line(1), " "); got != "State: ON \x00" {
		t.Errorf("after press row 1 = %q", got)
	}
	if b.m.Level(b.cfg.ResponseLED) != core.High {
		t.Error("response LED off after press")
	}
	if n := b.lcd.BusyViolations(); n != 0 {
		t.Errorf("%d LCD busy violations", n)
	}
}

func TestEventsLatch(t *testing.T) {
	b := newBench(t)
	p := b.start("events")
	ev := p.(*Events)

	b.press(p, b.cfg.Button, 50*time.Millisecond)
	b.m.RunFor(300*time.Millisecond, p.Loop)

	st := ev.Latch().Stats()
	if st.Accepted != 1 || st.Dropped != 1 {
		t.Errorf("stats after a bouncing press = %+v, want 1 accepted, 1 dropped", st)
	}
	if got := strings.TrimRight(b.lcd.Line(1), " "); got != "State: ON \x00" {
		t.Errorf("row 1 = %q", got)
	}
	if ev.Latch().Pending() {
		t.Error("latch still pending after the main loop ran")
	}

	b.press(p, b.cfg.Button, 50*time.Millisecond)
	b.m.RunFor(300*time.Millisecond, p.Loop)
	if got := strings.TrimRight(b.lcd.Line(1), " "); got != "State: OFF" {
		t.Errorf("row 1 after second press = %q", got)
	}
	if b.m.Level(b.cfg.ResponseLED) != core.Low {
		t.Error("response LED on after two presses")
	}
}

func TestMotor(t *testing.T) {
	b := newBench(t)
	p := b.start("motor")
	mp := p.(*Motor)

	b.m.RunFor(100*time.Millisecond, p.Loop)
	if mp.Running() || mp.Stepper().Position() != 0 {
		t.Fatal("motor moved before start was pressed")
	}

	b.press(p, b.cfg.Button, 50*time.Millisecond)
	b.m.RunFor(200*time.Millisecond, p.Loop)
	if !mp.Running() {
		t.Fatal("start button did not start the motor")
	}
	fwd := mp.Stepper().Position()
	if fwd < 15 {
		t.Errorf("position after ~200ms at 10ms/step = %d", fwd)
	}

	b.press(p, b.cfg.DirButton, 50*time.Millisecond)
	b.m.RunFor(200*time.Millisecond, p.Loop)
	if mp.Stepper().Direction() != stepper.CCW || mp.Stepper().Position() >= fwd+6 {
		t.Errorf("direction %v, position %d after reversing from %d",
			mp.Stepper().Direction(), mp.Stepper().Position(), fwd)
	}

	b.press(p, b.cfg.Button, 50*time.Millisecond)
	b.m.RunFor(50*time.Millisecond, p.Loop)
	if mp.Running() || mp.Stepper().Coils() != 0 {
		t.Errorf("after stop: running %v, coils %04b", mp.Running(), mp.Stepper().Coils())
	}
}
