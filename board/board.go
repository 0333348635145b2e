// Package board loads board profiles: the clock, tick hardware, wiring
// and application timing of one physical board, kept in YAML.
package board

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"avrcore/core"
	"avrcore/drivers/lcd"
	"avrcore/projects"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

//go:embed profiles/*.yaml
var embedded embed.FS

// DefaultName is the profile used when none is selected.
const DefaultName = "arduino-uno"

var (
	ErrUnknownProfile = errors.New("unknown board profile")
	ErrPinConflict    = errors.New("pin assigned twice")
	ErrTiming         = errors.New("timing out of range")
)

// Profile is one board.
type Profile struct {
	Name  string    `yaml:"name"`
	MCU   string    `yaml:"mcu"`
	Clock Frequency `yaml:"clock"`
	Tick  Tick      `yaml:"tick"`
	Pins  Pins      `yaml:"pins"`
	LCD   LCD       `yaml:"lcd"`

	Timing Timing `yaml:"timing"`
}

// Tick selects the timer behind the system tick.
type Tick struct {
	Channel   string    `yaml:"channel"`
	Prescaler uint32    `yaml:"prescaler"`
	Threshold uint32    `yaml:"threshold"`
	Rate      Frequency `yaml:"rate"`
}

// Pins is the wiring of the example applications.
type Pins struct {
	HeartbeatLED Pin    `yaml:"heartbeat_led"`
	ResponseLED  Pin    `yaml:"response_led"`
	Button       Pin    `yaml:"button"`
	DirButton    Pin    `yaml:"dir_button"`
	Motor        [4]Pin `yaml:"motor"`
}

// LCD is the HD44780 wiring.
type LCD struct {
	Type string `yaml:"type"`
	RS   Pin    `yaml:"rs"`
	EN   Pin    `yaml:"en"`
	D4   Pin    `yaml:"d4"`
	D5   Pin    `yaml:"d5"`
	D6   Pin    `yaml:"d6"`
	D7   Pin    `yaml:"d7"`
}

// Timing is the application timing as durations.
type Timing struct {
	Blink     time.Duration `yaml:"blink"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Seconds   time.Duration `yaml:"seconds"`
	Debounce  time.Duration `yaml:"debounce"`
	Guard     time.Duration `yaml:"guard"`
	Splash    time.Duration `yaml:"splash"`
	Step      time.Duration `yaml:"step"`
	Poll      time.Duration `yaml:"poll"`
}

// Frequency is a physic.Frequency written as "16MHz" in YAML.
type Frequency struct {
	physic.Frequency
}

func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	if err := f.Frequency.Set(value.Value); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

func (f Frequency) MarshalYAML() (interface{}, error) {
	return f.Frequency.String(), nil
}

// Hz returns the frequency in whole hertz.
func (f Frequency) Hz() uint32 {
	return uint32(f.Frequency / physic.Hertz)
}

// Pin is a core.Pin written as "PB5" in YAML. The zero value means
// unassigned.
type Pin struct {
	core.Pin
	Set bool
}

func (p *Pin) UnmarshalYAML(value *yaml.Node) error {
	pin, ok := core.ParsePin(value.Value)
	if !ok {
		return fmt.Errorf("line %d: invalid pin %q", value.Line, value.Value)
	}
	p.Pin, p.Set = pin, true
	return nil
}

func (p Pin) MarshalYAML() (interface{}, error) {
	return p.Pin.String(), nil
}

// Load parses a profile, fills the defaults and validates it.
func Load(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	applyDefaults(&p)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return &p, nil
}

// LoadFile loads a profile from disk.
func LoadFile(name string) (*Profile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Builtin loads an embedded profile by name.
func Builtin(name string) (*Profile, error) {
	if !slices.Contains(Builtins(), name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	data, err := embedded.ReadFile(path.Join("profiles", name+".yaml"))
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Default loads the Arduino Uno profile.
func Default() *Profile {
	p, err := Builtin(DefaultName)
	if err != nil {
		panic(err)
	}
	return p
}

// Builtins lists the embedded profiles.
func Builtins() []string {
	entries, _ := embedded.ReadDir("profiles")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(names)
	return names
}

// applyDefaults fills what a profile leaves out with the Arduino Uno
// values of the lab boards.
func applyDefaults(p *Profile) {
	if p.MCU == "" {
		p.MCU = "atmega328p"
	}
	if p.Clock.Frequency == 0 {
		p.Clock.Frequency = 16 * physic.MegaHertz
	}
	if p.Tick.Channel == "" {
		p.Tick.Channel = core.Timer2.String()
	}
	if p.Tick.Prescaler == 0 {
		p.Tick.Prescaler = 64
	}
	if p.Tick.Threshold == 0 {
		p.Tick.Threshold = 250
	}
	if p.Tick.Rate.Frequency == 0 {
		p.Tick.Rate.Frequency = physic.KiloHertz
	}
	if p.LCD.Type == "" {
		p.LCD.Type = lcd.Type16x2.String()
	}

	t := &p.Timing
	for _, d := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&t.Blink, 500 * time.Millisecond},
		{&t.Heartbeat, 200 * time.Millisecond},
		{&t.Seconds, time.Second},
		{&t.Debounce, 50 * time.Millisecond},
		{&t.Guard, 200 * time.Millisecond},
		{&t.Splash, 2 * time.Second},
		{&t.Step, 10 * time.Millisecond},
		{&t.Poll, 20 * time.Millisecond},
	} {
		if *d.v == 0 {
			*d.v = d.def
		}
	}
}

// Channel returns the tick channel.
func (p *Profile) Channel() (core.TimerChannel, error) {
	for ch := core.Timer0; ch <= core.Timer2; ch++ {
		if strings.EqualFold(p.Tick.Channel, ch.String()) {
			return ch, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrInvalidChannel, p.Tick.Channel)
}

// TickConfig returns the core configuration of the tick.
func (p *Profile) TickConfig() (core.TimerChannelConfig, error) {
	ch, err := p.Channel()
	if err != nil {
		return core.TimerChannelConfig{}, err
	}
	for ps := core.Prescale1; ps <= core.Prescale1024; ps++ {
		if _, ok := ps.ClockSelect(ch); ok && ps.Divisor() == p.Tick.Prescaler {
			return core.TimerChannelConfig{Channel: ch, Prescaler: ps, Threshold: p.Tick.Threshold}, nil
		}
	}
	return core.TimerChannelConfig{}, fmt.Errorf("%w: /%d on %s", core.ErrInvalidPrescaler, p.Tick.Prescaler, ch)
}

// TickPeriod returns the period the tick rate asks for.
func (p *Profile) TickPeriod() time.Duration {
	return p.Tick.Rate.Frequency.Period()
}

// Validate checks the tick hardware against the clock and the wiring for
// conflicts.
func (p *Profile) Validate() error {
	cfg, err := p.TickConfig()
	if err != nil {
		return err
	}
	if p.Tick.Rate.Frequency != core.TickFrequency*physic.Hertz {
		return fmt.Errorf("%w: tick rate %s, firmware runs at %dHz", ErrTiming, p.Tick.Rate.Frequency, core.TickFrequency)
	}
	if err := cfg.Validate(p.Clock.Hz(), p.TickPeriod()); err != nil {
		return fmt.Errorf("tick %s /%d x%d at %s: %w",
			cfg.Channel, p.Tick.Prescaler, p.Tick.Threshold, p.Clock.Frequency, err)
	}
	if p.LCD.Type != lcd.Type16x2.String() && p.LCD.Type != lcd.Type20x4.String() {
		return fmt.Errorf("lcd type %q", p.LCD.Type)
	}
	if err := p.checkPins(); err != nil {
		return err
	}
	if _, err := p.timer1Counts(p.Timing.Step); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if _, err := p.timer1Counts(p.Timing.Poll); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}

// checkPins rejects a pin used twice within one application. The motor
// project uses neither the LEDs nor the LCD, so those may share its pins.
func (p *Profile) checkPins() error {
	display := []Pin{
		p.Pins.HeartbeatLED, p.Pins.ResponseLED, p.Pins.Button,
		p.LCD.RS, p.LCD.EN, p.LCD.D4, p.LCD.D5, p.LCD.D6, p.LCD.D7,
	}
	motor := append([]Pin{p.Pins.Button, p.Pins.DirButton}, p.Pins.Motor[:]...)
	for _, group := range [][]Pin{display, motor} {
		var seen []core.Pin
		for _, pin := range group {
			if !pin.Set {
				continue
			}
			if slices.Contains(seen, pin.Pin) {
				return fmt.Errorf("%w: %s", ErrPinConflict, pin.Pin)
			}
			seen = append(seen, pin.Pin)
		}
	}
	return nil
}

// ticks converts d to tick periods.
func (p *Profile) ticks(d time.Duration) uint32 {
	return uint32(d / p.TickPeriod())
}

// timer1Counts converts d to Timer1 counts at clk/64.
func (p *Profile) timer1Counts(d time.Duration) (uint16, error) {
	n := uint64(d) * uint64(p.Clock.Hz()) / 64 / uint64(time.Second)
	if n == 0 || n > 0xFFFF {
		return 0, fmt.Errorf("%w: %v is %d Timer1 counts", ErrTiming, d, n)
	}
	return uint16(n), nil
}

// ProjectConfig returns the application configuration of the board.
func (p *Profile) ProjectConfig() projects.Config {
	ch, _ := p.Channel()
	typ := lcd.Type16x2
	if p.LCD.Type == lcd.Type20x4.String() {
		typ = lcd.Type20x4
	}
	step, _ := p.timer1Counts(p.Timing.Step)
	poll, _ := p.timer1Counts(p.Timing.Poll)

	cfg := projects.DefaultConfig()
	cfg.TickChannel = ch
	set := func(dst *core.Pin, src Pin) {
		if src.Set {
			*dst = src.Pin
		}
	}
	set(&cfg.HeartbeatLED, p.Pins.HeartbeatLED)
	set(&cfg.ResponseLED, p.Pins.ResponseLED)
	set(&cfg.Button, p.Pins.Button)
	set(&cfg.DirButton, p.Pins.DirButton)
	for i := range cfg.Motor {
		set(&cfg.Motor[i], p.Pins.Motor[i])
	}
	set(&cfg.LCD.RS, p.LCD.RS)
	set(&cfg.LCD.EN, p.LCD.EN)
	set(&cfg.LCD.D4, p.LCD.D4)
	set(&cfg.LCD.D5, p.LCD.D5)
	set(&cfg.LCD.D6, p.LCD.D6)
	set(&cfg.LCD.D7, p.LCD.D7)
	cfg.LCD.Type = typ

	cfg.Timing = projects.Timing{
		Blink:      p.ticks(p.Timing.Blink),
		Heartbeat:  p.ticks(p.Timing.Heartbeat),
		Seconds:    p.ticks(p.Timing.Seconds),
		Debounce:   p.ticks(p.Timing.Debounce),
		Guard:      p.ticks(p.Timing.Guard),
		Splash:     p.ticks(p.Timing.Splash),
		StepPeriod: step,
		PollPeriod: poll,
	}
	return cfg
}
