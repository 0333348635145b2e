package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"avrcore/board"
	"avrcore/core"
	"avrcore/host/gpio"
	"avrcore/host/mqtt"
	"avrcore/projects"
	"avrcore/sim"
)

type simOptions struct {
	board    string
	project  string
	duration time.Duration
	realtime bool
	debug    bool
	report   time.Duration
	listen   string

	mqttBroker string
	mqttPrefix string

	gpioChip string
	gpioIn   []string
	gpioOut  []string
}

func newSimCmd() *cobra.Command {
	opts := simOptions{}
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run an example application on the simulated MCU",
		Long: "Run one of the example applications against the register-level ATmega328P " +
			"simulator. The LCD content is logged when it changes. Real GPIO lines, an MQTT " +
			"broker and a TCP command link can be attached.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSim(ctx, opts, newLogger(cmd.ErrOrStderr()))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.board, "board", "b", board.DefaultName, "board profile name or YAML file")
	f.StringVarP(&opts.project, "project", "p", "dashboard",
		"application to run ("+strings.Join(projects.Names(), ", ")+")")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "stop after this much simulated time (0 runs until interrupted)")
	f.BoolVar(&opts.realtime, "realtime", true, "pace simulated time against the wall clock")
	f.BoolVar(&opts.debug, "debug", false, "enable firmware debug output")
	f.DurationVar(&opts.report, "report", time.Second, "interval of LCD and MQTT reports, in simulated time")
	f.StringVar(&opts.listen, "listen", "", "serve the firmware command link on this TCP address")
	f.StringVar(&opts.mqttBroker, "mqtt", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	f.StringVar(&opts.mqttPrefix, "mqtt-prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	f.StringVar(&opts.gpioChip, "gpio-chip", "gpiochip0", "GPIO character device for --gpio-in/--gpio-out")
	f.StringSliceVar(&opts.gpioIn, "gpio-in", nil, "host input line feeding an MCU pin, e.g. PD2=17")
	f.StringSliceVar(&opts.gpioOut, "gpio-out", nil, "MCU output pin driving a host line, e.g. PB5=27")
	return cmd
}

// latchSource is implemented by projects that debounce into an EventLatch.
type latchSource interface {
	Latch() *core.EventLatch
}

func runSim(ctx context.Context, opts simOptions, logger *log.Logger) error {
	prof, err := loadProfile(opts.board)
	if err != nil {
		return err
	}
	cfg := prof.ProjectConfig()

	m := sim.New(sim.Config{CPUHz: prof.Clock.Hz(), Realtime: opts.realtime, Logger: logger})
	cols, rows := cfg.LCD.Type.Size()
	screen := m.AttachLCD(sim.LCDPins{
		RS: cfg.LCD.RS, EN: cfg.LCD.EN,
		D4: cfg.LCD.D4, D5: cfg.LCD.D5, D6: cfg.LCD.D6, D7: cfg.LCD.D7,
	}, int(cols), int(rows))

	p, err := projects.New(opts.project, cfg)
	if err != nil {
		return fmt.Errorf("%w: %q (have %s)", err, opts.project, strings.Join(projects.Names(), ", "))
	}
	core.SetDebugEnabled(opts.debug)

	if len(opts.gpioIn) > 0 || len(opts.gpioOut) > 0 {
		bridge, err := openBridge(m, opts, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()
	}

	var reporter *mqtt.Reporter
	if opts.mqttBroker != "" {
		pub, err := mqtt.NewRealPublisher(opts.mqttBroker, "avrcore-sim-"+prof.Name, mqtt.Topics{Prefix: opts.mqttPrefix})
		if err != nil {
			return err
		}
		defer pub.Close()
		reporter = mqtt.NewReporter(pub)
		logger.Printf("[mqtt] publishing to %s under %s/", opts.mqttBroker, opts.mqttPrefix)
	}

	if opts.listen != "" {
		ln, err := net.Listen("tcp", opts.listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		defer ln.Close()
		logger.Printf("[link] waiting for a host on %s", ln.Addr())
		go acceptLink(ctx, ln, m, logger)
	}

	logger.Printf("[sim] %s on %s (%s, tick on %s)", p.Name(), prof.Name, prof.Clock.Frequency, cfg.TickChannel)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.Setup()
	lastText := ""
	var nextReport time.Duration
	m.Run(ctx.Done(), func() {
		p.Loop()
		now := m.Now()
		if opts.duration > 0 && now >= opts.duration {
			cancel()
		}
		if now < nextReport {
			return
		}
		nextReport = now + opts.report
		if text := screen.Text(); text != lastText {
			lastText = text
			logger.Printf("[lcd] %v\n%s", now.Truncate(time.Millisecond), framed(text))
		}
		if reporter == nil {
			return
		}
		if ls, ok := p.(latchSource); ok {
			l := ls.Latch()
			last, _ := l.LastAccepted()
			if _, err := reporter.Observe(mqtt.Sample{
				Source: p.Name(), Stats: l.Stats(), Pending: l.Pending(), Last: last,
			}); err != nil {
				logger.Printf("[mqtt] event: %v", err)
			}
		}
		if err := reporter.Heartbeat(now, p.Name(), prof.Name); err != nil {
			logger.Printf("[mqtt] heartbeat: %v", err)
		}
	})
	logger.Printf("[sim] stopped at %v", m.Now())
	return nil
}

func openBridge(m *sim.Machine, opts simOptions, logger *log.Logger) (*gpio.Bridge, error) {
	in, err := gpio.ParseMapping(opts.gpioIn)
	if err != nil {
		return nil, err
	}
	out, err := gpio.ParseMapping(opts.gpioOut)
	if err != nil {
		return nil, err
	}
	lines, err := gpio.OpenChip(opts.gpioChip)
	if err != nil {
		return nil, err
	}
	b, err := gpio.NewBridge(m, lines, gpio.Mapping{Inputs: in, Outputs: out}, func(err error) {
		logger.Printf("[gpio] %v", err)
	})
	if err != nil {
		lines.Close()
		return nil, err
	}
	logger.Printf("[gpio] %s: %d inputs, %d outputs", opts.gpioChip, len(in), len(out))
	return b, nil
}

// acceptLink serves one host connection at a time.
func acceptLink(ctx context.Context, ln net.Listener, m *sim.Machine, logger *log.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				logger.Printf("[link] accept: %v", err)
			}
			return
		}
		logger.Printf("[link] host connected from %s", conn.RemoteAddr())
		attached := make(chan *sim.Link, 1)
		m.Post(func() { attached <- m.AttachLink(conn) })
		var l *sim.Link
		select {
		case l = <-attached:
		case <-ctx.Done():
			conn.Close()
			return
		}
		select {
		case <-l.Done():
			if err := l.Err(); err != nil {
				logger.Printf("[link] %v", err)
			}
			logger.Print("[link] host disconnected")
		case <-ctx.Done():
		}
		conn.Close()
	}
}

func framed(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "  |" + printable(l) + "|"
	}
	return strings.Join(lines, "\n")
}

// printable shows custom characters 0-7 as their digit.
func printable(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c < 8 {
			b[i] = '0' + c
		} else if c < 0x20 || c > 0x7E {
			b[i] = '?'
		}
	}
	return string(b)
}
