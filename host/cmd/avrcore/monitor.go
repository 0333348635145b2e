package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"avrcore/core"
	"avrcore/host/mcu"
	"avrcore/host/mqtt"
	"avrcore/host/serial"
)

type monitorOptions struct {
	device  string
	baud    int
	addr    string
	timeout time.Duration

	mqttBroker string
	mqttPrefix string
}

func newMonitorCmd() *cobra.Command {
	opts := monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor [command [args...]]",
		Short: "Talk to a board running the firmware",
		Long: "Connect to the firmware over a serial port (or to 'avrcore sim --listen' over TCP), " +
			"read its dictionary and run one command, or start an interactive prompt when none is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr())
			c, err := dialMCU(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			err = c.Identify(ctx)
			cancel()
			if err != nil {
				return fmt.Errorf("identify: %w", err)
			}

			s := &session{mcu: c, out: cmd.OutOrStdout(), timeout: opts.timeout, log: logger}
			if opts.mqttBroker != "" {
				pub, err := mqtt.NewRealPublisher(opts.mqttBroker, "avrcore-monitor", mqtt.Topics{Prefix: opts.mqttPrefix})
				if err != nil {
					return err
				}
				defer pub.Close()
				s.reporter = mqtt.NewReporter(pub)
			}
			if len(args) > 0 {
				return s.exec(cmd.Context(), args)
			}
			s.mcu.WriteSummary(s.out)
			return s.repl(cmd.Context(), cmd.InOrStdin())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.device, "device", "/dev/ttyACM0", "serial device path")
	f.IntVar(&opts.baud, "baud", serial.DefaultBaud, "baud rate")
	f.StringVar(&opts.addr, "addr", "", "connect over TCP instead, e.g. localhost:7777")
	f.DurationVar(&opts.timeout, "timeout", 2*time.Second, "per-command timeout")
	f.StringVar(&opts.mqttBroker, "mqtt", "", "MQTT broker URL for the watch command")
	f.StringVar(&opts.mqttPrefix, "mqtt-prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func dialMCU(ctx context.Context, opts monitorOptions, logger *log.Logger) (*mcu.MCU, error) {
	if opts.addr != "" {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", opts.addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", opts.addr, err)
		}
		logger.Printf("[monitor] connected to %s", opts.addr)
		return mcu.New(conn, logger), nil
	}
	cfg := serial.DefaultConfig(opts.device)
	cfg.Baud = opts.baud
	logger.Printf("[monitor] opening %s at %d baud", cfg.Device, cfg.Baud)
	return mcu.Connect(ctx, cfg, logger)
}

// session runs monitor commands against one connection.
type session struct {
	mcu      *mcu.MCU
	out      io.Writer
	timeout  time.Duration
	log      *log.Logger
	reporter *mqtt.Reporter
}

var errQuit = errors.New("quit")

var monitorHelp = `Commands:
  dict                         print the dictionary summary
  raw                          print the dictionary JSON
  uptime                       time since the firmware tick started
  clock                        32-bit tick counter
  exti <line> [trigger]        query line 0/1, or configure it (low-level, any-edge, falling-edge, rising-edge)
  exti-off <line>              mask a line
  latch <oid>                  latch counters
  watch <oid> [interval]       poll a latch until interrupted, publishing changes to MQTT
  out <pin> <0|1>              drive a pin, e.g. out PB5 1
  in <pin> [pullup]            read a pin
  debug <on|off>               firmware debug output
  timing                       dump the timing ring
  quit                         leave
`

func (s *session) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprint(s.out, "Type 'help' for commands.\n> ")
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if fields := strings.Fields(sc.Text()); len(fields) > 0 {
			err := s.exec(ctx, fields)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(s.out, "error:", err)
			}
		}
		fmt.Fprint(s.out, "> ")
	}
	return sc.Err()
}

func (s *session) exec(ctx context.Context, args []string) error {
	if args[0] == "watch" {
		return s.watch(ctx, args[1:])
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch args[0] {
	case "help", "?":
		fmt.Fprint(s.out, monitorHelp)
	case "quit", "exit", "q":
		return errQuit
	case "dict":
		s.mcu.WriteSummary(s.out)
	case "raw":
		fmt.Fprintf(s.out, "%s\n", s.mcu.DictionaryRaw())
	case "uptime":
		up, err := s.mcu.Uptime(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, up)
	case "clock":
		clk, err := s.mcu.Clock(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, clk)
	case "exti":
		return s.exti(ctx, args[1:])
	case "exti-off":
		if len(args) != 2 {
			return errors.New("usage: exti-off <line>")
		}
		line, err := parseLine(args[1])
		if err != nil {
			return err
		}
		return s.mcu.DisableExti(ctx, line)
	case "latch":
		if len(args) != 2 {
			return errors.New("usage: latch <oid>")
		}
		oid, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return fmt.Errorf("oid %q: %w", args[1], err)
		}
		st, err := s.mcu.QueryLatch(ctx, uint8(oid))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "oid=%d pending=%v accepted=%d dropped=%d coalesced=%d last=%d\n",
			st.OID, st.Pending, st.Accepted, st.Dropped, st.Coalesced, st.Last)
	case "out":
		if len(args) != 3 {
			return errors.New("usage: out <pin> <0|1>")
		}
		pin, err := parsePin(args[1])
		if err != nil {
			return err
		}
		return s.mcu.ConfigDigitalOut(ctx, pin, core.LevelOf(args[2] == "1" || args[2] == "high"))
	case "in":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: in <pin> [pullup]")
		}
		pin, err := parsePin(args[1])
		if err != nil {
			return err
		}
		lvl, err := s.mcu.ReadDigitalIn(ctx, pin, len(args) == 3 && args[2] == "pullup")
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s=%d\n", pin, lvl)
	case "debug":
		if len(args) != 2 {
			return errors.New("usage: debug <on|off>")
		}
		return s.mcu.SetDebug(ctx, args[1] == "on")
	case "timing":
		events, err := s.mcu.TimingEvents(ctx)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Fprintf(s.out, "%-12s src=%d clock=%d v1=%d v2=%d\n",
				core.TimingEventName(ev.EventType), ev.Source, ev.Clock, ev.Value1, ev.Value2)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return nil
}

func (s *session) exti(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: exti <line> [trigger]")
	}
	line, err := parseLine(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		trig, ok := core.ParseTrigger(args[1])
		if !ok {
			return fmt.Errorf("trigger %q", args[1])
		}
		if err := s.mcu.ConfigExti(ctx, line, trig); err != nil {
			return err
		}
	}
	st, err := s.mcu.QueryExti(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s enabled=%v trigger=%s\n", st.Line, st.Enabled, st.Trigger)
	return nil
}

// watch polls a latch and prints every change until the connection drops
// or ctx ends.
func (s *session) watch(parent context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: watch <oid> [interval]")
	}
	oid, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return fmt.Errorf("oid %q: %w", args[0], err)
	}
	interval := 500 * time.Millisecond
	if len(args) > 1 {
		if interval, err = time.ParseDuration(args[1]); err != nil {
			return err
		}
	}
	reporter := s.reporter
	if reporter == nil {
		reporter = mqtt.NewReporter(printPublisher{s.out})
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	source := "latch" + args[0]
	for {
		ctx, cancel := context.WithTimeout(parent, s.timeout)
		st, err := s.mcu.QueryLatch(ctx, uint8(oid))
		cancel()
		if err != nil {
			return err
		}
		if _, err := reporter.Observe(mqtt.Sample{
			Source:  source,
			Stats:   core.LatchStats{Accepted: st.Accepted, Dropped: st.Dropped, Coalesced: st.Coalesced},
			Pending: st.Pending,
			Last:    st.Last,
		}); err != nil {
			s.log.Printf("[mqtt] %v", err)
		}
		select {
		case <-tick.C:
		case <-parent.Done():
			return nil
		case <-s.mcu.Done():
			return errors.New("connection closed")
		}
	}
}

// printPublisher writes events to the terminal when no broker is set.
type printPublisher struct {
	w io.Writer
}

func (p printPublisher) PublishEvent(e mqtt.Event) error {
	_, err := fmt.Fprintf(p.w, "%s %s: +%d accepted, +%d bounces (total %d/%d, coalesced %d, last tick %d)\n",
		e.Timestamp.Format(time.TimeOnly), e.Source, e.New, e.Bounces,
		e.Stats.Accepted, e.Stats.Dropped, e.Stats.Coalesced, e.Tick)
	return err
}

func (p printPublisher) PublishHeartbeat(mqtt.Heartbeat) error { return nil }

func (p printPublisher) Close() error { return nil }

func parseLine(s string) (core.ExtiLine, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "int"), 10, 8)
	if err != nil || !core.ExtiLine(n).Valid() {
		return 0, fmt.Errorf("exti line %q", s)
	}
	return core.ExtiLine(n), nil
}

func parsePin(s string) (core.Pin, error) {
	p, ok := core.ParsePin(s)
	if !ok {
		return 0, fmt.Errorf("pin %q", s)
	}
	return p, nil
}
