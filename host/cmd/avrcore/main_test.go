package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"avrcore/core"
	"avrcore/host/mcu"
	"avrcore/host/serial"
	"avrcore/sim"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestProfileList(t *testing.T) {
	out, err := runCLI(t, "profile", "--list")
	if err != nil {
		t.Fatal(err)
	}
	if out != "arduino-uno\npro-mini-8mhz\n" {
		t.Errorf("output = %q", out)
	}
}

func TestProfilePrint(t *testing.T) {
	out, err := runCLI(t, "profile", "pro-mini-8mhz")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"# pro-mini-8mhz: tick on timer2, clk/64, 125 counts, 1ms per tick",
		"clock: 8MHz",
		"heartbeat_led: PB5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestProfileUnknown(t *testing.T) {
	if _, err := runCLI(t, "profile", "mega2560"); err == nil {
		t.Error("unknown profile accepted")
	}
}

func TestSimRunsDashboard(t *testing.T) {
	var logs bytes.Buffer
	opts := simOptions{
		board:    "arduino-uno",
		project:  "dashboard",
		duration: 4 * time.Second,
		report:   500 * time.Millisecond,
	}
	if err := runSim(context.Background(), opts, newLogger(&logs)); err != nil {
		t.Fatal(err)
	}
	out := logs.String()
	for _, want := range []string{"[sim] dashboard on arduino-uno", "|Uptime: 00:00:0", "[sim] stopped at"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestSimUnknownProject(t *testing.T) {
	var logs bytes.Buffer
	err := runSim(context.Background(), simOptions{board: "arduino-uno", project: "tetris"}, newLogger(&logs))
	if err == nil || !strings.Contains(err.Error(), "tetris") {
		t.Errorf("err = %v", err)
	}
}

// newSession connects a monitor session to a running simulated board.
func newSession(t *testing.T, setup func()) (*session, *bytes.Buffer) {
	t.Helper()
	m := sim.New(sim.Config{})
	host, fw := serial.Pipe()
	m.AttachLink(fw)
	if setup != nil {
		setup()
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		m.Run(done, nil)
		close(stopped)
	}()
	c := mcu.New(host, nil)
	t.Cleanup(func() {
		c.Close()
		close(done)
		<-stopped
		fw.Close()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Identify(ctx); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return &session{mcu: c, out: &out, timeout: 2 * time.Second, log: newLogger(&out)}, &out
}

func TestSessionCommands(t *testing.T) {
	s, out := newSession(t, nil)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"exti", "int0", "falling-edge"}, "INT0 enabled=true trigger=falling-edge\n"},
		{[]string{"exti-off", "0"}, ""},
		{[]string{"exti", "0"}, "INT0 enabled=false trigger=falling-edge\n"},
		{[]string{"in", "PD6", "pullup"}, "PD6=1\n"},
		{[]string{"out", "PB5", "1"}, ""},
		{[]string{"debug", "on"}, ""},
	}
	for _, tt := range tests {
		out.Reset()
		if err := s.exec(context.Background(), tt.args); err != nil {
			t.Errorf("%v: %v", tt.args, err)
			continue
		}
		if out.String() != tt.want {
			t.Errorf("%v: output %q, want %q", tt.args, out.String(), tt.want)
		}
	}
}

func TestSessionErrors(t *testing.T) {
	s, _ := newSession(t, nil)
	for _, args := range [][]string{
		{"bogus"},
		{"exti", "2"},
		{"exti", "0", "sideways"},
		{"out", "PZ1", "1"},
		{"latch", "x"},
		{"in"},
	} {
		if err := s.exec(context.Background(), args); err == nil {
			t.Errorf("%v: no error", args)
		}
	}
	if err := s.exec(context.Background(), []string{"quit"}); err != errQuit {
		t.Errorf("quit: err = %v", err)
	}
}

func TestSessionWatchPrintsLatch(t *testing.T) {
	s, out := newSession(t, func() {
		l := core.NewEventLatch(100)
		core.RegisterLatch(l)
		l.SignalAt(5)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := s.exec(ctx, []string{"watch", "0"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "latch0: +1 accepted, +0 bounces (total 1/0, coalesced 0, last tick 5)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRepl(t *testing.T) {
	s, out := newSession(t, nil)
	in := strings.NewReader("help\nnope\nquit\nclock\n")
	if err := s.repl(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "Commands:") || !strings.Contains(got, `error: unknown command "nope"`) {
		t.Errorf("output = %q", got)
	}
}

func TestPrintable(t *testing.T) {
	if got := printable("ON \x00\x7f"); got != "ON 0?" {
		t.Errorf("printable = %q", got)
	}
}
