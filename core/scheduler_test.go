package core

import "testing"

func TestTaskDue(t *testing.T) {
	tests := []struct {
		now, last, period uint32
		want              bool
	}{
		{199, 0, 200, false},
		{200, 0, 200, true},
		{201, 0, 200, true},
		{10, 0xFFFFFF00, 200, true},
		{10, 0xFFFFFFF0, 200, false},
		{0, 0, 0, true},
	}
	for _, tt := range tests {
		task := Task{Period: tt.period, LastRun: tt.last}
		if got := task.Due(tt.now); got != tt.want {
			t.Errorf("Due(now=%d last=%d period=%d) = %v, want %v", tt.now, tt.last, tt.period, got, tt.want)
		}
	}
}

func TestHeartbeatSchedule(t *testing.T) {
	reset(t)
	TimerInit(Timer0)

	s := NewScheduler()
	var fired []uint32
	s.Every("heartbeat", 200, func(now uint32) { fired = append(fired, now) })

	for i := 0; i < 999; i++ {
		tick(1)
		s.Poll()
	}
	if len(fired) != 4 {
		t.Fatalf("heartbeat ran %d times by tick 999, want 4 (%v)", len(fired), fired)
	}
	for i, at := range fired {
		if at != uint32(200*(i+1)) {
			t.Errorf("run %d at tick %d, want %d", i, at, 200*(i+1))
		}
	}

	tick(1)
	if n := s.Poll(); n != 1 || len(fired) != 5 {
		t.Errorf("at tick 1000 Poll ran %d tasks, total %d, want the 5th run", n, len(fired))
	}
}

func TestTaskNotDueAfterRun(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	s := NewScheduler()
	task := s.Every("seconds", 1000, func(uint32) {})

	tick(999)
	if task.Due(ReadTick()) {
		t.Fatalf("due at tick %d", ReadTick())
	}
	tick(1)
	if !task.Due(ReadTick()) {
		t.Fatalf("not due at tick %d", ReadTick())
	}
	if n := s.Poll(); n != 1 {
		t.Fatalf("Poll ran %d tasks, want 1", n)
	}
	if task.Due(ReadTick()) {
		t.Errorf("still due right after running (LastRun %d, now %d)", task.LastRun, ReadTick())
	}
	if task.LastRun != 1000 {
		t.Errorf("LastRun = %d, want 1000", task.LastRun)
	}
	if n := s.Poll(); n != 0 {
		t.Errorf("second Poll at the same tick ran %d tasks", n)
	}
}

func TestSchedulerAnchorAtCheck(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	s := NewScheduler()
	task := s.Every("slow", 200, func(uint32) { tick(30) })

	// The loop only gets round every 3 ticks.
	for ReadTick() < 203 {
		tick(3)
		s.Poll()
	}
	if task.Runs != 1 || task.LastRun != 201 {
		t.Errorf("Runs %d LastRun %d, want 1 and 201", task.Runs, task.LastRun)
	}
}

func TestSchedulerAnchorAfterRun(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	s := NewScheduler()
	s.Policy = AnchorAfterRun
	task := s.Every("slow", 200, func(uint32) { tick(30) })

	tick(200)
	s.Poll()
	if task.LastRun != 230 {
		t.Errorf("LastRun = %d, want 230", task.LastRun)
	}
}

func TestSchedulerOrder(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	s := NewScheduler()
	var order []string
	for _, name := range []string{"uptime", "heartbeat", "button"} {
		name := name
		s.Every(name, 10, func(uint32) { order = append(order, name) })
	}
	tick(10)
	if n := s.Poll(); n != 3 {
		t.Errorf("Poll() = %d, want 3", n)
	}
	if len(order) != 3 || order[0] != "uptime" || order[2] != "button" {
		t.Errorf("run order %v", order)
	}
	if len(s.Tasks()) != 3 {
		t.Errorf("Tasks() has %d entries", len(s.Tasks()))
	}
}

func TestTimerListOrder(t *testing.T) {
	reset(t)
	TimerInit(Timer0)

	var fired []uint32
	handler := func(tm *Timer) uint8 {
		fired = append(fired, tm.WakeTime)
		return SF_DONE
	}
	for _, at := range []uint32{30, 10, 20, 20} {
		ScheduleTimer(&Timer{WakeTime: at, Handler: handler})
	}
	cancelled := &Timer{WakeTime: 15, Handler: handler}
	ScheduleTimer(cancelled)
	CancelTimer(cancelled)

	for i := 0; i < 40; i++ {
		tick(1)
		ProcessTimers()
	}
	want := []uint32{10, 20, 20, 30}
	if len(fired) != len(want) {
		t.Fatalf("fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired %v, want %v", fired, want)
			break
		}
	}
}

func TestTimerReschedule(t *testing.T) {
	reset(t)
	TimerInit(Timer0)

	runs := 0
	ScheduleTimer(&Timer{WakeTime: 5, Handler: func(tm *Timer) uint8 {
		runs++
		if runs == 3 {
			return SF_DONE
		}
		tm.WakeTime += 5
		return SF_RESCHEDULE
	}})
	s := NewScheduler()
	for i := 0; i < 50; i++ {
		tick(1)
		s.Poll()
	}
	if runs != 3 {
		t.Errorf("timer ran %d times, want 3", runs)
	}
}

func TestTimerListAcrossWrap(t *testing.T) {
	reset(t)
	TimerInit(Timer0)
	SetTime(0xFFFFFFF0)

	var fired []uint32
	handler := func(tm *Timer) uint8 {
		fired = append(fired, tm.WakeTime)
		return SF_DONE
	}
	ScheduleTimer(&Timer{WakeTime: 0x00000008, Handler: handler})
	ScheduleTimer(&Timer{WakeTime: 0xFFFFFFF8, Handler: handler})

	ProcessTimers()
	if len(fired) != 0 {
		t.Fatalf("timers fired early: %v", fired)
	}
	for i := 0; i < 0x20; i++ {
		tick(1)
		ProcessTimers()
	}
	if len(fired) != 2 || fired[0] != 0xFFFFFFF8 || fired[1] != 8 {
		t.Errorf("fired %#x, want [0xfffffff8 0x8]", fired)
	}
}
