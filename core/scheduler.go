package core

// Timer is a one-shot or self-rescheduling event on the tick timeline.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// timeBefore compares tick values across a counter wrap
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	RecordTiming(EvtTimerSchedule, 0, currentTime, t.WakeTime, 0)
	insertTimer(t)
}

// CancelTimer removes t if it is scheduled.
func CancelTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for p := &timerList; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer keeps the list sorted by WakeTime; equal times stay in
// insertion order
func insertTimer(t *Timer) {
	if timerList == nil || timeBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// TimerDispatch runs every timer due at currentTime. Handlers run with
// interrupts enabled; a handler returning SF_RESCHEDULE must have moved
// WakeTime forward.
func TimerDispatch() {
	for {
		var timer *Timer
		CriticalSection(func() {
			if timerList != nil && !timeBefore(currentTime, timerList.WakeTime) {
				timer = timerList
				timerList = timer.Next
				timer.Next = nil
			}
		})
		if timer == nil {
			return
		}

		RecordTiming(EvtTimerFire, 0, currentTime, timer.WakeTime, 0)
		if timer.Handler(timer) == SF_RESCHEDULE {
			ScheduleTimer(timer)
		}
	}
}

// TaskFunc is the action of a periodic task. now is the tick at which the
// task was found due.
type TaskFunc func(now uint32)

// Task is a periodic action run from the main loop.
type Task struct {
	Name    string
	Period  uint32
	LastRun uint32
	Run     TaskFunc
	Runs    uint32
}

// Due reports whether Period ticks have passed since LastRun.
func (t *Task) Due(now uint32) bool {
	return now-t.LastRun >= t.Period
}

// SchedulePolicy selects what LastRun is set to after a task runs.
type SchedulePolicy uint8

const (
	// AnchorAtCheck sets LastRun to the tick seen by the due check, before
	// the action runs.
	AnchorAtCheck SchedulePolicy = iota
	// AnchorAfterRun re-reads the tick once the action has returned.
	AnchorAfterRun
)

// Scheduler runs periodic tasks cooperatively. Each Poll visits the tasks
// in registration order and runs the due ones to completion, so an action
// must be short compared with the shortest period.
type Scheduler struct {
	Policy SchedulePolicy
	tasks  []*Task
}

// NewScheduler returns an empty scheduler using AnchorAtCheck.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add registers t and returns it.
func (s *Scheduler) Add(t *Task) *Task {
	s.tasks = append(s.tasks, t)
	return t
}

// Every registers a task with the given period, anchored at the current tick.
func (s *Scheduler) Every(name string, period uint32, run TaskFunc) *Task {
	return s.Add(&Task{Name: name, Period: period, LastRun: ReadTick(), Run: run})
}

// Tasks returns the registered tasks.
func (s *Scheduler) Tasks() []*Task {
	return s.tasks
}

// Poll performs one main-loop pass over the tasks, then dispatches due
// one-shot timers. It returns the number of tasks run.
func (s *Scheduler) Poll() int {
	ran := 0
	for i, t := range s.tasks {
		now := ReadTick()
		if !t.Due(now) {
			continue
		}
		if s.Policy == AnchorAtCheck {
			t.LastRun = now
		}
		t.Run(now)
		t.Runs++
		if s.Policy == AnchorAfterRun {
			t.LastRun = ReadTick()
		}
		RecordTiming(EvtTaskRun, uint8(i), now, t.Runs, 0)
		ran++
	}
	ProcessTimers()
	return ran
}
