package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures one event for post-mortem analysis.
type TimingEvent struct {
	EventType uint8  // Evt* code
	Source    uint8  // channel, line, task index or latch id
	Clock     uint32 // tick at the event
	Value1    uint32
	Value2    uint32
}

// Event type codes
const (
	EvtTimerInit     = 1 // tick source started
	EvtEventAccept   = 2 // latch accepted an event
	EvtEventDrop     = 3 // latch rejected an event inside the guard
	EvtTaskRun       = 4 // periodic task ran
	EvtTimerSchedule = 5 // one-shot timer scheduled
	EvtTimerFire     = 6 // one-shot timer fired
	EvtAlarm         = 7 // compare alarm matched
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; set_debug enable=1 turns it on
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTimingEnabled turns timing capture on or off.
func SetTimingEnabled(enabled bool) {
	timingEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming stores an event in the ring. It is safe to call from
// interrupt handlers.
func RecordTiming(eventType, source uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	state := disableInterrupts()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Source:    source,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	restoreInterrupts(state)
}

// TimingEvents returns the ring content, oldest first, skipping empty slots.
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	CriticalSection(func() {
		start := timingRingHead
		for i := uint8(0); i < TimingRingSize; i++ {
			evt := timingRing[(start+i)%TimingRingSize]
			if evt.EventType != 0 {
				events = append(events, evt)
			}
		}
	})
	return events
}

// TimingEventName returns the log label of an Evt* code.
func TimingEventName(t uint8) string {
	switch t {
	case EvtTimerInit:
		return "TIMER_INIT"
	case EvtEventAccept:
		return "EVENT_ACCEPT"
	case EvtEventDrop:
		return "EVENT_DROP"
	case EvtTaskRun:
		return "TASK_RUN"
	case EvtTimerSchedule:
		return "TIMER_SCHED"
	case EvtTimerFire:
		return "TIMER_FIRE"
	case EvtAlarm:
		return "ALARM"
	}
	return "UNKNOWN"
}

// DumpTimingRing writes the ring through the debug writer, oldest first.
// It ignores the debug enable flag.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + TimingEventName(evt.EventType) +
			" src=" + utoa(uint32(evt.Source)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	CriticalSection(func() {
		for i := range timingRing {
			timingRing[i] = TimingEvent{}
		}
		timingRingHead = 0
	})
}
