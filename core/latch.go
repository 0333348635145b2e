package core

import "sync/atomic"

// Debounce accepts an event only if Guard ticks have passed since the last
// accepted one. The first event is always accepted.
type Debounce struct {
	Guard uint32
	last  uint32
	armed bool
}

// Accept applies the guard at tick now. A rejected event leaves the last
// accepted tick unchanged.
func (d *Debounce) Accept(now uint32) bool {
	if d.armed && now-d.last < d.Guard {
		return false
	}
	d.last = now
	d.armed = true
	return true
}

// Last returns the tick of the last accepted event.
func (d *Debounce) Last() (uint32, bool) {
	return d.last, d.armed
}

// Reset forgets the last accepted event.
func (d *Debounce) Reset() {
	d.last = 0
	d.armed = false
}

// LatchStats counts what a latch has seen.
type LatchStats struct {
	Accepted  uint32
	Dropped   uint32 // inside the guard window
	Coalesced uint32 // accepted while a previous event was still pending
}

// EventLatch is a debounced single-bit event flag. Signal runs in the
// interrupt handler; the main loop polls Pending and clears it. Events
// accepted while the flag is still set merge into one notification.
type EventLatch struct {
	debounce Debounce
	pending  uint32 // atomic bool
	stats    LatchStats
	source   uint8
}

// NewEventLatch returns a latch with the given guard window in ticks.
func NewEventLatch(guard uint32) *EventLatch {
	return &EventLatch{debounce: Debounce{Guard: guard}}
}

// SetSource tags the latch's timing-ring entries.
func (l *EventLatch) SetSource(id uint8) {
	l.source = id
}

// Guard returns the guard window.
func (l *EventLatch) Guard() uint32 {
	return l.debounce.Guard
}

// Signal debounces an event at the current tick.
func (l *EventLatch) Signal() bool {
	return l.SignalAt(ReadTick())
}

// SignalAt debounces an event observed at tick now and sets the pending
// flag if it is accepted.
func (l *EventLatch) SignalAt(now uint32) bool {
	if !l.debounce.Accept(now) {
		l.stats.Dropped++
		RecordTiming(EvtEventDrop, l.source, now, l.debounce.last, 0)
		return false
	}
	l.stats.Accepted++
	if atomic.SwapUint32(&l.pending, 1) != 0 {
		l.stats.Coalesced++
	}
	RecordTiming(EvtEventAccept, l.source, now, l.stats.Accepted, 0)
	return true
}

// Handler returns an IRQHandler that signals the latch.
func (l *EventLatch) Handler() IRQHandler {
	return func() { l.Signal() }
}

// Pending reports whether an accepted event has not been consumed.
func (l *EventLatch) Pending() bool {
	return atomic.LoadUint32(&l.pending) != 0
}

// Take clears the flag and reports whether it was set.
func (l *EventLatch) Take() bool {
	return atomic.SwapUint32(&l.pending, 0) != 0
}

// Clear drops a pending notification.
func (l *EventLatch) Clear() {
	atomic.StoreUint32(&l.pending, 0)
}

// LastAccepted returns the tick of the last accepted event.
func (l *EventLatch) LastAccepted() (uint32, bool) {
	var last uint32
	var ok bool
	CriticalSection(func() {
		last, ok = l.debounce.Last()
	})
	return last, ok
}

// Stats returns a snapshot of the counters.
func (l *EventLatch) Stats() LatchStats {
	var s LatchStats
	CriticalSection(func() {
		s = l.stats
	})
	return s
}

// EventQueueSize is the capacity of an EventQueue.
const EventQueueSize = 8

// EventQueue is the queuing variant of EventLatch: every accepted event is
// kept with its tick until the main loop pops it. One producer (the
// handler) and one consumer (the main loop).
type EventQueue struct {
	debounce  Debounce
	buf       [EventQueueSize]uint32
	head      uint32 // atomic, written by producer
	tail      uint32 // atomic, written by consumer
	dropped   uint32
	overflows uint32
}

// NewEventQueue returns a queue with the given guard window in ticks.
func NewEventQueue(guard uint32) *EventQueue {
	return &EventQueue{debounce: Debounce{Guard: guard}}
}

// Signal debounces an event at the current tick.
func (q *EventQueue) Signal() bool {
	return q.SignalAt(ReadTick())
}

// SignalAt debounces an event at tick now and queues it if accepted. An
// accepted event that finds the queue full is counted as an overflow.
func (q *EventQueue) SignalAt(now uint32) bool {
	if !q.debounce.Accept(now) {
		q.dropped++
		return false
	}
	head := atomic.LoadUint32(&q.head)
	if head-atomic.LoadUint32(&q.tail) >= EventQueueSize {
		q.overflows++
		return false
	}
	q.buf[head%EventQueueSize] = now
	atomic.StoreUint32(&q.head, head+1)
	return true
}

// Handler returns an IRQHandler that signals the queue.
func (q *EventQueue) Handler() IRQHandler {
	return func() { q.Signal() }
}

// Pop removes the oldest event and returns its tick.
func (q *EventQueue) Pop() (uint32, bool) {
	tail := atomic.LoadUint32(&q.tail)
	if tail == atomic.LoadUint32(&q.head) {
		return 0, false
	}
	t := q.buf[tail%EventQueueSize]
	atomic.StoreUint32(&q.tail, tail+1)
	return t, true
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return int(atomic.LoadUint32(&q.head) - atomic.LoadUint32(&q.tail))
}

// Dropped returns the number of events rejected by the guard.
func (q *EventQueue) Dropped() uint32 {
	var n uint32
	CriticalSection(func() { n = q.dropped })
	return n
}

// Overflows returns the number of accepted events lost to a full queue.
func (q *EventQueue) Overflows() uint32 {
	var n uint32
	CriticalSection(func() { n = q.overflows })
	return n
}
