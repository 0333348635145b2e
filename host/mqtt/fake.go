package mqtt

import "sync"

// FakePublisher records published messages for test assertions. It is
// safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all latch events that were published.
	Events []Event

	// Heartbeats contains all heartbeats that were published.
	Heartbeats []Heartbeat

	// Payloads contains every JSON payload in publish order.
	Payloads [][]byte

	// PublishError, if set, is returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishEvent records the event.
func (f *FakePublisher) PublishEvent(e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatEvent(e)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, e)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishHeartbeat records the heartbeat.
func (f *FakePublisher) PublishHeartbeat(hb Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatHeartbeat(hb)
	if err != nil {
		return err
	}
	f.Heartbeats = append(f.Heartbeats, hb)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Snapshot returns copies of the recorded events and heartbeats.
func (f *FakePublisher) Snapshot() ([]Event, []Heartbeat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.Events...), append([]Heartbeat(nil), f.Heartbeats...)
}
