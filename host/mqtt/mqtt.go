// Package mqtt publishes firmware activity (debounced latch events,
// heartbeats) to an MQTT broker, with a fake for tests.
package mqtt

import (
	"encoding/json"
	"time"

	"avrcore/core"
)

// DefaultPrefix is the topic root when none is configured.
const DefaultPrefix = "avrcore"

// Topics names the topics under one prefix.
type Topics struct {
	Prefix string
}

// Events is where latch events go.
func (t Topics) Events() string { return t.prefix() + "/events" }

// Heartbeat is where periodic status goes.
func (t Topics) Heartbeat() string { return t.prefix() + "/heartbeat" }

// Status carries the retained online/offline marker.
func (t Topics) Status() string { return t.prefix() + "/status" }

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// Publisher publishes firmware activity.
type Publisher interface {
	// PublishEvent sends a latch event. Errors should be logged, not fatal.
	PublishEvent(event Event) error

	// PublishHeartbeat sends a periodic status message.
	PublishHeartbeat(hb Heartbeat) error

	// Close disconnects from the broker.
	Close() error
}

// Event reports new accepted or dropped events on one latch.
type Event struct {
	Timestamp time.Time
	Source    string
	Tick      uint32 // firmware tick of the last accepted event
	Pending   bool
	Stats     core.LatchStats
	New       uint32 // accepted since the previous report
	Bounces   uint32 // dropped since the previous report
}

// Heartbeat is the periodic liveness message.
type Heartbeat struct {
	Timestamp time.Time
	Uptime    time.Duration
	Project   string
	Board     string
}

type eventPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Tick      uint32 `json:"tick"`
	Pending   bool   `json:"pending"`
	New       uint32 `json:"new"`
	Bounces   uint32 `json:"bounces"`
	Accepted  uint32 `json:"accepted"`
	Dropped   uint32 `json:"dropped"`
	Coalesced uint32 `json:"coalesced"`
}

// FormatEvent creates the JSON payload for a latch event.
func FormatEvent(e Event) ([]byte, error) {
	return json.Marshal(eventPayload{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Source:    e.Source,
		Tick:      e.Tick,
		Pending:   e.Pending,
		New:       e.New,
		Bounces:   e.Bounces,
		Accepted:  e.Stats.Accepted,
		Dropped:   e.Stats.Dropped,
		Coalesced: e.Stats.Coalesced,
	})
}

type heartbeatPayload struct {
	Timestamp string `json:"timestamp"`
	UptimeMS  int64  `json:"uptime_ms"`
	Project   string `json:"project,omitempty"`
	Board     string `json:"board,omitempty"`
}

// FormatHeartbeat creates the JSON payload for a heartbeat.
func FormatHeartbeat(hb Heartbeat) ([]byte, error) {
	return json.Marshal(heartbeatPayload{
		Timestamp: hb.Timestamp.UTC().Format(time.RFC3339),
		UptimeMS:  hb.Uptime.Milliseconds(),
		Project:   hb.Project,
		Board:     hb.Board,
	})
}

// Sample is one reading of a latch's counters.
type Sample struct {
	Source  string
	Stats   core.LatchStats
	Pending bool
	Last    uint32
}

// Reporter turns successive latch samples into events, publishing only
// when a counter moved.
type Reporter struct {
	pub  Publisher
	now  func() time.Time
	last map[string]core.LatchStats
}

// NewReporter reports through pub.
func NewReporter(pub Publisher) *Reporter {
	return &Reporter{pub: pub, now: time.Now, last: make(map[string]core.LatchStats)}
}

// Observe publishes an event if s differs from the previous sample of the
// same source. It reports whether one was sent.
func (r *Reporter) Observe(s Sample) (bool, error) {
	prev, seen := r.last[s.Source]
	r.last[s.Source] = s.Stats
	if seen && prev == s.Stats {
		return false, nil
	}
	if !seen && s.Stats == (core.LatchStats{}) {
		return false, nil
	}
	err := r.pub.PublishEvent(Event{
		Timestamp: r.now(),
		Source:    s.Source,
		Tick:      s.Last,
		Pending:   s.Pending,
		Stats:     s.Stats,
		New:       s.Stats.Accepted - prev.Accepted,
		Bounces:   s.Stats.Dropped - prev.Dropped,
	})
	return true, err
}

// Heartbeat publishes a heartbeat stamped with the current time.
func (r *Reporter) Heartbeat(uptime time.Duration, project, board string) error {
	return r.pub.PublishHeartbeat(Heartbeat{
		Timestamp: r.now(),
		Uptime:    uptime,
		Project:   project,
		Board:     board,
	})
}
