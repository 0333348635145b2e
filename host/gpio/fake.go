package gpio

import (
	"errors"
	"sync"
)

// FakeLines is a test double recording outputs and letting tests fire
// input edges. It is safe for concurrent use.
type FakeLines struct {
	mu       sync.Mutex
	watchers map[int]func(high bool)
	outputs  map[int][]bool

	// Initial is the level reported to Watch for offsets not listed.
	Initial bool

	// SetError, if set, is returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates an empty FakeLines.
func NewFakeLines() *FakeLines {
	return &FakeLines{
		watchers: make(map[int]func(bool)),
		outputs:  make(map[int][]bool),
		Initial:  true,
	}
}

// Watch records fn and reports the initial level.
func (f *FakeLines) Watch(offset int, fn func(high bool)) error {
	f.mu.Lock()
	if _, busy := f.watchers[offset]; busy {
		f.mu.Unlock()
		return errors.New("line already requested")
	}
	f.watchers[offset] = fn
	initial := f.Initial
	f.mu.Unlock()
	fn(initial)
	return nil
}

// Set records the written level.
func (f *FakeLines) Set(offset int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.outputs[offset] = append(f.outputs[offset], high)
	return nil
}

// Fire delivers an edge on a watched offset. It reports false if nothing
// watches it.
func (f *FakeLines) Fire(offset int, high bool) bool {
	f.mu.Lock()
	fn := f.watchers[offset]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(high)
	return true
}

// Writes returns the levels written to offset, in order.
func (f *FakeLines) Writes(offset int) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.outputs[offset]...)
}

// Close marks the lines as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
