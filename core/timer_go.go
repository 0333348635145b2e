//go:build !tinygo

package core

import "runtime"

// The host stores the counter as four bytes and copies it one byte at a
// time, the way an 8-bit CPU does. tickLoadHook runs between byte loads so
// tests can land an increment in the middle of a read. The tick handler
// uses loadTicksRaw and never sees the hook.
var (
	tickBytes    [4]uint8
	tickLoadHook func(loaded int)
)

func loadTicks() uint32 {
	var v uint32
	for i := range tickBytes {
		v |= uint32(tickBytes[i]) << (8 * i)
		if hook := tickLoadHook; hook != nil && i < len(tickBytes)-1 {
			hook(i + 1)
		}
	}
	return v
}

func loadTicksRaw() uint32 {
	var v uint32
	for i := range tickBytes {
		v |= uint32(tickBytes[i]) << (8 * i)
	}
	return v
}

func storeTicks(v uint32) {
	for i := range tickBytes {
		tickBytes[i] = uint8(v >> (8 * i))
	}
}

func yield() {
	runtime.Gosched()
}
