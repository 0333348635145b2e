//go:build tinygo

package core

import "runtime/volatile"

var tickCounter volatile.Register32

func loadTicks() uint32 {
	return tickCounter.Get()
}

func loadTicksRaw() uint32 {
	return tickCounter.Get()
}

func storeTicks(v uint32) {
	tickCounter.Set(v)
}

func yield() {}
