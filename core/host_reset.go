//go:build !tinygo

package core

// ResetHost returns the host model to its power-on state and installs a
// fresh memory-backed register file, which it returns. Tests and the
// simulator call it before bringing up a new machine.
func ResetHost() *RegisterFile {
	ResetInterrupts()
	irqAck = nil
	for v := range irqHandlers {
		irqHandlers[v] = nil
	}
	tickSlot = [numTimerChannels]int{}
	tickConfig = TimerChannelConfig{}
	tickLoadHook = nil
	storeTicks(0)
	bootTime, uptimeHigh, uptimeLast = 0, 0, 0
	idleHook = nil
	timerList, currentTime = nil, 0

	latchMu.Lock()
	latches = [maxLatches]*EventLatch{}
	nLatch = 0
	latchMu.Unlock()
	ClearTimingRing()

	rf := NewMemoryRegisterFile()
	SetRegisterFile(rf)
	SetGPIODriver(NewRegisterGPIO(rf))
	return rf
}
