//go:build tinygo && avr && avrlink

package main

import (
	"machine"

	"avrcore/core"
	"avrcore/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors uint32
)

// startLink registers the command set and serves it on the UART. Debug
// output stays off because it would share the wire.
func startLink() {
	core.InitCoreCommands()
	core.GetGlobalDictionary().Generate()

	inputBuffer = protocol.NewFifoBuffer(64)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	core.SetGlobalTransport(transport)
	// Delay spins in the idle hook, so the link keeps answering while an
	// application waits.
	core.SetIdleHook(serviceLink)
}

// serviceLink moves bytes from the UART ring into the transport and
// writes out whatever it produced.
func serviceLink() {
	for machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			msgerrors++
			break
		}
		if inputBuffer.Write([]byte{b}) == 0 {
			msgerrors++
			inputBuffer.Reset()
		}
	}
	if inputBuffer.Available() > 0 {
		transport.Receive(inputBuffer)
	}
	if res := outputBuffer.Result(); len(res) > 0 {
		machine.Serial.Write(res)
		outputBuffer.Reset()
	}
}
