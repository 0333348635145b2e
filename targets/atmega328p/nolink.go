//go:build tinygo && avr && !avrlink

package main

import (
	"machine"

	"avrcore/core"
)

// startLink sends the debug output to the UART instead.
func startLink() {
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s))
		machine.Serial.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
}

func serviceLink() {}
