//go:build tinygo && avr

// Firmware for the ATmega328P (Arduino Uno). One example application is
// linked in, selected at build time:
//
//	tinygo flash -target arduino -ldflags "-X main.projectName=events" ./targets/atmega328p
//
// The tick runs on Timer2 (projects.DefaultConfig); Timer0 belongs to the
// TinyGo runtime clock.
//
// Tags: avrlink serves the host command link on the UART, xdrivers
// drives the LCD through tinygo.org/x/drivers.
package main

import (
	"machine"

	"avrcore/projects"
)

var projectName = "dashboard"

func main() {
	bindVectors()
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	cfg := projects.DefaultConfig()
	cfg.Display = newDisplay(cfg)

	p, err := projects.New(projectName, cfg)
	if err != nil {
		panic("unknown project " + projectName)
	}
	startLink()
	p.Setup()
	for {
		p.Loop()
		serviceLink()
	}
}
