//go:build tinygo && avr && !xdrivers

package main

import (
	"avrcore/drivers/lcd"
	"avrcore/projects"
)

// newDisplay returns nil: the projects bring up the GPIO driver.
func newDisplay(projects.Config) lcd.Display {
	return nil
}
