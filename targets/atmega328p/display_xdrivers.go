//go:build tinygo && avr && xdrivers

package main

import (
	"avrcore/drivers/lcd"
	"avrcore/projects"
)

func newDisplay(cfg projects.Config) lcd.Display {
	d, err := lcd.NewX(cfg.LCD)
	if err != nil {
		panic("lcd: " + err.Error())
	}
	return d
}
