//go:build tinygo && avr

package core

import "device/avr"

func init() {
	SetRegisterFile(&RegisterFile{
		Timers: [numTimerChannels]TimerRegisters{
			Timer0: {
				TCCRA: avr.TCCR0A,
				TCCRB: avr.TCCR0B,
				TCNT:  Register16{L: avr.TCNT0},
				OCRA:  Register16{L: avr.OCR0A},
				OCRB:  Register16{L: avr.OCR0B},
				TIMSK: avr.TIMSK0,
				TIFR:  avr.TIFR0,
			},
			Timer1: {
				TCCRA: avr.TCCR1A,
				TCCRB: avr.TCCR1B,
				TCNT:  Register16{H: avr.TCNT1H, L: avr.TCNT1L},
				OCRA:  Register16{H: avr.OCR1AH, L: avr.OCR1AL},
				OCRB:  Register16{H: avr.OCR1BH, L: avr.OCR1BL},
				ICR:   Register16{H: avr.ICR1H, L: avr.ICR1L},
				TIMSK: avr.TIMSK1,
				TIFR:  avr.TIFR1,
			},
			Timer2: {
				TCCRA: avr.TCCR2A,
				TCCRB: avr.TCCR2B,
				TCNT:  Register16{L: avr.TCNT2},
				OCRA:  Register16{L: avr.OCR2A},
				OCRB:  Register16{L: avr.OCR2B},
				TIMSK: avr.TIMSK2,
				TIFR:  avr.TIFR2,
			},
		},
		ASSR:  avr.ASSR,
		EICRA: avr.EICRA,
		EIMSK: avr.EIMSK,
		EIFR:  avr.EIFR,
		Ports: [numPorts]PortRegisters{
			PortB: {PIN: avr.PINB, DDR: avr.DDRB, PORT: avr.PORTB},
			PortC: {PIN: avr.PINC, DDR: avr.DDRC, PORT: avr.PORTC},
			PortD: {PIN: avr.PIND, DDR: avr.DDRD, PORT: avr.PORTD},
		},
	})
	SetGPIODriver(NewRegisterGPIO(Registers()))
}
