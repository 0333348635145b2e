//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// debounce is applied by the kernel to watched inputs. It is shorter than
// any guard window the firmware uses, so the firmware debouncer still sees
// contact bounce on slow buttons.
const debounce = 1 * time.Millisecond

// ChipLines are lines of one Linux GPIO character device.
type ChipLines struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// OpenChip opens a chip such as "gpiochip0".
func OpenChip(name string) (*ChipLines, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &ChipLines{chip: chip, lines: make(map[int]*gpiocdev.Line)}, nil
}

// Watch requests offset as an input with pull-up and edge events.
func (c *ChipLines) Watch(offset int, fn func(high bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.lines[offset]; busy {
		return fmt.Errorf("line %d already requested", offset)
	}
	l, err := c.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			fn(evt.Type == gpiocdev.LineEventRisingEdge)
		}))
	if err != nil {
		return fmt.Errorf("request line %d: %w", offset, err)
	}
	c.lines[offset] = l
	v, err := l.Value()
	if err != nil {
		return fmt.Errorf("read line %d: %w", offset, err)
	}
	fn(v != 0)
	return nil
}

// Set drives offset, requesting it as an output on first use.
func (c *ChipLines) Set(offset int, high bool) error {
	v := 0
	if high {
		v = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lines[offset]; ok {
		return l.SetValue(v)
	}
	l, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(v))
	if err != nil {
		return fmt.Errorf("request line %d: %w", offset, err)
	}
	c.lines[offset] = l
	return nil
}

// Close returns every line to a pulled-up input and releases the chip.
func (c *ChipLines) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for off, l := range c.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", off, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", off, err))
		}
	}
	c.lines = map[int]*gpiocdev.Line{}
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
