//go:build !linux

package gpio

import "errors"

// ChipLines is not available on non-Linux platforms.
type ChipLines struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*ChipLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (c *ChipLines) Watch(offset int, fn func(high bool)) error {
	return errors.New("gpio: not supported")
}

// Set is not implemented on non-Linux platforms.
func (c *ChipLines) Set(offset int, high bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *ChipLines) Close() error {
	return nil
}
