// Package bits provides single-bit and bit-field helpers over unsigned
// register-sized words. Bit indices count from 0 (least significant).
package bits

import "golang.org/x/exp/constraints"

// Set returns v with bit n set.
func Set[T constraints.Unsigned](v T, n uint8) T {
	return v | (T(1) << n)
}

// Clear returns v with bit n cleared.
func Clear[T constraints.Unsigned](v T, n uint8) T {
	return v &^ (T(1) << n)
}

// Toggle returns v with bit n inverted.
func Toggle[T constraints.Unsigned](v T, n uint8) T {
	return v ^ (T(1) << n)
}

// Read returns bit n of v as 0 or 1.
func Read[T constraints.Unsigned](v T, n uint8) T {
	return (v >> n) & 1
}

// IsSet reports whether bit n of v is 1.
func IsSet[T constraints.Unsigned](v T, n uint8) bool {
	return v&(T(1)<<n) != 0
}

// IsClear reports whether bit n of v is 0.
func IsClear[T constraints.Unsigned](v T, n uint8) bool {
	return v&(T(1)<<n) == 0
}

// Mask returns a mask with bit n set.
func Mask[T constraints.Unsigned](n uint8) T {
	return T(1) << n
}

// Field extracts the field of v selected by mask (unshifted) starting at shift.
func Field[T constraints.Unsigned](v T, shift uint8, mask T) T {
	return (v >> shift) & mask
}

// WithField returns v with the field at shift replaced by field.
// Bits of field outside mask are dropped.
func WithField[T constraints.Unsigned](v T, shift uint8, mask T, field T) T {
	return (v &^ (mask << shift)) | ((field & mask) << shift)
}
