//go:build !release

package core

// PreconditionChecks is true unless built with the release tag. Invalid
// channel, line or pin selectors panic when it is set and are ignored
// otherwise.
const PreconditionChecks = true

func precondition(msg string) {
	panic(msg)
}
