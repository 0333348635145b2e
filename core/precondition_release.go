//go:build release

package core

const PreconditionChecks = false

func precondition(string) {}
