// Command avrcore runs the example applications on the simulated
// ATmega328P, talks to boards running the firmware and checks board
// profiles.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"avrcore/board"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "avrcore",
		Short:         "ATmega328P bare-metal core: simulator and host tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSimCmd(), newMonitorCmd(), newProfileCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "avrcore:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

// loadProfile accepts a builtin name or a YAML file path.
func loadProfile(name string) (*board.Profile, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") || strings.ContainsRune(name, os.PathSeparator) {
		return board.LoadFile(name)
	}
	return board.Builtin(name)
}
