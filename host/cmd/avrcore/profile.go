package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"avrcore/board"
)

func newProfileCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "profile [name|file.yaml]",
		Short: "Print and validate a board profile",
		Long: "Load a board profile, apply defaults, validate the tick timer against the clock " +
			"and print the result as YAML together with the derived timer settings.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, n := range board.Builtins() {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			name := board.DefaultName
			if len(args) == 1 {
				name = args[0]
			}
			p, err := loadProfile(name)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode profile: %w", err)
			}
			cfg, _ := p.TickConfig()
			fmt.Fprintf(out, "# %s: tick on %s, clk/%d, %d counts, %s per tick\n",
				p.Name, cfg.Channel, cfg.Prescaler.Divisor(), cfg.Threshold, cfg.Period(p.Clock.Hz()))
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the builtin profiles")
	return cmd
}
