package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"lowir/internal/driver"
)

func newProbeCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "probe <table.toml|table.ttab>",
		Short: "Emit the layout probe routines of a table as LLVM IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := a.loadSet(cmd, args[0])
			if err != nil {
				return a.fail(cmd, err)
			}
			mod, _, err := driver.Probes(cmd.Context(), set, driver.Options{Jobs: a.cfg.Lower.Jobs, Timer: a.timer})
			if err != nil {
				return a.fail(cmd, err)
			}
			done := a.timer.Track("emit")
			defer done("")
			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), mod.IR.String())
			} else {
				err = os.WriteFile(out, []byte(mod.IR.String()), 0o644) //nolint:gosec // IR is not secret
			}
			if err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write IR to this file instead of stdout")
	return cmd
}
